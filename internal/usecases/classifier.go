package usecases

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"intakehub/internal/entities"
	"intakehub/internal/interfaces"
)

const defaultClassifyTimeout = 20 * time.Second

const defaultSystemPrompt = `You are an intake triage assistant for a business automation platform.
Classify the inbound message and respond with a single JSON object:
{"intent":"SCHEDULE_MEETING|RESCHEDULE_MEETING|CANCEL_MEETING|CHECK_AVAILABILITY|CREATE_TASK|UPDATE_TASK|INQUIRY|REMINDER|FOLLOW_UP|UNKNOWN",
"confidence":0.0,"reasoning":"short explanation","requires_approval":false,
"priority":3,"actions":[{"type":"schedule_meeting","priority":3,"requires_confirmation":false,"params":{}}],
"warnings":[],"alternatives":[]}
Respond with JSON only, no surrounding prose.`

// Classifier sends normalized content plus org configuration to the LLM and
// returns a typed decision. It never returns an error to the pipeline: any
// call or parse failure degrades to a low-confidence UNKNOWN decision with
// a warning, so the task is still recorded.
type Classifier struct {
	factory interfaces.AIClientFactory
	cache   *clientCache
	timeout time.Duration
}

// NewClassifier creates a classifier over an AIClient factory. Clients are
// cached per (org, dryRun) in an LRU registry with TTL so reconfiguration
// and growth stay bounded.
func NewClassifier(factory interfaces.AIClientFactory, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = defaultClassifyTimeout
	}
	return &Classifier{
		factory: factory,
		cache:   newClientCache(128, 30*time.Minute),
		timeout: timeout,
	}
}

// Invalidate drops cached clients for an org after its configuration
// changes.
func (c *Classifier) Invalidate(orgID string) {
	c.cache.invalidate(orgID)
}

// Classify runs the LLM call with a bounded timeout and parses the typed
// decision.
func (c *Classifier) Classify(ctx context.Context, input entities.AgentInput, cfg entities.OrgConfig, dryRun bool) entities.AgentDecisionResult {
	client := c.cache.get(cfg.ID, dryRun, cfg.UpdatedAt, func() interfaces.AIClient {
		return c.factory(cfg, dryRun)
	})

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := client.Complete(callCtx, systemPrompt, buildUserPrompt(input))
	if err != nil {
		slog.Warn("classification call failed", "org", cfg.ID, "correlation_id", input.CorrelationID, "err", err)
		return degradedDecision(input, "llm call failed: "+err.Error())
	}

	decision, perr := parseDecision(raw)
	if perr != nil {
		slog.Warn("classification response unparsable", "org", cfg.ID, "correlation_id", input.CorrelationID, "err", perr)
		return degradedDecision(input, perr.Reason)
	}
	return decision
}

func buildUserPrompt(input entities.AgentInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\nType: %s\n", input.Source, input.Type)
	if input.Metadata.Subject != "" {
		fmt.Fprintf(&sb, "Subject: %s\n", input.Metadata.Subject)
	}
	if hint, ok := input.StructuredData["intent_hint"].(string); ok && hint != "" && hint != string(entities.TaskUnknown) {
		fmt.Fprintf(&sb, "Heuristic intent hint: %s\n", hint)
	}
	sb.WriteString("Message:\n")
	sb.WriteString(input.RawContent)
	return sb.String()
}

// parseDecision is the tagged parse of the model output: a decision or a
// ClassificationError carrying the raw response, never a panic or throw.
func parseDecision(raw string) (entities.AgentDecisionResult, *entities.ClassificationError) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return entities.AgentDecisionResult{}, &entities.ClassificationError{Reason: "no JSON object in response", Raw: raw}
	}

	var decision entities.AgentDecisionResult
	if err := json.Unmarshal([]byte(jsonText), &decision); err != nil {
		return entities.AgentDecisionResult{}, &entities.ClassificationError{Reason: "invalid decision JSON: " + err.Error(), Raw: raw}
	}

	if !entities.ValidTaskType(decision.Intent) {
		decision.Intent = entities.TaskUnknown
	}
	if decision.Confidence < 0 {
		decision.Confidence = 0
	}
	if decision.Confidence > 1 {
		decision.Confidence = 1
	}
	decision.Priority = entities.ClampPriority(decision.Priority)
	for i := range decision.Actions {
		decision.Actions[i].Priority = entities.ClampPriority(decision.Actions[i].Priority)
	}
	return decision, nil
}

// extractJSONObject returns the first balanced top-level {...} in the text,
// tolerating prose or code fences around it.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func degradedDecision(input entities.AgentInput, warning string) entities.AgentDecisionResult {
	return entities.AgentDecisionResult{
		Intent:           entities.TaskUnknown,
		Confidence:       0,
		Reasoning:        "classification unavailable",
		RequiresApproval: true,
		Priority:         DetectPriority(input.RawContent),
		Warnings:         []string{warning},
	}
}

// clientCache is an LRU registry of configured AI clients keyed by
// (org, dryRun). Entries expire after a TTL or when the org configuration
// is newer than the cached client.
type clientCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recent
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key      string
	orgID    string
	client   interfaces.AIClient
	cfgStamp time.Time
	cachedAt time.Time
}

func newClientCache(capacity int, ttl time.Duration) *clientCache {
	return &clientCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *clientCache) get(orgID string, dryRun bool, cfgStamp time.Time, build func() interfaces.AIClient) interfaces.AIClient {
	key := fmt.Sprintf("%s|%t", orgID, dryRun)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		fresh := time.Since(entry.cachedAt) < c.ttl && !entry.cfgStamp.Before(cfgStamp)
		if fresh {
			c.order.MoveToFront(el)
			return entry.client
		}
		c.order.Remove(el)
		delete(c.entries, key)
	}

	client := build()
	el := c.order.PushFront(&cacheEntry{key: key, orgID: orgID, client: client, cfgStamp: cfgStamp, cachedAt: time.Now()})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return client
}

// invalidate drops every cached client for an org, both live and dry-run.
func (c *clientCache) invalidate(orgID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*cacheEntry).orgID == orgID {
			delete(c.entries, el.Value.(*cacheEntry).key)
			c.order.Remove(el)
		}
		el = next
	}
}
