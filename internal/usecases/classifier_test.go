package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"intakehub/internal/entities"
	"intakehub/internal/interfaces"
)

type scriptedClient struct {
	response string
	err      error
	calls    int
}

func (c *scriptedClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func testInput(content string) entities.AgentInput {
	return entities.AgentInput{
		Source:        entities.SourceAPI,
		Type:          "msg",
		RawContent:    content,
		CorrelationID: "corr-1",
	}
}

func TestClassifyParsesDecision(t *testing.T) {
	client := &scriptedClient{response: `Here is the result:
{"intent":"SCHEDULE_MEETING","confidence":0.91,"reasoning":"clear ask","requires_approval":false,"priority":3,
"actions":[{"type":"schedule_meeting","priority":3,"params":{"day":"thursday"}}]}`}
	c := NewClassifier(func(cfg entities.OrgConfig, dryRun bool) interfaces.AIClient { return client }, time.Second)

	decision := c.Classify(context.Background(), testInput("schedule a meeting"), entities.OrgConfig{ID: "org-1"}, false)
	if decision.Intent != entities.TaskScheduleMeeting {
		t.Errorf("intent = %v", decision.Intent)
	}
	if decision.Confidence != 0.91 {
		t.Errorf("confidence = %v", decision.Confidence)
	}
	if len(decision.Actions) != 1 || decision.Actions[0].Type != entities.ActionScheduleMeeting {
		t.Errorf("actions = %+v", decision.Actions)
	}
}

func TestClassifyDegradesOnError(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	c := NewClassifier(func(cfg entities.OrgConfig, dryRun bool) interfaces.AIClient { return client }, time.Second)

	decision := c.Classify(context.Background(), testInput("urgent request"), entities.OrgConfig{ID: "org-1"}, false)
	if decision.Intent != entities.TaskUnknown {
		t.Errorf("intent = %v, want UNKNOWN", decision.Intent)
	}
	if decision.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", decision.Confidence)
	}
	if !decision.RequiresApproval {
		t.Error("degraded decision must require approval")
	}
	if len(decision.Warnings) == 0 {
		t.Error("degraded decision must carry a warning")
	}
	if decision.Priority != 5 {
		t.Errorf("priority = %d, want keyword-scored 5", decision.Priority)
	}
}

func TestClassifyDegradesOnGarbageResponse(t *testing.T) {
	client := &scriptedClient{response: "I am sorry, I cannot help with that."}
	c := NewClassifier(func(cfg entities.OrgConfig, dryRun bool) interfaces.AIClient { return client }, time.Second)

	decision := c.Classify(context.Background(), testInput("hello"), entities.OrgConfig{ID: "org-1"}, false)
	if decision.Intent != entities.TaskUnknown || len(decision.Warnings) == 0 {
		t.Errorf("decision = %+v, want degraded", decision)
	}
}

func TestParseDecisionClamps(t *testing.T) {
	decision, perr := parseDecision(`{"intent":"TAKE_OVER_WORLD","confidence":7.5,"priority":99}`)
	if perr != nil {
		t.Fatalf("parseDecision failed: %v", perr)
	}
	if decision.Intent != entities.TaskUnknown {
		t.Errorf("unknown intent = %v, want UNKNOWN", decision.Intent)
	}
	if decision.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", decision.Confidence)
	}
	if decision.Priority != entities.MaxPriority {
		t.Errorf("priority = %d, want clamped", decision.Priority)
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"prose before {\"a\":{\"b\":2}} prose after", `{"a":{"b":2}}`},
		{"```json\n{\"a\":\"}{\"}\n```", `{"a":"}{"}`},
		{"no json here", ""},
		{`{"unbalanced":`, ""},
	}
	for _, tt := range tests {
		if got := extractJSONObject(tt.in); got != tt.want {
			t.Errorf("extractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifierCachesPerOrgAndDryRun(t *testing.T) {
	built := 0
	factory := func(cfg entities.OrgConfig, dryRun bool) interfaces.AIClient {
		built++
		return &scriptedClient{response: `{"intent":"INQUIRY","confidence":0.9}`}
	}
	c := NewClassifier(factory, time.Second)
	cfg := entities.OrgConfig{ID: "org-1", UpdatedAt: time.Now()}

	c.Classify(context.Background(), testInput("a"), cfg, false)
	c.Classify(context.Background(), testInput("b"), cfg, false)
	if built != 1 {
		t.Errorf("built %d clients for repeated (org, live) calls, want 1", built)
	}

	c.Classify(context.Background(), testInput("c"), cfg, true)
	if built != 2 {
		t.Errorf("built %d clients, want separate dry-run client", built)
	}

	c.Invalidate("org-1")
	c.Classify(context.Background(), testInput("d"), cfg, false)
	if built != 3 {
		t.Errorf("built %d clients, want rebuild after invalidation", built)
	}
}

func TestClassifierCacheStaleConfig(t *testing.T) {
	built := 0
	factory := func(cfg entities.OrgConfig, dryRun bool) interfaces.AIClient {
		built++
		return &scriptedClient{response: `{"intent":"INQUIRY","confidence":0.9}`}
	}
	c := NewClassifier(factory, time.Second)

	cfg := entities.OrgConfig{ID: "org-1", UpdatedAt: time.Now()}
	c.Classify(context.Background(), testInput("a"), cfg, false)

	cfg.UpdatedAt = cfg.UpdatedAt.Add(time.Minute)
	c.Classify(context.Background(), testInput("b"), cfg, false)
	if built != 2 {
		t.Errorf("built %d clients, want rebuild for newer config", built)
	}
}
