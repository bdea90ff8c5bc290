package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"intakehub/internal/entities"
	"intakehub/internal/interfaces"
	"intakehub/internal/usecases"
)

// --- in-memory pipeline dependencies ---

type memTasks struct {
	m map[string]*entities.AgentTask
}

func newMemTasks() *memTasks { return &memTasks{m: map[string]*entities.AgentTask{}} }

func (s *memTasks) Create(ctx context.Context, task *entities.AgentTask) error {
	s.m[task.ID] = task
	return nil
}

func (s *memTasks) Get(ctx context.Context, id string) (*entities.AgentTask, error) {
	task, ok := s.m[id]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "task", ID: id}
	}
	return task, nil
}

func (s *memTasks) List(ctx context.Context, orgID string, status entities.TaskStatus, limit int) ([]*entities.AgentTask, error) {
	var out []*entities.AgentTask
	for _, task := range s.m {
		out = append(out, task)
	}
	return out, nil
}

func (s *memTasks) FindOpenTask(ctx context.Context, principal string) (*entities.AgentTask, error) {
	return nil, &entities.NotFoundError{Kind: "task", ID: principal}
}

func (s *memTasks) UpdateStatus(ctx context.Context, id string, to entities.TaskStatus) error {
	task, ok := s.m[id]
	if !ok {
		return &entities.NotFoundError{Kind: "task", ID: id}
	}
	if !entities.CanTransition(task.Status, to) {
		return errors.New("transition not permitted")
	}
	task.Status = to
	return nil
}

func (s *memTasks) RecordDecision(ctx context.Context, task *entities.AgentTask) error {
	s.m[task.ID] = task
	return nil
}

func (s *memTasks) IncrementRetry(ctx context.Context, id string) (int, error) {
	task, ok := s.m[id]
	if !ok {
		return 0, &entities.NotFoundError{Kind: "task", ID: id}
	}
	task.RetryCount++
	return task.RetryCount, nil
}

func (s *memTasks) CountByStatus(ctx context.Context, orgID string) (map[entities.TaskStatus]int, error) {
	counts := map[entities.TaskStatus]int{}
	for _, task := range s.m {
		counts[task.Status]++
	}
	return counts, nil
}

func (s *memTasks) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*entities.AgentTask, error) {
	return nil, nil
}

type memQuota struct{}

func (memQuota) Enforce(ctx context.Context, orgID, quotaType string) error   { return nil }
func (memQuota) Increment(ctx context.Context, orgID, quotaType string) error { return nil }
func (memQuota) Usage(ctx context.Context, orgID, quotaType string) (int, int, error) {
	return 0, 100, nil
}

type memOrgs struct{}

func (memOrgs) Get(ctx context.Context, orgID string) (*entities.OrgConfig, error) {
	return &entities.OrgConfig{ID: orgID, Thresholds: entities.DefaultThresholds}, nil
}
func (memOrgs) Save(ctx context.Context, cfg *entities.OrgConfig) error { return nil }

type memQueue struct {
	jobs []*entities.Job
}

func (q *memQueue) Enqueue(ctx context.Context, job *entities.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) ListByTask(ctx context.Context, taskID string) ([]*entities.Job, error) {
	return q.jobs, nil
}

type allowAll struct{}

func (allowAll) Allow(principal string, source entities.InputSource) entities.RateLimitResult {
	return entities.RateLimitResult{Allowed: true, Limit: 60, Remaining: 59, ResetAt: time.Now().Add(time.Minute)}
}

type nopBus struct{}

func (nopBus) Subscribe(event string, fn func(payload map[string]interface{})) {}
func (nopBus) Publish(event string, payload map[string]interface{})            {}
func (nopBus) PublishAsync(event string, payload map[string]interface{})       {}

type stubAI struct {
	response string
	err      error
}

func (s stubAI) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.response, s.err
}

type webhookFixture struct {
	handler *Handler
	router  *gin.Engine
	tasks   *memTasks
	queue   *memQueue
}

func newWebhookFixture(t *testing.T, cfg HandlerConfig, ai stubAI) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tasks := newMemTasks()
	queue := &memQueue{}
	classifier := usecases.NewClassifier(func(entities.OrgConfig, bool) interfaces.AIClient { return ai }, time.Second)
	pipeline := usecases.NewPipeline(tasks, memQuota{}, memOrgs{}, allowAll{}, classifier,
		usecases.NewDispatcher(queue), nopBus{})
	handler := NewHandler(pipeline, usecases.NewNormalizer(nil), tasks, memQuota{}, memOrgs{}, cfg)

	router := gin.New()
	router.POST("/webhook/sms", handler.HandleSMSWebhook)
	router.POST("/webhook/generic", handler.HandleGenericWebhook)
	router.POST("/webhook/worker", handler.HandleWorkerCallback)

	return &webhookFixture{handler: handler, router: router, tasks: tasks, queue: queue}
}

const autoResponse = `{"intent":"SCHEDULE_MEETING","confidence":0.92,"priority":3,
"actions":[{"type":"schedule_meeting","priority":3}]}`

// --- tests ---

func TestSMSWebhookRespondsTwiML(t *testing.T) {
	f := newWebhookFixture(t, HandlerConfig{DefaultOrgID: "org-1"}, stubAI{response: autoResponse})

	form := url.Values{
		"From":       {"+15551234567"},
		"To":         {"+15550001111"},
		"Body":       {"can we schedule a meeting tomorrow?"},
		"MessageSid": {"SM1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Response><Message>") {
		t.Errorf("not a TwiML document: %q", body)
	}
	if len(f.tasks.m) != 1 {
		t.Errorf("tasks = %d, want 1", len(f.tasks.m))
	}
}

// Even when the pipeline cannot classify, the sender gets a friendly TwiML
// acknowledgment and the provider sees 200.
func TestSMSWebhookDegradesTo200(t *testing.T) {
	f := newWebhookFixture(t, HandlerConfig{DefaultOrgID: "org-1"}, stubAI{err: errors.New("provider down")})

	form := url.Values{"From": {"+15551234567"}, "Body": {"hello there"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on internal failure", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Message>") {
		t.Errorf("no message in degraded TwiML: %q", rec.Body.String())
	}
}

func TestSMSWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t, HandlerConfig{TwilioToken: "auth-token"}, stubAI{response: autoResponse})

	form := url.Values{"From": {"+15551234567"}, "Body": {"yes"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if len(f.tasks.m) != 0 {
		t.Error("task created from unverified webhook")
	}
}

func TestGenericWebhookCreatesTask(t *testing.T) {
	secret := "whsec_test"
	f := newWebhookFixture(t, HandlerConfig{DefaultOrgID: "org-1", WebhookSecret: secret}, stubAI{response: autoResponse})

	body := []byte(`{"event":"form.submitted","content":"please schedule a demo","metadata":{"sender_email":"dana@example.com"}}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/webhook/generic", strings.NewReader(string(body)))
	req.Header.Set("X-Webhook-Timestamp", ts)
	req.Header.Set("X-Webhook-Signature", webhookSign(secret, ts, body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if resp["taskId"] == "" || resp["taskId"] == nil {
		t.Errorf("response = %v", resp)
	}
	if len(f.tasks.m) != 1 {
		t.Errorf("tasks = %d, want 1", len(f.tasks.m))
	}
}

func TestGenericWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t, HandlerConfig{WebhookSecret: "whsec_test"}, stubAI{response: autoResponse})

	req := httptest.NewRequest(http.MethodPost, "/webhook/generic", strings.NewReader(`{"content":"x"}`))
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestWorkerCallbackCompletesTask(t *testing.T) {
	f := newWebhookFixture(t, HandlerConfig{}, stubAI{response: autoResponse})
	f.tasks.m["task-1"] = &entities.AgentTask{ID: "task-1", Status: entities.StatusProcessing}

	body := `{"task_id":"task-1","status":"completed","resolution":"done"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/worker", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.tasks.m["task-1"].Status != entities.StatusCompleted {
		t.Errorf("status = %v, want COMPLETED", f.tasks.m["task-1"].Status)
	}
}

func TestWorkerCallbackUnknownTask404(t *testing.T) {
	f := newWebhookFixture(t, HandlerConfig{}, stubAI{response: autoResponse})

	body := `{"task_id":"missing","status":"completed"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/worker", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWorkerCallbackRejectsBadStatus(t *testing.T) {
	f := newWebhookFixture(t, HandlerConfig{}, stubAI{response: autoResponse})

	body := `{"task_id":"task-1","status":"exploded"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/worker", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
