package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/internal/usecase/analysis"
	"github.com/knowwhyhq/knowwhy/internal/usecase/syncer"
	"github.com/knowwhyhq/knowwhy/pkg/config"
	"github.com/knowwhyhq/knowwhy/pkg/llm"
)

type fakeDecisionRepo struct {
	decisions []*entities.Decision
}

func (f *fakeDecisionRepo) Create(ctx context.Context, d *entities.Decision) error {
	f.decisions = append(f.decisions, d)
	return nil
}

func (f *fakeDecisionRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*entities.Decision, error) {
	for _, d := range f.decisions {
		if d.ID == id && d.UserID == userID {
			return d, nil
		}
	}
	return nil, entities.ErrDecisionNotFound
}

func (f *fakeDecisionRepo) List(ctx context.Context, userID uuid.UUID, filters repositories.DecisionFilters) ([]*entities.Decision, int64, error) {
	return nil, 0, nil
}

func (f *fakeDecisionRepo) ExistsRecent(ctx context.Context, userID uuid.UUID, source entities.DecisionSource, sourceKey string, window time.Duration) (bool, error) {
	cutoff := time.Now().Add(-window)
	for _, d := range f.decisions {
		if d.UserID == userID && d.Source == source && d.SourceKey == sourceKey && d.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDecisionRepo) UpdateFeedback(ctx context.Context, userID, id uuid.UUID, rating int, feedback *string) error {
	return nil
}

func (f *fakeDecisionRepo) Delete(ctx context.Context, userID, id uuid.UUID) error { return nil }

func (f *fakeDecisionRepo) MarkEmbeddingSynced(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeDecisionRepo) ListUnsynced(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Decision, error) {
	return nil, nil
}

type fakeIntegrationRepo struct {
	integrations []*entities.Integration
}

func (f *fakeIntegrationRepo) Upsert(ctx context.Context, integration *entities.Integration) error {
	f.integrations = append(f.integrations, integration)
	return nil
}

func (f *fakeIntegrationRepo) FindByUserAndSource(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) (*entities.Integration, error) {
	for _, i := range f.integrations {
		if i.UserID == userID && i.Source == source {
			return i, nil
		}
	}
	return nil, entities.ErrIntegrationNotFound
}

func (f *fakeIntegrationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Integration, error) {
	return nil, nil
}

func (f *fakeIntegrationRepo) ListActiveBySource(ctx context.Context, source entities.DecisionSource) ([]*entities.Integration, error) {
	var out []*entities.Integration
	for _, i := range f.integrations {
		if i.Source == source && i.IsActive {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeIntegrationRepo) UpdateLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (f *fakeIntegrationRepo) Delete(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) error {
	return nil
}

type fakeWebhookLogRepo struct {
	logs []*entities.WebhookLog
}

func (f *fakeWebhookLogRepo) Create(ctx context.Context, log *entities.WebhookLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeWebhookLogRepo) Update(ctx context.Context, log *entities.WebhookLog) error {
	return nil
}

func (f *fakeWebhookLogRepo) ListRecent(ctx context.Context, source entities.DecisionSource, limit int) ([]*entities.WebhookLog, error) {
	return f.logs, nil
}

type scriptedCompleter struct {
	responses []string
	calls     int
}

func (f *scriptedCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	if f.calls >= len(f.responses) {
		return "", fmt.Errorf("no scripted response for call %d", f.calls)
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

const detectJSON = `{"is_decision": true, "confidence": 0.9, "summary": "s", "final_decision": "ship it"}`
const briefJSON = `{"title": "Ship the feature", "summary": "s", "final_decision": "ship it", "rationale": "ready"}`

type webhookEnv struct {
	decisions    *fakeDecisionRepo
	integrations *fakeIntegrationRepo
	logs         *fakeWebhookLogRepo
	cfg          *config.Config
	syncer       *syncer.Service
}

func newWebhookEnv(completer analysis.Completer) *webhookEnv {
	decisions := &fakeDecisionRepo{}
	integrations := &fakeIntegrationRepo{}
	logs := &fakeWebhookLogRepo{}
	cfg := &config.Config{
		Slack: config.SlackConfig{SigningSecret: "slack-secret"},
		GitLab: config.GitLabConfig{
			WebhookSecret: "gitlab-secret",
		},
		Sync: config.SyncConfig{
			AutoThreshold:        0.6,
			InteractiveThreshold: 0.7,
			SweepCooldown:        24 * time.Hour,
			WebhookCooldown:      30 * time.Minute,
			Workers:              1,
			CandidateTimeout:     time.Minute,
		},
	}

	analyzer := analysis.NewService(completer, nil, nil)
	syncService := syncer.NewService(decisions, integrations, nil, analyzer, nil, nil, nil, nil, cfg.Sync, nil)

	return &webhookEnv{
		decisions:    decisions,
		integrations: integrations,
		logs:         logs,
		cfg:          cfg,
		syncer:       syncService,
	}
}

func slackSign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func slackRequest(body []byte, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/slack", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", slackSign(secret, timestamp, body))
	return req
}

func TestSlackWebhookRejectsBadSignature(t *testing.T) {
	env := newWebhookEnv(&scriptedCompleter{})
	h := NewSlackWebhook(env.integrations, env.logs, env.syncer, env.cfg, nil)

	body := []byte(`{"type":"event_callback","team_id":"T1"}`)
	req := slackRequest(body, "wrong-secret")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
	if len(env.logs.logs) != 0 {
		t.Errorf("rejected request was logged")
	}
	if len(env.decisions.decisions) != 0 {
		t.Errorf("rejected request produced a decision")
	}
}

func TestSlackWebhookURLVerification(t *testing.T) {
	env := newWebhookEnv(&scriptedCompleter{})
	h := NewSlackWebhook(env.integrations, env.logs, env.syncer, env.cfg, nil)

	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)
	req := slackRequest(body, "slack-secret")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "abc123") {
		t.Errorf("challenge not echoed: %s", rec.Body.String())
	}
}

func TestSlackWebhookMessagePersistsDecision(t *testing.T) {
	env := newWebhookEnv(&scriptedCompleter{responses: []string{detectJSON, briefJSON}})

	userID := uuid.New()
	integration := entities.NewIntegration(userID, entities.SourceSlack, "xoxb-token")
	integration.Metadata = datatypes.JSON(`{"team_id":"T1"}`)
	env.integrations.integrations = append(env.integrations.integrations, integration)

	h := NewSlackWebhook(env.integrations, env.logs, env.syncer, env.cfg, nil)

	event := map[string]interface{}{
		"type":    "event_callback",
		"team_id": "T1",
		"event": map[string]interface{}{
			"type":    "message",
			"channel": "C1",
			"user":    "U1",
			"text":    "Let's go with Postgres then, agreed?  Agreed.",
			"ts":      "1700000000.000100",
		},
	}
	body, _ := json.Marshal(event)
	req := slackRequest(body, "slack-secret")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if len(env.decisions.decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(env.decisions.decisions))
	}

	decision := env.decisions.decisions[0]
	if decision.UserID != userID {
		t.Errorf("decision stored for wrong user")
	}
	if decision.SourceKey != "T1:C1:1700000000.000100" {
		t.Errorf("got source key %q", decision.SourceKey)
	}
	if len(env.logs.logs) != 1 {
		t.Errorf("got %d webhook logs, want 1", len(env.logs.logs))
	}
}

func TestSlackWebhookIgnoresBotMessages(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{detectJSON, briefJSON}}
	env := newWebhookEnv(completer)
	h := NewSlackWebhook(env.integrations, env.logs, env.syncer, env.cfg, nil)

	body := []byte(`{"type":"event_callback","team_id":"T1","event":{"type":"message","bot_id":"B1","text":"decided"}}`)
	req := slackRequest(body, "slack-secret")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if completer.calls != 0 {
		t.Errorf("bot message reached the analyzer")
	}
	if len(env.decisions.decisions) != 0 {
		t.Errorf("bot message produced a decision")
	}
}

func TestGitLabWebhookRejectsBadToken(t *testing.T) {
	env := newWebhookEnv(&scriptedCompleter{})
	h := NewGitLabWebhook(env.integrations, env.logs, env.syncer, nil, env.cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/gitlab", strings.NewReader(`{}`))
	req.Header.Set("X-Gitlab-Token", "wrong")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
	if len(env.logs.logs) != 0 {
		t.Errorf("rejected request was logged")
	}
}

// fakeThreadSource serves a canned discussion transcript and records fetches
type fakeThreadSource struct {
	transcript string
	fetchedKey string
}

func (f *fakeThreadSource) Name() entities.DecisionSource { return entities.SourceGitLab }

func (f *fakeThreadSource) ListCandidates(ctx context.Context, userID uuid.UUID) ([]connector.Candidate, error) {
	return nil, nil
}

func (f *fakeThreadSource) FetchTranscript(ctx context.Context, userID uuid.UUID, candidate connector.Candidate) (string, error) {
	f.fetchedKey = candidate.Key
	return f.transcript, nil
}

func TestGitLabWebhookNoteEventAnalyzesThread(t *testing.T) {
	env := newWebhookEnv(&scriptedCompleter{responses: []string{detectJSON, briefJSON}})

	userID := uuid.New()
	integration := entities.NewIntegration(userID, entities.SourceGitLab, "glpat-token")
	env.integrations.integrations = append(env.integrations.integrations, integration)

	source := &fakeThreadSource{transcript: "GitLab Issue: Pick a queue [opened]\nWe need a broker\nAlice: Kafka is heavy\nBob: Final decision: we go with NATS"}
	h := NewGitLabWebhook(env.integrations, env.logs, env.syncer, source, env.cfg, nil)

	payload := `{
		"object_kind": "note",
		"project": {"id": 42, "web_url": "https://gitlab.com/acme/api"},
		"object_attributes": {"note": "Final decision: we go with NATS", "noteable_type": "Issue", "url": "https://gitlab.com/acme/api/-/issues/7#note_1"},
		"issue": {"iid": 7, "title": "Pick a queue", "description": "We need a broker"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/gitlab", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Gitlab-Token", "gitlab-secret")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if source.fetchedKey != "42/issues/7" {
		t.Errorf("thread fetched with key %q, want 42/issues/7", source.fetchedKey)
	}
	if len(env.decisions.decisions) != 1 {
		t.Fatalf("got %d decisions, want 1; comment thread was not analyzed", len(env.decisions.decisions))
	}
	if env.decisions.decisions[0].SourceKey != "42/issues/7" {
		t.Errorf("got source key %q", env.decisions.decisions[0].SourceKey)
	}
}

func TestGitLabWebhookIssuePersistsDecision(t *testing.T) {
	env := newWebhookEnv(&scriptedCompleter{responses: []string{detectJSON, briefJSON}})

	userID := uuid.New()
	integration := entities.NewIntegration(userID, entities.SourceGitLab, "glpat-token")
	env.integrations.integrations = append(env.integrations.integrations, integration)

	h := NewGitLabWebhook(env.integrations, env.logs, env.syncer, nil, env.cfg, nil)

	payload := `{
		"object_kind": "issue",
		"project": {"id": 42, "web_url": "https://gitlab.com/acme/api"},
		"object_attributes": {"iid": 7, "title": "Pick a queue", "description": "We settled on NATS", "url": "https://gitlab.com/acme/api/-/issues/7", "action": "update"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/gitlab", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Gitlab-Token", "gitlab-secret")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if len(env.decisions.decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(env.decisions.decisions))
	}

	decision := env.decisions.decisions[0]
	if decision.SourceKey != "42/issues/7" {
		t.Errorf("got source key %q", decision.SourceKey)
	}
	if decision.Source != entities.SourceGitLab {
		t.Errorf("got source %q", decision.Source)
	}
}
