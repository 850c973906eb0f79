package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/internal/usecase/analysis"
	"github.com/knowwhyhq/knowwhy/pkg/config"
	"github.com/knowwhyhq/knowwhy/pkg/llm"
)

// fakeDecisionRepo is an in-memory DecisionRepository
type fakeDecisionRepo struct {
	mu        sync.Mutex
	decisions []*entities.Decision
}

func (f *fakeDecisionRepo) Create(ctx context.Context, d *entities.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
	return nil
}

func (f *fakeDecisionRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*entities.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.decisions {
		if d.ID == id && d.UserID == userID {
			return d, nil
		}
	}
	return nil, entities.ErrDecisionNotFound
}

func (f *fakeDecisionRepo) List(ctx context.Context, userID uuid.UUID, filters repositories.DecisionFilters) ([]*entities.Decision, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Decision
	for _, d := range f.decisions {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeDecisionRepo) ExistsRecent(ctx context.Context, userID uuid.UUID, source entities.DecisionSource, sourceKey string, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeDecisionRepo) MarkEmbeddingSynced(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.decisions {
		if d.ID == id {
			d.EmbeddingSynced = true
		}
	}
	return nil
}

func (f *fakeDecisionRepo) ListUnsynced(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Decision
	for _, d := range f.decisions {
		if d.UserID == userID && !d.EmbeddingSynced {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDecisionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.decisions)
}

// fakeSource serves canned candidates and transcripts
type fakeSource struct {
	name        entities.DecisionSource
	candidates  []connector.Candidate
	transcripts map[string]string
	fetchErrs   map[string]error
	listErr     error
}

func (f *fakeSource) Name() entities.DecisionSource { return f.name }

func (f *fakeSource) ListCandidates(ctx context.Context, userID uuid.UUID) ([]connector.Candidate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.candidates, nil
}

func (f *fakeSource) FetchTranscript(ctx context.Context, userID uuid.UUID, candidate connector.Candidate) (string, error) {
	if err, ok := f.fetchErrs[candidate.Key]; ok {
		return "", err
	}
	return f.transcripts[candidate.Key], nil
}

// countingCompleter counts model calls and returns a decision response
type countingCompleter struct {
	mu       sync.Mutex
	calls    int
	response string
}

func (c *countingCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.response, nil
}

func (c *countingCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

const decisionResponse = `{
	"is_decision": true,
	"confidence": 0.9,
	"title": "Adopt Postgres",
	"summary": "The team picked Postgres.",
	"problem_statement": "Choose a database",
	"options_discussed": ["Postgres", "MySQL"],
	"final_decision": "Use Postgres",
	"rationale": "JSONB support",
	"action_items": ["Provision cluster"],
	"participants": ["Alice", "Bob"]
}`

func testConfig() config.SyncConfig {
	return config.SyncConfig{
		AutoThreshold:        0.6,
		InteractiveThreshold: 0.7,
		SweepCooldown:        24 * time.Hour,
		WebhookCooldown:      30 * time.Minute,
		Workers:              2,
		CandidateTimeout:     time.Minute,
	}
}

func newTestService(decisions *fakeDecisionRepo, completer analysis.Completer, sources ...connector.Source) *Service {
	analyzer := analysis.NewService(completer, nil, nil)
	return NewService(decisions, &fakeIntegrationRepo{}, &fakeMeetingRepo{}, analyzer, sources, nil, nil, nil, testConfig(), nil)
}

func TestSyncUserPersistsDecision(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}
	source := &fakeSource{
		name:        entities.SourceSlack,
		candidates:  []connector.Candidate{{Source: entities.SourceSlack, Key: "C001", Title: "#backend", UpdatedAt: time.Now()}},
		transcripts: map[string]string{"C001": "Alice: Postgres or MySQL?\nBob: final decision is Postgres."},
	}

	svc := newTestService(decisions, completer, source)
	report, err := svc.SyncUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("SyncUser: %v", err)
	}

	if decisions.count() != 1 {
		t.Fatalf("got %d decisions, want 1", decisions.count())
	}
	if report.Sources[0].Persisted != 1 {
		t.Errorf("got %d persisted, want 1", report.Sources[0].Persisted)
	}
	d := decisions.decisions[0]
	if d.Source != entities.SourceSlack || d.SourceKey != "C001" {
		t.Errorf("wrong provenance: %s/%s", d.Source, d.SourceKey)
	}
	if d.Title != "Adopt Postgres" {
		t.Errorf("got title %q", d.Title)
	}
}

func TestSyncUserSecondRunSkipsCooldown(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}
	source := &fakeSource{
		name:        entities.SourceSlack,
		candidates:  []connector.Candidate{{Source: entities.SourceSlack, Key: "C001", UpdatedAt: time.Now()}},
		transcripts: map[string]string{"C001": "Bob: final decision is Postgres."},
	}

	svc := newTestService(decisions, completer, source)
	userID := uuid.New()

	if _, err := svc.SyncUser(context.Background(), userID); err != nil {
		t.Fatalf("first SyncUser: %v", err)
	}
	callsAfterFirst := completer.callCount()

	report, err := svc.SyncUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("second SyncUser: %v", err)
	}

	if decisions.count() != 1 {
		t.Fatalf("got %d decisions after second run, want 1", decisions.count())
	}
	if report.Sources[0].Skipped != 1 {
		t.Errorf("got %d skipped, want 1", report.Sources[0].Skipped)
	}
	if completer.callCount() != callsAfterFirst {
		t.Errorf("second run called the model %d more times", completer.callCount()-callsAfterFirst)
	}
}

func TestSyncUserEmptyTranscriptSkipsDetector(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}
	source := &fakeSource{
		name:        entities.SourceSlack,
		candidates:  []connector.Candidate{{Source: entities.SourceSlack, Key: "C001", UpdatedAt: time.Now()}},
		transcripts: map[string]string{"C001": "   \n"},
	}

	svc := newTestService(decisions, completer, source)
	report, err := svc.SyncUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("SyncUser: %v", err)
	}

	if completer.callCount() != 0 {
		t.Errorf("model was called %d times for an empty transcript", completer.callCount())
	}
	if report.Sources[0].Skipped != 1 {
		t.Errorf("got %d skipped, want 1", report.Sources[0].Skipped)
	}
	if decisions.count() != 0 {
		t.Errorf("got %d decisions, want 0", decisions.count())
	}
}

func TestSyncUserCandidateFailureIsolated(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}
	source := &fakeSource{
		name: entities.SourceGitLab,
		candidates: []connector.Candidate{
			{Source: entities.SourceGitLab, Key: "42/issues/1", UpdatedAt: time.Now()},
			{Source: entities.SourceGitLab, Key: "42/issues/2", UpdatedAt: time.Now()},
		},
		transcripts: map[string]string{"42/issues/2": "Bob: final decision is Postgres."},
		fetchErrs:   map[string]error{"42/issues/1": fmt.Errorf("upstream 500")},
	}

	svc := newTestService(decisions, completer, source)
	report, err := svc.SyncUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("SyncUser: %v", err)
	}

	result := report.Sources[0]
	if result.Failed != 1 {
		t.Errorf("got %d failed, want 1", result.Failed)
	}
	if result.Persisted != 1 {
		t.Errorf("got %d persisted, want 1; failure leaked into sibling", result.Persisted)
	}
}

func TestSyncUserSourceFailureIsolated(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}
	broken := &fakeSource{
		name:    entities.SourceGitLab,
		listErr: fmt.Errorf("token revoked"),
	}
	healthy := &fakeSource{
		name:        entities.SourceSlack,
		candidates:  []connector.Candidate{{Source: entities.SourceSlack, Key: "C001", UpdatedAt: time.Now()}},
		transcripts: map[string]string{"C001": "Bob: final decision is Postgres."},
	}

	svc := newTestService(decisions, completer, broken, healthy)
	report, err := svc.SyncUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("SyncUser: %v", err)
	}

	if report.Sources[0].Error == "" {
		t.Error("expected recorded error for the broken source")
	}
	if report.Sources[1].Persisted != 1 {
		t.Errorf("healthy source persisted %d, want 1", report.Sources[1].Persisted)
	}
}

func TestSyncUserBelowThresholdNotPersisted(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: `{"is_decision": true, "confidence": 0.4, "final_decision": "maybe"}`}
	source := &fakeSource{
		name:        entities.SourceSlack,
		candidates:  []connector.Candidate{{Source: entities.SourceSlack, Key: "C001", UpdatedAt: time.Now()}},
		transcripts: map[string]string{"C001": "Alice: we might revisit this later."},
	}

	svc := newTestService(decisions, completer, source)
	report, err := svc.SyncUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("SyncUser: %v", err)
	}

	if decisions.count() != 0 {
		t.Errorf("got %d decisions, want 0", decisions.count())
	}
	if report.Sources[0].NoDecision != 1 {
		t.Errorf("got %d no_decision, want 1", report.Sources[0].NoDecision)
	}
}

func TestAnalyzeMeetingUsesInteractiveThreshold(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	// 0.65 clears the auto threshold (0.6) but not the interactive one (0.7)
	completer := &countingCompleter{response: `{"is_decision": true, "confidence": 0.65, "final_decision": "use Postgres"}`}

	userID := uuid.New()
	meeting := entities.NewMeeting(userID, "Architecture sync", time.Now())
	meeting.Transcript = "Alice: leaning towards Postgres.\nBob: fine by me."
	meetings := &fakeMeetingRepo{meetings: []*entities.Meeting{meeting}}

	analyzer := analysis.NewService(completer, nil, nil)
	svc := NewService(decisions, &fakeIntegrationRepo{}, meetings, analyzer, nil, nil, nil, nil, testConfig(), nil)

	item, err := svc.AnalyzeMeeting(context.Background(), userID, meeting.ID)
	if err != nil {
		t.Fatalf("AnalyzeMeeting: %v", err)
	}
	if item.Status != StatusNoDecision {
		t.Errorf("got %s, want no_decision below interactive threshold", item.Status)
	}
	if decisions.count() != 0 {
		t.Errorf("got %d decisions, want 0", decisions.count())
	}
}

// recordingIndex captures semantic index upserts
type recordingIndex struct {
	mu      sync.Mutex
	upserts []*entities.Decision
}

func (r *recordingIndex) UpsertDecision(ctx context.Context, d *entities.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, d)
	return nil
}

func TestAnalyzeMeetingLinksDecisionToMeeting(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}

	userID := uuid.New()
	meeting := entities.NewMeeting(userID, "Architecture sync", time.Now())
	meeting.Transcript = "Alice: Postgres or MySQL?\nBob: final decision is Postgres."
	meetings := &fakeMeetingRepo{meetings: []*entities.Meeting{meeting}}

	analyzer := analysis.NewService(completer, nil, nil)
	svc := NewService(decisions, &fakeIntegrationRepo{}, meetings, analyzer, nil, nil, nil, nil, testConfig(), nil)

	item, err := svc.AnalyzeMeeting(context.Background(), userID, meeting.ID)
	if err != nil {
		t.Fatalf("AnalyzeMeeting: %v", err)
	}
	if item.Status != StatusPersisted {
		t.Fatalf("got %s, want persisted (%s)", item.Status, item.Error)
	}

	d := decisions.decisions[0]
	if d.MeetingID == nil {
		t.Fatal("decision has no meeting link")
	}
	if *d.MeetingID != meeting.ID {
		t.Errorf("decision linked to meeting %s, want %s", d.MeetingID, meeting.ID)
	}
	if d.SourceKey != meeting.ID.String() {
		t.Errorf("got source key %q", d.SourceKey)
	}
}

func TestReconcileEmbeddingsScopedToUser(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()

	mine := entities.NewDecision(userA, entities.SourceSlack, "C001")
	other := entities.NewDecision(userB, entities.SourceSlack, "C002")
	decisions := &fakeDecisionRepo{decisions: []*entities.Decision{mine, other}}

	index := &recordingIndex{}
	analyzer := analysis.NewService(&countingCompleter{}, nil, nil)
	svc := NewService(decisions, &fakeIntegrationRepo{}, &fakeMeetingRepo{}, analyzer, nil, index, nil, nil, testConfig(), nil)

	if _, err := svc.SyncUser(context.Background(), userA); err != nil {
		t.Fatalf("SyncUser: %v", err)
	}

	if len(index.upserts) != 1 {
		t.Fatalf("got %d index upserts, want 1", len(index.upserts))
	}
	if index.upserts[0].UserID != userA {
		t.Errorf("reconciled another user's decision")
	}
	if !mine.EmbeddingSynced {
		t.Errorf("own decision not flagged synced")
	}
	if other.EmbeddingSynced {
		t.Errorf("other user's decision flagged synced")
	}
}

func TestSyncAllIncludesMeetingOnlyUsers(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}

	userID := uuid.New()
	meeting := entities.NewMeeting(userID, "Planning", time.Now())
	meeting.Transcript = "Bob: final decision is Postgres."
	meetings := &fakeMeetingRepo{meetings: []*entities.Meeting{meeting}}

	source := &fakeSource{
		name:        entities.SourceMeet,
		candidates:  []connector.Candidate{{Source: entities.SourceMeet, Key: meeting.ID.String(), Title: meeting.Title, UpdatedAt: time.Now()}},
		transcripts: map[string]string{meeting.ID.String(): meeting.Transcript},
	}

	analyzer := analysis.NewService(completer, nil, nil)
	svc := NewService(decisions, &fakeIntegrationRepo{}, meetings, analyzer, []connector.Source{source}, nil, nil, nil, testConfig(), nil)

	reports, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}

	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1; no integration row but a pending transcript", len(reports))
	}
	if reports[0].UserID != userID {
		t.Errorf("swept wrong user")
	}
	if decisions.count() != 1 {
		t.Errorf("got %d decisions, want 1", decisions.count())
	}
}

func TestAnalyzeEventRespectsWebhookCooldown(t *testing.T) {
	decisions := &fakeDecisionRepo{}
	completer := &countingCompleter{response: decisionResponse}
	svc := newTestService(decisions, completer)

	userID := uuid.New()
	candidate := connector.Candidate{Source: entities.SourceSlack, Key: "T1:C001:123.456", UpdatedAt: time.Now()}

	first := svc.AnalyzeEvent(context.Background(), userID, candidate, "Bob: final decision is Postgres.")
	if first.Status != StatusPersisted {
		t.Fatalf("first event: got %s, want persisted (%s)", first.Status, first.Error)
	}

	second := svc.AnalyzeEvent(context.Background(), userID, candidate, "Bob: final decision is Postgres.")
	if second.Status != StatusSkippedCooldown {
		t.Errorf("second event: got %s, want skipped_cooldown", second.Status)
	}
	if decisions.count() != 1 {
		t.Errorf("got %d decisions, want 1", decisions.count())
	}
}
