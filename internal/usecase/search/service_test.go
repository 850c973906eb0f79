package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/vectorstore"
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
	var out []*entities.Decision
	for _, d := range f.decisions {
		if d.UserID != userID {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(d.Title+d.Summary+d.FinalDecision), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (f *fakeDecisionRepo) ExistsRecent(ctx context.Context, userID uuid.UUID, source entities.DecisionSource, sourceKey string, window time.Duration) (bool, error) {
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

type fakeIndex struct {
	hits []vectorstore.ScoredDecision
	err  error
}

func (f *fakeIndex) Search(ctx context.Context, userID uuid.UUID, query string, limit uint64) ([]vectorstore.ScoredDecision, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeCompleter struct {
	response string
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return f.response, nil
}

func newDecision(userID uuid.UUID, title, finalDecision string) *entities.Decision {
	d := entities.NewDecision(userID, entities.SourceSlack, uuid.NewString())
	d.Title = title
	d.Summary = title
	d.FinalDecision = finalDecision
	return d
}

func TestSearchKeywordOnly(t *testing.T) {
	userID := uuid.New()
	repo := &fakeDecisionRepo{decisions: []*entities.Decision{
		newDecision(userID, "Adopt Postgres", "Use Postgres"),
		newDecision(userID, "Switch to trunk-based dev", "One main branch"),
	}}

	svc := NewService(repo, nil, &fakeCompleter{}, nil)
	results, err := svc.Search(context.Background(), userID, "Postgres", 10, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Decision.Title != "Adopt Postgres" {
		t.Errorf("got %q", results[0].Decision.Title)
	}
}

func TestSearchIndexFailureFallsBack(t *testing.T) {
	userID := uuid.New()
	repo := &fakeDecisionRepo{decisions: []*entities.Decision{
		newDecision(userID, "Adopt Postgres", "Use Postgres"),
	}}
	index := &fakeIndex{err: fmt.Errorf("qdrant unavailable")}

	svc := NewService(repo, index, &fakeCompleter{}, nil)
	results, err := svc.Search(context.Background(), userID, "Postgres", 10, 0.8)
	if err != nil {
		t.Fatalf("Search should fall back, got error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 from keyword fallback", len(results))
	}
}

func TestSearchBlendsScores(t *testing.T) {
	userID := uuid.New()
	keywordHit := newDecision(userID, "Adopt Postgres", "Use Postgres")
	semanticHit := newDecision(userID, "Database selection", "Standardize on one engine")
	repo := &fakeDecisionRepo{decisions: []*entities.Decision{keywordHit, semanticHit}}
	index := &fakeIndex{hits: []vectorstore.ScoredDecision{
		{DecisionID: semanticHit.ID, Score: 0.95},
	}}

	svc := NewService(repo, index, &fakeCompleter{}, nil)
	results, err := svc.Search(context.Background(), userID, "Postgres", 10, 0.9)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// With alpha 0.9 the semantic hit should outrank the keyword hit
	if results[0].Decision.ID != semanticHit.ID {
		t.Errorf("semantic hit not ranked first")
	}
}

func TestAskAnswersFromBriefs(t *testing.T) {
	userID := uuid.New()
	repo := &fakeDecisionRepo{decisions: []*entities.Decision{
		newDecision(userID, "Adopt Postgres", "Use Postgres as the primary database"),
	}}

	svc := NewService(repo, nil, &fakeCompleter{response: "The team chose Postgres (Adopt Postgres)."}, nil)
	answer, err := svc.Ask(context.Background(), userID, "which database did we pick?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if !strings.Contains(answer.Answer, "Postgres") {
		t.Errorf("got answer %q", answer.Answer)
	}
	if len(answer.Decisions) != 1 {
		t.Errorf("got %d source decisions, want 1", len(answer.Decisions))
	}
}

func TestAskNoMatches(t *testing.T) {
	svc := NewService(&fakeDecisionRepo{}, nil, &fakeCompleter{}, nil)
	answer, err := svc.Ask(context.Background(), uuid.New(), "anything")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Answer == "" {
		t.Error("expected a fallback answer")
	}
}
