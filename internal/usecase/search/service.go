package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/vectorstore"
	"github.com/knowwhyhq/knowwhy/internal/usecase/analysis"
	"github.com/knowwhyhq/knowwhy/pkg/llm"
)

// VectorIndex is the optional semantic index dependency
type VectorIndex interface {
	Search(ctx context.Context, userID uuid.UUID, query string, limit uint64) ([]vectorstore.ScoredDecision, error)
}

// Result is one scored search hit
type Result struct {
	Decision *entities.Decision `json:"decision"`
	Score    float64            `json:"score"`
}

// Answer is the outcome of a Q&A request
type Answer struct {
	Answer    string      `json:"answer"`
	Decisions []uuid.UUID `json:"decision_ids"`
}

// Service answers search and Q&A requests over the decision store. Semantic
// results are blended with keyword results; on any index failure the keyword
// path alone serves the request.
type Service struct {
	decisions repositories.DecisionRepository
	index     VectorIndex
	llm       analysis.Completer
	logger    *zap.Logger
}

// NewService creates a new search service. index may be nil.
func NewService(decisions repositories.DecisionRepository, index VectorIndex, completer analysis.Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		decisions: decisions,
		index:     index,
		llm:       completer,
		logger:    logger,
	}
}

// Search runs a hybrid search. alpha weights the semantic score against the
// keyword score; alpha 0 is pure keyword, 1 pure semantic.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, query string, limit int, alpha float64) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrInvalidArgument("query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	if alpha < 0 || alpha > 1 {
		alpha = 0.5
	}

	keyword, err := s.keywordResults(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}

	if s.index == nil || alpha == 0 {
		return rank(keyword, limit), nil
	}

	hits, err := s.index.Search(ctx, userID, query, uint64(limit))
	if err != nil {
		s.logger.Warn("📇 semantic search failed, keyword fallback",
			zap.Error(err))
		return rank(keyword, limit), nil
	}

	merged := make(map[uuid.UUID]*Result, len(keyword)+len(hits))
	for _, r := range keyword {
		r := r
		r.Score = (1 - alpha) * r.Score
		merged[r.Decision.ID] = &r
	}
	for _, hit := range hits {
		if existing, ok := merged[hit.DecisionID]; ok {
			existing.Score += alpha * float64(hit.Score)
			continue
		}
		decision, err := s.decisions.FindByID(ctx, userID, hit.DecisionID)
		if err != nil {
			// Index can lag behind deletes
			continue
		}
		merged[hit.DecisionID] = &Result{
			Decision: decision,
			Score:    alpha * float64(hit.Score),
		}
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, *r)
	}
	return rank(results, limit), nil
}

// keywordResults scores ILIKE matches by recency rank
func (s *Service) keywordResults(ctx context.Context, userID uuid.UUID, query string, limit int) ([]Result, error) {
	decisions, _, err := s.decisions.List(ctx, userID, repositories.DecisionFilters{
		Search:   query,
		Limit:    limit,
		SortBy:   "occurred_at",
		SortDesc: true,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(decisions))
	for i, d := range decisions {
		results = append(results, Result{
			Decision: d,
			Score:    1.0 / float64(i+1),
		})
	}
	return results, nil
}

const askPrompt = `You answer questions about a team's past decisions. Use ONLY the decision briefs below. If the briefs do not contain the answer, say you do not know. Keep the answer short and mention which decision it came from.

Decision briefs:
%s

Question: %s`

// Ask retrieves the closest decisions and answers the question from them
func (s *Service) Ask(ctx context.Context, userID uuid.UUID, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.ErrInvalidArgument("question is required")
	}

	results, err := s.Search(ctx, userID, question, 5, 0.7)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Answer{Answer: "No recorded decisions match this question."}, nil
	}

	var block strings.Builder
	ids := make([]uuid.UUID, 0, len(results))
	for i, r := range results {
		d := r.Decision
		ids = append(ids, d.ID)
		fmt.Fprintf(&block, "%d. [%s] %s\nDecision: %s\nRationale: %s\n\n",
			i+1, d.Source, d.Title, d.FinalDecision, d.Rationale)
	}

	content, err := s.llm.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(askPrompt, block.String(), question)},
	})
	if err != nil {
		return nil, errors.ErrAnalysisFailed(err)
	}

	return &Answer{
		Answer:    strings.TrimSpace(content),
		Decisions: ids,
	}, nil
}

func rank(results []Result, limit int) []Result {
	// Insertion sort; result sets are small
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
