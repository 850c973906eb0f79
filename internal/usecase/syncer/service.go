package syncer

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/internal/usecase/analysis"
	"github.com/knowwhyhq/knowwhy/pkg/config"
)

// ItemStatus is the terminal state of one candidate in a sweep
type ItemStatus string

const (
	StatusPersisted       ItemStatus = "persisted"
	StatusNoDecision      ItemStatus = "no_decision"
	StatusSkippedCooldown ItemStatus = "skipped_cooldown"
	StatusSkippedEmpty    ItemStatus = "skipped_empty"
	StatusFailed          ItemStatus = "failed"
)

// ItemResult records what happened to one candidate
type ItemResult struct {
	Key        string     `json:"key"`
	Status     ItemStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	DecisionID *uuid.UUID `json:"decision_id,omitempty"`
}

// SourceResult aggregates one source's sweep
type SourceResult struct {
	Source     entities.DecisionSource `json:"source"`
	Candidates int                     `json:"candidates"`
	Persisted  int                     `json:"persisted"`
	NoDecision int                     `json:"no_decision"`
	Skipped    int                     `json:"skipped"`
	Failed     int                     `json:"failed"`
	Error      string                  `json:"error,omitempty"`
	Items      []ItemResult            `json:"items,omitempty"`
}

// Report is the outcome of a full sweep for one user
type Report struct {
	UserID  uuid.UUID      `json:"user_id"`
	Sources []SourceResult `json:"sources"`
}

// Index is the optional semantic index dependency
type Index interface {
	UpsertDecision(ctx context.Context, decision *entities.Decision) error
}

// Archive is the optional transcript archive dependency
type Archive interface {
	Store(ctx context.Context, objectName, transcript string) error
}

// Notifier posts a message back to a Slack channel after a decision is
// persisted. Satisfied by the Slack connector.
type Notifier interface {
	PostMessage(ctx context.Context, userID uuid.UUID, channelID, text string) error
}

// Service orchestrates the sweep: Discover candidates per source, Filter,
// Analyze, Persist. A candidate failure never aborts its siblings; a source
// failure never aborts other sources.
type Service struct {
	decisions    repositories.DecisionRepository
	integrations repositories.IntegrationRepository
	meetings     repositories.MeetingRepository
	analyzer     *analysis.Service
	sources      []connector.Source
	index        Index
	archive      Archive
	notifier     Notifier
	cfg          config.SyncConfig
	logger       *zap.Logger
}

// NewService creates a new sync service. index, archive and notifier may be
// nil; the corresponding steps are skipped.
func NewService(
	decisions repositories.DecisionRepository,
	integrations repositories.IntegrationRepository,
	meetings repositories.MeetingRepository,
	analyzer *analysis.Service,
	sources []connector.Source,
	index Index,
	archive Archive,
	notifier Notifier,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		decisions:    decisions,
		integrations: integrations,
		meetings:     meetings,
		analyzer:     analyzer,
		sources:      sources,
		index:        index,
		archive:      archive,
		notifier:     notifier,
		cfg:          cfg,
		logger:       logger,
	}
}

// SyncUser sweeps every source for one user
func (s *Service) SyncUser(ctx context.Context, userID uuid.UUID) (*Report, error) {
	report := &Report{UserID: userID}

	for _, source := range s.sources {
		result := s.syncSource(ctx, userID, source)
		report.Sources = append(report.Sources, result)
	}

	s.reconcileEmbeddings(ctx, userID)
	return report, nil
}

// SyncAll sweeps every user that has at least one active integration or an
// unanalyzed meeting transcript. This is the external scheduler entrypoint.
func (s *Service) SyncAll(ctx context.Context) ([]*Report, error) {
	seen := make(map[uuid.UUID]bool)
	var userIDs []uuid.UUID

	for _, source := range []entities.DecisionSource{entities.SourceSlack, entities.SourceGitLab} {
		integrations, err := s.integrations.ListActiveBySource(ctx, source)
		if err != nil {
			return nil, err
		}
		for _, integration := range integrations {
			if !seen[integration.UserID] {
				seen[integration.UserID] = true
				userIDs = append(userIDs, integration.UserID)
			}
		}
	}

	// Users who only import transcripts have no integration row
	if s.meetings != nil {
		meetingUsers, err := s.meetings.ListUserIDsWithPendingTranscripts(ctx)
		if err != nil {
			return nil, err
		}
		for _, userID := range meetingUsers {
			if !seen[userID] {
				seen[userID] = true
				userIDs = append(userIDs, userID)
			}
		}
	}

	var reports []*Report
	for _, userID := range userIDs {
		report, err := s.SyncUser(ctx, userID)
		if err != nil {
			s.logger.Error("🔄 user sweep failed", zap.String("user_id", userID.String()), zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Service) syncSource(ctx context.Context, userID uuid.UUID, source connector.Source) SourceResult {
	result := SourceResult{Source: source.Name()}

	candidates, err := source.ListCandidates(ctx, userID)
	if err != nil {
		// Not connected is a normal state for a user, not a sweep failure
		var appErr apperrors.AppError
		if stderrors.As(err, &appErr) && appErr.Code == apperrors.ErrorCode_SOURCE_NOT_CONNECTED {
			return result
		}
		result.Error = err.Error()
		s.logger.Warn("🔄 source discover failed",
			zap.String("source", string(source.Name())),
			zap.Error(err))
		return result
	}
	result.Candidates = len(candidates)

	items := s.processCandidates(ctx, userID, source, candidates, s.cfg.SweepCooldown)
	result.Items = items
	for _, item := range items {
		switch item.Status {
		case StatusPersisted:
			result.Persisted++
		case StatusNoDecision:
			result.NoDecision++
		case StatusSkippedCooldown, StatusSkippedEmpty:
			result.Skipped++
		case StatusFailed:
			result.Failed++
		}
	}

	s.recordSyncTime(ctx, userID, source.Name())
	return result
}

// processCandidates fans candidates out over a bounded worker pool. Results
// keep candidate order.
func (s *Service) processCandidates(ctx context.Context, userID uuid.UUID, source connector.Source, candidates []connector.Candidate, window time.Duration) []ItemResult {
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]ItemResult, len(candidates))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, candidate := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, candidate connector.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.processCandidate(ctx, userID, source, candidate, window)
		}(i, candidate)
	}
	wg.Wait()

	return results
}

func (s *Service) processCandidate(ctx context.Context, userID uuid.UUID, source connector.Source, candidate connector.Candidate, window time.Duration) ItemResult {
	timeout := s.cfg.CandidateTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	item := ItemResult{Key: candidate.Key}

	// Cooldown check happens before any upstream or model call
	exists, err := s.decisions.ExistsRecent(ctx, userID, candidate.Source, candidate.Key, window)
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}
	if exists {
		item.Status = StatusSkippedCooldown
		return item
	}

	transcript, err := source.FetchTranscript(ctx, userID, candidate)
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}
	if strings.TrimSpace(transcript) == "" {
		item.Status = StatusSkippedEmpty
		return item
	}

	return s.analyzeAndPersist(ctx, userID, candidate, transcript, s.cfg.AutoThreshold, item)
}

// AnalyzeEvent runs the single-candidate flow for a webhook event, using the
// shorter webhook cooldown window.
func (s *Service) AnalyzeEvent(ctx context.Context, userID uuid.UUID, candidate connector.Candidate, transcript string) ItemResult {
	item := ItemResult{Key: candidate.Key}

	if strings.TrimSpace(transcript) == "" {
		item.Status = StatusSkippedEmpty
		return item
	}

	exists, err := s.decisions.ExistsRecent(ctx, userID, candidate.Source, candidate.Key, s.cfg.WebhookCooldown)
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}
	if exists {
		item.Status = StatusSkippedCooldown
		return item
	}

	return s.analyzeAndPersist(ctx, userID, candidate, transcript, s.cfg.AutoThreshold, item)
}

// AnalyzeMeeting runs the interactive analysis of an imported meeting,
// gated by the higher interactive threshold.
func (s *Service) AnalyzeMeeting(ctx context.Context, userID, meetingID uuid.UUID) (ItemResult, error) {
	meeting, err := s.meetings.FindByID(ctx, userID, meetingID)
	if err != nil {
		return ItemResult{}, err
	}

	item := ItemResult{Key: meeting.ID.String()}
	if !meeting.HasTranscript() {
		item.Status = StatusSkippedEmpty
		return item, nil
	}

	candidate := connector.Candidate{
		Source:    entities.SourceMeet,
		Key:       meeting.ID.String(),
		Title:     meeting.Title,
		UpdatedAt: meeting.UpdatedAt,
		MeetingID: &meeting.ID,
	}

	item = s.analyzeAndPersist(ctx, userID, candidate, meeting.Transcript, s.cfg.InteractiveThreshold, item)

	switch item.Status {
	case StatusFailed:
		meeting.MarkFailed()
	default:
		meeting.MarkAnalyzed()
	}
	if err := s.meetings.Update(ctx, meeting); err != nil {
		s.logger.Warn("failed to update meeting status", zap.Error(err))
	}
	return item, nil
}

func (s *Service) analyzeAndPersist(ctx context.Context, userID uuid.UUID, candidate connector.Candidate, transcript string, threshold float64, item ItemResult) ItemResult {
	detect, err := s.analyzer.Detect(ctx, transcript)
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}
	if !detect.IsDecision || detect.Confidence < threshold {
		item.Status = StatusNoDecision
		return item
	}

	contextLabel := fmt.Sprintf("%s: %s", candidate.Source, candidate.Title)
	brief, err := s.analyzer.GenerateBrief(ctx, contextLabel, transcript)
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}

	decision, err := s.persistDecision(ctx, userID, candidate, detect.Confidence, brief)
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}

	s.afterPersist(ctx, userID, candidate, decision, transcript)

	item.Status = StatusPersisted
	item.DecisionID = &decision.ID
	return item
}

func (s *Service) persistDecision(ctx context.Context, userID uuid.UUID, candidate connector.Candidate, confidence float64, brief *analysis.Brief) (*entities.Decision, error) {
	decision := entities.NewDecision(userID, candidate.Source, candidate.Key)
	decision.Title = brief.Title
	decision.Summary = brief.Summary
	decision.ProblemStatement = brief.ProblemStatement
	decision.FinalDecision = brief.FinalDecision
	decision.Rationale = brief.Rationale
	decision.SetConfidence(confidence)
	decision.OccurredAt = candidate.UpdatedAt
	decision.MeetingID = candidate.MeetingID
	if candidate.Link != "" {
		decision.SourceLink = &candidate.Link
	}

	decision.OptionsDiscussed = mustJSON(brief.OptionsDiscussed)
	decision.ActionItems = mustJSON(brief.ActionItems)
	decision.Participants = mustJSON(brief.Participants)

	if err := s.decisions.Create(ctx, decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// afterPersist runs the best-effort steps: semantic index, transcript
// archive, Slack notification. Failures are logged and swallowed.
func (s *Service) afterPersist(ctx context.Context, userID uuid.UUID, candidate connector.Candidate, decision *entities.Decision, transcript string) {
	if s.index != nil {
		if err := s.index.UpsertDecision(ctx, decision); err != nil {
			s.logger.Warn("📇 semantic index upsert failed, will reconcile later",
				zap.String("decision_id", decision.ID.String()),
				zap.Error(err))
		} else if err := s.decisions.MarkEmbeddingSynced(ctx, decision.ID); err != nil {
			s.logger.Warn("failed to flag embedding synced", zap.Error(err))
		}
	}

	if s.archive != nil {
		key := fmt.Sprintf("%s/%s/%s.txt", userID, candidate.Source, decision.ID)
		if err := s.archive.Store(ctx, key, transcript); err != nil {
			s.logger.Warn("📦 transcript archive failed",
				zap.String("decision_id", decision.ID.String()),
				zap.Error(err))
		}
	}

	if s.notifier != nil && candidate.Source == entities.SourceSlack {
		text := fmt.Sprintf("📌 Decision recorded: *%s*\n%s", decision.Title, decision.FinalDecision)
		if err := s.notifier.PostMessage(ctx, userID, candidate.Key, text); err != nil {
			s.logger.Warn("💬 slack notification failed", zap.Error(err))
		}
	}
}

// reconcileEmbeddings retries the semantic index upsert for decisions the
// sweep could not index. The synced flag only flips after a successful
// upsert, so crashed or failed attempts are retried on the next sweep.
func (s *Service) reconcileEmbeddings(ctx context.Context, userID uuid.UUID) {
	if s.index == nil {
		return
	}

	unsynced, err := s.decisions.ListUnsynced(ctx, userID, 50)
	if err != nil {
		s.logger.Warn("failed to list unsynced decisions", zap.Error(err))
		return
	}

	for _, decision := range unsynced {
		operation := func() error {
			return s.index.UpsertDecision(ctx, decision)
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		if err := backoff.Retry(operation, policy); err != nil {
			s.logger.Warn("📇 embedding reconciliation failed",
				zap.String("decision_id", decision.ID.String()),
				zap.Error(err))
			continue
		}
		if err := s.decisions.MarkEmbeddingSynced(ctx, decision.ID); err != nil {
			s.logger.Warn("failed to flag embedding synced", zap.Error(err))
		}
	}
}

func (s *Service) recordSyncTime(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) {
	integration, err := s.integrations.FindByUserAndSource(ctx, userID, source)
	if err != nil {
		return
	}
	if err := s.integrations.UpdateLastSync(ctx, integration.ID, time.Now()); err != nil {
		s.logger.Warn("failed to record sync time", zap.Error(err))
	}
}

func mustJSON(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}
