package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/internal/usecase/syncer"
	"github.com/knowwhyhq/knowwhy/pkg/config"
	"github.com/knowwhyhq/knowwhy/pkg/signature"
)

// GitLabWebhook handles GitLab project hook requests
type GitLabWebhook struct {
	integrations repositories.IntegrationRepository
	webhookLogs  repositories.WebhookLogRepository
	syncer       *syncer.Service
	source       connector.Source
	cfg          *config.Config
	logger       *zap.Logger
}

// NewGitLabWebhook creates a new GitLab webhook handler. source fetches the
// full discussion thread for an event; when nil the handler analyzes the
// text carried in the payload itself.
func NewGitLabWebhook(
	integrations repositories.IntegrationRepository,
	webhookLogs repositories.WebhookLogRepository,
	syncService *syncer.Service,
	source connector.Source,
	cfg *config.Config,
	logger *zap.Logger,
) *GitLabWebhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitLabWebhook{
		integrations: integrations,
		webhookLogs:  webhookLogs,
		syncer:       syncService,
		source:       source,
		cfg:          cfg,
		logger:       logger,
	}
}

type gitlabNoteable struct {
	IID         int64  `json:"iid"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type gitlabEvent struct {
	ObjectKind string `json:"object_kind"`
	Project    struct {
		ID     int64  `json:"id"`
		WebURL string `json:"web_url"`
	} `json:"project"`
	ObjectAttributes struct {
		IID          int64  `json:"iid"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		Note         string `json:"note"`
		NoteableType string `json:"noteable_type"`
		URL          string `json:"url"`
		Action       string `json:"action"`
	} `json:"object_attributes"`
	Issue        *gitlabNoteable `json:"issue"`
	MergeRequest *gitlabNoteable `json:"merge_request"`
}

// target maps an event to the discussion it belongs to. Note events point at
// their parent issue or merge request, so a comment thread shares the dedup
// key with the item it comments on.
func (e *gitlabEvent) target() (kind string, iid int64, title, inline string, ok bool) {
	switch e.ObjectKind {
	case "issue":
		inline = e.ObjectAttributes.Title + "\n\n" + e.ObjectAttributes.Description
		return "issues", e.ObjectAttributes.IID, e.ObjectAttributes.Title, inline, true
	case "merge_request":
		inline = e.ObjectAttributes.Title + "\n\n" + e.ObjectAttributes.Description
		return "merge_requests", e.ObjectAttributes.IID, e.ObjectAttributes.Title, inline, true
	case "note":
		var parent *gitlabNoteable
		switch e.ObjectAttributes.NoteableType {
		case "Issue":
			kind, parent = "issues", e.Issue
		case "MergeRequest":
			kind, parent = "merge_requests", e.MergeRequest
		default:
			return "", 0, "", "", false
		}
		if parent == nil {
			return "", 0, "", "", false
		}
		inline = parent.Title + "\n\n" + parent.Description + "\n" + e.ObjectAttributes.Note
		return kind, parent.IID, parent.Title, inline, true
	}
	return "", 0, "", "", false
}

// Handle receives a GitLab project hook event. The shared token check runs
// before anything is parsed or logged; rejected requests leave no trace.
// POST /v1/webhooks/gitlab
func (h *GitLabWebhook) Handle(c echo.Context) error {
	token := c.Request().Header.Get("X-Gitlab-Token")
	if !signature.VerifyGitLabToken(h.cfg.GitLab.WebhookSecret, token) {
		return HandleError(h.logger, c, errors.ErrInvalidSignature())
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	var event gitlabEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	log := entities.NewWebhookLog(entities.SourceGitLab, event.ObjectKind, body)
	if err := h.webhookLogs.Create(c.Request().Context(), log); err != nil {
		h.logger.Warn("⚠️ failed to store webhook log", zap.Error(err))
	}

	kind, iid, title, inline, ok := event.target()
	if !ok {
		log.MarkProcessed()
		h.updateLog(c.Request().Context(), log)
		return c.NoContent(http.StatusOK)
	}

	userID, err := h.resolveUser(c.Request().Context(), event.Project.WebURL)
	if err != nil {
		log.MarkFailed(err)
		h.updateLog(c.Request().Context(), log)
		return c.NoContent(http.StatusOK)
	}

	candidate := connector.Candidate{
		Source:    entities.SourceGitLab,
		Key:       fmt.Sprintf("%d/%s/%d", event.Project.ID, kind, iid),
		Title:     title,
		Link:      event.ObjectAttributes.URL,
		UpdatedAt: time.Now(),
	}
	transcript := h.fetchTranscript(c.Request().Context(), userID, candidate, inline)

	result := h.syncer.AnalyzeEvent(c.Request().Context(), userID, candidate, transcript)
	if result.Status == syncer.StatusFailed {
		log.MarkFailed(fmt.Errorf("%s", result.Error))
	} else {
		log.MarkProcessed()
	}
	h.updateLog(c.Request().Context(), log)

	return c.JSON(http.StatusOK, result)
}

// fetchTranscript pulls the full discussion so a decision reached across
// several comments is analyzed whole, not just the payload fragment. Falls
// back to the inline text when the fetch fails.
func (h *GitLabWebhook) fetchTranscript(ctx context.Context, userID uuid.UUID, candidate connector.Candidate, inline string) string {
	if h.source == nil {
		return inline
	}
	transcript, err := h.source.FetchTranscript(ctx, userID, candidate)
	if err != nil || strings.TrimSpace(transcript) == "" {
		if err != nil {
			h.logger.Warn("⚠️ gitlab thread fetch failed, analyzing payload text",
				zap.String("key", candidate.Key),
				zap.Error(err))
		}
		return inline
	}
	return transcript
}

// resolveUser maps the event's GitLab host to the user who connected it.
// With several users on the same host the first active integration wins; the
// shared-token model does not carry a per-user identity.
func (h *GitLabWebhook) resolveUser(ctx context.Context, projectWebURL string) (uuid.UUID, error) {
	eventHost := hostOf(projectWebURL)

	integrations, err := h.integrations.ListActiveBySource(ctx, entities.SourceGitLab)
	if err != nil {
		return uuid.Nil, err
	}

	for _, integration := range integrations {
		host := "gitlab.com"
		if integration.BaseURL != nil {
			host = hostOf(*integration.BaseURL)
		}
		if host == eventHost {
			return integration.UserID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("no integration for gitlab host %s", eventHost)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(raw, "https://")
	}
	return u.Host
}

func (h *GitLabWebhook) updateLog(ctx context.Context, log *entities.WebhookLog) {
	if err := h.webhookLogs.Update(ctx, log); err != nil {
		h.logger.Warn("⚠️ failed to update webhook log", zap.Error(err))
	}
}
