package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
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

// SlackWebhook handles Slack Events API requests
type SlackWebhook struct {
	integrations repositories.IntegrationRepository
	webhookLogs  repositories.WebhookLogRepository
	syncer       *syncer.Service
	cfg          *config.Config
	logger       *zap.Logger
}

// NewSlackWebhook creates a new Slack webhook handler
func NewSlackWebhook(
	integrations repositories.IntegrationRepository,
	webhookLogs repositories.WebhookLogRepository,
	syncService *syncer.Service,
	cfg *config.Config,
	logger *zap.Logger,
) *SlackWebhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackWebhook{
		integrations: integrations,
		webhookLogs:  webhookLogs,
		syncer:       syncService,
		cfg:          cfg,
		logger:       logger,
	}
}

type slackEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	TeamID    string `json:"team_id"`
	Event     struct {
		Type    string `json:"type"`
		SubType string `json:"subtype"`
		BotID   string `json:"bot_id"`
		Channel string `json:"channel"`
		User    string `json:"user"`
		Text    string `json:"text"`
		TS      string `json:"ts"`
	} `json:"event"`
}

// Handle receives a Slack event. Signature verification runs before anything
// is parsed or logged; rejected requests leave no trace.
// POST /v1/webhooks/slack
func (h *SlackWebhook) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	timestamp := c.Request().Header.Get("X-Slack-Request-Timestamp")
	sig := c.Request().Header.Get("X-Slack-Signature")
	if !signature.VerifySlack(h.cfg.Slack.SigningSecret, timestamp, body, sig) {
		return HandleError(h.logger, c, errors.ErrInvalidSignature())
	}

	var envelope slackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	if envelope.Type == "url_verification" {
		return c.JSON(http.StatusOK, map[string]string{"challenge": envelope.Challenge})
	}

	log := entities.NewWebhookLog(entities.SourceSlack, envelope.Type, body)
	if err := h.webhookLogs.Create(c.Request().Context(), log); err != nil {
		h.logger.Warn("⚠️ failed to store webhook log", zap.Error(err))
	}

	if envelope.Type != "event_callback" || envelope.Event.Type != "message" ||
		envelope.Event.SubType != "" || envelope.Event.BotID != "" {
		log.MarkProcessed()
		h.updateLog(c.Request().Context(), log)
		return c.NoContent(http.StatusOK)
	}

	userID, err := h.resolveUser(c.Request().Context(), envelope.TeamID)
	if err != nil {
		log.MarkFailed(err)
		h.updateLog(c.Request().Context(), log)
		// Slack retries on non-2xx; an unknown workspace will never resolve
		return c.NoContent(http.StatusOK)
	}

	candidate := connectorCandidate(envelope)
	result := h.syncer.AnalyzeEvent(c.Request().Context(), userID, candidate, envelope.Event.Text)
	if result.Status == syncer.StatusFailed {
		log.MarkFailed(fmt.Errorf("%s", result.Error))
	} else {
		log.MarkProcessed()
	}
	h.updateLog(c.Request().Context(), log)

	return c.JSON(http.StatusOK, result)
}

// connectorCandidate builds the dedup identity of one event. The key includes
// the message timestamp so distinct messages survive the cooldown check.
func connectorCandidate(envelope slackEnvelope) connector.Candidate {
	return connector.Candidate{
		Source:    entities.SourceSlack,
		Key:       fmt.Sprintf("%s:%s:%s", envelope.TeamID, envelope.Event.Channel, envelope.Event.TS),
		Title:     fmt.Sprintf("message in %s", envelope.Event.Channel),
		UpdatedAt: time.Now(),
	}
}

// resolveUser maps a Slack workspace to the user who connected it
func (h *SlackWebhook) resolveUser(ctx context.Context, teamID string) (uuid.UUID, error) {
	integrations, err := h.integrations.ListActiveBySource(ctx, entities.SourceSlack)
	if err != nil {
		return uuid.Nil, err
	}

	for _, integration := range integrations {
		var metadata struct {
			TeamID string `json:"team_id"`
		}
		if err := json.Unmarshal(integration.Metadata, &metadata); err != nil {
			continue
		}
		if metadata.TeamID == teamID {
			return integration.UserID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("no integration for slack team %s", teamID)
}

func (h *SlackWebhook) updateLog(ctx context.Context, log *entities.WebhookLog) {
	if err := h.webhookLogs.Update(ctx, log); err != nil {
		h.logger.Warn("⚠️ failed to update webhook log", zap.Error(err))
	}
}
