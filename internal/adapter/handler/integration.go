package handler

import (
	"encoding/json"
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/knowwhyhq/knowwhy/errors"
	integrationdto "github.com/knowwhyhq/knowwhy/internal/adapter/dto/integration"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/pkg/config"
)

// Integration handles source connection HTTP requests
type Integration struct {
	integrations repositories.IntegrationRepository
	slack        *connector.SlackConnector
	gitlab       *connector.GitLabConnector
	cfg          *config.Config
	logger       *zap.Logger
}

// NewIntegration creates a new integration handler
func NewIntegration(
	integrations repositories.IntegrationRepository,
	slack *connector.SlackConnector,
	gitlab *connector.GitLabConnector,
	cfg *config.Config,
	logger *zap.Logger,
) *Integration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Integration{
		integrations: integrations,
		slack:        slack,
		gitlab:       gitlab,
		cfg:          cfg,
		logger:       logger,
	}
}

// List returns the user's connected sources
// GET /v1/integrations
func (h *Integration) List(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	integrations, err := h.integrations.ListByUser(ctx, userID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, integrations)
}

// ConnectSlack stores a Slack bot token after verifying it upstream
// POST /v1/integrations/slack
func (h *Integration) ConnectSlack(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req integrationdto.ConnectSlackRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	teamID, err := h.slack.VerifyToken(ctx, req.AccessToken)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrUpstream("slack", err))
	}

	integration := entities.NewIntegration(userID, entities.SourceSlack, req.AccessToken)
	metadata, _ := json.Marshal(map[string]string{"team_id": teamID})
	integration.Metadata = datatypes.JSON(metadata)

	if err := h.integrations.Upsert(ctx, integration); err != nil {
		return HandleError(h.logger, c, err)
	}

	h.logger.Info("✅ slack connected",
		zap.String("user_id", userID.String()),
		zap.String("team_id", teamID))

	return HandleSuccess(h.logger, c, integration)
}

// ConnectGitLab stores a GitLab personal access token. Project webhooks are
// registered best effort; a hook failure does not fail the connect.
// POST /v1/integrations/gitlab
func (h *Integration) ConnectGitLab(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req integrationdto.ConnectGitLabRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	integration := entities.NewIntegration(userID, entities.SourceGitLab, req.AccessToken)
	integration.BaseURL = req.BaseURL
	if len(req.ProjectIDs) > 0 {
		metadata, _ := json.Marshal(map[string]interface{}{"project_ids": req.ProjectIDs})
		integration.Metadata = datatypes.JSON(metadata)
	}

	if err := h.integrations.Upsert(ctx, integration); err != nil {
		return HandleError(h.logger, c, err)
	}

	if h.cfg.Server.PublicURL != "" && h.cfg.GitLab.WebhookSecret != "" {
		hookURL := fmt.Sprintf("%s/v1/webhooks/gitlab", h.cfg.Server.PublicURL)
		for _, projectID := range req.ProjectIDs {
			if err := h.gitlab.RegisterProjectHook(ctx, userID, projectID, hookURL, h.cfg.GitLab.WebhookSecret); err != nil {
				h.logger.Warn("⚠️ gitlab hook registration failed",
					zap.Int64("project_id", projectID),
					zap.Error(err))
			}
		}
	}

	h.logger.Info("✅ gitlab connected",
		zap.String("user_id", userID.String()))

	return HandleSuccess(h.logger, c, integration)
}

// Disconnect removes a source connection
// DELETE /v1/integrations/:source
func (h *Integration) Disconnect(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	source := entities.DecisionSource(c.Param("source"))
	if !source.IsValid() || source == entities.SourceManual {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid source"))
	}

	if err := h.integrations.Delete(ctx, userID, source); err != nil {
		if err == entities.ErrIntegrationNotFound {
			return HandleError(h.logger, c, errors.ErrNotFound("integration"))
		}
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, map[string]string{"message": "Integration removed"})
}
