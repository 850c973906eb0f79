package handler

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/usecase/syncer"
	"github.com/knowwhyhq/knowwhy/pkg/config"
)

// Sync handles sweep trigger HTTP requests
type Sync struct {
	syncer *syncer.Service
	cfg    *config.Config
	logger *zap.Logger
}

// NewSync creates a new sync handler
func NewSync(syncService *syncer.Service, cfg *config.Config, logger *zap.Logger) *Sync {
	return &Sync{
		syncer: syncService,
		cfg:    cfg,
		logger: logger,
	}
}

// SyncMe sweeps the current user's connected sources
// POST /v1/sync
func (h *Sync) SyncMe(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	report, err := h.syncer.SyncUser(ctx, userID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrSyncFailed(err))
	}

	return HandleSuccess(h.logger, c, report)
}

// SyncAll sweeps every user with an active integration. Meant for schedulers,
// guarded by a shared token instead of a user session.
// POST /v1/sync/run
func (h *Sync) SyncAll(c echo.Context) error {
	ctx := c.Request().Context()

	token := c.Request().Header.Get("X-Sync-Token")
	if h.cfg.Sync.TriggerToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.Sync.TriggerToken)) != 1 {
		return HandleError(h.logger, c, errors.ErrUnauthenticated())
	}

	reports, err := h.syncer.SyncAll(ctx)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrSyncFailed(err))
	}

	return HandleSuccess(h.logger, c, reports)
}
