package handler

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/adapter/dto/common"
	decisiondto "github.com/knowwhyhq/knowwhy/internal/adapter/dto/decision"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/usecase/search"
)

// Decision handles decision HTTP requests
type Decision struct {
	decisions repositories.DecisionRepository
	search    *search.Service
	logger    *zap.Logger
}

// NewDecision creates a new decision handler
func NewDecision(decisions repositories.DecisionRepository, searchService *search.Service, logger *zap.Logger) *Decision {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decision{
		decisions: decisions,
		search:    searchService,
		logger:    logger,
	}
}

// List returns the user's decisions
// GET /v1/decisions
func (h *Decision) List(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req decisiondto.ListDecisionsRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}

	filters := repositories.DecisionFilters{
		Search:   req.Search,
		From:     req.From,
		To:       req.To,
		Limit:    req.PageSize,
		Offset:   (req.Page - 1) * req.PageSize,
		SortBy:   req.SortBy,
		SortDesc: req.SortOrder != "asc",
	}
	if req.Source != nil {
		source := entities.DecisionSource(*req.Source)
		filters.Source = &source
	}

	decisions, total, err := h.decisions.List(ctx, userID, filters)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, common.ListResponse{
		Data:       decisions,
		Pagination: common.NewPagination(req.Page, req.PageSize, total),
	})
}

// Get returns one decision
// GET /v1/decisions/:id
func (h *Decision) Get(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid decision id"))
	}

	decision, err := h.decisions.FindByID(ctx, userID, id)
	if err != nil {
		if err == entities.ErrDecisionNotFound {
			return HandleError(h.logger, c, errors.ErrNotFound("decision"))
		}
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, decision)
}

// Create records a manually entered decision
// POST /v1/decisions
func (h *Decision) Create(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req decisiondto.CreateDecisionRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	decision := entities.NewDecision(userID, entities.SourceManual, uuid.NewString())
	decision.Title = req.Title
	decision.Summary = req.Summary
	decision.ProblemStatement = req.ProblemStatement
	decision.FinalDecision = req.FinalDecision
	decision.Rationale = req.Rationale
	decision.SourceLink = req.SourceLink
	decision.SetConfidence(1)
	if req.OccurredAt != nil {
		decision.OccurredAt = *req.OccurredAt
	}
	decision.OptionsDiscussed = mustJSON(req.OptionsDiscussed)
	decision.Participants = mustJSON(req.Participants)

	if err := decision.Validate(); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	if err := h.decisions.Create(ctx, decision); err != nil {
		return HandleError(h.logger, c, err)
	}

	h.logger.Info("📌 manual decision recorded",
		zap.String("user_id", userID.String()),
		zap.String("decision_id", decision.ID.String()))

	return HandleSuccess(h.logger, c, decision)
}

// Feedback rates a decision brief
// POST /v1/decisions/:id/feedback
func (h *Decision) Feedback(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid decision id"))
	}

	var req decisiondto.FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	if err := h.decisions.UpdateFeedback(ctx, userID, id, req.Rating, req.Feedback); err != nil {
		switch err {
		case entities.ErrDecisionNotFound:
			return HandleError(h.logger, c, errors.ErrNotFound("decision"))
		case entities.ErrInvalidRating:
			return HandleError(h.logger, c, errors.ErrInvalidArgument("rating must be between 1 and 5"))
		}
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, map[string]string{"message": "Feedback recorded"})
}

// Delete removes a decision
// DELETE /v1/decisions/:id
func (h *Decision) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid decision id"))
	}

	if err := h.decisions.Delete(ctx, userID, id); err != nil {
		if err == entities.ErrDecisionNotFound {
			return HandleError(h.logger, c, errors.ErrNotFound("decision"))
		}
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, map[string]string{"message": "Decision deleted"})
}

// Search runs a hybrid search over the user's decisions
// GET /v1/decisions/search
func (h *Decision) Search(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req decisiondto.SearchRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}
	if req.Alpha == 0 {
		req.Alpha = 0.5
	}

	results, err := h.search.Search(ctx, userID, req.Query, req.Limit, req.Alpha)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, results)
}

// Ask answers a question from the user's recorded decisions
// POST /v1/decisions/ask
func (h *Decision) Ask(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req decisiondto.AskRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	answer, err := h.search.Ask(ctx, userID, req.Question)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, answer)
}

func mustJSON(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}
