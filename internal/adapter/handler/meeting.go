package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/adapter/dto/common"
	meetingdto "github.com/knowwhyhq/knowwhy/internal/adapter/dto/meeting"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/internal/usecase/syncer"
)

// Meeting handles meeting HTTP requests
type Meeting struct {
	meetings repositories.MeetingRepository
	syncer   *syncer.Service
	meet     *connector.MeetConnector
	logger   *zap.Logger
}

// NewMeeting creates a new meeting handler. meet may be nil when Google
// calendar access is not configured.
func NewMeeting(meetings repositories.MeetingRepository, syncService *syncer.Service, meet *connector.MeetConnector, logger *zap.Logger) *Meeting {
	return &Meeting{
		meetings: meetings,
		syncer:   syncService,
		meet:     meet,
		logger:   logger,
	}
}

// List returns the user's meetings
// GET /v1/meetings
func (h *Meeting) List(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req meetingdto.ListMeetingsRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}

	meetings, total, err := h.meetings.List(ctx, userID, req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, common.ListResponse{
		Data:       meetings,
		Pagination: common.NewPagination(req.Page, req.PageSize, total),
	})
}

// Get returns one meeting
// GET /v1/meetings/:id
func (h *Meeting) Get(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid meeting id"))
	}

	meeting, err := h.meetings.FindByID(ctx, userID, id)
	if err != nil {
		if err == entities.ErrMeetingNotFound {
			return HandleError(h.logger, c, errors.ErrNotFound("meeting"))
		}
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, meeting)
}

// Create records a meeting
// POST /v1/meetings
func (h *Meeting) Create(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req meetingdto.CreateMeetingRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	startedAt := time.Now()
	if req.StartedAt != nil {
		startedAt = *req.StartedAt
	}

	meeting := entities.NewMeeting(userID, req.Title, startedAt)
	meeting.Duration = req.Duration
	meeting.Transcript = req.Transcript
	meeting.CalendarID = req.CalendarID
	if req.Participants != nil {
		data, _ := json.Marshal(req.Participants)
		meeting.Participants = datatypes.JSON(data)
	}

	if err := h.meetings.Create(ctx, meeting); err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, meeting)
}

// UpdateTranscript replaces a meeting's transcript and resets it to pending
// PUT /v1/meetings/:id/transcript
func (h *Meeting) UpdateTranscript(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid meeting id"))
	}

	var req meetingdto.UpdateTranscriptRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	meeting, err := h.meetings.FindByID(ctx, userID, id)
	if err != nil {
		if err == entities.ErrMeetingNotFound {
			return HandleError(h.logger, c, errors.ErrNotFound("meeting"))
		}
		return HandleError(h.logger, c, err)
	}

	meeting.Transcript = req.Transcript
	meeting.Status = entities.MeetingStatusPending
	meeting.AnalyzedAt = nil
	if err := h.meetings.Update(ctx, meeting); err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, meeting)
}

// Analyze runs decision analysis over a meeting's transcript
// POST /v1/meetings/:id/analyze
func (h *Meeting) Analyze(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid meeting id"))
	}

	result, err := h.syncer.AnalyzeMeeting(ctx, userID, id)
	if err != nil {
		if err == entities.ErrMeetingNotFound {
			return HandleError(h.logger, c, errors.ErrNotFound("meeting"))
		}
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, result)
}

// Delete removes a meeting
// DELETE /v1/meetings/:id
func (h *Meeting) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid meeting id"))
	}

	if err := h.meetings.Delete(ctx, userID, id); err != nil {
		if err == entities.ErrMeetingNotFound {
			return HandleError(h.logger, c, errors.ErrNotFound("meeting"))
		}
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, map[string]string{"message": "Meeting deleted"})
}

// ScheduleEvent creates a calendar event with a Meet link
// POST /v1/meetings/events
func (h *Meeting) ScheduleEvent(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if h.meet == nil {
		return HandleError(h.logger, c, errors.ErrNotConnected("meet"))
	}

	var req meetingdto.ScheduleEventRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	event, err := h.meet.CreateCalendarEvent(ctx, userID, req.Summary, req.StartTime, req.EndTime)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, event)
}

// ListEvents lists upcoming calendar events
// GET /v1/meetings/events
func (h *Meeting) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if h.meet == nil {
		return HandleError(h.logger, c, errors.ErrNotConnected("meet"))
	}

	events, err := h.meet.ListCalendarEvents(ctx, userID, 20)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, events)
}

// DeleteEvent removes a calendar event
// DELETE /v1/meetings/events/:eventId
func (h *Meeting) DeleteEvent(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if h.meet == nil {
		return HandleError(h.logger, c, errors.ErrNotConnected("meet"))
	}

	if err := h.meet.DeleteCalendarEvent(ctx, userID, c.Param("eventId")); err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, map[string]string{"message": "Event deleted"})
}
