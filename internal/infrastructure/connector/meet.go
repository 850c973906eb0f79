package connector

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/external/oauth"
)

// MeetConnector discovers decision candidates in imported meeting
// transcripts, keyed by Google Calendar events. Calendar access rides on the
// OAuth grant from login.
type MeetConnector struct {
	users    repositories.UserRepository
	meetings repositories.MeetingRepository
	google   *oauth.GoogleProvider
	recency  time.Duration
}

// NewMeetConnector creates a new Meet connector
func NewMeetConnector(users repositories.UserRepository, meetings repositories.MeetingRepository, google *oauth.GoogleProvider, recency time.Duration) *MeetConnector {
	return &MeetConnector{
		users:    users,
		meetings: meetings,
		google:   google,
		recency:  recency,
	}
}

// Name returns the source this connector serves
func (c *MeetConnector) Name() entities.DecisionSource {
	return entities.SourceMeet
}

func (c *MeetConnector) calendarService(ctx context.Context, userID uuid.UUID) (*calendar.Service, error) {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.OAuthRefreshToken == nil || *user.OAuthRefreshToken == "" {
		return nil, errors.ErrNotConnected(string(entities.SourceMeet))
	}

	httpClient := c.google.HTTPClient(ctx, *user.OAuthRefreshToken)
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.ErrUpstream(string(entities.SourceMeet), err)
	}
	return svc, nil
}

// ListCandidates returns recent meetings that have a stored transcript.
// Meetings without one carry nothing to analyze and are skipped here.
func (c *MeetConnector) ListCandidates(ctx context.Context, userID uuid.UUID) ([]Candidate, error) {
	meetings, _, err := c.meetings.List(ctx, userID, 100, 0)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-c.recency)
	var candidates []Candidate

	for _, meeting := range meetings {
		if !meeting.HasTranscript() || meeting.StartedAt.Before(cutoff) {
			continue
		}
		candidate := Candidate{
			Source:    entities.SourceMeet,
			Key:       meeting.ID.String(),
			Title:     meeting.Title,
			UpdatedAt: meeting.UpdatedAt,
			MeetingID: &meeting.ID,
		}
		if meeting.CalendarID != nil {
			candidate.Link = "https://calendar.google.com/calendar/event?eid=" + *meeting.CalendarID
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// FetchTranscript returns the stored transcript of the meeting
func (c *MeetConnector) FetchTranscript(ctx context.Context, userID uuid.UUID, candidate Candidate) (string, error) {
	meetingID, err := uuid.Parse(candidate.Key)
	if err != nil {
		return "", errors.ErrInvalidArgument("malformed meet candidate key")
	}

	meeting, err := c.meetings.FindByID(ctx, userID, meetingID)
	if err != nil {
		return "", err
	}
	return meeting.Transcript, nil
}

// ListCalendarEvents returns the user's recent calendar events, used by the
// meeting import flow to offer candidates for transcript upload.
func (c *MeetConnector) ListCalendarEvents(ctx context.Context, userID uuid.UUID, max int64) ([]*calendar.Event, error) {
	svc, err := c.calendarService(ctx, userID)
	if err != nil {
		return nil, err
	}

	if max <= 0 || max > 100 {
		max = 50
	}

	events, err := svc.Events.List("primary").
		TimeMin(time.Now().Add(-c.recency).Format(time.RFC3339)).
		TimeMax(time.Now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.ErrUpstream(string(entities.SourceMeet), err)
	}
	return events.Items, nil
}

// CreateCalendarEvent creates a calendar event with a Meet conference link
func (c *MeetConnector) CreateCalendarEvent(ctx context.Context, userID uuid.UUID, title string, start, end time.Time) (*calendar.Event, error) {
	svc, err := c.calendarService(ctx, userID)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary: title,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}

	created, err := svc.Events.Insert("primary", event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.ErrUpstream(string(entities.SourceMeet), err)
	}
	return created, nil
}

// DeleteCalendarEvent removes a calendar event
func (c *MeetConnector) DeleteCalendarEvent(ctx context.Context, userID uuid.UUID, eventID string) error {
	svc, err := c.calendarService(ctx, userID)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete("primary", eventID).Context(ctx).Do(); err != nil {
		return errors.ErrUpstream(string(entities.SourceMeet), err)
	}
	return nil
}
