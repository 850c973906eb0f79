package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

type fakeIntegrationRepo struct {
	integrations []*entities.Integration
}

func (f *fakeIntegrationRepo) Upsert(ctx context.Context, integration *entities.Integration) error {
	f.integrations = append(f.integrations, integration)
	return nil
}

func (f *fakeIntegrationRepo) FindByUserAndSource(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) (*entities.Integration, error) {
	for _, i := range f.integrations {
		if i.UserID == userID && i.Source == source {
			return i, nil
		}
	}
	return nil, entities.ErrIntegrationNotFound
}

func (f *fakeIntegrationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Integration, error) {
	return nil, nil
}

func (f *fakeIntegrationRepo) ListActiveBySource(ctx context.Context, source entities.DecisionSource) ([]*entities.Integration, error) {
	var out []*entities.Integration
	for _, i := range f.integrations {
		if i.Source == source && i.IsActive {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeIntegrationRepo) UpdateLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (f *fakeIntegrationRepo) Delete(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) error {
	return nil
}

type fakeMeetingRepo struct {
	meetings []*entities.Meeting
}

func (f *fakeMeetingRepo) Create(ctx context.Context, meeting *entities.Meeting) error {
	f.meetings = append(f.meetings, meeting)
	return nil
}

func (f *fakeMeetingRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*entities.Meeting, error) {
	for _, m := range f.meetings {
		if m.ID == id && m.UserID == userID {
			return m, nil
		}
	}
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeMeetingRepo) FindByCalendarID(ctx context.Context, userID uuid.UUID, calendarID string) (*entities.Meeting, error) {
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeMeetingRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Meeting, int64, error) {
	var out []*entities.Meeting
	for _, m := range f.meetings {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeMeetingRepo) ListUserIDsWithPendingTranscripts(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, m := range f.meetings {
		if m.Status == entities.MeetingStatusPending && m.HasTranscript() && !seen[m.UserID] {
			seen[m.UserID] = true
			out = append(out, m.UserID)
		}
	}
	return out, nil
}

func (f *fakeMeetingRepo) Update(ctx context.Context, meeting *entities.Meeting) error {
	return nil
}

func (f *fakeMeetingRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return nil
}
