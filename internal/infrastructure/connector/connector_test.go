package connector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// fakeIntegrationRepo serves a fixed set of integrations in tests
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
	var out []*entities.Integration
	for _, i := range f.integrations {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	return out, nil
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
	for _, i := range f.integrations {
		if i.ID == id {
			i.LastSyncAt = &at
		}
	}
	return nil
}

func (f *fakeIntegrationRepo) Delete(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) error {
	return nil
}
