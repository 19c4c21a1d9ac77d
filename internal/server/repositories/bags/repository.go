package bags

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/calbot/internal/server/models"
)

// Repository is the property-bag store contract shared by users and schedules.
type Repository interface {
	Upsert(ctx context.Context, groupID, entityID string, bag json.RawMessage) (*models.Row, error)
	Insert(ctx context.Context, groupID, entityID string, bag json.RawMessage) (*models.Row, error)
	FetchOne(ctx context.Context, groupID, entityID string) (*models.Row, error)
	FetchAllForGroup(ctx context.Context, groupID, sortField string) ([]*models.Row, error)
	DeleteOne(ctx context.Context, groupID, entityID string) (bool, error)
	Count(ctx context.Context, groupID string) (int64, error)
	UpdateIfUnchanged(ctx context.Context, groupID, entityID string, bag json.RawMessage, expectedUpdatedAt time.Time) (*models.Row, error)
}
