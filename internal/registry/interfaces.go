package registry

import (
	"context"

	"github.com/ganot/scanpoint/internal/domain/checkin"
)

// Store persists the directory and attendance records.
type Store interface {
	UpsertIdentity(ctx context.Context, identity checkin.Identity) error
	IdentityByCode(ctx context.Context, code string) (*checkin.Identity, error)
	UpsertActivity(ctx context.Context, activity checkin.Activity) error
	Activity(ctx context.Context, id string) (*checkin.Activity, error)
	CountCheckIns(ctx context.Context, identityID, activityID string) (int, error)
	InsertCheckIn(ctx context.Context, in checkin.CheckIn) (checkin.InsertResult, error)
	CreateAPIKey(ctx context.Context, token, stationID, description string) error
	StationForToken(ctx context.Context, token string) (string, error)
}
