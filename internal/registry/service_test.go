package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/registry"
	"github.com/ganot/scanpoint/internal/sqlite"
)

const seedYAML = `
activities:
  - id: A1
    name: Workshop
    duration_days: 2
  - id: B1
    name: Keynote
identities:
  - id: i1
    code: U1001
    display_name: Ana
    attributes:
      team: blue
  - id: i2
    code: U1002
    display_name: Bo
api_keys:
  - token: gate-token
    station_id: gate-2
`

func newService(t *testing.T, staticTokens ...string) *registry.Service {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.MigrateRegistry())
	t.Cleanup(func() { db.Close() })

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	seed, err := registry.LoadSeedFile(path)
	require.NoError(t, err)

	svc := registry.NewService(sqlite.NewRegistryRepository(db), staticTokens, nil)
	stats, err := svc.Seed(context.Background(), seed)
	require.NoError(t, err)
	require.Equal(t, registry.SeedStats{Activities: 2, Identities: 2, APIKeys: 1}, stats)
	return svc
}

func TestService_Identity(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	identity, err := svc.Identity(ctx, "U1001")
	require.NoError(t, err)
	require.Equal(t, "Ana", identity.DisplayName)
	require.Equal(t, "blue", identity.Attributes["team"])

	_, err = svc.Identity(ctx, "U404")
	require.ErrorIs(t, err, checkin.ErrNotFound)

	_, err = svc.Identity(ctx, " ")
	require.ErrorIs(t, err, checkin.ErrInvalidInput)
}

func TestService_Activity(t *testing.T) {
	svc := newService(t)

	activity, err := svc.Activity(context.Background(), "B1")
	require.NoError(t, err)
	require.Equal(t, 1, activity.Required(), "duration defaults to one day")

	_, err = svc.Activity(context.Background(), "Z9")
	require.ErrorIs(t, err, checkin.ErrNotFound)
}

func TestService_InsertCheckIn(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	res, err := svc.InsertCheckIn(ctx, checkin.CheckIn{ScanID: "s1", IdentityID: "i1", ActivityID: "A1", Day: "2026-03-01"})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, 1, res.Count)

	res, err = svc.InsertCheckIn(ctx, checkin.CheckIn{ScanID: "s2", IdentityID: "i1", ActivityID: "A1", Day: "2026-03-01"})
	require.NoError(t, err)
	require.False(t, res.Created)

	n, err := svc.CountCheckIns(ctx, "i1", "A1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = svc.CountCheckIns(ctx, "i1", "Z9")
	require.ErrorIs(t, err, checkin.ErrNotFound)
}

func TestService_InsertCheckInValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      checkin.CheckIn
		wantErr error
	}{
		{"missing scan id", checkin.CheckIn{IdentityID: "i1", ActivityID: "A1", Day: "2026-03-01"}, checkin.ErrInvalidInput},
		{"bad day", checkin.CheckIn{ScanID: "s1", IdentityID: "i1", ActivityID: "A1", Day: "03/01/2026"}, checkin.ErrInvalidInput},
		{"unknown activity", checkin.CheckIn{ScanID: "s1", IdentityID: "i1", ActivityID: "Z9", Day: "2026-03-01"}, checkin.ErrNotFound},
		{"unknown identity", checkin.CheckIn{ScanID: "s1", IdentityID: "ghost", ActivityID: "A1", Day: "2026-03-01"}, checkin.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.InsertCheckIn(ctx, tt.in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	svc := newService(t, "static-secret")
	ctx := context.Background()

	station, err := svc.Authenticate(ctx, "gate-token")
	require.NoError(t, err)
	require.Equal(t, "gate-2", station)

	station, err = svc.Authenticate(ctx, "static-secret")
	require.NoError(t, err)
	require.Equal(t, "static-1", station)

	_, err = svc.Authenticate(ctx, "nope")
	require.ErrorIs(t, err, registry.ErrUnauthorized)
	_, err = svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, registry.ErrUnauthorized)
}

func TestSeed_RejectsIncompleteRecords(t *testing.T) {
	svc := newService(t)

	_, err := svc.Seed(context.Background(), &registry.SeedFile{
		Identities: []registry.SeedIdentity{{ID: "i9"}},
	})
	require.ErrorIs(t, err, checkin.ErrInvalidInput)
}
