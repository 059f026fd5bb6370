package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ganot/scanpoint/internal/domain/checkin"
)

// RegistryRepository stores the identity directory and attendance records
// served by the registry service.
type RegistryRepository struct {
	db *DB
}

// NewRegistryRepository creates a new RegistryRepository
func NewRegistryRepository(db *DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// UpsertIdentity inserts an identity or replaces the one with the same id.
func (r *RegistryRepository) UpsertIdentity(ctx context.Context, identity checkin.Identity) error {
	attrs := identity.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `
		INSERT INTO identities (id, code, display_name, attributes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			display_name = excluded.display_name,
			attributes = excluded.attributes
	`
	if _, err := r.db.ExecContext(ctx, query, identity.ID, identity.Code, identity.DisplayName, string(attrsJSON)); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

// IdentityByCode returns the identity carrying code.
func (r *RegistryRepository) IdentityByCode(ctx context.Context, code string) (*checkin.Identity, error) {
	query := `SELECT id, code, display_name, attributes FROM identities WHERE code = ?`

	var identity checkin.Identity
	var attrsJSON string
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&identity.ID,
		&identity.Code,
		&identity.DisplayName,
		&attrsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	if attrsJSON != "" && attrsJSON != "{}" {
		if err := json.Unmarshal([]byte(attrsJSON), &identity.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	return &identity, nil
}

// UpsertActivity inserts an activity or replaces the one with the same id.
func (r *RegistryRepository) UpsertActivity(ctx context.Context, activity checkin.Activity) error {
	query := `
		INSERT INTO activities (id, name, duration_days)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			duration_days = excluded.duration_days
	`
	if _, err := r.db.ExecContext(ctx, query, activity.ID, activity.Name, activity.Required()); err != nil {
		return fmt.Errorf("failed to upsert activity: %w", err)
	}
	return nil
}

// Activity returns an activity by id.
func (r *RegistryRepository) Activity(ctx context.Context, id string) (*checkin.Activity, error) {
	var activity checkin.Activity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, duration_days FROM activities WHERE id = ?`, id,
	).Scan(&activity.ID, &activity.Name, &activity.DurationDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &activity, nil
}

// CountCheckIns returns how many days identityID has attended activityID.
func (r *RegistryRepository) CountCheckIns(ctx context.Context, identityID, activityID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE identity_id = ? AND activity_id = ?`,
		identityID, activityID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}

// InsertCheckIn stores one attendance record. A record for the same identity,
// activity and day, or the same scan id, leaves the table unchanged and
// reports Created=false, as does an identity that already holds the
// activity's required count. Unknown identities or activities return
// ErrForeignKeyViolation.
func (r *RegistryRepository) InsertCheckIn(ctx context.Context, in checkin.CheckIn) (checkin.InsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return checkin.InsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var required int
	err = tx.QueryRowContext(ctx, `SELECT duration_days FROM activities WHERE id = ?`, in.ActivityID).Scan(&required)
	if errors.Is(err, sql.ErrNoRows) {
		return checkin.InsertResult{}, ErrForeignKeyViolation
	}
	if err != nil {
		return checkin.InsertResult{}, fmt.Errorf("failed to load activity: %w", err)
	}

	required = checkin.Activity{DurationDays: required}.Required()

	// The cap is checked inside the transaction; with a single connection no
	// other writer can insert between the count and the insert.
	count, err := countAttendance(ctx, tx, in.IdentityID, in.ActivityID)
	if err != nil {
		return checkin.InsertResult{}, err
	}
	if count >= required {
		return checkin.InsertResult{Created: false, Count: count, Required: required}, nil
	}

	created := true
	_, err = tx.ExecContext(ctx, `
		INSERT INTO attendance (id, identity_id, activity_id, day, scan_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), in.IdentityID, in.ActivityID, in.Day, in.ScanID, time.Now().UTC())
	switch {
	case err == nil:
	case isUniqueViolation(err):
		created = false
	case isForeignKeyViolation(err):
		return checkin.InsertResult{}, ErrForeignKeyViolation
	default:
		return checkin.InsertResult{}, fmt.Errorf("failed to insert attendance: %w", err)
	}

	count, err = countAttendance(ctx, tx, in.IdentityID, in.ActivityID)
	if err != nil {
		return checkin.InsertResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return checkin.InsertResult{}, fmt.Errorf("failed to commit attendance: %w", err)
	}
	return checkin.InsertResult{Created: created, Count: count, Required: required}, nil
}

func countAttendance(ctx context.Context, tx *sql.Tx, identityID, activityID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE identity_id = ? AND activity_id = ?`,
		identityID, activityID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}

// CreateAPIKey stores the hash of token for stationID.
func (r *RegistryRepository) CreateAPIKey(ctx context.Context, token, stationID, description string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, station_id, description)
		VALUES (?, ?, ?)
		ON CONFLICT(key_hash) DO UPDATE SET station_id = excluded.station_id, description = excluded.description
	`, hashToken(token), stationID, description)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// StationForToken returns the station id a token was issued to.
func (r *RegistryRepository) StationForToken(ctx context.Context, token string) (string, error) {
	var stationID string
	err := r.db.QueryRowContext(ctx,
		`SELECT station_id FROM api_keys WHERE key_hash = ?`, hashToken(token),
	).Scan(&stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up api key: %w", err)
	}
	return stationID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
