// Package registry is the reference identity directory and attendance store
// that stations sync against.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/logger"
	"github.com/ganot/scanpoint/internal/sqlite"
)

// ErrUnauthorized indicates a missing or unknown station token.
var ErrUnauthorized = errors.New("unauthorized")

// Service implements the registry operations on top of a Store.
type Service struct {
	store  Store
	tokens map[string]string
	logger *slog.Logger
}

// NewService creates a registry service. staticTokens are accepted in
// addition to the keys stored in the database.
func NewService(store Store, staticTokens []string, log *slog.Logger) *Service {
	tokens := make(map[string]string, len(staticTokens))
	for i, tok := range staticTokens {
		tokens[tok] = fmt.Sprintf("static-%d", i+1)
	}
	return &Service{store: store, tokens: tokens, logger: logger.OrDiscard(log)}
}

// Identity resolves a bearer code.
func (s *Service) Identity(ctx context.Context, code string) (*checkin.Identity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, checkin.ErrInvalidInput
	}
	identity, err := s.store.IdentityByCode(ctx, code)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return identity, nil
}

// Activity returns an activity by id.
func (s *Service) Activity(ctx context.Context, id string) (*checkin.Activity, error) {
	activity, err := s.store.Activity(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return activity, nil
}

// CountCheckIns returns the number of days identityID has attended activityID.
func (s *Service) CountCheckIns(ctx context.Context, identityID, activityID string) (int, error) {
	if _, err := s.Activity(ctx, activityID); err != nil {
		return 0, err
	}
	n, err := s.store.CountCheckIns(ctx, identityID, activityID)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return n, nil
}

// InsertCheckIn stores one attendance record. The store's uniqueness rules
// decide whether a record was created.
func (s *Service) InsertCheckIn(ctx context.Context, in checkin.CheckIn) (checkin.InsertResult, error) {
	if err := validateCheckIn(in); err != nil {
		return checkin.InsertResult{}, err
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		Component:  "scanpoint.registry",
		ScanID:     in.ScanID,
		ActivityID: in.ActivityID,
		IdentityID: in.IdentityID,
	})

	res, err := s.store.InsertCheckIn(ctx, in)
	if err != nil {
		return checkin.InsertResult{}, mapStoreError(err)
	}
	if res.Created {
		s.logger.InfoContext(ctx, "attendance recorded", "day", in.Day, "count", res.Count, "required", res.Required)
	} else {
		s.logger.InfoContext(ctx, "duplicate attendance ignored", "day", in.Day)
	}
	return res, nil
}

// Authenticate returns the station a token belongs to.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	if station, ok := s.tokens[token]; ok {
		return station, nil
	}
	station, err := s.store.StationForToken(ctx, token)
	if errors.Is(err, sqlite.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	return station, nil
}

func validateCheckIn(in checkin.CheckIn) error {
	var missing []string
	if strings.TrimSpace(in.ScanID) == "" {
		missing = append(missing, "scan_id")
	}
	if strings.TrimSpace(in.IdentityID) == "" {
		missing = append(missing, "identity_id")
	}
	if strings.TrimSpace(in.ActivityID) == "" {
		missing = append(missing, "activity_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", checkin.ErrInvalidInput, strings.Join(missing, ", "))
	}
	if _, err := time.Parse(checkin.DayLayout, in.Day); err != nil {
		return fmt.Errorf("%w: day must be YYYY-MM-DD", checkin.ErrInvalidInput)
	}
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, sqlite.ErrNotFound), errors.Is(err, sqlite.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %w", checkin.ErrNotFound, err)
	case errors.Is(err, sqlite.ErrConflict):
		return fmt.Errorf("%w: %w", checkin.ErrInvalidInput, err)
	default:
		return err
	}
}
