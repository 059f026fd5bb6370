package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ganot/scanpoint/internal/domain/checkin"
)

// SeedFile is the YAML layout accepted by Seed.
type SeedFile struct {
	Activities []SeedActivity `yaml:"activities"`
	Identities []SeedIdentity `yaml:"identities"`
	APIKeys    []SeedAPIKey   `yaml:"api_keys"`
}

type SeedActivity struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	DurationDays int    `yaml:"duration_days"`
}

type SeedIdentity struct {
	ID          string            `yaml:"id"`
	Code        string            `yaml:"code"`
	DisplayName string            `yaml:"display_name"`
	Attributes  map[string]string `yaml:"attributes"`
}

type SeedAPIKey struct {
	Token       string `yaml:"token"`
	StationID   string `yaml:"station_id"`
	Description string `yaml:"description"`
}

// SeedStats counts what Seed wrote.
type SeedStats struct {
	Activities int
	Identities int
	APIKeys    int
}

// LoadSeedFile parses a seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// Seed upserts every record in seed. Activities are written first so that
// later attendance can reference them.
func (s *Service) Seed(ctx context.Context, seed *SeedFile) (SeedStats, error) {
	var stats SeedStats
	for _, a := range seed.Activities {
		if a.ID == "" || a.Name == "" {
			return stats, fmt.Errorf("%w: activity needs id and name", checkin.ErrInvalidInput)
		}
		if err := s.store.UpsertActivity(ctx, checkin.Activity{ID: a.ID, Name: a.Name, DurationDays: a.DurationDays}); err != nil {
			return stats, fmt.Errorf("seed activity %s: %w", a.ID, err)
		}
		stats.Activities++
	}
	for _, i := range seed.Identities {
		if i.ID == "" || i.Code == "" {
			return stats, fmt.Errorf("%w: identity needs id and code", checkin.ErrInvalidInput)
		}
		identity := checkin.Identity{ID: i.ID, Code: i.Code, DisplayName: i.DisplayName, Attributes: i.Attributes}
		if err := s.store.UpsertIdentity(ctx, identity); err != nil {
			return stats, fmt.Errorf("seed identity %s: %w", i.ID, mapStoreError(err))
		}
		stats.Identities++
	}
	for _, k := range seed.APIKeys {
		if k.Token == "" || k.StationID == "" {
			return stats, fmt.Errorf("%w: api key needs token and station_id", checkin.ErrInvalidInput)
		}
		if err := s.store.CreateAPIKey(ctx, k.Token, k.StationID, k.Description); err != nil {
			return stats, fmt.Errorf("seed api key for %s: %w", k.StationID, err)
		}
		stats.APIKeys++
	}
	s.logger.InfoContext(ctx, "registry seeded",
		"activities", stats.Activities,
		"identities", stats.Identities,
		"api_keys", stats.APIKeys)
	return stats, nil
}
