// Package settings reads and writes operator settings kept in storage.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/bakerysensors/hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
	"golang.org/x/crypto/bcrypt"
)

const (
	KeyPollingInterval = "polling_interval_minutes"
	KeyManagerPinHash  = "manager_pin_hash"

	MinPollingIntervalMinutes = 1
	minPinLength              = 4
)

// Store is the settings facade used by the scheduler, the API and the CLI.
type Store struct {
	repo            repository.SettingsRepository
	defaultInterval int
	defaultPinHash  string
}

// NewStore creates a Store. defaultInterval applies when no interval is
// stored; defaultPinHash when no PIN hash is stored.
func NewStore(repo repository.SettingsRepository, defaultInterval int, defaultPinHash string) *Store {
	if defaultInterval < MinPollingIntervalMinutes {
		defaultInterval = MinPollingIntervalMinutes
	}
	return &Store{
		repo:            repo,
		defaultInterval: defaultInterval,
		defaultPinHash:  defaultPinHash,
	}
}

// Get returns the stored value for key or def when it is not set.
func (s *Store) Get(ctx context.Context, key, def string) (string, error) {
	setting, err := s.repo.Get(ctx, key)
	if errors.IsNotFound(err) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return setting.Value, nil
}

// Set stores value under key. An empty description keeps the stored one.
func (s *Store) Set(ctx context.Context, key, value, description string) error {
	if strings.TrimSpace(key) == "" {
		return errors.NewValidationError("setting key is required", nil)
	}
	setting := &models.Setting{Key: key, Value: value}
	if description != "" {
		setting.Description = &description
	}
	return s.repo.Upsert(ctx, setting)
}

// All lists every stored setting except secrets.
func (s *Store) All(ctx context.Context) ([]models.Setting, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, setting := range all {
		if setting.Key == KeyManagerPinHash {
			continue
		}
		out = append(out, setting)
	}
	return out, nil
}

// PollingInterval returns the stored polling interval in minutes. Missing,
// unreadable or invalid values fall back to the configured default.
func (s *Store) PollingInterval(ctx context.Context) int {
	raw, err := s.Get(ctx, KeyPollingInterval, "")
	if err != nil {
		nuts.L.Warnf("[Settings] Could not read %s, using default %d: %v", KeyPollingInterval, s.defaultInterval, err)
		return s.defaultInterval
	}
	if raw == "" {
		return s.defaultInterval
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || minutes < MinPollingIntervalMinutes {
		nuts.L.Warnf("[Settings] Invalid %s value %q, using default %d", KeyPollingInterval, raw, s.defaultInterval)
		return s.defaultInterval
	}
	return minutes
}

// SetPollingInterval persists a new polling interval.
func (s *Store) SetPollingInterval(ctx context.Context, minutes int) error {
	if minutes < MinPollingIntervalMinutes {
		return errors.NewValidationError(fmt.Sprintf("polling interval must be at least %d minute", MinPollingIntervalMinutes), nil)
	}
	return s.Set(ctx, KeyPollingInterval, strconv.Itoa(minutes), "Minutes between SensorPush polls")
}

// ManagerPinHash returns the stored bcrypt hash of the manager PIN.
func (s *Store) ManagerPinHash(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyManagerPinHash, s.defaultPinHash)
}

// SetManagerPin hashes and stores a new manager PIN.
func (s *Store) SetManagerPin(ctx context.Context, pin string) error {
	pin = strings.TrimSpace(pin)
	if len(pin) < minPinLength {
		return errors.NewValidationError(fmt.Sprintf("PIN must be at least %d characters", minPinLength), nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return errors.NewInternalError("failed to hash PIN", err)
	}
	return s.Set(ctx, KeyManagerPinHash, string(hash), "bcrypt hash of the manager PIN")
}

// VerifyManagerPin reports whether pin matches the stored hash. With no hash
// configured every PIN is rejected.
func (s *Store) VerifyManagerPin(ctx context.Context, pin string) (bool, error) {
	hash, err := s.ManagerPinHash(ctx)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil, nil
}
