package hubservice

import (
	"strconv"

	"github.com/bakerysensors/hub/internal/cache"
	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/ingest"
	"github.com/bakerysensors/hub/internal/monitoring"
	"github.com/bakerysensors/hub/internal/repository"
	"github.com/bakerysensors/hub/internal/repository/sqlstore"
	"github.com/bakerysensors/hub/internal/retention"
	"github.com/bakerysensors/hub/internal/scheduler"
	"github.com/bakerysensors/hub/internal/sensorpush"
	"github.com/bakerysensors/hub/internal/settings"
	nuts "github.com/vaudience/go-nuts"
)

// HubService contains all repositories and service-wide dependencies
type HubService struct {
	Config     *config.Config
	DB         database.DB
	Sensors    repository.SensorRepository
	Readings   repository.ReadingRepository
	Settings   *settings.Store
	Monitoring *monitoring.Service
	Client     *sensorpush.Client
	Ingest     *ingest.Processor
	Retention  *retention.Engine
	Polling    *scheduler.PollingService
	Cache      cache.Cache
}

// New wires every service on top of an open, migrated database.
func New(cfg *config.Config, db database.DB, c cache.Cache) *HubService {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	sensors := sqlstore.NewSensorRepository(db)
	readings := sqlstore.NewReadingRepository(db)
	mon := monitoring.NewService(sqlstore.NewErrorLogRepository(db))
	store := settings.NewStore(sqlstore.NewSettingsRepository(db), cfg.Polling.DefaultIntervalMinutes, cfg.Auth.ManagerPinHash)
	client := sensorpush.NewClient(cfg.SensorPush)
	names := ingest.NewMetadataNames(client, c, cfg.Redis.MetadataTTL)
	processor := ingest.NewProcessor(sensors, readings, names)
	engine := retention.New(readings, mon)

	svc := &HubService{
		Config:     cfg,
		DB:         db,
		Sensors:    sensors,
		Readings:   readings,
		Settings:   store,
		Monitoring: mon,
		Client:     client,
		Ingest:     processor,
		Retention:  engine,
		Cache:      c,
	}
	svc.Polling = scheduler.New(scheduler.OptionsFromConfig(cfg), client, processor, engine, store, mon)
	svc.setupRetentionHandlers()
	return svc
}

// Validate checks if all required repositories are initialized
func (s *HubService) Validate() error {
	if s.Sensors == nil {
		return ErrMissingRepository("sensors")
	}
	if s.Readings == nil {
		return ErrMissingRepository("readings")
	}
	if s.Settings == nil {
		return ErrMissingRepository("settings")
	}
	if s.Polling == nil {
		return errors.NewInternalError("missing polling service", nil)
	}
	return nil
}

func (s *HubService) setupRetentionHandlers() {
	s.Retention.OnDeletion(retention.EventPurged, "hub_purge_handler", func(deleted int64) {
		s.Monitoring.RecordEvent("readings_purged", map[string]string{
			"deleted": strconv.FormatInt(deleted, 10),
		})
	})
	s.Retention.OnDeletion(retention.EventDeleted, "hub_delete_handler", func(deleted int64) {
		s.Monitoring.RecordEvent("readings_deleted", map[string]string{
			"deleted": strconv.FormatInt(deleted, 10),
		})
	})
}

// Close stops background work and releases connections.
func (s *HubService) Close() {
	if err := s.Polling.Close(); err != nil {
		nuts.L.Errorf("[HubService] Error stopping polling service: %v", err)
	}
	if err := s.Cache.Close(); err != nil {
		nuts.L.Warnf("[HubService] Error closing cache: %v", err)
	}
	if err := s.DB.Close(); err != nil {
		nuts.L.Errorf("[HubService] Error closing database: %v", err)
	}
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}
