package hubservice

import (
	"context"
	"fmt"
	"time"

	"github.com/bakerysensors/hub/internal/cache"
	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/database"
	nuts "github.com/vaudience/go-nuts"
)

// Bootstrap opens and migrates the database, connects the metadata cache and
// wires the services. The caller owns the result and must Close it.
func Bootstrap(ctx context.Context, cfg *config.Config) (*HubService, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	nuts.L.Infof("[HubService] Database ready (%s)", db.Dialect())

	svc := New(cfg, db, cache.New(ctx, cfg.Redis))
	if err := svc.Validate(); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}
