package ingest

import (
	"context"
	"time"

	"github.com/bakerysensors/hub/internal/cache"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/bakerysensors/hub/internal/sensorpush"
	nuts "github.com/vaudience/go-nuts"
)

// MetadataSource lists the account's sensors, for naming new sensors.
type MetadataSource interface {
	SensorMetadata(ctx context.Context) (map[string]sensorpush.SensorMetadata, error)
}

// NameResolver returns display names for sensor IDs.
type NameResolver interface {
	Resolve(ctx context.Context, sensorIDs []string) map[string]string
}

// MetadataNames resolves names through the metadata API, caching the answers.
type MetadataNames struct {
	source MetadataSource
	cache  cache.Cache
	ttl    time.Duration
}

func NewMetadataNames(source MetadataSource, c cache.Cache, ttl time.Duration) *MetadataNames {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &MetadataNames{source: source, cache: c, ttl: ttl}
}

// Resolve never fails: IDs without a cached or upstream name get
// "Sensor <id>".
func (n *MetadataNames) Resolve(ctx context.Context, sensorIDs []string) map[string]string {
	names := make(map[string]string, len(sensorIDs))
	var misses []string
	for _, id := range sensorIDs {
		if name, ok, err := n.cache.Get(ctx, cacheKey(id)); err == nil && ok {
			names[id] = name
			continue
		} else if err != nil {
			nuts.L.Warnf("[Ingest] Name cache lookup failed for %s: %v", id, err)
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 && n.source != nil {
		meta, err := n.source.SensorMetadata(ctx)
		if err != nil {
			nuts.L.Warnf("[Ingest] Could not fetch sensor metadata, using default names: %v", err)
		}
		for id, m := range meta {
			if m.Name == "" {
				continue
			}
			if err := n.cache.Set(ctx, cacheKey(id), m.Name, n.ttl); err != nil {
				nuts.L.Warnf("[Ingest] Name cache write failed for %s: %v", id, err)
			}
		}
		for _, id := range misses {
			if m, ok := meta[id]; ok && m.Name != "" {
				names[id] = m.Name
			}
		}
	}

	for _, id := range sensorIDs {
		if names[id] == "" {
			names[id] = models.DefaultSensorName(id)
		}
	}
	return names
}

func cacheKey(sensorID string) string {
	return "sensor-name:" + sensorID
}
