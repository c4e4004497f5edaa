// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"github.com/bakerysensors/hub/api/middleware"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Sensors   *SensorHandlers
	Polling   *PollingHandlers
	Retention *RetentionHandlers
	Admin     *AdminHandlers
	Auth      *AuthHandlers
}

// NewResources creates a new Resources instance
func NewResources(svc *hubservice.HubService, sessions *middleware.SessionMiddleware, limiter *middleware.LoginLimiter) *Resources {
	return &Resources{
		Sensors:   &SensorHandlers{hubservice: svc},
		Polling:   &PollingHandlers{hubservice: svc},
		Retention: &RetentionHandlers{hubservice: svc},
		Admin:     &AdminHandlers{hubservice: svc},
		Auth:      &AuthHandlers{hubservice: svc, sessions: sessions, limiter: limiter},
	}
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(s string) reflect.Value {
		t, err := parseTime(s)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}

// parseTime accepts RFC3339 timestamps and plain dates, always in UTC.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// toAPIError keeps typed errors from the services and wraps anything else
// as an internal error.
func toAPIError(err error, fallback string) *errors.APIError {
	if apiErr, ok := errors.AsAPIError(err); ok {
		return apiErr
	}
	return errors.NewInternalError(fallback, err)
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	if err.Code >= http.StatusInternalServerError {
		nuts.L.Errorf("[API] %s", err.Error())
		return
	}
	nuts.L.Debugf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
