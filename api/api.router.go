package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bakerysensors/hub/api/middleware"
	"github.com/bakerysensors/hub/api/resources"
	_ "github.com/bakerysensors/hub/docs"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/swaggo/swag"
	nuts "github.com/vaudience/go-nuts"
)

type Router struct {
	router    *mux.Router
	handler   http.Handler
	auth      *middleware.SessionMiddleware
	resources *resources.Resources
}

func NewRouter(svc *hubservice.HubService) *Router {
	auth := middleware.NewSessionMiddleware(svc.Config.Auth)
	r := &Router{
		router:    mux.NewRouter(),
		auth:      auth,
		resources: resources.NewResources(svc, auth, middleware.NewLoginLimiter(svc.Config.Auth)),
	}

	r.setupRoutes()
	r.handler = r.wrap(svc.Config.Server.AllowedOrigins)
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.resources.Admin.Health).Methods(http.MethodGet)
	api.HandleFunc("/swagger.json", serveAPIDoc).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", r.resources.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/sensors", r.resources.Sensors.ListSensors).Methods(http.MethodGet)
	api.HandleFunc("/sensors/{id}", r.resources.Sensors.GetSensor).Methods(http.MethodGet)
	api.HandleFunc("/sensors/{id}/readings", r.resources.Sensors.GetSensorReadings).Methods(http.MethodGet)
	api.HandleFunc("/sensors/{id}/latest", r.resources.Sensors.GetLatestReading).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	protected.HandleFunc("/sensors/{id}", r.resources.Sensors.UpdateSensor).Methods(http.MethodPut)

	// Polling
	polling := protected.PathPrefix("/polling").Subrouter()
	polling.HandleFunc("/status", r.resources.Polling.GetStatus).Methods(http.MethodGet)
	polling.HandleFunc("/poll", r.resources.Polling.TriggerPoll).Methods(http.MethodPost)
	polling.HandleFunc("/purge", r.resources.Polling.TriggerPurge).Methods(http.MethodPost)
	polling.HandleFunc("/interval", r.resources.Polling.UpdateInterval).Methods(http.MethodPut)

	// Retention
	ret := protected.PathPrefix("/retention").Subrouter()
	ret.HandleFunc("/stats", r.resources.Retention.GetStats).Methods(http.MethodGet)
	ret.HandleFunc("/sensors/{id}/summary", r.resources.Retention.GetSensorSummary).Methods(http.MethodGet)
	ret.HandleFunc("/readings", r.resources.Retention.DeleteReadings).Methods(http.MethodDelete)

	// Admin
	protected.HandleFunc("/settings", r.resources.Admin.ListSettings).Methods(http.MethodGet)
	protected.HandleFunc("/errors", r.resources.Admin.ListErrors).Methods(http.MethodGet)
}

// wrap adds access logging, panic recovery and CORS around the mux.
func (r *Router) wrap(origins []string) http.Handler {
	var h http.Handler = r.router
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(httpLog{}), handlers.PrintRecoveryStack(true))(h)
	return handlers.LoggingHandler(httpLog{}, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func serveAPIDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		nuts.L.Errorf("[API] Failed to render API description: %v", err)
		http.Error(w, "API description unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}

// httpLog sends access log lines and recovered panics to the go-nuts logger.
type httpLog struct{}

func (httpLog) Write(p []byte) (int, error) {
	nuts.L.Debugf("[HTTP] %s", strings.TrimSpace(string(p)))
	return len(p), nil
}

func (httpLog) Println(v ...interface{}) {
	nuts.L.Errorf("[HTTP] %s", strings.TrimSpace(fmt.Sprintln(v...)))
}
