package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"backdrop/internal/indexer"
	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

// MediaStore is the read side of the cache used by the API.
type MediaStore interface {
	GetByPath(ctx context.Context, path string) (*mediatypes.Media, error)
	GetByID(ctx context.Context, id uuid.UUID) (*mediatypes.Media, error)
	ListAlbum(ctx context.Context, album string) ([]*mediatypes.Media, error)
	GetStats() metrics.Stats
	Healthy() bool
}

// Loader ingests a single path on demand.
type Loader interface {
	Load(ctx context.Context, path string) (*mediatypes.Media, error)
}

// WatcherStatus exposes the watcher's lifecycle to health and rescan routes.
type WatcherStatus interface {
	IsReady() bool
	Status() indexer.Status
	TriggerScan(trigger string) bool
}

// Handlers serves the admin API.
type Handlers struct {
	store   MediaStore
	loader  Loader
	watcher WatcherStatus
	roots   indexer.RootSource
}

// New creates the API handlers. On-demand loads are limited to files under
// the directories roots reports.
func New(store MediaStore, loader Loader, watcher WatcherStatus, roots indexer.RootSource) *Handlers {
	return &Handlers{
		store:   store,
		loader:  loader,
		watcher: watcher,
		roots:   roots,
	}
}

// Router registers every route. metricsEnabled controls /metrics.
func (h *Handlers) Router(metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/media", h.GetMediaByPath).Methods(http.MethodGet)
	api.HandleFunc("/media/{id}", h.GetMediaByID).Methods(http.MethodGet)
	api.HandleFunc("/albums", h.ListAlbum).Methods(http.MethodGet)
	api.HandleFunc("/load", h.LoadMedia).Methods(http.MethodPost)
	api.HandleFunc("/rescan", h.TriggerRescan).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	return r
}
