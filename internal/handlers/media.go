package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"backdrop/internal/logging"
	"backdrop/internal/media"
	"backdrop/internal/mediatypes"
)

// LoadRequest is the body of POST /api/load.
type LoadRequest struct {
	Path string `json:"path"`
}

// AlbumResponse is the body of GET /api/albums.
type AlbumResponse struct {
	Album string              `json:"album"`
	Count int                 `json:"count"`
	Items []*mediatypes.Media `json:"items"`
}

// GetMediaByPath returns the cached record for ?path=. It never ingests.
func (h *Handlers) GetMediaByPath(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if !filepath.IsAbs(path) {
		writeJSONError(w, "path must be an absolute file path", http.StatusBadRequest)
		return
	}

	m, err := h.store.GetByPath(r.Context(), media.Canonicalize(path))
	if err != nil {
		logging.Error("Failed to look up %s: %v", path, err)
		writeJSONError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if m == nil {
		writeJSONError(w, "media not found", http.StatusNotFound)
		return
	}
	writeJSONResponse(w, http.StatusOK, m)
}

// GetMediaByID returns the cached record with the given id.
func (h *Handlers) GetMediaByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return
	}

	m, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		logging.Error("Failed to look up media %s: %v", id, err)
		writeJSONError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if m == nil {
		writeJSONError(w, "media not found", http.StatusNotFound)
		return
	}
	writeJSONResponse(w, http.StatusOK, m)
}

// ListAlbum returns every cached record whose album is ?album=.
func (h *Handlers) ListAlbum(w http.ResponseWriter, r *http.Request) {
	album := r.URL.Query().Get("album")
	if album == "" {
		writeJSONError(w, "album is required", http.StatusBadRequest)
		return
	}

	items, err := h.store.ListAlbum(r.Context(), filepath.Clean(album))
	if err != nil {
		logging.Error("Failed to list album %s: %v", album, err)
		writeJSONError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if items == nil {
		items = []*mediatypes.Media{}
	}
	writeJSONResponse(w, http.StatusOK, AlbumResponse{Album: album, Count: len(items), Items: items})
}

// LoadMedia ingests one path through the pipeline and returns the record.
func (h *Handlers) LoadMedia(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !filepath.IsAbs(req.Path) {
		writeJSONError(w, "path must be an absolute file path", http.StatusBadRequest)
		return
	}
	if !h.underWatchedRoot(req.Path) {
		logging.Warn("Rejected load of %s: outside the watched directories", req.Path)
		writeJSONError(w, "path is outside the watched directories", http.StatusForbidden)
		return
	}

	m, err := h.loader.Load(r.Context(), req.Path)
	if err != nil {
		code := loadErrorStatus(err)
		if code >= http.StatusInternalServerError {
			logging.Error("Load %s failed: %v", req.Path, err)
		} else {
			logging.Debug("Load %s rejected: %v", req.Path, err)
		}
		writeJSONError(w, err.Error(), code)
		return
	}
	writeJSONResponse(w, http.StatusOK, m)
}

// underWatchedRoot reports whether path, with symlinks resolved, lies inside
// one of the watched roots.
func (h *Handlers) underWatchedRoot(path string) bool {
	if h.roots == nil {
		return false
	}
	target := media.Canonicalize(path)
	for _, root := range h.roots.WatchedPaths() {
		rel, err := filepath.Rel(media.Canonicalize(root), target)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// loadErrorStatus maps a pipeline failure to an HTTP status.
func loadErrorStatus(err error) int {
	var missing *media.MissingMetadataError
	switch {
	case errors.Is(err, media.ErrMediaDoesntExist):
		return http.StatusNotFound
	case errors.Is(err, media.ErrFileNotSupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, media.ErrMediaFilePathNoParent):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrDatabase):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// TriggerRescan starts a full scan in the background.
func (h *Handlers) TriggerRescan(w http.ResponseWriter, _ *http.Request) {
	if !h.watcher.TriggerScan("manual") {
		writeJSONStatus(w, http.StatusConflict, "scan_in_progress")
		return
	}
	writeJSONStatus(w, http.StatusAccepted, "scan_started")
}

// GetStats returns the cached media totals.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, h.store.GetStats())
}
