package handlers

import (
	"net/http"
	"strconv"

	"github.com/openmic/backend/internal/models"
	"github.com/openmic/backend/internal/services"
)

// SearchHandler serves catalog track searches.
type SearchHandler struct {
	catalog *services.CatalogService
}

// NewSearchHandler creates a SearchHandler backed by the catalog adapter.
func NewSearchHandler(catalog *services.CatalogService) *SearchHandler {
	return &SearchHandler{catalog: catalog}
}

// Search handles free-text track queries, returning candidates in catalog order.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	tracks, err := h.catalog.Search(r.Context(), query, limit)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	response := models.SearchResponse{
		Tracks: make([]models.TrackResponse, len(tracks)),
	}
	for i, track := range tracks {
		response.Tracks[i] = models.TrackResponse{
			ID:           track.ID,
			Title:        track.Title,
			Artists:      track.Artists,
			ThumbnailURL: track.ThumbnailURL,
			ExternalURL:  track.ExternalURL,
		}
	}

	writeJSON(w, http.StatusOK, response)
}
