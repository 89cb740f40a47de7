package api

import (
	"context"
	"net/http"

	"github.com/okian/merit/internal/domain/types"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	Stats(ctx context.Context) types.Stats
}

// handleStats handles GET /v1/stats requests.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Stats(r.Context()))
}
