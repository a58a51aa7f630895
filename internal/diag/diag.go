// Package diag exposes read-only operational endpoints (/healthz,
// /stats) alongside the TCP listener, using gorilla/mux the way the
// teacher's main.go used it for its HTTP API — here repurposed from the
// core request path (replaced by the binary TCP protocol, spec §6) to an
// ambient-ops sidecar.
package diag

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arrowkv/kvs/internal/engine"
)

// StatsSource is implemented by internal/engine.Engine. The bbolt adapter
// does not currently expose compaction stats, so diag is wired only
// against the native engine.
type StatsSource interface {
	Stats() engine.Stats
}

// NewMux builds the diagnostic HTTP handler. It is served on its own
// listener, separate from the TCP KV protocol, by whichever binary wires
// it in (cmd/kvs-server).
func NewMux(src StatsSource) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/stats", handleStats(src)).Methods(http.MethodGet)
	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleStats(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := src.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}
}
