package gateway

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"floatshelf/internal/version"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	App     AppStatus    `json:"app"`
	Shelves ShelfStatus  `json:"shelves"`
	Window  WindowStatus `json:"window"`
	Runs    RunStatus    `json:"runs"`
	Runners []string     `json:"runners"`
}

// AppStatus holds application overview info.
type AppStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ShelfStatus holds shelf and button counts.
type ShelfStatus struct {
	Count   int    `json:"count"`
	Buttons int    `json:"buttons"`
	Default string `json:"default"`
	Current string `json:"current"`
}

// WindowStatus holds the floating window state.
type WindowStatus struct {
	Open    bool `json:"open"`
	Columns int  `json:"columns"`
}

// RunStatus holds button execution counters.
type RunStatus struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
}

// Metrics tracks counters for the status API and Prometheus metrics.
type Metrics struct {
	RunsTotal        atomic.Int64
	RunFailuresTotal atomic.Int64
	EventsTotal      atomic.Int64
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(deps HandlerDeps, startTime time.Time, metrics *Metrics, runnerKinds []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		col := deps.Shelves.Snapshot()
		buttons := 0
		for _, seq := range col.Shelves {
			buttons += len(seq)
		}

		resp := StatusResponse{
			App: AppStatus{
				Name:          "floatshelf",
				Version:       version.String(),
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			Shelves: ShelfStatus{
				Count:   len(col.Shelves),
				Buttons: buttons,
				Default: col.Default,
				Current: deps.Shelves.CurrentShelf(),
			},
			Window: WindowStatus{
				Open:    deps.Window.IsOpen(),
				Columns: deps.Window.Columns(),
			},
			Runs: RunStatus{
				Total:  metrics.RunsTotal.Load(),
				Failed: metrics.RunFailuresTotal.Load(),
			},
			Runners: runnerKinds,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
