package gateway

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full prometheus client.
func metricsHandler(deps HandlerDeps, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		col := deps.Shelves.Snapshot()
		buttons := 0
		for _, seq := range col.Shelves {
			buttons += len(seq)
		}

		// Shelf metrics.
		fmt.Fprintf(w, "# HELP floatshelf_shelves Number of shelves.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_shelves gauge\n")
		fmt.Fprintf(w, "floatshelf_shelves %d\n", len(col.Shelves))

		fmt.Fprintf(w, "# HELP floatshelf_buttons Number of buttons across all shelves.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_buttons gauge\n")
		fmt.Fprintf(w, "floatshelf_buttons %d\n", buttons)

		// Run metrics.
		fmt.Fprintf(w, "# HELP floatshelf_button_runs_total Total button executions.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_button_runs_total counter\n")
		fmt.Fprintf(w, "floatshelf_button_runs_total %d\n", metrics.RunsTotal.Load())

		fmt.Fprintf(w, "# HELP floatshelf_button_run_failures_total Total failed button executions.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_button_run_failures_total counter\n")
		fmt.Fprintf(w, "floatshelf_button_run_failures_total %d\n", metrics.RunFailuresTotal.Load())

		// Event metrics.
		fmt.Fprintf(w, "# HELP floatshelf_events_total Total events published on the bus.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_events_total counter\n")
		fmt.Fprintf(w, "floatshelf_events_total %d\n", metrics.EventsTotal.Load())

		// Window metrics.
		windowOpen := 0
		if deps.Window.IsOpen() {
			windowOpen = 1
		}
		fmt.Fprintf(w, "# HELP floatshelf_window_open Whether the floating window is open.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_window_open gauge\n")
		fmt.Fprintf(w, "floatshelf_window_open %d\n", windowOpen)

		fmt.Fprintf(w, "# HELP floatshelf_window_columns Current button grid column count.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_window_columns gauge\n")
		fmt.Fprintf(w, "floatshelf_window_columns %d\n", deps.Window.Columns())

		// Icon metrics.
		if deps.Icons != nil {
			fmt.Fprintf(w, "# HELP floatshelf_icons Number of icons in the catalog.\n")
			fmt.Fprintf(w, "# TYPE floatshelf_icons gauge\n")
			fmt.Fprintf(w, "floatshelf_icons %d\n", len(deps.Icons.Names()))
		}

		// Uptime.
		fmt.Fprintf(w, "# HELP floatshelf_uptime_seconds Seconds since the app started.\n")
		fmt.Fprintf(w, "# TYPE floatshelf_uptime_seconds gauge\n")
		fmt.Fprintf(w, "floatshelf_uptime_seconds %.0f\n", time.Since(startTime).Seconds())

		// Go runtime metrics.
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		fmt.Fprintf(w, "# HELP go_goroutines Number of goroutines.\n")
		fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
		fmt.Fprintf(w, "go_goroutines %d\n", runtime.NumGoroutine())

		fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Bytes of allocated heap objects.\n")
		fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
		fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n", mem.Alloc)

		fmt.Fprintf(w, "# HELP go_memstats_sys_bytes Total bytes of memory obtained from the OS.\n")
		fmt.Fprintf(w, "# TYPE go_memstats_sys_bytes gauge\n")
		fmt.Fprintf(w, "go_memstats_sys_bytes %d\n", mem.Sys)

		fmt.Fprintf(w, "# HELP go_gc_duration_seconds Total GC pause duration.\n")
		fmt.Fprintf(w, "# TYPE go_gc_duration_seconds gauge\n")
		fmt.Fprintf(w, "go_gc_duration_seconds %f\n", float64(mem.PauseTotalNs)/1e9)
	}
}
