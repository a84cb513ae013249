package httpapi

import (
	"net/http"
	"os"
	"runtime"
	"time"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime_secs": int64(now.Sub(h.started).Seconds()),
		"timestamp":   now.Format(time.RFC3339),
	})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hostname": hostname,
		"os":       runtime.GOOS + " " + runtime.GOARCH,
		"memory": map[string]any{
			"heap_alloc_mb": mem.HeapAlloc / 1024 / 1024,
			"sys_mb":        mem.Sys / 1024 / 1024,
		},
		"cpu_count":  runtime.NumCPU(),
		"goroutines": runtime.NumGoroutine(),
		"username":   username,
	})
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config())
}

func (h *Handler) handleScreenStudents(w http.ResponseWriter, r *http.Request) {
	students := h.relay.ActiveHostnames()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(students),
		"students": students,
	})
}
