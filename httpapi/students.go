package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/classwatch/classwatch/store"
)

const defaultListCount = 50

// buildSummary merges one agent registry entry with its heartbeat and
// violation count. A student is active while its last heartbeat is younger
// than the configured TTL.
func (h *Handler) buildSummary(ctx context.Context, agent store.Agent) store.StudentSummary {
	summary := store.StudentSummary{
		Hostname: agent.Hostname,
		IP:       agent.IP,
		Port:     agent.Port,
	}

	if count, err := h.store.ViolationCount(ctx, agent.Hostname); err == nil {
		summary.ViolationCount = count
	}

	hb, err := h.store.GetHeartbeat(ctx, agent.Hostname)
	if err != nil || hb == nil {
		return summary
	}

	age := time.Since(hb.Timestamp)
	summary.Active = age < time.Duration(h.config().HeartbeatTTLSecs)*time.Second
	summary.OS = hb.OS
	summary.Username = hb.Username
	summary.CPUUsage = hb.CPUUsage
	summary.RAMUsage = hb.RAMUsage
	ts := hb.Timestamp
	summary.LastSeen = &ts
	return summary
}

func (h *Handler) listSummaries(ctx context.Context, activeOnly bool) ([]store.StudentSummary, error) {
	agents, err := h.store.Agents(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]store.StudentSummary, 0, len(agents))
	for _, agent := range agents {
		s := h.buildSummary(ctx, agent)
		if activeOnly && !s.Active {
			continue
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Hostname < summaries[j].Hostname })
	return summaries, nil
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.listSummaries(r.Context(), false)
	if err != nil {
		h.log.ErrorContext(r.Context(), "list students failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(summaries), "students": summaries})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.listSummaries(r.Context(), true)
	if err != nil {
		h.log.ErrorContext(r.Context(), "list active students failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(summaries), "students": summaries})
}

func (h *Handler) handleStudentDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostname := r.PathValue("hostname")

	agent, ok, err := h.store.FindAgent(ctx, hostname)
	if err != nil {
		h.log.ErrorContext(ctx, "student detail failed", "hostname", hostname, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown student")
		return
	}

	detail := store.StudentDetail{Summary: h.buildSummary(ctx, agent)}
	detail.Screenshot, _ = h.store.GetScreenshot(ctx, hostname)
	detail.Apps, _ = h.store.GetApps(ctx, hostname)
	detail.Notifications, _ = h.store.Notifications(ctx, hostname, defaultListCount)
	detail.Violations, _ = h.store.Violations(ctx, hostname, defaultListCount)
	if detail.Notifications == nil {
		detail.Notifications = []store.Notification{}
	}
	if detail.Violations == nil {
		detail.Violations = []store.Violation{}
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleViolations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count := int64(defaultListCount)
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			count = n
		}
	}

	if hostname := r.URL.Query().Get("hostname"); hostname != "" {
		viols, err := h.store.Violations(ctx, hostname, count)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
			return
		}
		total, _ := h.store.ViolationCount(ctx, hostname)
		writeJSON(w, http.StatusOK, map[string]any{
			"hostname":   hostname,
			"total":      total,
			"violations": viols,
		})
		return
	}

	agents, err := h.store.Agents(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	all := make([]store.Violation, 0, len(agents))
	for _, agent := range agents {
		viols, err := h.store.Violations(ctx, agent.Hostname, count)
		if err != nil {
			continue
		}
		all = append(all, viols...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if int64(len(all)) > count {
		all = all[:count]
	}
	writeJSON(w, http.StatusOK, map[string]any{"violations": all})
}
