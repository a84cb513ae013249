package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/classwatch/classwatch/hub"
	"github.com/classwatch/classwatch/store"
)

// teacherClientID is the hub id dashboard connections identify with; agent
// alerts are pushed there.
const teacherClientID = "teacher"

var okBody = map[string]string{"status": "ok"}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb store.Heartbeat
	if !readJSON(w, r, &hb) {
		return
	}
	hb.Timestamp = time.Now().UTC()

	ctx := r.Context()
	if err := h.store.RegisterAgent(ctx, hb.Hostname, hb.IP, hb.Port); err != nil {
		h.log.ErrorContext(ctx, "register agent failed", "hostname", hb.Hostname, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	ttl := time.Duration(h.config().HeartbeatTTLSecs) * time.Second
	if err := h.store.SetHeartbeat(ctx, &hb, ttl); err != nil {
		h.log.ErrorContext(ctx, "store heartbeat failed", "hostname", hb.Hostname, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handler) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	var ss store.Screenshot
	if !readJSON(w, r, &ss) {
		return
	}
	ss.Timestamp = time.Now().UTC()

	if err := h.store.SetScreenshot(r.Context(), &ss); err != nil {
		h.log.ErrorContext(r.Context(), "store screenshot failed", "hostname", ss.Hostname, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	var n store.Notification
	if !readJSON(w, r, &n) {
		return
	}
	n.Timestamp = time.Now().UTC()

	if err := h.store.AddNotification(r.Context(), &n); err != nil {
		h.log.ErrorContext(r.Context(), "store notification failed", "hostname", n.Hostname, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	// Best-effort push to the dashboard; dropped if no teacher is connected.
	h.pushToTeacher(hub.Envelope{
		Type:      "notification",
		From:      n.Hostname,
		Content:   n.Title + ": " + n.Message,
		Timestamp: n.Timestamp.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handler) handleApps(w http.ResponseWriter, r *http.Request) {
	var apps store.AppList
	if !readJSON(w, r, &apps) {
		return
	}
	apps.Timestamp = time.Now().UTC()

	if err := h.store.SetApps(r.Context(), &apps); err != nil {
		h.log.ErrorContext(r.Context(), "store app list failed", "hostname", apps.Hostname, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handler) handleViolation(w http.ResponseWriter, r *http.Request) {
	var v store.Violation
	if !readJSON(w, r, &v) {
		return
	}
	v.Timestamp = time.Now().UTC()

	if err := h.store.AddViolation(r.Context(), &v); err != nil {
		h.log.ErrorContext(r.Context(), "store violation failed", "hostname", v.Hostname, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	h.pushToTeacher(hub.Envelope{
		Type:      "violation",
		From:      v.Hostname,
		Content:   v.Rule + ": " + v.Detail,
		Timestamp: v.Timestamp.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handler) pushToTeacher(env hub.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.hub.SendTo(teacherClientID, payload)
}
