package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/classwatch/classwatch/store"
)

type lockRequest struct {
	// Mode is "soft" (minimize everything) or "hard" (lock the workstation).
	Mode string `json:"mode"`
}

type openURLRequest struct {
	URL string `json:"url"`
}

func (h *Handler) handleLockStudent(w http.ResponseWriter, r *http.Request) {
	hostname := r.PathValue("hostname")

	var body lockRequest
	if !readJSON(w, r, &body) {
		return
	}
	if body.Mode != "soft" && body.Mode != "hard" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"error":  "invalid mode, use 'soft' or 'hard'",
		})
		return
	}

	agent, ok := h.lookupAgent(w, r, hostname)
	if !ok {
		return
	}

	url := fmt.Sprintf("http://%s:%d/lock/%s", agent.IP, agent.Port, body.Mode)
	h.log.InfoContext(r.Context(), "forwarding lock command", "hostname", hostname, "mode", body.Mode)
	h.forwardToAgent(r.Context(), w, hostname, http.MethodPost, url, nil)
}

func (h *Handler) handleOpenURL(w http.ResponseWriter, r *http.Request) {
	hostname := r.PathValue("hostname")

	var body openURLRequest
	if !readJSON(w, r, &body) {
		return
	}
	if !validHTTPURL(body.URL) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"error":  "URL must start with http:// or https://",
		})
		return
	}

	agent, ok := h.lookupAgent(w, r, hostname)
	if !ok {
		return
	}

	url := fmt.Sprintf("http://%s:%d/open-url", agent.IP, agent.Port)
	h.log.InfoContext(r.Context(), "opening URL on student", "hostname", hostname, "url", body.URL)
	h.forwardToAgent(r.Context(), w, hostname, http.MethodPost, url, map[string]string{"url": body.URL})
}

func (h *Handler) handleBroadcastOpenURL(w http.ResponseWriter, r *http.Request) {
	var body openURLRequest
	if !readJSON(w, r, &body) {
		return
	}
	if !validHTTPURL(body.URL) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"error":  "URL must start with http:// or https://",
		})
		return
	}

	ctx := r.Context()
	agents, err := h.store.Agents(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	success, failed := 0, 0
	for _, agent := range agents {
		url := fmt.Sprintf("http://%s:%d/open-url", agent.IP, agent.Port)
		if err := h.postToAgent(ctx, http.MethodPost, url, map[string]string{"url": body.URL}); err != nil {
			h.log.WarnContext(ctx, "open-url failed", "hostname", agent.Hostname, "err", err)
			failed++
			continue
		}
		success++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"total":   len(agents),
		"success": success,
		"failed":  failed,
	})
}

func validHTTPURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func (h *Handler) lookupAgent(w http.ResponseWriter, r *http.Request, hostname string) (store.Agent, bool) {
	agent, ok, err := h.store.FindAgent(r.Context(), hostname)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
		return store.Agent{}, false
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown student")
		return store.Agent{}, false
	}
	return agent, true
}

// forwardToAgent relays one command and translates the outcome into the
// response shape the dashboard expects: the agent's own JSON on success, a
// {"status":"error"} body otherwise.
func (h *Handler) forwardToAgent(ctx context.Context, w http.ResponseWriter, hostname, method, url string, payload any) {
	resp, err := h.doAgentRequest(ctx, method, url, payload)
	if err != nil {
		h.log.WarnContext(ctx, "agent unreachable", "hostname", hostname, "err", err)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"error":  "cannot reach student: " + err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.log.WarnContext(ctx, "agent rejected command", "hostname", hostname, "status", resp.StatusCode)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"error":  fmt.Sprintf("student returned %d", resp.StatusCode),
		})
		return
	}

	var agentBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&agentBody); err != nil {
		agentBody = map[string]any{"status": "ok"}
	}
	writeJSON(w, http.StatusOK, agentBody)
}

func (h *Handler) postToAgent(ctx context.Context, method, url string, payload any) error {
	resp, err := h.doAgentRequest(ctx, method, url, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("student returned %d", resp.StatusCode)
	}
	return nil
}

func (h *Handler) doAgentRequest(ctx context.Context, method, url string, payload any) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.agent.Do(req)
}
