package httpapi

import (
	"errors"
	"net/http"

	"github.com/classwatch/classwatch/internal/logctx"
	"github.com/classwatch/classwatch/relay"
)

func (h *Handler) handleHubWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "hub upgrade failed", "err", err)
		return
	}
	ctx := logctx.WithConnData(r.Context(), &logctx.ConnData{Role: "hub"})
	h.hub.ServeConn(ctx, conn)
}

func (h *Handler) handleStudentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "screen upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := logctx.WithConnData(r.Context(), &logctx.ConnData{Role: "student"})
	if err := h.relay.ServeStudent(ctx, conn); err != nil && !errors.Is(err, relay.ErrBadHandshake) {
		h.log.WarnContext(ctx, "screen stream ended with error", "err", err)
	}
}

func (h *Handler) handleViewerWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "viewer upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := logctx.WithConnData(r.Context(), &logctx.ConnData{Role: "viewer"})
	_ = h.relay.ServeViewer(ctx, conn)
}
