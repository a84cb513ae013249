package relay

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type studentList struct {
	Type     string   `json:"type"`
	Students []string `json:"students"`
}

// ServeViewer drives one teacher dashboard connection until it closes.
//
// On connect the viewer gets a text student-list message, then one tagged
// binary frame per cached student so the dashboard renders the last known
// state of every live stream immediately. After that two loops run until
// either fails: a forward loop draining this viewer's private queue onto the
// connection, and a read loop whose only job is to notice the peer going
// away. Viewers are mutually independent; tearing one down touches nothing
// but its own registry entry.
func (r *Relay) ServeViewer(ctx context.Context, conn Conn) error {
	id, queue := r.viewers.register()
	defer r.viewers.unregister(id)

	r.log.InfoContext(ctx, "screen viewer connected", "viewers", r.viewers.len())

	list, err := json.Marshal(studentList{Type: "student_list", Students: r.cache.Hostnames()})
	if err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, list); err != nil {
			r.log.WarnContext(ctx, "screen viewer: student list write failed", "err", err)
			return err
		}
	}

	for _, entry := range r.cache.Snapshot() {
		tagged, err := EncodeFrame(entry.Hostname, entry.Data)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, tagged); err != nil {
			return err
		}
	}

	// Forward loop. Ends when the queue is closed by unregister or when a
	// write fails; a failed write closes the connection, which in turn ends
	// the read loop below.
	go func() {
		for msg := range queue {
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				break
			}
		}
		conn.Close()
	}()

	// Read loop: viewers never issue commands on this channel, so incoming
	// content is discarded. A read error is the close signal.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	r.viewers.unregister(id)
	r.log.InfoContext(ctx, "screen viewer disconnected", "viewers", r.viewers.len())
	return nil
}
