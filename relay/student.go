package relay

import (
	"context"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// placeholderHostname stands in when a student handshake omits the hostname.
const placeholderHostname = "unknown"

// ErrBadHandshake reports a student connection whose first message was not a
// valid handshake. The connection is dropped with no side effects; a client
// must reconnect and handshake again.
var ErrBadHandshake = errors.New("relay: invalid student handshake")

type studentHandshake struct {
	Role     string `json:"role"`
	Hostname string `json:"hostname"`
}

// ServeStudent drives one student connection until it closes. The first
// message must be a text handshake {"role":"student","hostname":...}; after
// that every binary message is taken as one complete frame, cached as the
// student's latest and fanned out to all viewers. Text messages while
// streaming are ignored.
//
// Returns ErrBadHandshake if the session never made it past the handshake.
// Transport errors after the handshake are handled as a normal disconnect and
// reported as nil.
func (r *Relay) ServeStudent(ctx context.Context, conn Conn) error {
	mt, data, err := conn.ReadMessage()
	if err != nil {
		return ErrBadHandshake
	}
	if mt != websocket.TextMessage {
		r.log.WarnContext(ctx, "screen stream: expected text handshake, got binary")
		return ErrBadHandshake
	}

	var hs studentHandshake
	if err := json.Unmarshal(data, &hs); err != nil {
		r.log.WarnContext(ctx, "screen stream: malformed handshake", "err", err)
		return ErrBadHandshake
	}
	if hs.Role != "student" {
		r.log.WarnContext(ctx, "screen stream: unexpected role", "role", hs.Role)
		return ErrBadHandshake
	}
	hostname := hs.Hostname
	if hostname == "" {
		hostname = placeholderHostname
	}
	if len(hostname) > maxHostnameLen {
		// Keep the frame tag encodable. Nothing legitimate sends this.
		// Cut on a rune boundary so the tag stays valid UTF-8.
		cut := maxHostnameLen
		for cut > 0 && !utf8.RuneStart(hostname[cut]) {
			cut--
		}
		hostname = hostname[:cut]
	}

	r.log.InfoContext(ctx, "screen stream connected", "hostname", hostname)
	r.viewers.publish(EncodeEvent(EventStudentConnected, hostname))

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		r.cache.Put(hostname, data)
		tagged, err := EncodeFrame(hostname, data)
		if err != nil {
			// Unreachable for hostnames accepted above; drop the frame.
			continue
		}
		r.viewers.publish(tagged)
	}

	r.log.InfoContext(ctx, "screen stream disconnected", "hostname", hostname)
	r.cache.Remove(hostname)
	r.viewers.publish(EncodeEvent(EventStudentDisconnected, hostname))
	return nil
}
