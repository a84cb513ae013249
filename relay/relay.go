// Package relay is the in-memory screen-sharing core of the backend. Student
// agents push binary frames over persistent connections; the relay caches the
// latest frame per student and fans every frame out to all connected teacher
// viewers, multiplexed over each viewer connection with a compact binary tag
// (see wire.go).
//
// Delivery is best-effort and latest-wins: nothing is persisted, nothing is
// retried, and a stalled viewer only loses its own frames. All state lives in
// this process; after a restart clients reconnect and resynchronize from the
// snapshot sent to each new viewer.
package relay

import (
	"log/slog"
)

// Conn is the subset of a websocket connection the relay drives. It is
// satisfied by *websocket.Conn from github.com/gorilla/websocket.
type Conn interface {
	// ReadMessage returns the framing type and payload of the next message,
	// or an error once the connection is closed.
	ReadMessage() (messageType int, p []byte, err error)
	// WriteMessage writes one complete message.
	WriteMessage(messageType int, data []byte) error
	// Close tears down the underlying transport, failing any blocked reads.
	Close() error
}

// Relay ties the frame cache and the viewer registry together. One Relay
// serves any number of student and viewer connections concurrently.
type Relay struct {
	log     *slog.Logger
	cache   *FrameCache
	viewers *viewerRegistry
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger used for connection lifecycle logging. Defaults
// to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.log = l }
}

// New creates an empty Relay.
func New(opts ...Option) *Relay {
	r := &Relay{
		log:     slog.Default(),
		cache:   NewFrameCache(),
		viewers: newViewerRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ActiveHostnames lists the students that are currently streaming. This is
// the dashboard's "who is live right now" query.
func (r *Relay) ActiveHostnames() []string {
	return r.cache.Hostnames()
}

// Stats is a point-in-time counters snapshot for diagnostics.
type Stats struct {
	Streams       int
	Viewers       int
	FramesSent    uint64
	FramesDropped uint64
}

// Stats reports current stream/viewer counts and cumulative fan-out counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Streams:       r.cache.Len(),
		Viewers:       r.viewers.len(),
		FramesSent:    r.viewers.sent.Load(),
		FramesDropped: r.viewers.dropped.Load(),
	}
}
