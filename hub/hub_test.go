package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("conn closed")

type fakeMsg struct {
	mt   int
	data []byte
}

type fakeConn struct {
	in        chan fakeMsg
	out       chan fakeMsg
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan fakeMsg, 16),
		out:    make(chan fakeMsg, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.in:
		return m.mt, m.data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.out <- fakeMsg{mt: mt, data: append([]byte(nil), data...)}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sendJSON(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	c.in <- fakeMsg{mt: websocket.TextMessage, data: data}
}

func (c *fakeConn) nextEnvelope(t *testing.T) Envelope {
	t.Helper()
	select {
	case m := <-c.out:
		var env Envelope
		if err := json.Unmarshal(m.data, &env); err != nil {
			t.Fatalf("unmarshal %q: %v", m.data, err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub message")
		return Envelope{}
	}
}

func connect(t *testing.T, h *Hub, id string) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	go h.ServeConn(context.Background(), conn)
	conn.sendJSON(t, Envelope{Type: "identify", ID: id})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		_, ok := h.clients[id]
		h.mu.RUnlock()
		if ok {
			return conn
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client %q never registered", id)
	return nil
}

func TestChatBroadcast(t *testing.T) {
	h := New()
	teacher := connect(t, h, "teacher")
	student := connect(t, h, "pc-1")

	// The teacher sees the student join.
	env := teacher.nextEnvelope(t)
	if env.Type != "system" {
		t.Fatalf("expected join system message, got %+v", env)
	}

	student.sendJSON(t, Envelope{Type: "chat", To: "all", Content: "hello class"})

	env = teacher.nextEnvelope(t)
	if env.Type != "chat" || env.From != "pc-1" || env.Content != "hello class" {
		t.Fatalf("teacher received %+v", env)
	}
}

func TestDirectChatEchoesToSender(t *testing.T) {
	h := New()
	teacher := connect(t, h, "teacher")
	student := connect(t, h, "pc-1")
	teacher.nextEnvelope(t) // join notice for pc-1

	teacher.sendJSON(t, Envelope{Type: "chat", To: "pc-1", Content: "eyes on your own screen"})

	got := student.nextEnvelope(t)
	if got.Type != "chat" || got.From != "teacher" || got.To != "pc-1" {
		t.Fatalf("student received %+v", got)
	}
	echo := teacher.nextEnvelope(t)
	if echo.Type != "chat" || echo.Content != "eyes on your own screen" {
		t.Fatalf("sender echo = %+v", echo)
	}
}

func TestSendToUnknownClient(t *testing.T) {
	h := New()
	if h.SendTo("nobody", []byte("x")) {
		t.Fatal("SendTo should report failure for unknown client")
	}
}

func TestPushToNamedClient(t *testing.T) {
	h := New()
	teacher := connect(t, h, "teacher")

	payload, _ := json.Marshal(Envelope{Type: "violation", From: "pc-1", Content: "banned app"})
	if !h.SendTo("teacher", payload) {
		t.Fatal("SendTo failed for connected client")
	}

	env := teacher.nextEnvelope(t)
	if env.Type != "violation" || env.From != "pc-1" {
		t.Fatalf("teacher received %+v", env)
	}
}

func TestReconnectKeepsClientPresent(t *testing.T) {
	h := New()
	teacher := connect(t, h, "teacher")
	old := connect(t, h, "pc-1")
	teacher.nextEnvelope(t) // join notice for pc-1

	// A reconnect under the same id replaces the registration and closes
	// the stale session's conn.
	replacement := connect(t, h, "pc-1")
	select {
	case <-old.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("stale conn was not closed on reconnect")
	}

	// The stale teardown must not announce a departure: pc-1 is still here.
	quiet := time.After(100 * time.Millisecond)
drain:
	for {
		select {
		case m := <-teacher.out:
			var env Envelope
			if err := json.Unmarshal(m.data, &env); err != nil {
				t.Fatalf("unmarshal %q: %v", m.data, err)
			}
			if env.Type == "system" && strings.Contains(env.Content, "left the chat") {
				t.Fatalf("leave broadcast after reconnect: %+v", env)
			}
		case <-quiet:
			break drain
		}
	}

	payload, _ := json.Marshal(Envelope{Type: "notification", Content: "still here"})
	if !h.SendTo("pc-1", payload) {
		t.Fatal("SendTo failed after reconnect")
	}
	env := replacement.nextEnvelope(t)
	if env.Type != "notification" || env.Content != "still here" {
		t.Fatalf("replacement received %+v", env)
	}
}

func TestLeaveBroadcast(t *testing.T) {
	h := New()
	teacher := connect(t, h, "teacher")
	student := connect(t, h, "pc-1")
	teacher.nextEnvelope(t) // join notice

	student.Close()

	env := teacher.nextEnvelope(t)
	if env.Type != "system" {
		t.Fatalf("expected leave system message, got %+v", env)
	}
}
