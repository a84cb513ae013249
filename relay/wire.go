package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire format for relay→viewer binary messages. Every message starts with a
// single length byte N. N > 0 means the next N bytes are a UTF-8 hostname and
// the rest is an opaque frame payload. N == 0 is the event sentinel: the rest
// of the message is a JSON-encoded lifecycle event and the hostname travels
// inside the JSON body only.
const eventSentinel = 0x00

// maxHostnameLen is the largest hostname the one-byte length prefix can carry.
const maxHostnameLen = 255

var (
	ErrEmptyHostname   = errors.New("relay: hostname must not be empty")
	ErrHostnameTooLong = errors.New("relay: hostname exceeds 255 bytes")
	ErrShortMessage    = errors.New("relay: message too short to decode")
)

// Message is either a Frame or an Event.
type Message interface {
	tagged()
}

// Frame is one tagged screen frame for a single student.
type Frame struct {
	Hostname string
	Payload  []byte
}

func (Frame) tagged() {}

// Event is a lifecycle notification delivered on the same channel as frames.
type Event struct {
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
}

func (Event) tagged() {}

// Lifecycle event types.
const (
	EventStudentConnected    = "student_connected"
	EventStudentDisconnected = "student_disconnected"
)

// EncodeFrame builds a tagged binary frame: [1 byte len][hostname][payload].
// The hostname must be 1 to 255 bytes; a zero-length hostname would collide
// with the event sentinel.
func EncodeFrame(hostname string, payload []byte) ([]byte, error) {
	hn := []byte(hostname)
	if len(hn) == 0 {
		return nil, ErrEmptyHostname
	}
	if len(hn) > maxHostnameLen {
		return nil, ErrHostnameTooLong
	}
	msg := make([]byte, 0, 1+len(hn)+len(payload))
	msg = append(msg, byte(len(hn)))
	msg = append(msg, hn...)
	msg = append(msg, payload...)
	return msg, nil
}

// EncodeEvent builds a tagged lifecycle event: [0x00][JSON bytes].
func EncodeEvent(eventType, hostname string) []byte {
	body, _ := json.Marshal(Event{Type: eventType, Hostname: hostname})
	msg := make([]byte, 0, 1+len(body))
	msg = append(msg, eventSentinel)
	msg = append(msg, body...)
	return msg
}

// Decode is the exact inverse of EncodeFrame / EncodeEvent. It branches on
// the first byte: the event sentinel yields an Event, anything else a Frame.
func Decode(msg []byte) (Message, error) {
	if len(msg) < 1 {
		return nil, ErrShortMessage
	}
	n := int(msg[0])
	if n == eventSentinel {
		var ev Event
		if err := json.Unmarshal(msg[1:], &ev); err != nil {
			return nil, fmt.Errorf("relay: decode event: %w", err)
		}
		return ev, nil
	}
	if len(msg) < 1+n {
		return nil, ErrShortMessage
	}
	return Frame{
		Hostname: string(msg[1 : 1+n]),
		Payload:  msg[1+n:],
	}, nil
}
