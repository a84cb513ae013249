package relay

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":  nil,
		"small":  []byte{0x01, 0x02, 0x03},
		"jpeg":   append([]byte{0xff, 0xd8, 0xff}, bytes.Repeat([]byte{0xab}, 4096)...),
		"zeroes": make([]byte, 64),
	}

	hostnames := []string{
		"a",
		"pc-017",
		"хост-кириллица",
		strings.Repeat("x", 255),
	}

	for _, hn := range hostnames {
		for name, payload := range payloads {
			encoded, err := EncodeFrame(hn, payload)
			if err != nil {
				t.Fatalf("EncodeFrame(%q, %s) failed: %v", hn, name, err)
			}

			msg, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed for %q/%s: %v", hn, name, err)
			}
			frame, ok := msg.(Frame)
			if !ok {
				t.Fatalf("Decode returned %T, want Frame", msg)
			}
			if frame.Hostname != hn {
				t.Errorf("hostname round trip: got %q, want %q", frame.Hostname, hn)
			}
			if !bytes.Equal(frame.Payload, payload) {
				t.Errorf("payload round trip mismatch for %q/%s", hn, name)
			}
		}
	}
}

func TestEncodeFrameRejectsBadHostnames(t *testing.T) {
	if _, err := EncodeFrame("", []byte("payload")); !errors.Is(err, ErrEmptyHostname) {
		t.Fatalf("empty hostname: got %v, want ErrEmptyHostname", err)
	}
	if _, err := EncodeFrame(strings.Repeat("x", 256), nil); !errors.Is(err, ErrHostnameTooLong) {
		t.Fatalf("256-byte hostname: got %v, want ErrHostnameTooLong", err)
	}
}

func TestEncodeEventRoundTrip(t *testing.T) {
	encoded := EncodeEvent(EventStudentConnected, "pc-042")
	if encoded[0] != eventSentinel {
		t.Fatalf("event must start with sentinel byte, got 0x%02x", encoded[0])
	}

	msg, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ev, ok := msg.(Event)
	if !ok {
		t.Fatalf("Decode returned %T, want Event", msg)
	}
	if ev.Type != EventStudentConnected || ev.Hostname != "pc-042" {
		t.Errorf("got %+v, want {student_connected pc-042}", ev)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		msg  []byte
	}{
		{"empty message", nil},
		{"truncated hostname", []byte{10, 'a', 'b'}},
		{"sentinel with garbage", []byte{0, 'n', 'o', 't', 'j', 's', 'o', 'n'}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.msg); err == nil {
				t.Fatalf("expected error for %v", tc.msg)
			}
		})
	}
}

func TestDecodeHostnameExactlyFillsMessage(t *testing.T) {
	// A frame whose payload is empty must decode, not report truncation.
	encoded, err := EncodeFrame("host", nil)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	msg, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	frame := msg.(Frame)
	if frame.Hostname != "host" || len(frame.Payload) != 0 {
		t.Fatalf("got %+v, want empty-payload frame for \"host\"", frame)
	}
}
