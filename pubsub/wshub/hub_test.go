package wshub

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client count never reached %d", n)
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "")
	defer conn.Close()
	waitForClients(t, h, 1)

	if err := h.Send("rig1/spectrum", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	topic, payload, err := DecodeEnvelope(msg)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if topic != "rig1/spectrum" {
		t.Fatalf("topic = %q", topic)
	}
	if len(payload) != 3 || payload[0] != 1 {
		t.Fatalf("payload = %v", payload)
	}
}

func TestHubFiltersByTopic(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "?topics=audio")
	defer conn.Close()
	waitForClients(t, h, 1)

	if err := h.Send("rig1/spectrum", []byte{9}); err != nil {
		t.Fatalf("Send spectrum: %v", err)
	}
	if err := h.Send("rig1/audio", []byte{7}); err != nil {
		t.Fatalf("Send audio: %v", err)
	}

	// The first (and only) message must be the audio frame.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	topic, _, err := DecodeEnvelope(msg)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if topic != "rig1/audio" {
		t.Fatalf("topic = %q, want rig1/audio", topic)
	}
}

func TestHubSurvivesDisconnect(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "")
	waitForClients(t, h, 1)
	conn.Close()
	waitForClients(t, h, 0)

	// Broadcasting with no clients is a no-op, not an error.
	if err := h.Send("rig1/status", []byte{0}); err != nil {
		t.Fatalf("Send after disconnect: %v", err)
	}
}

func TestEnvelopeRejectsBadTopics(t *testing.T) {
	if _, err := EncodeEnvelope("", nil); err == nil {
		t.Fatal("empty topic accepted")
	}
	if _, err := EncodeEnvelope(strings.Repeat("x", 256), nil); err == nil {
		t.Fatal("oversize topic accepted")
	}
	if _, _, err := DecodeEnvelope([]byte{10, 'a'}); err == nil {
		t.Fatal("truncated envelope accepted")
	}
}
