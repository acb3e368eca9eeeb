package bridge

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scorebridge/scorebridge/internal/config"
	"github.com/scorebridge/scorebridge/internal/engine"
	"github.com/scorebridge/scorebridge/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, numClasses int) (*httptest.Server, *telemetry.Recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.NumClasses = numClasses
	cfg.ReadTimeout = 5 * time.Second

	recorder := telemetry.NewRecorder(testLogger())
	provider := engine.NewStubProvider(testLogger(), numClasses)
	srv := httptest.NewServer(NewServer(cfg, provider, recorder, testLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv, recorder
}

func dialSession(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + SessionPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp.Header.Get("X-Bridge") == "" {
		t.Fatal("expected X-Bridge header in handshake response")
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRecord(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func TestSessionOverWebSocket(t *testing.T) {
	srv, recorder := newTestServer(t, 2)
	conn := dialSession(t, srv)

	msgs := []string{
		"-1 1 0.9 0.1",
		"-2 0",
		"-3",
		"over",
	}
	for _, msg := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}

	want := []string{"-1 0", "-2 -1 0", "-3"}
	for _, record := range want {
		if got := readRecord(t, conn); got != record {
			t.Fatalf("expected record %q, got %q", record, got)
		}
	}

	// The server closes the connection cleanly after the handshake.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal closure, got %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for recorder.Snapshot().ActiveSessions != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session did not close")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap := recorder.Snapshot(); snap.TotalSessions != 1 || snap.TotalFinals != 1 {
		t.Fatalf("unexpected telemetry: %+v", snap)
	}
}

func TestSessionTokensSplitAcrossMessages(t *testing.T) {
	srv, _ := newTestServer(t, 2)
	conn := dialSession(t, srv)

	// A chunk may span several messages; the token stream is what matters.
	msgs := []string{"-1", "1", "0.9", "0.1", "-2 0", "-3", "over"}
	for _, msg := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}

	want := []string{"-1 0", "-2 -1 0", "-3"}
	for _, record := range want {
		if got := readRecord(t, conn); got != record {
			t.Fatalf("expected record %q, got %q", record, got)
		}
	}
}

func TestUpgradeRequired(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	resp, err := srv.Client().Get(srv.URL + SessionPath)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == 101 {
		t.Fatal("expected plain GET to be rejected")
	}
}
