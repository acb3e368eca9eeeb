// Package bridge serves decode sessions over WebSocket: each connection
// carries one score-stream session, with input tokens arriving in messages
// and result records sent back one message per record.
package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/scorebridge/scorebridge/internal/bridgeinfo"
	"github.com/scorebridge/scorebridge/internal/config"
	"github.com/scorebridge/scorebridge/internal/engine"
	"github.com/scorebridge/scorebridge/internal/session"
	"github.com/scorebridge/scorebridge/internal/telemetry"
)

// SessionPath is the WebSocket endpoint serving decode sessions.
const SessionPath = "/v1/session"

// Server accepts WebSocket connections and runs one session loop per
// connection against a shared engine provider.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	provider engine.Provider
	metrics  *telemetry.Recorder
	upgrader websocket.Upgrader
}

// NewServer constructs a Server.
func NewServer(cfg config.Config, provider engine.Provider, recorder *telemetry.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		log:      logger.With("component", "bridge"),
		provider: provider,
		metrics:  recorder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
		},
	}
}

// Handler returns the HTTP handler exposing the session endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SessionPath, s.handleSession)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutdown requested, stopping bridge server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("graceful shutdown failed, closing", "error", err)
			srv.Close()
		}
	}()

	s.log.Info("bridge listening", "addr", s.cfg.ListenAddr, "path", SessionPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	header.Set("X-Bridge", bridgeinfo.UserAgent())
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	connID := xid.New().String()
	log := s.log.With("conn_id", connID, "remote", r.RemoteAddr)
	log.Info("connection opened")

	// Incoming messages become the session's token stream; the pipe closes
	// when the peer goes away, which the channel treats as silence. Closing
	// the read side on the way out unblocks the feeder goroutine when the
	// session ended with input still in flight.
	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		defer pw.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
				continue
			}
			if _, err := pw.Write(append(data, ' ')); err != nil {
				return
			}
		}
	}()

	loop, err := session.New(s.cfg, pr, &connWriter{conn: conn}, s.provider, s.metrics, log)
	if err != nil {
		log.Error("session setup failed", "error", err)
		return
	}

	if err := loop.Run(r.Context()); err != nil {
		log.Error("session ended with error", "error", err)
		return
	}
	log.Info("connection closed cleanly")

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session complete")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// connWriter adapts a WebSocket connection to the io.Writer the emitter
// flushes result records into; each flush becomes one text message.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
