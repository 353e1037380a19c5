package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

// Handler answers one decoded request. Implementations must be safe for
// concurrent use: every connection runs its own session loop.
type Handler interface {
	Handle(ctx context.Context, req Request) Reply
}

// Server speaks the exchange protocol over persistent websocket
// connections.
type Server struct {
	addr     string
	handler  Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
}

func NewServer(addr string, handler Handler, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Listen serves connections until ctx is cancelled, then releases the
// listening endpoint.
func (s *Server) Listen(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveWS(ctx))

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	s.logger.Info("Exchange server listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("exchange server shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("exchange server: %w", err)
	}
}

func (s *Server) serveWS(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("Failed to upgrade connection", slog.Any("error", err))

			return
		}

		go s.session(ctx, conn)
	}
}

// session reads requests until the peer goes away. A malformed message gets
// an in-band error reply and the connection stays open; a transport error
// ends the loop without touching the rest of the server.
func (s *Server) session(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("Session closed", slog.Any("error", err))

			return
		}

		var reply Reply
		req, err := DecodeRequest(data)
		if err != nil {
			reply = Reply{Status: StatusError, Info: "malformed_message"}
		} else {
			reply = s.handler.Handle(ctx, req)
		}

		out, err := EncodeReply(reply)
		if err != nil {
			s.logger.Warn("Failed to encode reply", slog.Any("error", err))

			return
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			s.logger.Debug("Failed to write reply, closing session", slog.Any("error", err))

			return
		}
	}
}
