package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

type uGame interface {
	Connect(ctx context.Context, connID string) error
	ConnectToGame(ctx context.Context, connID, gameID string) error
	MakeTurn(ctx context.Context, connID string, row, col int) error
	Disconnect(ctx context.Context, connID string)
}

type Server struct {
	logger   *slog.Logger
	hub      *Hub
	uGame    uGame
	upgrader websocket.Upgrader
	conns    sync.WaitGroup

	handlers map[string]func(ctx context.Context, connID string, message *Message) error
}

func New(logger *slog.Logger, hub *Hub, uGame uGame) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		hub:    hub,
		uGame:  uGame,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, string, *Message) error),
	}

	server.handlers[actionGameTurn] = server.handleGameTurn

	return server
}

// Start - starts WebSocket server and shuts it down when ctx is done.
// Returns after every open connection has been disconnected.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(ctx),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	that.logger.Info("websocket server started", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	<-stopped
	that.Close()

	that.logger.Info("websocket server stopped")

	return nil
}

// Close - closes hijacked connections, which http.Server.Shutdown leaves open,
// and waits until their disconnects are processed.
func (that *Server) Close() {
	that.hub.CloseAll()
	that.conns.Wait()
}

// Handler - routes /ws. Connection events run with ctx.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// upgradeToWebSocket - upgrades the connection and serves it until it closes.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	that.conns.Add(1)
	defer that.conns.Done()

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn)
	log = log.With("connID", c.id)

	if !that.hub.register(c) {
		log.Info("server is shutting down, connection refused")
		_ = conn.Close()
		return
	}

	go c.writePump()

	log.Info("WebSocket connection established")

	that.handleConnect(ctx, c.id, req.URL.Query().Get("game"))

	err = c.readPump(func(data []byte) {
		that.handleMessage(ctx, c.id, data)
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug("connection closed", "error", err)
	}

	c.close()
	that.hub.unregister(c.id)

	that.uGame.Disconnect(context.WithoutCancel(ctx), c.id)

	log.Info("WebSocket connection closed")
}
