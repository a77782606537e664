package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// Hub delivers events to the connections attached to this process.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[string]*client),
	}
}

func (that *Hub) SendTo(ctx context.Context, connID string, event entity.Event) {
	that.Deliver(ctx, []string{connID}, event)
}

func (that *Hub) BroadcastToGame(ctx context.Context, game entity.Game, event entity.Event) {
	that.Deliver(ctx, game.Players(), event)
}

// Deliver - enqueues event for every listed connection held here. Unknown ids are skipped,
// a connection with a full buffer is closed.
func (that *Hub) Deliver(_ context.Context, connIDs []string, event entity.Event) {
	log := that.logger.With("method", "Deliver", "action", event.Action)

	data, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to marshal event", "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, connID := range connIDs {
		c, ok := that.clients[connID]
		if !ok {
			continue
		}

		if !c.enqueue(data) {
			log.Warn("dropping slow connection", "connID", connID)
			c.close()
		}
	}
}

// register - reports false once the hub is closed.
func (that *Hub) register(c *client) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	that.clients[c.id] = c

	return true
}

func (that *Hub) unregister(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.clients, connID)
}

// CloseAll - closes every attached connection and refuses new ones.
func (that *Hub) CloseAll() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true

	for _, c := range that.clients {
		c.close()
	}
}

// Len - number of attached connections.
func (that *Hub) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients)
}
