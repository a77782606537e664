package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const DefaultChannel = "tictactoe:events"

// envelope is what travels over the channel.
type envelope struct {
	Targets []string     `json:"targets"`
	Event   entity.Event `json:"event"`
}

type deliverer interface {
	Deliver(ctx context.Context, connIDs []string, event entity.Event)
}

// Bus fans events out to every server instance subscribed to the channel.
// Each instance delivers only to the connections it holds.
type Bus struct {
	logger  *slog.Logger
	client  *redis.Client
	channel string
}

func NewBus(logger *slog.Logger, client *redis.Client, channel string) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}

	return &Bus{
		logger:  logger.With("component", "bus", "channel", channel),
		client:  client,
		channel: channel,
	}
}

func (that *Bus) SendTo(ctx context.Context, connID string, event entity.Event) {
	that.publish(ctx, []string{connID}, event)
}

func (that *Bus) BroadcastToGame(ctx context.Context, game entity.Game, event entity.Event) {
	that.publish(ctx, game.Players(), event)
}

// Publish - one message per call; calls made in sequence arrive in sequence.
func (that *Bus) Publish(ctx context.Context, connIDs []string, event entity.Event) error {
	raw, err := json.Marshal(envelope{Targets: connIDs, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, that.channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (that *Bus) publish(ctx context.Context, connIDs []string, event entity.Event) {
	if len(connIDs) == 0 {
		return
	}

	if err := that.Publish(ctx, connIDs, event); err != nil {
		that.logger.Error("event lost", "action", event.Action, "error", err)
	}
}

// Start - subscribes and forwards events to local until ctx is done.
func (that *Bus) Start(ctx context.Context, local deliverer) error {
	log := that.logger.With("method", "Start")

	sub := that.client.Subscribe(ctx, that.channel)
	defer sub.Close()

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	log.Info("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn("bad event payload", "error", err)
				continue
			}

			local.Deliver(ctx, env.Targets, env.Event)
		}
	}
}
