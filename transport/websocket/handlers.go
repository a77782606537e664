package websocket

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// handleConnect - greets the connection with its id and puts it into a game.
func (that *Server) handleConnect(ctx context.Context, connID, gameID string) {
	log := that.logger.With("method", "handleConnect", "connID", connID)

	that.hub.SendTo(ctx, connID, entity.ConnectedEvent(connID))

	var err error
	if gameID != "" {
		err = that.uGame.ConnectToGame(ctx, connID, gameID)
	} else {
		err = that.uGame.Connect(ctx, connID)
	}

	if err != nil {
		log.Debug("failed to connect to game", "gameID", gameID, "error", err)
	}
}

// handleMessage - dispatches one client message. Malformed ones are answered with an error event.
func (that *Server) handleMessage(ctx context.Context, connID string, data []byte) {
	log := that.logger.With("method", "handleMessage", "connID", connID)

	message, err := decodeMessage(data)
	if err != nil {
		that.reject(ctx, connID, err)
		return
	}

	handler, ok := that.handlers[message.Action]
	if !ok {
		that.reject(ctx, connID, fmt.Errorf("%w: %q", apperror.ErrUnknownAction, message.Action))
		return
	}

	if err = handler(ctx, connID, message); err != nil {
		log.Debug("error processing message", "action", message.Action, "error", err)
	}
}

func (that *Server) handleGameTurn(ctx context.Context, connID string, message *Message) error {
	row, col, err := decodeTurn(message)
	if err != nil {
		that.reject(ctx, connID, err)
		return err
	}

	return that.uGame.MakeTurn(ctx, connID, row, col)
}

func (that *Server) reject(ctx context.Context, connID string, err error) {
	that.logger.Debug("message rejected", "connID", connID, "error", err)
	that.hub.SendTo(ctx, connID, entity.ErrorEvent(apperror.Reason(err)))
}
