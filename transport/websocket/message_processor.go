package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

const actionGameTurn = "game:turn"

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TurnPayload - coordinates of a move, both required.
type TurnPayload struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

func decodeMessage(data []byte) (*Message, error) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}

	return &message, nil
}

func decodeTurn(message *Message) (row, col int, err error) {
	var payload TurnPayload
	if err = json.Unmarshal(message.Payload, &payload); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}

	if payload.Row == nil || payload.Col == nil {
		return 0, 0, fmt.Errorf("%w: row and col are required", apperror.ErrInvalidPayload)
	}

	return *payload.Row, *payload.Col, nil
}
