package entity

const (
	EventConnected    = "connect"
	EventWaiting      = "game:waiting"
	EventSessionStart = "game:start"
	EventMoveApplied  = "game:turn"
	EventSessionEnded = "game:end"
	EventError        = "error"
)

// Snapshot is the projection of a Game sent to connections.
type Snapshot struct {
	ID      string      `json:"id"`
	Board   Board       `json:"board"`
	Turn    *string     `json:"turn"`
	Result  Result      `json:"result"`
	Winner  Mark        `json:"winner,omitempty"`
	Players SlotPlayers `json:"players"`
}

type SlotPlayers struct {
	Slot1 *SlotPlayer `json:"slot1,omitempty"`
	Slot2 *SlotPlayer `json:"slot2,omitempty"`
}

type SlotPlayer struct {
	ID   string `json:"id"`
	Mark Mark   `json:"mark,omitempty"`
}

type Event struct {
	Action  string       `json:"action"`
	Payload EventPayload `json:"payload"`
}

type EventPayload struct {
	Player *Player   `json:"player,omitempty"`
	Game   *Snapshot `json:"game,omitempty"`
	Error  string    `json:"error,omitempty"`
}

func (that Game) Snapshot() Snapshot {
	snapshot := Snapshot{
		ID:     that.ID,
		Board:  that.Board,
		Result: that.Result,
		Winner: that.Winner,
	}

	if that.Turn != "" {
		turn := that.Turn
		snapshot.Turn = &turn
	}

	if that.Slot1 != "" {
		snapshot.Players.Slot1 = &SlotPlayer{ID: that.Slot1, Mark: that.MarkOf(that.Slot1)}
	}

	if that.Slot2 != "" {
		snapshot.Players.Slot2 = &SlotPlayer{ID: that.Slot2, Mark: that.MarkOf(that.Slot2)}
	}

	return snapshot
}

// GameEvent - wraps a snapshot of game into an event with the given action.
func GameEvent(action string, game Game) Event {
	snapshot := game.Snapshot()
	return Event{Action: action, Payload: EventPayload{Game: &snapshot}}
}

func ErrorEvent(reason string) Event {
	return Event{Action: EventError, Payload: EventPayload{Error: reason}}
}

func ConnectedEvent(connID string) Event {
	return Event{Action: EventConnected, Payload: EventPayload{Player: &Player{ID: connID}}}
}
