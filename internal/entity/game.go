package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

type Slot int

const (
	NoSlot Slot = iota
	FirstSlot
	SecondSlot
)

// Game is one match from creation to a terminal result.
// Every mutating method returns a new value with Version incremented and never touches the receiver,
// so a rejected operation leaves the caller's copy exactly as it was.
type Game struct {
	ID        string    `json:"id"`
	Board     Board     `json:"board"`
	Slot1     string    `json:"slot1,omitempty"`
	Slot2     string    `json:"slot2,omitempty"`
	XSlot     Slot      `json:"x_slot,omitempty"`
	Turn      string    `json:"turn,omitempty"`
	Result    Result    `json:"result"`
	Winner    Mark      `json:"winner,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

func NewGame(id string, createdAt time.Time) Game {
	return Game{
		ID:        id,
		Result:    ResultInProgress,
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}
}

func (that Game) IsFull() bool {
	return that.Slot1 != "" && that.Slot2 != ""
}

func (that Game) IsFinished() bool {
	return that.Result != ResultInProgress
}

// IsJoinable - not terminal and at least one slot is still open.
func (that Game) IsJoinable() bool {
	return !that.IsFinished() && !that.IsFull()
}

func (that Game) HasPlayer(connID string) bool {
	return that.SlotOf(connID) != NoSlot
}

func (that Game) SlotOf(connID string) Slot {
	switch {
	case connID == "":
		return NoSlot
	case connID == that.Slot1:
		return FirstSlot
	case connID == that.Slot2:
		return SecondSlot
	default:
		return NoSlot
	}
}

func (that Game) PlayerIn(slot Slot) string {
	switch slot {
	case FirstSlot:
		return that.Slot1
	case SecondSlot:
		return that.Slot2
	default:
		return ""
	}
}

// Players - bound connection ids in slot order.
func (that Game) Players() []string {
	players := make([]string, 0, 2)
	if that.Slot1 != "" {
		players = append(players, that.Slot1)
	}
	if that.Slot2 != "" {
		players = append(players, that.Slot2)
	}

	return players
}

func (that Game) Opponent(connID string) string {
	switch that.SlotOf(connID) {
	case FirstSlot:
		return that.Slot2
	case SecondSlot:
		return that.Slot1
	default:
		return ""
	}
}

// MarkOf - EmptyCell until both slots are filled.
func (that Game) MarkOf(connID string) Mark {
	slot := that.SlotOf(connID)
	if slot == NoSlot || that.XSlot == NoSlot {
		return EmptyCell
	}

	if slot == that.XSlot {
		return PlayerX
	}

	return PlayerO
}

// Join - binds connID to the first open slot. Marks are fixed by policy when the second slot fills.
func (that Game) Join(connID string, policy MarkPolicy) (Game, error) {
	switch {
	case that.IsFinished():
		return that, apperror.ErrGameFinished
	case that.HasPlayer(connID):
		return that, apperror.ErrAlreadyInGame
	case that.IsFull():
		return that, fmt.Errorf("%w: game id %s", apperror.ErrGameIsFull, that.ID)
	}

	if that.Slot1 == "" {
		that.Slot1 = connID
	} else {
		that.Slot2 = connID
	}

	if that.IsFull() {
		that.XSlot = FirstSlot
		if policy != nil && policy.AssignX(that) == SecondSlot {
			that.XSlot = SecondSlot
		}
		that.Turn = that.PlayerIn(that.XSlot)
	}

	that.Version++

	return that, nil
}

func (that Game) ApplyMove(connID string, row, col int) (Game, error) {
	if !that.IsFull() {
		return that, apperror.ErrGameNotFull
	}

	if that.IsFinished() {
		return that, apperror.ErrGameFinished
	}

	if connID != that.Turn {
		return that, apperror.ErrNotYourTurn
	}

	board, err := that.Board.Place(row, col, that.MarkOf(connID))
	if err != nil {
		return that, err
	}

	that.Board = board

	switch outcome := board.Evaluate(); outcome.Result {
	case ResultWin:
		that.Result = ResultWin
		that.Winner = outcome.Winner
		that.Turn = ""
	case ResultTie:
		that.Result = ResultTie
		that.Turn = ""
	default:
		that.Turn = that.Opponent(connID)
	}

	that.Version++

	return that, nil
}

// Abandon - reports false when the game is already terminal or connID is not a player.
func (that Game) Abandon(connID string) (Game, bool) {
	if that.IsFinished() || !that.HasPlayer(connID) {
		return that, false
	}

	that.Result = ResultAbandoned
	that.Turn = ""
	that.Version++

	return that, true
}
