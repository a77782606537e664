package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

type Mark string

const (
	EmptyCell Mark = ""
	PlayerX   Mark = "X"
	PlayerO   Mark = "O"
)

const BoardSize = 3

type Result string

const (
	ResultInProgress Result = "in_progress"
	ResultWin        Result = "win"
	ResultTie        Result = "tie"
	ResultAbandoned  Result = "abandoned"
)

type cell struct {
	row, col int
}

// WinCombos - rows top-to-bottom, columns left-to-right, then both diagonals.
var WinCombos = [8][3]cell{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Board is a value type: Place returns a modified copy.
type Board [BoardSize][BoardSize]Mark

// Outcome - result of evaluating a board.
type Outcome struct {
	Result Result
	Winner Mark
}

func (that Mark) IsValid() bool {
	return that == PlayerX || that == PlayerO
}

// Opposite - returns the other player's mark.
func (that Mark) Opposite() Mark {
	if that == PlayerX {
		return PlayerO
	}
	return PlayerX
}

func (that Board) Place(row, col int, mark Mark) (Board, error) {
	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return that, fmt.Errorf("%w: row %d, col %d", apperror.ErrOutOfRange, row, col)
	}

	if !mark.IsValid() {
		return that, fmt.Errorf("%w: %q", apperror.ErrInvalidMark, mark)
	}

	if that[row][col] != EmptyCell {
		return that, apperror.ErrCellOccupied
	}

	that[row][col] = mark

	return that, nil
}

func (that Board) Evaluate() Outcome {
	for _, combo := range WinCombos {
		a, b, c := that.at(combo[0]), that.at(combo[1]), that.at(combo[2])
		if a != EmptyCell && a == b && b == c {
			return Outcome{Result: ResultWin, Winner: a}
		}
	}

	// the game will continue until all the squares are full
	if !that.IsFull() {
		return Outcome{Result: ResultInProgress}
	}

	return Outcome{Result: ResultTie}
}

func (that Board) IsFull() bool {
	for _, row := range that {
		for _, mark := range row {
			if mark == EmptyCell {
				return false
			}
		}
	}

	return true
}

func (that Board) at(c cell) Mark {
	return that[c.row][c.col]
}
