package apperror

import "errors"

// validation errors, reported to the offending connection only.
var (
	ErrGameNotFull   = errors.New("game is not full yet")
	ErrGameFinished  = errors.New("game is already finished")
	ErrNotYourTurn   = errors.New("it's not your turn")
	ErrCellOccupied  = errors.New("cell is already occupied")
	ErrOutOfRange    = errors.New("cell is out of range")
	ErrInvalidMark   = errors.New("invalid mark")
	ErrGameIsFull    = errors.New("game already has two players")
	ErrAlreadyInGame = errors.New("connection is already in a game")
	ErrNotInGame     = errors.New("connection is not in a game")

	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNoJoinableGames   = errors.New("no joinable games")
	ErrGameAlreadyExists = errors.New("game already exists")

	// ErrConflict - the stored game version moved on while the update was prepared.
	ErrConflict = errors.New("concurrent game update")
	ErrStorage  = errors.New("storage failure")
)

var validationErrors = []error{
	ErrGameNotFull,
	ErrGameFinished,
	ErrNotYourTurn,
	ErrCellOccupied,
	ErrOutOfRange,
	ErrInvalidMark,
	ErrGameIsFull,
	ErrAlreadyInGame,
	ErrNotInGame,
	ErrUnknownAction,
	ErrInvalidPayload,
	ErrGameNotFound,
}

// IsValidation - reports whether err is caused by a rejected request rather than a server fault.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// Reason - maps err to the stable reason code sent to clients.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFull):
		return "game_not_full"
	case errors.Is(err, ErrGameFinished):
		return "game_over"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrCellOccupied):
		return "cell_occupied"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrInvalidMark):
		return "invalid_mark"
	case errors.Is(err, ErrGameIsFull):
		return "game_full"
	case errors.Is(err, ErrAlreadyInGame):
		return "already_in_game"
	case errors.Is(err, ErrNotInGame):
		return "not_in_game"
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrGameNotFound):
		return "game_not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal_error"
	}
}
