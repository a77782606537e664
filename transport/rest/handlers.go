package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const maxOpenGamesLimit = 100

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)

	ListGames(w http.ResponseWriter, r *http.Request)
	CreateGame(w http.ResponseWriter, r *http.Request)
}

type gameUseCase interface {
	ListOpenGames(ctx context.Context, limit int) ([]entity.Snapshot, error)
	CreateGame(ctx context.Context) (entity.Snapshot, error)
}

type handlers struct {
	logger      *slog.Logger
	gameUseCase gameUseCase
}

func NewHandlers(logger *slog.Logger, gameUseCase gameUseCase) Handlers {
	return &handlers{
		logger:      logger.With("component", "rest"),
		gameUseCase: gameUseCase,
	}
}

// ListGames - open games, newest first. ?limit= caps the result.
func (that *handlers) ListGames(w http.ResponseWriter, r *http.Request) {
	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}

		limit = min(parsed, maxOpenGamesLimit)
	}

	games, err := that.gameUseCase.ListOpenGames(r.Context(), limit)
	if err != nil {
		that.logger.Error("failed to list open games", "error", err)
		http.Error(w, "Failed to list games", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, http.StatusOK, games)
}

func (that *handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.gameUseCase.CreateGame(r.Context())
	if err != nil {
		that.logger.Error("failed to create game", "error", err)
		http.Error(w, "Failed to create game", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, http.StatusCreated, game)
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
