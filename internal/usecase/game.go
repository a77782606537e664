package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const defaultOpenGamesLimit = 50

// GameUseCase is the entry point for connection events.
// Rejected requests are answered with an error event to the requesting connection only.
type GameUseCase interface {
	Connect(ctx context.Context, connID string) error
	ConnectToGame(ctx context.Context, connID, gameID string) error
	MakeTurn(ctx context.Context, connID string, row, col int) error
	Disconnect(ctx context.Context, connID string)

	ListOpenGames(ctx context.Context, limit int) ([]entity.Snapshot, error)
	CreateGame(ctx context.Context) (entity.Snapshot, error)
}

type matchmaker interface {
	Join(ctx context.Context, connID string) (entity.Game, error)
	JoinByID(ctx context.Context, gameID, connID string) (entity.Game, error)
	CreateGame(ctx context.Context) (entity.Game, error)
}

type gamePlayService interface {
	MakeTurn(ctx context.Context, connID string, row, col int) (entity.Game, error)
	Leave(ctx context.Context, connID string) (entity.Game, error)
}

type gameService interface {
	ListOpenGames(ctx context.Context, limit int) ([]entity.Game, error)
}

type sender interface {
	SendTo(ctx context.Context, connID string, event entity.Event)
}

type gameUseCase struct {
	logger *slog.Logger

	matchmaker      matchmaker
	gamePlayService gamePlayService
	gameService     gameService
	sender          sender
}

func NewGameUseCase(
	logger *slog.Logger,
	matchmaker matchmaker,
	gamePlayService gamePlayService,
	gameService gameService,
	sender sender,
) GameUseCase {
	return &gameUseCase{
		logger:          logger.With("component", "gameUseCase"),
		matchmaker:      matchmaker,
		gamePlayService: gamePlayService,
		gameService:     gameService,
		sender:          sender,
	}
}

func (that *gameUseCase) Connect(ctx context.Context, connID string) error {
	if _, err := that.matchmaker.Join(ctx, connID); err != nil {
		return that.reject(ctx, "Connect", connID, fmt.Errorf("failed to join game: %w", err))
	}

	return nil
}

func (that *gameUseCase) ConnectToGame(ctx context.Context, connID, gameID string) error {
	if _, err := that.matchmaker.JoinByID(ctx, gameID, connID); err != nil {
		return that.reject(ctx, "ConnectToGame", connID, fmt.Errorf("failed to connect to game: %w", err))
	}

	return nil
}

func (that *gameUseCase) MakeTurn(ctx context.Context, connID string, row, col int) error {
	if _, err := that.gamePlayService.MakeTurn(ctx, connID, row, col); err != nil {
		return that.reject(ctx, "MakeTurn", connID, fmt.Errorf("failed to make turn: %w", err))
	}

	return nil
}

func (that *gameUseCase) Disconnect(ctx context.Context, connID string) {
	log := that.logger.With("method", "Disconnect", "connID", connID)

	if _, err := that.gamePlayService.Leave(ctx, connID); err != nil {
		log.Error("failed to leave game", "error", err)
	}
}

func (that *gameUseCase) ListOpenGames(ctx context.Context, limit int) ([]entity.Snapshot, error) {
	if limit <= 0 {
		limit = defaultOpenGamesLimit
	}

	games, err := that.gameService.ListOpenGames(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open games: %w", err)
	}

	snapshots := make([]entity.Snapshot, 0, len(games))
	for _, game := range games {
		snapshots = append(snapshots, game.Snapshot())
	}

	return snapshots, nil
}

func (that *gameUseCase) CreateGame(ctx context.Context) (entity.Snapshot, error) {
	game, err := that.matchmaker.CreateGame(ctx)
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to create game: %w", err)
	}

	return game.Snapshot(), nil
}

// reject - reports err to connID and logs it at a level matching its cause.
func (that *gameUseCase) reject(ctx context.Context, method, connID string, err error) error {
	log := that.logger.With("method", method, "connID", connID)

	reason := apperror.Reason(err)
	that.sender.SendTo(ctx, connID, entity.ErrorEvent(reason))

	switch {
	case apperror.IsValidation(err):
		log.Debug("request rejected", "reason", reason, "error", err)
	case errors.Is(err, apperror.ErrConflict):
		log.Warn("request lost a concurrent update", "error", err)
	default:
		log.Error("request failed", "error", err)
	}

	return err
}
