package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

type GamePlayService interface {
	MakeTurn(ctx context.Context, connID string, row, col int) (entity.Game, error)

	// Leave abandons the unfinished game of connID and drops its binding. Unbound connections are a no-op.
	Leave(ctx context.Context, connID string) (entity.Game, error)
}

type gamePlayService struct {
	logger *slog.Logger
	locks  *SessionLocks

	gameService   GameService
	playerService PlayerService
	broadcaster   broadcaster
}

func NewGamePlayService(
	logger *slog.Logger,
	locks *SessionLocks,
	gameService GameService,
	playerService PlayerService,
	broadcaster broadcaster,
) GamePlayService {
	return &gamePlayService{
		logger:        logger.With("component", "gameplay"),
		locks:         locks,
		gameService:   gameService,
		playerService: playerService,
		broadcaster:   broadcaster,
	}
}

func (that *gamePlayService) MakeTurn(ctx context.Context, connID string, row, col int) (entity.Game, error) {
	player, err := that.playerService.GetByID(ctx, connID)
	if errors.Is(err, apperror.ErrPlayerNotFound) {
		return entity.Game{}, apperror.ErrNotInGame
	}

	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to get player by id: %w", err)
	}

	var moved entity.Game

	err = that.locks.WithLock(player.GameID, func() error {
		game, err := that.gameService.UpdateGame(ctx, player.GameID, func(game entity.Game) (entity.Game, error) {
			if !game.HasPlayer(connID) {
				return game, apperror.ErrNotInGame
			}

			return game.ApplyMove(connID, row, col)
		})
		if err != nil {
			return err
		}

		moved = game

		if game.IsFinished() {
			that.logger.Info("game finished", "gameID", game.ID, "result", game.Result, "winner", game.Winner)
			that.broadcaster.BroadcastToGame(ctx, game, entity.GameEvent(entity.EventSessionEnded, game))
			return nil
		}

		that.broadcaster.BroadcastToGame(ctx, game, entity.GameEvent(entity.EventMoveApplied, game))

		return nil
	})
	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to make turn: %w", err)
	}

	return moved, nil
}

func (that *gamePlayService) Leave(ctx context.Context, connID string) (entity.Game, error) {
	log := that.logger.With("method", "Leave", "connID", connID)

	player, err := that.playerService.GetByID(ctx, connID)
	if errors.Is(err, apperror.ErrPlayerNotFound) {
		return entity.Game{}, nil
	}

	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to get player by id: %w", err)
	}

	var left entity.Game

	err = that.locks.WithLock(player.GameID, func() error {
		abandoned := false

		game, err := that.gameService.UpdateGame(ctx, player.GameID, func(game entity.Game) (entity.Game, error) {
			next, ok := game.Abandon(connID)
			abandoned = ok
			return next, nil
		})
		if errors.Is(err, apperror.ErrGameNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		left = game

		if !abandoned {
			return nil
		}

		log.Info("game abandoned", "gameID", game.ID)

		if opponent := game.Opponent(connID); opponent != "" {
			that.broadcaster.SendTo(ctx, opponent, entity.GameEvent(entity.EventSessionEnded, game))
		}

		return nil
	})
	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to leave game: %w", err)
	}

	if err = that.playerService.Unbind(ctx, connID); err != nil && !errors.Is(err, apperror.ErrPlayerNotFound) {
		log.Error("failed to unbind player", "error", err)
	}

	return left, nil
}
