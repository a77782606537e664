package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// updateRetries - how many times a mutation is replayed after losing a version race.
const updateRetries = 1

type GameService interface {
	// NewGame builds an empty game with a fresh id without storing it.
	NewGame() entity.Game
	CreateGame(ctx context.Context) (entity.Game, error)
	InsertGame(ctx context.Context, game entity.Game) error

	GetGameByID(ctx context.Context, id string) (entity.Game, error)
	FindJoinableGame(ctx context.Context) (entity.Game, error)
	ListOpenGames(ctx context.Context, limit int) ([]entity.Game, error)

	// UpdateGame loads the game, applies mutate and saves the result.
	// A version conflict replays the mutation once against a fresh copy.
	UpdateGame(ctx context.Context, id string, mutate func(game entity.Game) (entity.Game, error)) (entity.Game, error)
}

type gameRepo interface {
	Create(ctx context.Context, game entity.Game) error
	Save(ctx context.Context, game entity.Game) error
	GetByID(ctx context.Context, id string) (entity.Game, error)

	FindJoinable(ctx context.Context) (entity.Game, error)
	ListJoinable(ctx context.Context, limit int) ([]entity.Game, error)
}

type gameService struct {
	gameRepo gameRepo

	newID func() string
	now   func() time.Time
}

func NewGameService(gameRepo gameRepo) GameService {
	return &gameService{
		gameRepo: gameRepo,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (that *gameService) NewGame() entity.Game {
	return entity.NewGame(that.newID(), that.now())
}

func (that *gameService) CreateGame(ctx context.Context) (entity.Game, error) {
	game := that.NewGame()

	if err := that.InsertGame(ctx, game); err != nil {
		return entity.Game{}, err
	}

	return game, nil
}

func (that *gameService) InsertGame(ctx context.Context, game entity.Game) error {
	if err := that.gameRepo.Create(ctx, game); err != nil {
		return fmt.Errorf("failed to create game: %w", storageError(err))
	}

	return nil
}

func (that *gameService) GetGameByID(ctx context.Context, id string) (entity.Game, error) {
	game, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to retrieve game from storage: %w", storageError(err))
	}

	return game, nil
}

func (that *gameService) FindJoinableGame(ctx context.Context) (entity.Game, error) {
	game, err := that.gameRepo.FindJoinable(ctx)
	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to find joinable game: %w", storageError(err))
	}

	return game, nil
}

func (that *gameService) ListOpenGames(ctx context.Context, limit int) ([]entity.Game, error) {
	games, err := that.gameRepo.ListJoinable(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open games: %w", storageError(err))
	}

	return games, nil
}

func (that *gameService) UpdateGame(
	ctx context.Context,
	id string,
	mutate func(game entity.Game) (entity.Game, error),
) (entity.Game, error) {
	for attempt := 0; ; attempt++ {
		game, err := that.GetGameByID(ctx, id)
		if err != nil {
			return entity.Game{}, err
		}

		updated, err := mutate(game)
		if err != nil {
			return game, err
		}

		if updated.Version == game.Version {
			return updated, nil
		}

		err = that.gameRepo.Save(ctx, updated)
		if err == nil {
			return updated, nil
		}

		if !errors.Is(err, apperror.ErrConflict) || attempt >= updateRetries {
			return entity.Game{}, fmt.Errorf("failed to update game: %w", storageError(err))
		}
	}
}

// storageError - tags failures the caller cannot act on with ErrStorage.
func storageError(err error) error {
	for _, known := range []error{
		apperror.ErrGameNotFound,
		apperror.ErrGameAlreadyExists,
		apperror.ErrNoJoinableGames,
		apperror.ErrPlayerNotFound,
		apperror.ErrConflict,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	return fmt.Errorf("%w: %w", apperror.ErrStorage, err)
}
