package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const defaultJoinAttempts = 3

type broadcaster interface {
	SendTo(ctx context.Context, connID string, event entity.Event)
	BroadcastToGame(ctx context.Context, game entity.Game, event entity.Event)
}

type Matchmaker interface {
	// Join puts connID into the newest open game or a new one.
	Join(ctx context.Context, connID string) (entity.Game, error)
	JoinByID(ctx context.Context, gameID, connID string) (entity.Game, error)
	CreateGame(ctx context.Context) (entity.Game, error)
}

type MatchmakerOptions struct {
	Policy entity.MarkPolicy

	// MaxAttempts - open games tried before falling back to a new one.
	MaxAttempts int
}

type matchmaker struct {
	logger *slog.Logger

	// mu keeps one search-and-join in flight per process.
	mu    sync.Mutex
	locks *SessionLocks

	gameService   GameService
	playerService PlayerService
	broadcaster   broadcaster

	policy      entity.MarkPolicy
	maxAttempts int
}

func NewMatchmaker(
	logger *slog.Logger,
	locks *SessionLocks,
	gameService GameService,
	playerService PlayerService,
	broadcaster broadcaster,
	opts MatchmakerOptions,
) Matchmaker {
	if opts.Policy == nil {
		opts.Policy = entity.FirstJoinedPolicy
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultJoinAttempts
	}

	return &matchmaker{
		logger:        logger.With("component", "matchmaker"),
		locks:         locks,
		gameService:   gameService,
		playerService: playerService,
		broadcaster:   broadcaster,
		policy:        opts.Policy,
		maxAttempts:   opts.MaxAttempts,
	}
}

func (that *matchmaker) Join(ctx context.Context, connID string) (entity.Game, error) {
	log := that.logger.With("method", "Join", "connID", connID)

	if err := that.ensureUnbound(ctx, connID); err != nil {
		return entity.Game{}, err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	for attempt := range that.maxAttempts {
		open, err := that.gameService.FindJoinableGame(ctx)
		if errors.Is(err, apperror.ErrNoJoinableGames) {
			break
		}

		if err != nil {
			return entity.Game{}, err
		}

		game, err := that.joinGame(ctx, open.ID, connID)
		if err == nil {
			return game, nil
		}

		if !lostRace(err) {
			return entity.Game{}, err
		}

		log.Debug("open game was taken, retrying", "gameID", open.ID, "attempt", attempt, "error", err)
	}

	return that.createAndJoin(ctx, connID)
}

func (that *matchmaker) JoinByID(ctx context.Context, gameID, connID string) (entity.Game, error) {
	if err := that.ensureUnbound(ctx, connID); err != nil {
		return entity.Game{}, err
	}

	game, err := that.joinGame(ctx, gameID, connID)
	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to join game %s: %w", gameID, err)
	}

	return game, nil
}

func (that *matchmaker) CreateGame(ctx context.Context) (entity.Game, error) {
	game, err := that.gameService.CreateGame(ctx)
	if err != nil {
		return entity.Game{}, err
	}

	that.logger.Info("game created", "gameID", game.ID)

	return game, nil
}

// joinGame - joins an existing game, binds connID and notifies the players, all under the game's lock.
func (that *matchmaker) joinGame(ctx context.Context, gameID, connID string) (entity.Game, error) {
	var joined entity.Game

	err := that.locks.WithLock(gameID, func() error {
		game, err := that.gameService.UpdateGame(ctx, gameID, func(game entity.Game) (entity.Game, error) {
			return game.Join(connID, that.policy)
		})
		if err != nil {
			return err
		}

		if err = that.bind(ctx, connID, game); err != nil {
			return err
		}

		joined = game
		that.announce(ctx, connID, joined)

		return nil
	})

	return joined, err
}

func (that *matchmaker) createAndJoin(ctx context.Context, connID string) (entity.Game, error) {
	game, err := that.gameService.NewGame().Join(connID, that.policy)
	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to join new game: %w", err)
	}

	err = that.locks.WithLock(game.ID, func() error {
		if err := that.gameService.InsertGame(ctx, game); err != nil {
			return err
		}

		if err := that.bind(ctx, connID, game); err != nil {
			return err
		}

		that.announce(ctx, connID, game)

		return nil
	})
	if err != nil {
		return entity.Game{}, err
	}

	that.logger.Info("game created", "gameID", game.ID, "connID", connID)

	return game, nil
}

// bind - records that connID sits in game. A seat that cannot be bound is never played,
// so the game is abandoned and the opponent, if any, is told.
func (that *matchmaker) bind(ctx context.Context, connID string, game entity.Game) error {
	bindErr := that.playerService.Bind(ctx, connID, game.ID)
	if bindErr == nil {
		return nil
	}

	abandoned := false

	ended, err := that.gameService.UpdateGame(ctx, game.ID, func(current entity.Game) (entity.Game, error) {
		next, ok := current.Abandon(connID)
		abandoned = ok
		return next, nil
	})
	if err != nil {
		that.logger.Error("failed to abandon game of unbound player", "gameID", game.ID, "connID", connID, "error", err)
	} else if abandoned {
		if opponent := ended.Opponent(connID); opponent != "" {
			that.broadcaster.SendTo(ctx, opponent, entity.GameEvent(entity.EventSessionEnded, ended))
		}
	}

	return fmt.Errorf("failed to bind player: %w", bindErr)
}

func (that *matchmaker) announce(ctx context.Context, connID string, game entity.Game) {
	if game.IsFull() {
		that.logger.Info("game started", "gameID", game.ID)
		that.broadcaster.BroadcastToGame(ctx, game, entity.GameEvent(entity.EventSessionStart, game))
		return
	}

	that.broadcaster.SendTo(ctx, connID, entity.GameEvent(entity.EventWaiting, game))
}

// ensureUnbound - a connection plays at most one unfinished game.
func (that *matchmaker) ensureUnbound(ctx context.Context, connID string) error {
	player, err := that.playerService.GetByID(ctx, connID)
	if errors.Is(err, apperror.ErrPlayerNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	game, err := that.gameService.GetGameByID(ctx, player.GameID)
	if errors.Is(err, apperror.ErrGameNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	if game.HasPlayer(connID) && !game.IsFinished() {
		return fmt.Errorf("%w: game id %s", apperror.ErrAlreadyInGame, game.ID)
	}

	return nil
}

// lostRace - the open game changed between search and join.
func lostRace(err error) bool {
	return errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrGameIsFull) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrGameNotFound)
}
