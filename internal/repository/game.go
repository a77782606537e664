package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const (
	gameKeyPrefix = "game:"
	openGamesKey  = "games:open"
	gameSeqKey    = "games:seq"
)

// GameRepository stores one value per game version.
// Save is a compare-and-swap: it succeeds only when the stored version is game.Version-1.
type GameRepository interface {
	Create(ctx context.Context, game entity.Game) error
	Save(ctx context.Context, game entity.Game) error
	GetByID(ctx context.Context, id string) (entity.Game, error)

	// FindJoinable - the most recently created game that is not finished and has an open slot.
	FindJoinable(ctx context.Context) (entity.Game, error)
	ListJoinable(ctx context.Context, limit int) ([]entity.Game, error)
}

type dbGame struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGameRepository - game keys expire after ttl of inactivity, zero keeps them forever.
func NewGameRepository(client *redis.Client, ttl time.Duration) GameRepository {
	return &dbGame{
		client: client,
		ttl:    ttl,
	}
}

// Create - writes the game and its open-index entry in one transaction.
func (that *dbGame) Create(ctx context.Context, game entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	key := gameKey(game.ID)

	// a sequence lost to a failed create only leaves a gap
	var seq int64
	if game.IsJoinable() {
		seq, err = that.client.Incr(ctx, gameSeqKey).Result()
		if err != nil {
			return fmt.Errorf("failed to allocate game sequence: %w", err)
		}
	}

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}

		if exists > 0 {
			return fmt.Errorf("%w: game id %s", apperror.ErrGameAlreadyExists, game.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, gameJSON, that.ttl)
			if game.IsJoinable() {
				pipe.ZAdd(ctx, openGamesKey, redis.Z{Score: float64(seq), Member: game.ID})
			}
			return nil
		})

		return err
	}

	err = that.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameAlreadyExists, game.ID)
	}

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	return nil
}

func (that *dbGame) Save(ctx context.Context, game entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	key := gameKey(game.ID)

	txf := func(tx *redis.Tx) error {
		stored, err := that.get(ctx, tx, game.ID)
		if err != nil {
			return err
		}

		if stored.Version != game.Version-1 {
			return fmt.Errorf("%w: game id %s, stored version %d", apperror.ErrConflict, game.ID, stored.Version)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, gameJSON, that.ttl)
			if !game.IsJoinable() {
				pipe.ZRem(ctx, openGamesKey, game.ID)
			}

			// bindings live as long as the game they point to
			if that.ttl > 0 {
				for _, connID := range game.Players() {
					pipe.Expire(ctx, playerKey(connID), that.ttl)
				}
			}
			return nil
		})

		return err
	}

	err = that.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: game id %s", apperror.ErrConflict, game.ID)
	}

	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}

	return nil
}

func (that *dbGame) GetByID(ctx context.Context, id string) (entity.Game, error) {
	return that.get(ctx, that.client, id)
}

func (that *dbGame) FindJoinable(ctx context.Context) (entity.Game, error) {
	games, err := that.scanJoinable(ctx, 1)
	if err != nil {
		return entity.Game{}, err
	}

	if len(games) == 0 {
		return entity.Game{}, apperror.ErrNoJoinableGames
	}

	return games[0], nil
}

func (that *dbGame) ListJoinable(ctx context.Context, limit int) ([]entity.Game, error) {
	return that.scanJoinable(ctx, limit)
}

// scanJoinable - walks the open index newest first and drops entries that expired or filled up.
func (that *dbGame) scanJoinable(ctx context.Context, limit int) ([]entity.Game, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := that.client.ZRevRange(ctx, openGamesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read open games: %w", err)
	}

	games := make([]entity.Game, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(games) >= limit {
			break
		}

		game, err := that.GetByID(ctx, id)
		if err != nil && !errors.Is(err, apperror.ErrGameNotFound) {
			return nil, err
		}

		if err != nil || !game.IsJoinable() {
			if err = that.client.ZRem(ctx, openGamesKey, id).Err(); err != nil {
				return nil, fmt.Errorf("failed to drop stale open game: %w", err)
			}
			continue
		}

		games = append(games, game)
	}

	return games, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (that *dbGame) get(ctx context.Context, client getter, id string) (entity.Game, error) {
	response, err := client.Get(ctx, gameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return entity.Game{}, fmt.Errorf("%w: game id %s", apperror.ErrGameNotFound, id)
	}

	if err != nil {
		return entity.Game{}, fmt.Errorf("failed to get game by id: %w", err)
	}

	var existingGame entity.Game
	if err = json.Unmarshal([]byte(response), &existingGame); err != nil {
		return entity.Game{}, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return existingGame, nil
}

func gameKey(id string) string {
	return gameKeyPrefix + id
}
