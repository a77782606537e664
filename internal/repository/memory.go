package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

type memoryEntry struct {
	game entity.Game
	seq  int64
}

// memoryGame keeps games in process memory. Suitable for a single instance and tests.
type memoryGame struct {
	mu    sync.RWMutex
	games map[string]memoryEntry
	seq   int64
}

func NewMemoryGameRepository() GameRepository {
	return &memoryGame{
		games: make(map[string]memoryEntry),
	}
}

func (that *memoryGame) Create(_ context.Context, game entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, exists := that.games[game.ID]; exists {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameAlreadyExists, game.ID)
	}

	that.seq++
	that.games[game.ID] = memoryEntry{game: game, seq: that.seq}

	return nil
}

func (that *memoryGame) Save(_ context.Context, game entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored, exists := that.games[game.ID]
	if !exists {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameNotFound, game.ID)
	}

	if stored.game.Version != game.Version-1 {
		return fmt.Errorf("%w: game id %s, stored version %d", apperror.ErrConflict, game.ID, stored.game.Version)
	}

	that.games[game.ID] = memoryEntry{game: game, seq: stored.seq}

	return nil
}

func (that *memoryGame) GetByID(_ context.Context, id string) (entity.Game, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	stored, exists := that.games[id]
	if !exists {
		return entity.Game{}, fmt.Errorf("%w: game id %s", apperror.ErrGameNotFound, id)
	}

	return stored.game, nil
}

func (that *memoryGame) FindJoinable(ctx context.Context) (entity.Game, error) {
	games, err := that.ListJoinable(ctx, 1)
	if err != nil {
		return entity.Game{}, err
	}

	if len(games) == 0 {
		return entity.Game{}, apperror.ErrNoJoinableGames
	}

	return games[0], nil
}

func (that *memoryGame) ListJoinable(_ context.Context, limit int) ([]entity.Game, error) {
	if limit <= 0 {
		return nil, nil
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	open := make([]memoryEntry, 0)
	for _, entry := range that.games {
		if entry.game.IsJoinable() {
			open = append(open, entry)
		}
	}

	sort.Slice(open, func(i, j int) bool { return open[i].seq > open[j].seq })

	games := make([]entity.Game, 0, min(limit, len(open)))
	for _, entry := range open[:min(limit, len(open))] {
		games = append(games, entry.game)
	}

	return games, nil
}

type memoryPlayer struct {
	mu      sync.RWMutex
	players map[string]entity.Player
}

func NewMemoryPlayerRepository() PlayerRepository {
	return &memoryPlayer{
		players: make(map[string]entity.Player),
	}
}

func (that *memoryPlayer) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.players[player.ID] = *player

	return nil
}

func (that *memoryPlayer) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	player, exists := that.players[id]
	if !exists {
		return nil, apperror.ErrPlayerNotFound
	}

	return &player, nil
}

func (that *memoryPlayer) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, exists := that.players[id]; !exists {
		return apperror.ErrPlayerNotFound
	}

	delete(that.players, id)

	return nil
}
