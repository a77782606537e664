package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
)

var (
	errConflictForTest = fmt.Errorf("%w: stored version moved", apperror.ErrConflict)
	errRedisDown       = errors.New("redis down")
)

type delivery struct {
	to    string
	event entity.Event
}

// recorder captures events in delivery order.
type recorder struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (that *recorder) SendTo(_ context.Context, connID string, event entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.deliveries = append(that.deliveries, delivery{to: connID, event: event})
}

func (that *recorder) BroadcastToGame(_ context.Context, game entity.Game, event entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, connID := range game.Players() {
		that.deliveries = append(that.deliveries, delivery{to: connID, event: event})
	}
}

func (that *recorder) eventsFor(connID string) []entity.Event {
	that.mu.Lock()
	defer that.mu.Unlock()

	var events []entity.Event
	for _, d := range that.deliveries {
		if d.to == connID {
			events = append(events, d.event)
		}
	}

	return events
}

func (that *recorder) actionsFor(connID string) []string {
	events := that.eventsFor(connID)

	actions := make([]string, 0, len(events))
	for _, event := range events {
		actions = append(actions, event.Action)
	}

	return actions
}

type fixture struct {
	games    repository.GameRepository
	players  repository.PlayerRepository
	recorder *recorder

	gameService   GameService
	playerService PlayerService
	matchmaker    Matchmaker
	gameplay      GamePlayService
}

func newFixture(t *testing.T, games repository.GameRepository, opts MatchmakerOptions) *fixture {
	t.Helper()

	return newFixtureWithPlayers(t, games, repository.NewMemoryPlayerRepository(), opts)
}

func newFixtureWithPlayers(
	t *testing.T,
	games repository.GameRepository,
	players repository.PlayerRepository,
	opts MatchmakerOptions,
) *fixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	locks := NewSessionLocks()
	rec := &recorder{}

	gameService := NewGameService(games)
	playerService := NewPlayerService(players)

	return &fixture{
		games:         games,
		players:       players,
		recorder:      rec,
		gameService:   gameService,
		playerService: playerService,
		matchmaker:    NewMatchmaker(logger, locks, gameService, playerService, rec, opts),
		gameplay:      NewGamePlayService(logger, locks, gameService, playerService, rec),
	}
}

func newMemoryFixture(t *testing.T) *fixture {
	t.Helper()

	return newFixture(t, repository.NewMemoryGameRepository(), MatchmakerOptions{})
}

type mockGameRepo struct {
	mock.Mock
}

func (that *mockGameRepo) Create(ctx context.Context, game entity.Game) error {
	args := that.Called(ctx, game)
	return args.Error(0)
}

func (that *mockGameRepo) Save(ctx context.Context, game entity.Game) error {
	args := that.Called(ctx, game)
	return args.Error(0)
}

func (that *mockGameRepo) GetByID(ctx context.Context, id string) (entity.Game, error) {
	args := that.Called(ctx, id)
	return args.Get(0).(entity.Game), args.Error(1)
}

func (that *mockGameRepo) FindJoinable(ctx context.Context) (entity.Game, error) {
	args := that.Called(ctx)
	return args.Get(0).(entity.Game), args.Error(1)
}

func (that *mockGameRepo) ListJoinable(ctx context.Context, limit int) ([]entity.Game, error) {
	args := that.Called(ctx, limit)
	return args.Get(0).([]entity.Game), args.Error(1)
}

// conflictingRepo loses every version race on Save.
type conflictingRepo struct {
	repository.GameRepository
	saves int
	mu    sync.Mutex
}

func (that *conflictingRepo) Save(context.Context, entity.Game) error {
	that.mu.Lock()
	that.saves++
	that.mu.Unlock()

	return errConflictForTest
}

// failingSaveRepo stores new games but every update hits a dead store.
type failingSaveRepo struct {
	repository.GameRepository
}

func (that *failingSaveRepo) Save(context.Context, entity.Game) error {
	return errRedisDown
}

// failingBindRepo cannot store bindings.
type failingBindRepo struct {
	repository.PlayerRepository
}

func (that *failingBindRepo) CreateOrUpdate(context.Context, *entity.Player) error {
	return errRedisDown
}
