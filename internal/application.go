package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-server/internal/config"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-server/internal/service"
	"github.com/rocketscienceinc/tictactoe-server/internal/transport/redis"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-server/transport/rest"
	"github.com/rocketscienceinc/tictactoe-server/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

type broadcaster interface {
	SendTo(ctx context.Context, connID string, event entity.Event)
	BroadcastToGame(ctx context.Context, game entity.Game, event entity.Event)
}

type repositories struct {
	games   repository.GameRepository
	players repository.PlayerRepository
	close   func() error
}

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *goredis.Client
	if conf.NeedsRedis() {
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return ErrAddrNotFound
		}

		client, err := storage.NewRedisStorage(ctx, storage.RedisOptions{
			Addr:     redisAddrString,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = client.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		redisClient = client
	}

	repos, err := newRepositories(ctx, conf, redisClient)
	if err != nil {
		return err
	}

	defer func() {
		if err = repos.close(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}()

	hub := websocket.NewHub(logger)

	var (
		events broadcaster = hub
		bus    *redis.Bus
	)
	if conf.Broadcast == config.BroadcastRedis {
		bus = redis.NewBus(logger, redisClient, conf.Redis.Channel)
		events = bus
	}

	locks := service.NewSessionLocks()
	gameService := service.NewGameService(repos.games)
	playerService := service.NewPlayerService(repos.players)

	matchmaker := service.NewMatchmaker(logger, locks, gameService, playerService, events, service.MatchmakerOptions{
		Policy:      markPolicy(conf.Session),
		MaxAttempts: conf.Matchmaking.MaxAttempts,
	})
	gamePlayService := service.NewGamePlayService(logger, locks, gameService, playerService, events)
	gameUseCase := usecase.NewGameUseCase(logger, matchmaker, gamePlayService, gameService, events)

	group, ctx := errgroup.WithContext(ctx)

	// run HTTP server
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, rest.NewHandlers(logger, gameUseCase)); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	// run Websocket server
	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, hub, gameUseCase)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}
		return nil
	})

	if bus != nil {
		group.Go(func() error {
			if busErr := bus.Start(ctx, hub); busErr != nil {
				return fmt.Errorf("event bus error: %w", busErr)
			}
			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

func newRepositories(ctx context.Context, conf *config.Config, client *goredis.Client) (*repositories, error) {
	switch conf.Storage {
	case config.StorageRedis:
		return &repositories{
			games:   repository.NewGameRepository(client, conf.Session.TTL),
			players: repository.NewPlayerRepository(client, conf.Session.TTL),
			close:   func() error { return nil },
		}, nil

	case config.StorageSQLite:
		db, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
		if err != nil {
			return nil, fmt.Errorf("could not open sqlite storage: %w", err)
		}

		if err = db.Init(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("could not init sqlite storage: %w", err)
		}

		return &repositories{
			games:   repository.NewSQLiteGameRepository(db.Connection),
			players: repository.NewSQLitePlayerRepository(db.Connection),
			close:   db.Close,
		}, nil

	default:
		return &repositories{
			games:   repository.NewMemoryGameRepository(),
			players: repository.NewMemoryPlayerRepository(),
			close:   func() error { return nil },
		}, nil
	}
}

func markPolicy(session config.Session) entity.MarkPolicy {
	if session.MarkPolicy == config.MarkPolicyRandom {
		return entity.NewRandomPolicy(session.MarkSeed)
	}

	return entity.FirstJoinedPolicy
}
