package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"

	BroadcastLocal = "local"
	BroadcastRedis = "redis"

	MarkPolicyFirstJoined = "first-joined"
	MarkPolicyRandom      = "random"
)

type Config struct {
	LogLevel          string      `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string      `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort        string      `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Storage           string      `yaml:"storage" env:"STORAGE" env-default:"redis"`
	Broadcast         string      `yaml:"broadcast" env:"BROADCAST" env-default:"local"`
	Redis             Redis       `yaml:"redis" env-prefix:"REDIS_"`
	SQLiteStoragePath string      `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"./tictactoe.db"`
	Session           Session     `yaml:"session" env-prefix:"SESSION_"`
	Matchmaking       Matchmaking `yaml:"matchmaking" env-prefix:"MATCHMAKING_"`
}

type Redis struct {
	Host     string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"PORT" env-default:"6379"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB" env-default:"0"`
	Channel  string `yaml:"channel" env:"CHANNEL" env-default:"tictactoe:events"`
}

type Session struct {
	// TTL - idle games and bindings expire after it in redis, zero keeps them.
	TTL        time.Duration `yaml:"ttl" env:"TTL" env-default:"24h"`
	MarkPolicy string        `yaml:"mark-policy" env:"MARK_POLICY" env-default:"first-joined"`
	MarkSeed   uint64        `yaml:"mark-seed" env:"MARK_SEED" env-default:"0"`
}

type Matchmaking struct {
	MaxAttempts int `yaml:"max-attempts" env:"MAX_ATTEMPTS" env-default:"3"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load - reads path when it exists, environment variables otherwise. Env always wins over the file.
func Load(path string) (*Config, error) {
	config := &Config{}

	_, statErr := os.Stat(path)

	var err error
	switch {
	case statErr == nil:
		err = cleanenv.ReadConfig(path, config)
	case errors.Is(statErr, os.ErrNotExist):
		err = cleanenv.ReadEnv(config)
	default:
		err = statErr
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	if !slices.Contains([]string{StorageRedis, StorageSQLite, StorageMemory}, that.Storage) {
		return fmt.Errorf("unknown storage %q", that.Storage)
	}

	if !slices.Contains([]string{BroadcastLocal, BroadcastRedis}, that.Broadcast) {
		return fmt.Errorf("unknown broadcast %q", that.Broadcast)
	}

	if !slices.Contains([]string{MarkPolicyFirstJoined, MarkPolicyRandom}, that.Session.MarkPolicy) {
		return fmt.Errorf("unknown mark policy %q", that.Session.MarkPolicy)
	}

	if that.Session.TTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}

	return nil
}

// NeedsRedis - whether any configured component talks to redis.
func (that *Config) NeedsRedis() bool {
	return that.Storage == StorageRedis || that.Broadcast == BroadcastRedis
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
