package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

type sqliteGame struct {
	conn *sql.DB
}

func NewSQLiteGameRepository(conn *sql.DB) GameRepository {
	return &sqliteGame{
		conn: conn,
	}
}

func (that *sqliteGame) Create(ctx context.Context, game entity.Game) error {
	state, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	query := `INSERT INTO games (id, state, joinable, version, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`

	res, err := that.conn.ExecContext(ctx, query, game.ID, string(state), game.IsJoinable(), game.Version, game.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("can't create game: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't create game: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameAlreadyExists, game.ID)
	}

	return nil
}

func (that *sqliteGame) Save(ctx context.Context, game entity.Game) error {
	state, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	query := `UPDATE games SET state = ?, joinable = ?, version = ? WHERE id = ? AND version = ?`

	res, err := that.conn.ExecContext(ctx, query, string(state), game.IsJoinable(), game.Version, game.ID, game.Version-1)
	if err != nil {
		return fmt.Errorf("can't save game: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't save game: %w", err)
	}

	if rows == 1 {
		return nil
	}

	if _, err = that.GetByID(ctx, game.ID); err != nil {
		return err
	}

	return fmt.Errorf("%w: game id %s", apperror.ErrConflict, game.ID)
}

func (that *sqliteGame) GetByID(ctx context.Context, id string) (entity.Game, error) {
	query := `SELECT state FROM games WHERE id = ?`

	var state string

	err := that.conn.QueryRowContext(ctx, query, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Game{}, fmt.Errorf("%w: game id %s", apperror.ErrGameNotFound, id)
	}
	if err != nil {
		return entity.Game{}, fmt.Errorf("can't find game: %w", err)
	}

	return unmarshalGame(state)
}

func (that *sqliteGame) FindJoinable(ctx context.Context) (entity.Game, error) {
	games, err := that.ListJoinable(ctx, 1)
	if err != nil {
		return entity.Game{}, err
	}

	if len(games) == 0 {
		return entity.Game{}, apperror.ErrNoJoinableGames
	}

	return games[0], nil
}

func (that *sqliteGame) ListJoinable(ctx context.Context, limit int) ([]entity.Game, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `SELECT state FROM games WHERE joinable = 1 ORDER BY seq DESC LIMIT ?`

	rows, err := that.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("can't list open games: %w", err)
	}
	defer rows.Close()

	var games []entity.Game
	for rows.Next() {
		var state string
		if err = rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("can't scan game: %w", err)
		}

		game, err := unmarshalGame(state)
		if err != nil {
			return nil, err
		}

		games = append(games, game)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't list open games: %w", err)
	}

	return games, nil
}

type sqlitePlayer struct {
	conn *sql.DB
}

func NewSQLitePlayerRepository(conn *sql.DB) PlayerRepository {
	return &sqlitePlayer{
		conn: conn,
	}
}

func (that *sqlitePlayer) CreateOrUpdate(ctx context.Context, player *entity.Player) error {
	query := `INSERT INTO players (id, game_id) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET game_id = excluded.game_id`

	if _, err := that.conn.ExecContext(ctx, query, player.ID, player.GameID); err != nil {
		return fmt.Errorf("can't save player: %w", err)
	}

	return nil
}

func (that *sqlitePlayer) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	query := `SELECT id, game_id FROM players WHERE id = ?`

	var player entity.Player

	err := that.conn.QueryRowContext(ctx, query, id).Scan(&player.ID, &player.GameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find player: %w", err)
	}

	return &player, nil
}

func (that *sqlitePlayer) DeleteByID(ctx context.Context, id string) error {
	res, err := that.conn.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("can't delete player: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't delete player: %w", err)
	}

	if rows == 0 {
		return apperror.ErrPlayerNotFound
	}

	return nil
}

func unmarshalGame(state string) (entity.Game, error) {
	var game entity.Game
	if err := json.Unmarshal([]byte(state), &game); err != nil {
		return entity.Game{}, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return game, nil
}
