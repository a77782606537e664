package service

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// PlayerService keeps the connection to game bindings.
type PlayerService interface {
	Bind(ctx context.Context, connID, gameID string) error
	GetByID(ctx context.Context, connID string) (*entity.Player, error)
	Unbind(ctx context.Context, connID string) error
}

type playerService struct {
	playerRepo playerRepo
}

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	DeleteByID(ctx context.Context, id string) error
}

func NewPlayerService(playerRepo playerRepo) PlayerService {
	return &playerService{
		playerRepo: playerRepo,
	}
}

func (that *playerService) Bind(ctx context.Context, connID, gameID string) error {
	player := &entity.Player{ID: connID, GameID: gameID}

	if err := that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return fmt.Errorf("bind player: %w", storageError(err))
	}

	return nil
}

func (that *playerService) GetByID(ctx context.Context, connID string) (*entity.Player, error) {
	existingPlayer, err := that.playerRepo.GetByID(ctx, connID)
	if err != nil {
		return nil, fmt.Errorf("get player by id: %w", storageError(err))
	}

	return existingPlayer, nil
}

func (that *playerService) Unbind(ctx context.Context, connID string) error {
	if err := that.playerRepo.DeleteByID(ctx, connID); err != nil {
		return fmt.Errorf("unbind player: %w", storageError(err))
	}

	return nil
}
