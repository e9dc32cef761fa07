package catalog

import (
	"errors"

	"github.com/neonverse/gamestore-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateGame(game *types.Game) error {
	return d.db.Create(game).Error
}

func (d *Database) GetGame(gameID string) (*types.Game, error) {
	var game types.Game
	if err := d.db.Where("game_id = ?", gameID).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &game, nil
}

func (d *Database) ListGames() ([]types.Game, error) {
	var games []types.Game
	if err := d.db.Order("created_at DESC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

// ListRelated returns other games from the same seller, newest first.
func (d *Database) ListRelated(game *types.Game, limit int) ([]types.Game, error) {
	var games []types.Game
	err := d.db.
		Where("created_by = ? AND game_id <> ?", game.CreatedBy, game.GameID).
		Order("created_at DESC").
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (d *Database) SaveGame(game *types.Game) error {
	return d.db.Save(game).Error
}

func (d *Database) DeleteGame(game *types.Game) error {
	return d.db.Delete(game).Error
}

// CountOrderReferences reports how many order lines reference a game.
// Games with live references are never deleted.
func (d *Database) CountOrderReferences(gameID string) (int64, error) {
	var count int64
	err := d.db.Model(&types.OrderItem{}).Where("game_id = ?", gameID).Count(&count).Error
	return count, err
}

func (d *Database) ListReviews(gameID string) ([]types.Review, error) {
	var reviews []types.Review
	err := d.db.Where("game_id = ?", gameID).Order("created_at DESC").Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}
