package cart

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

func (d *Database) GetItem(userID, gameID string) (*types.CartItem, error) {
	var item types.CartItem
	err := d.db.Where("user_id = ? AND game_id = ?", userID, gameID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (d *Database) SaveItem(item *types.CartItem) error {
	return d.db.Save(item).Error
}

func (d *Database) ListItems(userID string) ([]types.CartItem, error) {
	var items []types.CartItem
	if err := d.db.Where("user_id = ?", userID).Order("created_at").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (d *Database) RemoveItem(userID, gameID string) error {
	return d.db.Where("user_id = ? AND game_id = ?", userID, gameID).Delete(&types.CartItem{}).Error
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
