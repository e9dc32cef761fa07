package database

import (
	"github.com/neonverse/gamestore-api/internal/orders"
	"github.com/neonverse/gamestore-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs the schema migrations for every model in the store.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.Game{},
		&types.Review{},
		&types.CartItem{},
		&types.Order{},
		&types.OrderItem{},
		&types.BalanceHistory{},
		&types.Withdraw{},
		&types.Topup{},
		&orders.IdempotencyRecord{},
	)
}
