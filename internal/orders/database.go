package orders

import (
	"errors"
	"time"

	"github.com/neonverse/gamestore-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Transaction runs fn against a transactional view of the database.
// Every multi-record mutation in the order engine goes through here so
// a failure on any step rolls back all of them.
func (d *Database) Transaction(fn func(tx *Database) error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Database{db: tx})
	})
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	err := d.db.Preload("Items").Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) SaveOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

// TransitionOrder flips an order's status only while it still holds
// the expected one, carrying any extra column updates along. Reports
// whether this caller won the claim; a concurrent transition that got
// there first leaves RowsAffected at zero.
func (d *Database) TransitionOrder(orderID, from, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for col, val := range extra {
		updates[col] = val
	}
	result := d.db.Model(&types.Order{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (d *Database) ListByBuyer(userID string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListBySeller returns orders containing at least one of the seller's
// games, newest first.
func (d *Database) ListBySeller(sellerID string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Preload("Items").
		Where("order_id IN (?)",
			d.db.Model(&types.OrderItem{}).Select("order_id").Where("seller_id = ?", sellerID)).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
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

// DecrementStock atomically takes qty units off a game's stock and
// bumps its sold counter. The conditional predicate closes the
// read-then-write oversell gap: a concurrent checkout that raced past
// the stock read fails here instead of overselling.
func (d *Database) DecrementStock(gameID string, qty int) error {
	result := d.db.Model(&types.Game{}).
		Where("game_id = ? AND stock >= ?", gameID, qty).
		Updates(map[string]interface{}{
			"stock": gorm.Expr("stock - ?", qty),
			"sold":  gorm.Expr("sold + ?", qty),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrInsufficientStock
	}
	return nil
}

// Restock returns qty units to a game's stock and unwinds the sold
// counter. Used when an order transitions into cancelled.
func (d *Database) Restock(gameID string, qty int) error {
	return d.db.Model(&types.Game{}).
		Where("game_id = ?", gameID).
		Updates(map[string]interface{}{
			"stock": gorm.Expr("stock + ?", qty),
			"sold":  gorm.Expr("sold - ?", qty),
		}).Error
}

func (d *Database) GetUser(userID string) (*types.User, error) {
	var user types.User
	if err := d.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// DebitUser conditionally takes amount off a balance, failing when the
// balance no longer covers it.
func (d *Database) DebitUser(userID string, amount int64) error {
	result := d.db.Model(&types.User{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrInsufficientBalance
	}
	return nil
}

func (d *Database) CreditUser(userID string, amount int64) error {
	result := d.db.Model(&types.User{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (d *Database) ClearCart(userID string) error {
	return d.db.Where("user_id = ?", userID).Delete(&types.CartItem{}).Error
}

func (d *Database) CreateBalanceHistory(entry *types.BalanceHistory) error {
	return d.db.Create(entry).Error
}

// HasReceivedOrderWithGame reports whether the buyer has any received
// order containing the game. Gates review creation.
func (d *Database) HasReceivedOrderWithGame(userID, gameID string) (bool, error) {
	var count int64
	err := d.db.Model(&types.Order{}).
		Joins("JOIN order_items ON order_items.order_id = orders.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.game_id = ?",
			userID, StatusReceived, gameID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) HasReview(userID, orderID, gameID string) (bool, error) {
	var count int64
	err := d.db.Model(&types.Review{}).
		Where("user_id = ? AND order_id = ? AND game_id = ?", userID, orderID, gameID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) CreateReview(review *types.Review) error {
	return d.db.Create(review).Error
}

// RecomputeRating stores the average review rating on the game.
func (d *Database) RecomputeRating(gameID string) error {
	var avg float64
	err := d.db.Model(&types.Review{}).
		Where("game_id = ?", gameID).
		Select("COALESCE(AVG(rating), 0)").
		Scan(&avg).Error
	if err != nil {
		return err
	}
	return d.db.Model(&types.Game{}).
		Where("game_id = ?", gameID).
		Update("rating", avg).Error
}

// GetIdempotencyRecord retrieves an idempotency record by key
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (d *Database) CreateIdempotencyRecord(record *IdempotencyRecord) error {
	return d.db.Create(record).Error
}

// PurgeExpiredIdempotencyRecords removes records past their expiry and
// reports how many went.
func (d *Database) PurgeExpiredIdempotencyRecords(now time.Time) (int64, error) {
	result := d.db.Unscoped().Where("expires_at < ?", now).Delete(&IdempotencyRecord{})
	return result.RowsAffected, result.Error
}
