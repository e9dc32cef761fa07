package wallet

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
func (d *Database) Transaction(fn func(tx *Database) error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Database{db: tx})
	})
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

// DebitUser conditionally takes amount off a balance. The balance is
// re-checked here, at approval time, not just at request time.
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

func (d *Database) CreateWithdraw(withdraw *types.Withdraw) error {
	return d.db.Create(withdraw).Error
}

func (d *Database) GetWithdraw(withdrawID string) (*types.Withdraw, error) {
	var withdraw types.Withdraw
	if err := d.db.Where("withdraw_id = ?", withdrawID).First(&withdraw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdraw, nil
}

func (d *Database) SaveWithdraw(withdraw *types.Withdraw) error {
	return d.db.Save(withdraw).Error
}

// TransitionWithdraw moves a withdraw to a new status only while it is
// not yet final. Reports whether this caller won the claim; a
// concurrent review that settled the withdraw first leaves
// RowsAffected at zero.
func (d *Database) TransitionWithdraw(withdrawID, newStatus, note string, processedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": newStatus, "note": note}
	if processedAt != nil {
		updates["processed_at"] = processedAt
	}
	result := d.db.Model(&types.Withdraw{}).
		Where("withdraw_id = ? AND status NOT IN ?", withdrawID,
			[]string{types.WithdrawStatusPaid, types.WithdrawStatusRejected}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// HasPendingWithdraw enforces the one-pending-withdraw-per-seller rule.
func (d *Database) HasPendingWithdraw(userID string) (bool, error) {
	var count int64
	err := d.db.Model(&types.Withdraw{}).
		Where("user_id = ? AND status = ?", userID, types.WithdrawStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) ListWithdrawsByUser(userID string) ([]types.Withdraw, error) {
	var withdraws []types.Withdraw
	err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&withdraws).Error
	if err != nil {
		return nil, err
	}
	return withdraws, nil
}

func (d *Database) ListWithdraws() ([]types.Withdraw, error) {
	var withdraws []types.Withdraw
	if err := d.db.Order("created_at DESC").Find(&withdraws).Error; err != nil {
		return nil, err
	}
	return withdraws, nil
}

func (d *Database) CreateTopup(topup *types.Topup) error {
	return d.db.Create(topup).Error
}

func (d *Database) GetTopup(topupID string) (*types.Topup, error) {
	var topup types.Topup
	if err := d.db.Where("topup_id = ?", topupID).First(&topup).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &topup, nil
}

func (d *Database) SaveTopup(topup *types.Topup) error {
	return d.db.Save(topup).Error
}

// TransitionTopup moves a top-up out of pending. Reports whether this
// caller won the claim.
func (d *Database) TransitionTopup(topupID, newStatus, note string, processedAt time.Time) (bool, error) {
	result := d.db.Model(&types.Topup{}).
		Where("topup_id = ? AND status = ?", topupID, types.TopupStatusPending).
		Updates(map[string]interface{}{
			"status":       newStatus,
			"note":         note,
			"processed_at": processedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (d *Database) ListTopupsByUser(userID string) ([]types.Topup, error) {
	var topups []types.Topup
	err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&topups).Error
	if err != nil {
		return nil, err
	}
	return topups, nil
}

func (d *Database) ListTopups() ([]types.Topup, error) {
	var topups []types.Topup
	if err := d.db.Order("created_at DESC").Find(&topups).Error; err != nil {
		return nil, err
	}
	return topups, nil
}

// ListBalanceHistory returns settlement entries joined with game
// identity, newest first.
func (d *Database) ListBalanceHistory(userID string) ([]types.BalanceHistoryEntry, error) {
	var entries []types.BalanceHistoryEntry
	err := d.db.Model(&types.BalanceHistory{}).
		Select("balance_histories.entry_id, balance_histories.order_id, balance_histories.game_id, games.title AS game_title, balance_histories.amount, balance_histories.type, balance_histories.created_at").
		Joins("LEFT JOIN games ON games.game_id = balance_histories.game_id").
		Where("balance_histories.user_id = ?", userID).
		Order("balance_histories.created_at DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
