package types

import (
	"time"

	"gorm.io/gorm"
)

// Account roles. Sellers hold the admin role; superadmin approves
// wallet movements and manages bans.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

type User struct {
	gorm.Model `json:"-"`
	UserID     string    `gorm:"uniqueIndex" json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `gorm:"uniqueIndex" json:"email"`
	Password   string    `json:"-"`
	Role       string    `json:"role"` // user, admin, superadmin
	Balance    int64     `json:"balance"`
	IsBanned   bool      `json:"is_banned"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Game struct {
	gorm.Model  `json:"-"`
	GameID      string    `gorm:"uniqueIndex" json:"game_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	Rating      float64   `json:"rating"`
	Sold        int       `json:"sold"`
	Image       string    `json:"image"`
	CreatedBy   string    `json:"created_by"` // owning seller's UserID
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Review struct {
	gorm.Model `json:"-"`
	ReviewID   string    `gorm:"uniqueIndex" json:"review_id"`
	GameID     string    `gorm:"index" json:"game_id"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Rating     int       `json:"rating"` // 1..5
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// CartItem is one line of a buyer's cart. Carts are transient and
// cleared as part of a successful checkout.
type CartItem struct {
	gorm.Model `json:"-"`
	UserID     string `gorm:"index:idx_cart_user_game,unique" json:"user_id"`
	GameID     string `gorm:"index:idx_cart_user_game,unique" json:"game_id"`
	Quantity   int    `json:"quantity"`
}

// Payment is the payment sub-record embedded in an order. For the
// balance method the debit happens at checkout and Status is paid
// immediately; bank and ewallet stay pending until settled externally.
type Payment struct {
	Method        string `json:"method"` // balance, bank, ewallet
	Provider      string `json:"provider,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Status        string `json:"status"` // pending, paid
}

type Order struct {
	gorm.Model        `json:"-"`
	OrderID           string      `gorm:"uniqueIndex" json:"order_id"`
	UserID            string      `gorm:"index" json:"user_id"`
	Items             []OrderItem `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
	TotalAmount       int64       `json:"total_amount"`
	Status            string      `json:"status"`
	Payment           Payment     `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	CancelReasonUser  string      `json:"cancel_reason_user,omitempty"`
	CancelReasonAdmin string      `json:"cancel_reason_admin,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// OrderItem snapshots the game price at checkout time; later catalog
// price changes never touch an existing order.
type OrderItem struct {
	gorm.Model `json:"-"`
	OrderID    string `gorm:"index" json:"-"`
	GameID     string `json:"game_id"`
	SellerID   string `json:"seller_id"` // game owner at checkout time
	Quantity   int    `json:"quantity"`
	Price      int64  `json:"price"` // unit price snapshot
}

const (
	HistoryTypeCredit = "credit"
	HistoryTypeDebit  = "debit"
)

// BalanceHistory is the append-only record of seller settlement
// credits, written once per (order, line item) when the buyer marks
// the order received.
type BalanceHistory struct {
	gorm.Model `json:"-"`
	EntryID    string    `gorm:"uniqueIndex" json:"entry_id"`
	UserID     string    `gorm:"index" json:"user_id"` // credited seller
	OrderID    string    `json:"order_id"`
	GameID     string    `json:"game_id"`
	Amount     int64     `json:"amount"`
	Type       string    `json:"type"` // credit, debit
	CreatedAt  time.Time `json:"created_at"`
}

const (
	WithdrawStatusPending    = "pending"
	WithdrawStatusProcessing = "processing"
	WithdrawStatusPaid       = "paid"
	WithdrawStatusRejected   = "rejected"
)

type Withdraw struct {
	gorm.Model    `json:"-"`
	WithdrawID    string     `gorm:"uniqueIndex" json:"withdraw_id"`
	UserID        string     `gorm:"index" json:"user_id"` // requesting seller
	Amount        int64      `json:"amount"`
	Fee           int64      `json:"fee"`
	FinalAmount   int64      `json:"final_amount"` // amount - fee
	Method        string     `json:"method"`       // bank, ewallet
	BankName      string     `json:"bank_name"`
	AccountNumber string     `json:"account_number"`
	AccountName   string     `json:"account_name"`
	Status        string     `json:"status"` // pending, processing, paid, rejected
	Note          string     `json:"note,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

const (
	TopupStatusPending  = "pending"
	TopupStatusPaid     = "paid"
	TopupStatusRejected = "rejected"
)

type Topup struct {
	gorm.Model  `json:"-"`
	TopupID     string     `gorm:"uniqueIndex" json:"topup_id"`
	UserID      string     `gorm:"index" json:"user_id"`
	Amount      int64      `json:"amount"`
	Method      string     `json:"method"`   // bank, ewallet
	Provider    string     `json:"provider"` // BCA, DANA, OVO, ...
	Status      string     `json:"status"`   // pending, paid, rejected
	Note        string     `json:"note,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
