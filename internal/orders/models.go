package orders

import (
	"time"

	"gorm.io/gorm"
)

// Payment methods and statuses carried on an order.
const (
	PaymentMethodBalance = "balance"
	PaymentMethodBank    = "bank"
	PaymentMethodEwallet = "ewallet"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// IdempotencyRecord lets a client retry a checkout safely: a replayed
// Idempotency-Key returns the already-created order instead of
// decrementing stock a second time.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}
