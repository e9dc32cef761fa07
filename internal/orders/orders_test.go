package orders

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.User{},
		&types.Game{},
		&types.Review{},
		&types.CartItem{},
		&types.Order{},
		&types.OrderItem{},
		&types.BalanceHistory{},
		&IdempotencyRecord{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, role string, balance int64) {
	t.Helper()
	require.NoError(t, db.Create(&types.User{
		UserID:   id,
		Username: id,
		Email:    id + "@example.com",
		Role:     role,
		Balance:  balance,
	}).Error)
}

func seedGame(t *testing.T, db *gorm.DB, id, sellerID string, price int64, stock int) {
	t.Helper()
	require.NoError(t, db.Create(&types.Game{
		GameID:    id,
		Title:     "Game " + id,
		Price:     price,
		Stock:     stock,
		CreatedBy: sellerID,
	}).Error)
}

func getGame(t *testing.T, db *gorm.DB, id string) types.Game {
	t.Helper()
	var game types.Game
	require.NoError(t, db.Where("game_id = ?", id).First(&game).Error)
	return game
}

func getUser(t *testing.T, db *gorm.DB, id string) types.User {
	t.Helper()
	var user types.User
	require.NoError(t, db.Where("user_id = ?", id).First(&user).Error)
	return user
}

func balanceCheckout(gameID string, qty int) CheckoutRequest {
	return CheckoutRequest{
		Items:   []CheckoutItem{{GameID: gameID, Quantity: qty}},
		Payment: PaymentRequest{Method: PaymentMethodBalance},
	}
}

func TestCheckoutBalancePayment(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	require.NoError(t, db.Create(&types.CartItem{UserID: "buyer", GameID: "g1", Quantity: 2}).Error)

	order, err := svc.Checkout("buyer", balanceCheckout("g1", 2), "")
	require.NoError(t, err)

	assert.Equal(t, int64(20000), order.TotalAmount)
	assert.Equal(t, StatusProcessing, order.Status)
	assert.Equal(t, PaymentStatusPaid, order.Payment.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(10000), order.Items[0].Price)
	assert.Equal(t, "seller", order.Items[0].SellerID)

	game := getGame(t, db, "g1")
	assert.Equal(t, 3, game.Stock)
	assert.Equal(t, 2, game.Sold)
	assert.Equal(t, int64(30000), getUser(t, db, "buyer").Balance)

	// seller is not paid until the buyer receives the order
	assert.Equal(t, int64(0), getUser(t, db, "seller").Balance)

	var cartCount int64
	require.NoError(t, db.Model(&types.CartItem{}).Where("user_id = ?", "buyer").Count(&cartCount).Error)
	assert.Equal(t, int64(0), cartCount)
}

func TestCheckoutBankPaymentStaysPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 0)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)

	order, err := svc.Checkout("buyer", CheckoutRequest{
		Items:   []CheckoutItem{{GameID: "g1", Quantity: 1}},
		Payment: PaymentRequest{Method: PaymentMethodBank, Provider: "BCA", AccountNumber: "12345"},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, PaymentStatusPending, order.Payment.Status)
	// no balance touched for external settlement
	assert.Equal(t, int64(0), getUser(t, db, "buyer").Balance)
}

func TestCheckoutInvalidPayment(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 0)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)

	_, err := svc.Checkout("buyer", CheckoutRequest{
		Items:   []CheckoutItem{{GameID: "g1", Quantity: 1}},
		Payment: PaymentRequest{Method: PaymentMethodEwallet},
	}, "")
	assert.ErrorIs(t, err, types.ErrInvalidPayment)

	_, err = svc.Checkout("buyer", CheckoutRequest{
		Items:   []CheckoutItem{{GameID: "g1", Quantity: 1}},
		Payment: PaymentRequest{Method: "cash"},
	}, "")
	assert.ErrorIs(t, err, types.ErrInvalidPayment)

	// nothing was created or decremented
	assert.Equal(t, 5, getGame(t, db, "g1").Stock)
}

func TestCheckoutMissingGame(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)

	_, err := svc.Checkout("buyer", balanceCheckout("nope", 1), "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 100000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	seedGame(t, db, "g2", "seller", 10000, 1)

	_, err := svc.Checkout("buyer", CheckoutRequest{
		Items: []CheckoutItem{
			{GameID: "g1", Quantity: 2},
			{GameID: "g2", Quantity: 3}, // short by 2
		},
		Payment: PaymentRequest{Method: PaymentMethodBalance},
	}, "")
	assert.ErrorIs(t, err, types.ErrInsufficientStock)

	// the first line's decrement must not survive the failed checkout
	assert.Equal(t, 5, getGame(t, db, "g1").Stock)
	assert.Equal(t, 1, getGame(t, db, "g2").Stock)
	assert.Equal(t, int64(100000), getUser(t, db, "buyer").Balance)

	var orderCount int64
	require.NoError(t, db.Model(&types.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
}

func TestCheckoutInsufficientBalanceRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 5000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)

	_, err := svc.Checkout("buyer", balanceCheckout("g1", 2), "")
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	assert.Equal(t, 5, getGame(t, db, "g1").Stock)
	assert.Equal(t, int64(5000), getUser(t, db, "buyer").Balance)
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)

	first, err := svc.Checkout("buyer", balanceCheckout("g1", 2), "retry-key")
	require.NoError(t, err)

	second, err := svc.Checkout("buyer", balanceCheckout("g1", 2), "retry-key")
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	// the replay must not charge or decrement a second time
	assert.Equal(t, 3, getGame(t, db, "g1").Stock)
	assert.Equal(t, int64(30000), getUser(t, db, "buyer").Balance)
}

func TestCheckoutPriceSnapshotIsImmutable(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)

	order, err := svc.Checkout("buyer", balanceCheckout("g1", 2), "")
	require.NoError(t, err)

	// a later catalog price change never touches the order
	require.NoError(t, db.Model(&types.Game{}).Where("game_id = ?", "g1").Update("price", 99999).Error)

	reloaded, err := svc.db.GetOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), reloaded.TotalAmount)
	assert.Equal(t, int64(10000), reloaded.Items[0].Price)
}

func checkoutOrder(t *testing.T, svc *Service, buyerID string) *types.Order {
	t.Helper()
	order, err := svc.Checkout(buyerID, balanceCheckout("g1", 2), "")
	require.NoError(t, err)
	return order
}

func TestChangeStatusFollowsTable(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer") // processing

	updated, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	_, err = svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusProcessing, "")
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestChangeStatusRequiresOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedUser(t, db, "other", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer")

	_, err := svc.ChangeStatus("other", types.RoleAdmin, order.OrderID, StatusCompleted, "")
	assert.ErrorIs(t, err, types.ErrForbidden)

	// a plain user cannot drive the seller lifecycle either
	_, err = svc.ChangeStatus("buyer", types.RoleUser, order.OrderID, StatusCompleted, "")
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestChangeStatusReceivedIsBuyerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer")

	_, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusReceived, "")
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestAdminCancelRestocks(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer") // stock now 3

	cancelled, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCancelled, "out of region")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "out of region", cancelled.CancelReasonAdmin)

	game := getGame(t, db, "g1")
	assert.Equal(t, 5, game.Stock)
	assert.Equal(t, 0, game.Sold)
}

func TestRequestCancel(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 100000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 10)
	order := checkoutOrder(t, svc, "buyer")

	flagged, err := svc.RequestCancel("buyer", types.RoleUser, order.OrderID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelRequest, flagged.Status)
	assert.Equal(t, "changed my mind", flagged.CancelReasonUser)

	// the seller then decides
	cancelled, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCancelled, "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestRequestCancelOnCompletedOrderIsFinal(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer")

	_, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCompleted, "")
	require.NoError(t, err)

	_, err = svc.RequestCancel("buyer", types.RoleUser, order.OrderID, "too late")
	assert.ErrorIs(t, err, types.ErrOrderFinal)
}

func TestRequestCancelRequiresOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "intruder", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer")

	_, err := svc.RequestCancel("intruder", types.RoleUser, order.OrderID, "not mine")
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestReceiveSettlesSellers(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 100000)
	seedUser(t, db, "seller1", types.RoleAdmin, 0)
	seedUser(t, db, "seller2", types.RoleAdmin, 500)
	seedGame(t, db, "g1", "seller1", 10000, 5)
	seedGame(t, db, "g2", "seller2", 7000, 5)

	order, err := svc.Checkout("buyer", CheckoutRequest{
		Items: []CheckoutItem{
			{GameID: "g1", Quantity: 2},
			{GameID: "g2", Quantity: 1},
		},
		Payment: PaymentRequest{Method: PaymentMethodBalance},
	}, "")
	require.NoError(t, err)

	// both sellers own games in the order, so neither alone may
	// advance it; complete it directly for the settlement test
	require.NoError(t, db.Model(&types.Order{}).
		Where("order_id = ?", order.OrderID).
		Update("status", StatusCompleted).Error)

	received, err := svc.Receive("buyer", types.RoleUser, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, received.Status)

	assert.Equal(t, int64(20000), getUser(t, db, "seller1").Balance)
	assert.Equal(t, int64(7500), getUser(t, db, "seller2").Balance)

	var entries []types.BalanceHistory
	require.NoError(t, db.Order("game_id").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, "seller1", entries[0].UserID)
	assert.Equal(t, int64(20000), entries[0].Amount)
	assert.Equal(t, types.HistoryTypeCredit, entries[0].Type)
	assert.Equal(t, "seller2", entries[1].UserID)
	assert.Equal(t, int64(7000), entries[1].Amount)
}

func TestReceiveConcurrentCallsSettleOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer")
	_, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCompleted, "")
	require.NoError(t, err)

	const callers = 8
	results := make(chan error, callers)
	var gate sync.WaitGroup
	gate.Add(1)
	for i := 0; i < callers; i++ {
		go func() {
			gate.Wait()
			_, err := svc.Receive("buyer", types.RoleUser, order.OrderID)
			results <- err
		}()
	}
	gate.Done()

	succeeded := 0
	for i := 0; i < callers; i++ {
		if <-results == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	// exactly one settlement: one credit, one history row
	assert.Equal(t, int64(20000), getUser(t, db, "seller").Balance)
	var entries int64
	require.NoError(t, db.Model(&types.BalanceHistory{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestTransitionOrderClaimsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer")
	_, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCompleted, "")
	require.NoError(t, err)

	claimed, err := svc.db.TransitionOrder(order.OrderID, StatusCompleted, StatusReceived, nil)
	require.NoError(t, err)
	assert.True(t, claimed)

	// the same move cannot be claimed a second time
	claimed, err = svc.db.TransitionOrder(order.OrderID, StatusCompleted, StatusReceived, nil)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestAdminCancelConcurrentCallsRestockOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer") // stock now 3

	const callers = 8
	results := make(chan error, callers)
	var gate sync.WaitGroup
	gate.Add(1)
	for i := 0; i < callers; i++ {
		go func() {
			gate.Wait()
			_, err := svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCancelled, "dup")
			results <- err
		}()
	}
	gate.Done()

	succeeded := 0
	for i := 0; i < callers; i++ {
		if <-results == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	// stock returns to its pre-checkout level exactly once
	game := getGame(t, db, "g1")
	assert.Equal(t, 5, game.Stock)
	assert.Equal(t, 0, game.Sold)
}

func TestReceiveBeforeCompletedIsNotReady(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer") // processing

	_, err := svc.Receive("buyer", types.RoleUser, order.OrderID)
	assert.ErrorIs(t, err, types.ErrNotReady)
	assert.Equal(t, int64(0), getUser(t, db, "seller").Balance)
}

func TestAddReviewRequiresReceivedOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 50000)
	seedUser(t, db, "seller", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller", 10000, 5)
	order := checkoutOrder(t, svc, "buyer")

	_, err := svc.AddReview("buyer", types.RoleUser, order.OrderID, "g1", 5, "great")
	assert.ErrorIs(t, err, types.ErrForbidden)

	ok, err := svc.CanReview("buyer", "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.ChangeStatus("seller", types.RoleAdmin, order.OrderID, StatusCompleted, "")
	require.NoError(t, err)
	_, err = svc.Receive("buyer", types.RoleUser, order.OrderID)
	require.NoError(t, err)

	ok, err = svc.CanReview("buyer", "g1")
	require.NoError(t, err)
	assert.True(t, ok)

	review, err := svc.AddReview("buyer", types.RoleUser, order.OrderID, "g1", 4, "solid")
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)

	assert.Equal(t, 4.0, getGame(t, db, "g1").Rating)

	// one review per game per order
	_, err = svc.AddReview("buyer", types.RoleUser, order.OrderID, "g1", 5, "again")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestAddReviewRejectsBadRating(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.AddReview("buyer", types.RoleUser, "whatever", "g1", 0, "")
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = svc.AddReview("buyer", types.RoleUser, "whatever", "g1", 6, "")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestListSellerOrders(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedUser(t, db, "buyer", types.RoleUser, 100000)
	seedUser(t, db, "seller1", types.RoleAdmin, 0)
	seedUser(t, db, "seller2", types.RoleAdmin, 0)
	seedGame(t, db, "g1", "seller1", 10000, 5)
	seedGame(t, db, "g2", "seller2", 5000, 5)

	_, err := svc.Checkout("buyer", balanceCheckout("g1", 1), "")
	require.NoError(t, err)
	_, err = svc.Checkout("buyer", balanceCheckout("g2", 1), "")
	require.NoError(t, err)

	mine, err := svc.ListSellerOrders("seller1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "g1", mine[0].Items[0].GameID)

	all, err := svc.ListBuyerOrders("buyer")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
