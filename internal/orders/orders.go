package orders

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/neonverse/gamestore-api/internal/auth"
	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/neonverse/gamestore-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const idempotencyTTL = 24 * time.Hour

// Service handles checkout, the order lifecycle, and settlement.
type Service struct {
	db *Database
}

// NewService creates a new order service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// GetDB exposes the order database for the background processor.
func (s *Service) GetDB() *Database {
	return s.db
}

type CheckoutItem struct {
	GameID   string `json:"game_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gte=1"`
}

type PaymentRequest struct {
	Method        string `json:"method" binding:"required"`
	Provider      string `json:"provider"`
	AccountNumber string `json:"account_number"`
}

type CheckoutRequest struct {
	Items   []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	Payment PaymentRequest `json:"payment" binding:"required"`
}

// Checkout validates and creates an order from the buyer's selection.
// The whole operation runs in one transaction: a failed line (missing
// game, short stock, short balance) rolls back every prior stock
// decrement, so no partial mutation survives a failed checkout.
//
// Balance payments debit the buyer immediately and start the order in
// processing; bank and ewallet payments start in pending with the
// payment outstanding.
func (s *Service) Checkout(buyerID string, req CheckoutRequest, idempotencyKey string) (*types.Order, error) {
	logger := log.With().
		Str("user_id", buyerID).
		Str("service", "orders").
		Logger()

	// Replay a retried checkout instead of charging twice
	if idempotencyKey != "" {
		record, err := s.db.GetIdempotencyRecord(idempotencyKey)
		if err != nil {
			return nil, err
		}
		if record != nil && record.ExpiresAt.After(time.Now()) {
			existing, err := s.db.GetOrder(record.ResourceID)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				logger.Info().Str("order_id", existing.OrderID).Msg("checkout replayed from idempotency record")
				return existing, nil
			}
		}
	}

	if err := validatePayment(req.Payment); err != nil {
		return nil, err
	}

	order := &types.Order{
		OrderID: "ORD_" + uuid.New().String(),
		UserID:  buyerID,
		Payment: types.Payment{
			Method:        req.Payment.Method,
			Provider:      req.Payment.Provider,
			AccountNumber: req.Payment.AccountNumber,
			Status:        PaymentStatusPending,
		},
		Status: StatusPending,
	}

	err := s.db.Transaction(func(tx *Database) error {
		var total int64

		for _, item := range req.Items {
			game, err := tx.GetGame(item.GameID)
			if err != nil {
				return err
			}
			if game == nil {
				return fmt.Errorf("%w: game %s", types.ErrNotFound, item.GameID)
			}

			if err := tx.DecrementStock(game.GameID, item.Quantity); err != nil {
				return fmt.Errorf("%w: %s", err, game.Title)
			}

			// Unit price and seller are snapshotted here; later
			// catalog changes never touch this order.
			order.Items = append(order.Items, types.OrderItem{
				OrderID:  order.OrderID,
				GameID:   game.GameID,
				SellerID: game.CreatedBy,
				Quantity: item.Quantity,
				Price:    game.Price,
			})
			total += game.Price * int64(item.Quantity)
		}
		order.TotalAmount = total

		if order.Payment.Method == PaymentMethodBalance {
			if err := tx.DebitUser(buyerID, total); err != nil {
				return err
			}
			order.Payment.Status = PaymentStatusPaid
			order.Status = StatusProcessing
		}

		if err := tx.CreateOrder(order); err != nil {
			return err
		}

		if err := tx.ClearCart(buyerID); err != nil {
			return err
		}

		if idempotencyKey != "" {
			record := &IdempotencyRecord{
				IdempotencyKey: idempotencyKey,
				ResourceID:     order.OrderID,
				ResourceType:   "order",
				ExpiresAt:      time.Now().Add(idempotencyTTL),
			}
			if err := tx.CreateIdempotencyRecord(record); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("order_id", order.OrderID).
		Int64("total_amount", order.TotalAmount).
		Str("payment_method", order.Payment.Method).
		Str("status", order.Status).
		Msg("checkout completed")

	return order, nil
}

func validatePayment(p PaymentRequest) error {
	switch p.Method {
	case PaymentMethodBalance:
		return nil
	case PaymentMethodBank, PaymentMethodEwallet:
		if p.Provider == "" || p.AccountNumber == "" {
			return fmt.Errorf("%w: provider and account number are required for %s payments",
				types.ErrInvalidPayment, p.Method)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown method %q", types.ErrInvalidPayment, p.Method)
	}
}

// ListBuyerOrders returns the buyer's orders, newest first.
func (s *Service) ListBuyerOrders(buyerID string) ([]types.Order, error) {
	return s.db.ListByBuyer(buyerID)
}

// ListSellerOrders returns orders containing the seller's games.
func (s *Service) ListSellerOrders(sellerID string) ([]types.Order, error) {
	return s.db.ListBySeller(sellerID)
}

// sellerOwnsAll reports whether every line's game belongs to the actor.
func sellerOwnsAll(order *types.Order, sellerID string) bool {
	for _, item := range order.Items {
		if item.SellerID != sellerID {
			return false
		}
	}
	return len(order.Items) > 0
}

// ChangeStatus advances an order on the seller's behalf. The actor
// must own every game in the order, and the move must be legal per the
// transition table. Transitions into cancelled restock every line.
func (s *Service) ChangeStatus(actorID, actorRole, orderID, newStatus, reason string) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", types.ErrNotFound, orderID)
	}

	action := auth.ActionAdvanceOrder
	if newStatus == StatusCancelled {
		action = auth.ActionCancelOrder
	}
	if err := auth.Authorize(actorRole, sellerOwnsAll(order, actorID), action); err != nil {
		return nil, err
	}

	// received is the buyer's acknowledgement; sellers never set it
	if newStatus == StatusReceived {
		return nil, fmt.Errorf("%w: received is buyer-initiated", types.ErrInvalidTransition)
	}

	if err := ValidateTransition(order.Status, newStatus); err != nil {
		return nil, err
	}

	previous := order.Status
	err = s.db.Transaction(func(tx *Database) error {
		extra := map[string]interface{}{}
		if newStatus == StatusCancelled {
			extra["cancel_reason_admin"] = reason
		}
		// Claim the move conditionally: if a concurrent transition beat
		// us here, restocking again would return stock twice.
		claimed, err := tx.TransitionOrder(order.OrderID, previous, newStatus, extra)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: order is no longer %s", types.ErrInvalidTransition, previous)
		}

		if newStatus == StatusCancelled {
			for _, item := range order.Items {
				if err := tx.Restock(item.GameID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = newStatus
	if newStatus == StatusCancelled {
		order.CancelReasonAdmin = reason
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("seller_id", actorID).
		Str("from", previous).
		Str("to", newStatus).
		Str("service", "orders").
		Msg("order status changed")

	return order, nil
}

// RequestCancel flags a buyer's order for cancellation; the seller
// decides. Legal only from pending or processing.
func (s *Service) RequestCancel(buyerID, actorRole, orderID, reason string) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", types.ErrNotFound, orderID)
	}

	if err := auth.Authorize(actorRole, order.UserID == buyerID, auth.ActionRequestCancel); err != nil {
		return nil, err
	}

	switch order.Status {
	case StatusPending, StatusProcessing:
	case StatusCompleted, StatusReceived, StatusCancelled:
		return nil, fmt.Errorf("%w: order is %s", types.ErrOrderFinal, order.Status)
	default:
		return nil, fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, order.Status, StatusCancelRequest)
	}

	order.Status = StatusCancelRequest
	order.CancelReasonUser = reason
	if err := s.db.SaveOrder(order); err != nil {
		return nil, err
	}

	return order, nil
}

// Receive is the buyer's acknowledgement of a completed order and the
// single path by which revenue becomes seller-spendable balance: each
// line's seller is credited price*quantity and one balance history
// entry is appended per line, all in one transaction.
func (s *Service) Receive(buyerID, actorRole, orderID string) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", types.ErrNotFound, orderID)
	}

	if err := auth.Authorize(actorRole, order.UserID == buyerID, auth.ActionReceiveOrder); err != nil {
		return nil, err
	}

	if order.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: order is %s", types.ErrNotReady, order.Status)
	}

	err = s.db.Transaction(func(tx *Database) error {
		// The claim must be conditional: two concurrent Receive calls
		// both see completed on the read above, and only the one that
		// wins this update may credit the sellers.
		claimed, err := tx.TransitionOrder(order.OrderID, StatusCompleted, StatusReceived, nil)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: order is no longer %s", types.ErrNotReady, StatusCompleted)
		}

		for _, item := range order.Items {
			amount := item.Price * int64(item.Quantity)
			if err := tx.CreditUser(item.SellerID, amount); err != nil {
				return err
			}
			entry := &types.BalanceHistory{
				EntryID: "BLH_" + uuid.New().String(),
				UserID:  item.SellerID,
				OrderID: order.OrderID,
				GameID:  item.GameID,
				Amount:  amount,
				Type:    types.HistoryTypeCredit,
			}
			if err := tx.CreateBalanceHistory(entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = StatusReceived

	log.Info().
		Str("order_id", order.OrderID).
		Int64("total_amount", order.TotalAmount).
		Str("service", "orders").
		Msg("order received, sellers settled")

	return order, nil
}

// CanReview reports whether the buyer has a received order containing
// the game.
func (s *Service) CanReview(buyerID, gameID string) (bool, error) {
	return s.db.HasReceivedOrderWithGame(buyerID, gameID)
}

// AddReview attaches a review to a game the buyer actually received
// through the given order, then recomputes the game's average rating.
func (s *Service) AddReview(buyerID, actorRole, orderID, gameID string, rating int, comment string) (*types.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", types.ErrValidation)
	}

	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", types.ErrNotFound, orderID)
	}

	owns := order.UserID == buyerID && order.Status == StatusReceived && containsGame(order, gameID)
	if err := auth.Authorize(actorRole, owns, auth.ActionReviewGame); err != nil {
		return nil, err
	}

	exists, err := s.db.HasReview(buyerID, orderID, gameID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: game already reviewed for this order", types.ErrValidation)
	}

	review := &types.Review{
		ReviewID: "RVW_" + uuid.New().String(),
		GameID:   gameID,
		OrderID:  orderID,
		UserID:   buyerID,
		Rating:   rating,
		Comment:  comment,
	}

	err = s.db.Transaction(func(tx *Database) error {
		if err := tx.CreateReview(review); err != nil {
			return err
		}
		return tx.RecomputeRating(gameID)
	})
	if err != nil {
		return nil, err
	}

	return review, nil
}

func containsGame(order *types.Order, gameID string) bool {
	for _, item := range order.Items {
		if item.GameID == gameID {
			return true
		}
	}
	return false
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CheckoutHandler handles POST requests to run a checkout
// An optional Idempotency-Key header makes retries safe
func (h *GinHandlers) CheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.Checkout(c.GetString("userID"), req, c.GetHeader("Idempotency-Key"))
		response.Handle(c, order, err)
	}
}

// MyOrdersHandler handles GET requests for the buyer's own orders
func (h *GinHandlers) MyOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.ListBuyerOrders(c.GetString("userID"))
		response.Handle(c, orders, err)
	}
}

// RequestCancelHandler handles PUT requests for buyer-initiated cancel
// URL parameter: id
func (h *GinHandlers) RequestCancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&body)

		order, err := h.service.RequestCancel(c.GetString("userID"), c.GetString("role"), c.Param("id"), body.Reason)
		response.Handle(c, order, err)
	}
}

// ReceiveHandler handles PUT requests acknowledging receipt
// URL parameter: id
func (h *GinHandlers) ReceiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.Receive(c.GetString("userID"), c.GetString("role"), c.Param("id"))
		response.Handle(c, order, err)
	}
}

// CanReviewHandler handles GET requests probing review eligibility
// URL parameter: gameId
func (h *GinHandlers) CanReviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("gameId")
		ok, err := h.service.CanReview(c.GetString("userID"), gameID)
		response.Handle(c, types.CanReviewResponse{GameID: gameID, CanReview: ok}, err)
	}
}

// AddReviewHandler handles POST requests to review a received game
// URL parameters: orderId, gameId
func (h *GinHandlers) AddReviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Rating  int    `json:"rating" binding:"required"`
			Comment string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		review, err := h.service.AddReview(
			c.GetString("userID"), c.GetString("role"),
			c.Param("orderId"), c.Param("gameId"),
			body.Rating, body.Comment,
		)
		response.Handle(c, review, err)
	}
}

// AdminOrdersHandler handles GET requests for orders containing the
// seller's games
func (h *GinHandlers) AdminOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.ListSellerOrders(c.GetString("userID"))
		response.Handle(c, orders, err)
	}
}

// ChangeStatusHandler handles PUT requests advancing an order
// URL parameter: id
func (h *GinHandlers) ChangeStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status" binding:"required"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.ChangeStatus(
			c.GetString("userID"), c.GetString("role"),
			c.Param("id"), body.Status, body.Reason,
		)
		response.Handle(c, order, err)
	}
}

// AdminCancelHandler handles PUT requests for seller-initiated cancel
// URL parameter: id
func (h *GinHandlers) AdminCancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&body)

		order, err := h.service.ChangeStatus(
			c.GetString("userID"), c.GetString("role"),
			c.Param("id"), StatusCancelled, body.Reason,
		)
		response.Handle(c, order, err)
	}
}
