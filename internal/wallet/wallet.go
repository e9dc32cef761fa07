package wallet

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/neonverse/gamestore-api/internal/auth"
	"github.com/neonverse/gamestore-api/internal/config"
	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/neonverse/gamestore-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service handles balance reads, the withdraw and top-up approval
// lifecycle, and the settlement history projection.
type Service struct {
	db  *Database
	cfg config.BusinessConfig
}

// NewService creates a new wallet service with the given database
// connection and business constants.
func NewService(gormDB *gorm.DB, cfg config.BusinessConfig) *Service {
	return &Service{
		db:  NewDatabase(gormDB),
		cfg: cfg,
	}
}

// GetBalance returns the account's current balance.
func (s *Service) GetBalance(userID string) (*types.BalanceResponse, error) {
	user, err := s.db.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, userID)
	}
	return &types.BalanceResponse{UserID: user.UserID, Balance: user.Balance}, nil
}

// ListBalanceHistory returns the seller's settlement credits, newest
// first.
func (s *Service) ListBalanceHistory(userID string) ([]types.BalanceHistoryEntry, error) {
	return s.db.ListBalanceHistory(userID)
}

type WithdrawRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Method        string `json:"method" binding:"required"`
	BankName      string `json:"bank_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
}

// RequestWithdraw records a seller's payout request. The balance is
// only checked here, not debited; the debit happens on approval.
func (s *Service) RequestWithdraw(sellerID string, req WithdrawRequest) (*types.Withdraw, error) {
	if req.Method != "bank" && req.Method != "ewallet" {
		return nil, fmt.Errorf("%w: unknown method %q", types.ErrValidation, req.Method)
	}
	if req.Amount < s.cfg.WithdrawMinimum {
		return nil, fmt.Errorf("%w: withdraw minimum is %d", types.ErrBelowMinimum, s.cfg.WithdrawMinimum)
	}

	seller, err := s.db.GetUser(sellerID)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, sellerID)
	}
	if seller.Balance < req.Amount {
		return nil, fmt.Errorf("%w: balance %d, requested %d", types.ErrInsufficientBalance, seller.Balance, req.Amount)
	}

	pending, err := s.db.HasPendingWithdraw(sellerID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, fmt.Errorf("%w: a withdraw is already pending", types.ErrDuplicatePending)
	}

	fee := s.cfg.WithdrawFee
	final := req.Amount - fee
	if final < 0 {
		final = 0
	}

	withdraw := &types.Withdraw{
		WithdrawID:    "WDR_" + uuid.New().String(),
		UserID:        sellerID,
		Amount:        req.Amount,
		Fee:           fee,
		FinalAmount:   final,
		Method:        req.Method,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		Status:        types.WithdrawStatusPending,
	}

	if err := s.db.CreateWithdraw(withdraw); err != nil {
		return nil, err
	}

	log.Info().
		Str("withdraw_id", withdraw.WithdrawID).
		Str("user_id", sellerID).
		Int64("amount", withdraw.Amount).
		Int64("final_amount", withdraw.FinalAmount).
		Str("service", "wallet").
		Msg("withdraw requested")

	return withdraw, nil
}

// ListMyWithdraws returns the seller's withdraw requests.
func (s *Service) ListMyWithdraws(sellerID string) ([]types.Withdraw, error) {
	return s.db.ListWithdrawsByUser(sellerID)
}

// ListAllWithdraws returns every withdraw request for review.
func (s *Service) ListAllWithdraws() ([]types.Withdraw, error) {
	return s.db.ListWithdraws()
}

// ApproveWithdraw moves a withdraw to processing, paid, or rejected.
// Approval to paid debits the full requested amount (the fee stays
// with the platform) and fails if the balance has since dropped below
// it.
func (s *Service) ApproveWithdraw(actorRole, withdrawID, newStatus, note string) (*types.Withdraw, error) {
	if err := auth.Authorize(actorRole, false, auth.ActionApproveWithdraw); err != nil {
		return nil, err
	}

	switch newStatus {
	case types.WithdrawStatusProcessing, types.WithdrawStatusPaid, types.WithdrawStatusRejected:
	default:
		return nil, fmt.Errorf("%w: unknown withdraw status %q", types.ErrValidation, newStatus)
	}

	withdraw, err := s.db.GetWithdraw(withdrawID)
	if err != nil {
		return nil, err
	}
	if withdraw == nil {
		return nil, fmt.Errorf("%w: withdraw %s", types.ErrNotFound, withdrawID)
	}

	if withdraw.Status == types.WithdrawStatusPaid || withdraw.Status == types.WithdrawStatusRejected {
		return nil, fmt.Errorf("%w: withdraw is %s", types.ErrAlreadyFinal, withdraw.Status)
	}

	var processedAt *time.Time
	if newStatus == types.WithdrawStatusPaid || newStatus == types.WithdrawStatusRejected {
		now := time.Now()
		processedAt = &now
	}

	err = s.db.Transaction(func(tx *Database) error {
		// Conditional claim: two concurrent reviews both pass the
		// AlreadyFinal check above, and only the one that wins this
		// update may debit the seller.
		claimed, err := tx.TransitionWithdraw(withdraw.WithdrawID, newStatus, note, processedAt)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: withdraw already settled", types.ErrAlreadyFinal)
		}
		if newStatus == types.WithdrawStatusPaid {
			return tx.DebitUser(withdraw.UserID, withdraw.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	withdraw.Status = newStatus
	withdraw.Note = note
	if processedAt != nil {
		withdraw.ProcessedAt = processedAt
	}

	log.Info().
		Str("withdraw_id", withdraw.WithdrawID).
		Str("status", withdraw.Status).
		Str("service", "wallet").
		Msg("withdraw reviewed")

	return withdraw, nil
}

type TopupRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Method   string `json:"method" binding:"required"`
	Provider string `json:"provider" binding:"required"`
}

// RequestTopup records a buyer's top-up request. No fee; the credit
// happens on approval.
func (s *Service) RequestTopup(userID string, req TopupRequest) (*types.Topup, error) {
	if req.Method != "bank" && req.Method != "ewallet" {
		return nil, fmt.Errorf("%w: unknown method %q", types.ErrValidation, req.Method)
	}
	if req.Amount < s.cfg.TopupMinimum {
		return nil, fmt.Errorf("%w: top-up minimum is %d", types.ErrBelowMinimum, s.cfg.TopupMinimum)
	}

	user, err := s.db.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, userID)
	}

	topup := &types.Topup{
		TopupID:  "TOP_" + uuid.New().String(),
		UserID:   userID,
		Amount:   req.Amount,
		Method:   req.Method,
		Provider: req.Provider,
		Status:   types.TopupStatusPending,
	}

	if err := s.db.CreateTopup(topup); err != nil {
		return nil, err
	}

	log.Info().
		Str("topup_id", topup.TopupID).
		Str("user_id", userID).
		Int64("amount", topup.Amount).
		Str("service", "wallet").
		Msg("top-up requested")

	return topup, nil
}

// ListMyTopups returns the account's top-up requests.
func (s *Service) ListMyTopups(userID string) ([]types.Topup, error) {
	return s.db.ListTopupsByUser(userID)
}

// ListAllTopups returns every top-up request for review.
func (s *Service) ListAllTopups() ([]types.Topup, error) {
	return s.db.ListTopups()
}

// ApproveTopup moves a top-up to paid or rejected. Approval to paid
// credits the full requested amount.
func (s *Service) ApproveTopup(actorRole, topupID, newStatus, note string) (*types.Topup, error) {
	if err := auth.Authorize(actorRole, false, auth.ActionApproveTopup); err != nil {
		return nil, err
	}

	switch newStatus {
	case types.TopupStatusPaid, types.TopupStatusRejected:
	default:
		return nil, fmt.Errorf("%w: unknown top-up status %q", types.ErrValidation, newStatus)
	}

	topup, err := s.db.GetTopup(topupID)
	if err != nil {
		return nil, err
	}
	if topup == nil {
		return nil, fmt.Errorf("%w: top-up %s", types.ErrNotFound, topupID)
	}

	if topup.Status != types.TopupStatusPending {
		return nil, fmt.Errorf("%w: top-up is %s", types.ErrAlreadyFinal, topup.Status)
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *Database) error {
		// Same conditional claim as withdraws: the credit only happens
		// for the review that actually moved the top-up out of pending.
		claimed, err := tx.TransitionTopup(topup.TopupID, newStatus, note, now)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: top-up already settled", types.ErrAlreadyFinal)
		}
		if newStatus == types.TopupStatusPaid {
			return tx.CreditUser(topup.UserID, topup.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	topup.Status = newStatus
	topup.Note = note
	topup.ProcessedAt = &now

	log.Info().
		Str("topup_id", topup.TopupID).
		Str("status", topup.Status).
		Str("service", "wallet").
		Msg("top-up reviewed")

	return topup, nil
}

// GinHandlers contains HTTP handlers for wallet endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for wallet endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// BalanceHandler handles GET requests for the account balance
func (h *GinHandlers) BalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := h.service.GetBalance(c.GetString("userID"))
		response.Handle(c, balance, err)
	}
}

// BalanceHistoryHandler handles GET requests for settlement history
// Requires the admin role
func (h *GinHandlers) BalanceHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.service.ListBalanceHistory(c.GetString("userID"))
		response.Handle(c, entries, err)
	}
}

// RequestWithdrawHandler handles POST requests for a payout
// Requires the admin role
func (h *GinHandlers) RequestWithdrawHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		withdraw, err := h.service.RequestWithdraw(c.GetString("userID"), req)
		response.Handle(c, withdraw, err)
	}
}

// MyWithdrawsHandler handles GET requests for the seller's withdraws
func (h *GinHandlers) MyWithdrawsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		withdraws, err := h.service.ListMyWithdraws(c.GetString("userID"))
		response.Handle(c, withdraws, err)
	}
}

// AllWithdrawsHandler handles GET requests for every withdraw
// Requires the superadmin role
func (h *GinHandlers) AllWithdrawsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		withdraws, err := h.service.ListAllWithdraws()
		response.Handle(c, withdraws, err)
	}
}

// ApproveWithdrawHandler handles PUT requests reviewing a withdraw
// Requires the superadmin role
// URL parameter: id
func (h *GinHandlers) ApproveWithdrawHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status" binding:"required"`
			Note   string `json:"note"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		withdraw, err := h.service.ApproveWithdraw(c.GetString("role"), c.Param("id"), body.Status, body.Note)
		response.Handle(c, withdraw, err)
	}
}

// RequestTopupHandler handles POST requests for a balance top-up
func (h *GinHandlers) RequestTopupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TopupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		topup, err := h.service.RequestTopup(c.GetString("userID"), req)
		response.Handle(c, topup, err)
	}
}

// MyTopupsHandler handles GET requests for the account's top-ups
func (h *GinHandlers) MyTopupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		topups, err := h.service.ListMyTopups(c.GetString("userID"))
		response.Handle(c, topups, err)
	}
}

// AllTopupsHandler handles GET requests for every top-up
// Requires the superadmin role
func (h *GinHandlers) AllTopupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		topups, err := h.service.ListAllTopups()
		response.Handle(c, topups, err)
	}
}

// ApproveTopupHandler handles PUT requests reviewing a top-up
// Requires the superadmin role
// URL parameter: id
func (h *GinHandlers) ApproveTopupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status" binding:"required"`
			Note   string `json:"note"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		topup, err := h.service.ApproveTopup(c.GetString("role"), c.Param("id"), body.Status, body.Note)
		response.Handle(c, topup, err)
	}
}
