package cart

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/neonverse/gamestore-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles cart operations. Carts are transient: checkout
// clears them, and no stock is reserved by carting a game.
type Service struct {
	db *Database
}

// NewService creates a new cart service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

type AddRequest struct {
	GameID   string `json:"game_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// Add puts a game in the buyer's cart, merging with an existing line.
func (s *Service) Add(userID string, req AddRequest) (*types.CartResponse, error) {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	game, err := s.db.GetGame(req.GameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: game %s", types.ErrNotFound, req.GameID)
	}

	item, err := s.db.GetItem(userID, req.GameID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		item = &types.CartItem{UserID: userID, GameID: req.GameID, Quantity: qty}
	} else {
		item.Quantity += qty
	}

	if err := s.db.SaveItem(item); err != nil {
		return nil, err
	}

	return s.Get(userID)
}

// Get returns the cart joined with current catalog facts.
func (s *Service) Get(userID string) (*types.CartResponse, error) {
	items, err := s.db.ListItems(userID)
	if err != nil {
		return nil, err
	}

	resp := &types.CartResponse{Items: make([]types.CartLine, 0, len(items))}
	for _, item := range items {
		game, err := s.db.GetGame(item.GameID)
		if err != nil {
			return nil, err
		}
		if game == nil {
			// listing removed since carting; drop the line silently
			continue
		}
		resp.Items = append(resp.Items, types.CartLine{
			GameID:   game.GameID,
			Title:    game.Title,
			Price:    game.Price,
			Stock:    game.Stock,
			Quantity: item.Quantity,
		})
	}
	return resp, nil
}

// Remove drops a game from the cart.
func (s *Service) Remove(userID, gameID string) (*types.CartResponse, error) {
	if err := s.db.RemoveItem(userID, gameID); err != nil {
		return nil, err
	}
	return s.Get(userID)
}

// GinHandlers contains HTTP handlers for cart endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for cart endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// AddHandler handles POST requests to add a game to the cart
func (h *GinHandlers) AddHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		resp, err := h.service.Add(c.GetString("userID"), req)
		response.Handle(c, resp, err)
	}
}

// GetHandler handles GET requests for the buyer's cart
func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.service.Get(c.GetString("userID"))
		response.Handle(c, resp, err)
	}
}

// RemoveHandler handles DELETE requests for a cart line
// URL parameter: gameId
func (h *GinHandlers) RemoveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.service.Remove(c.GetString("userID"), c.Param("gameId"))
		response.Handle(c, resp, err)
	}
}
