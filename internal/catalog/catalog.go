package catalog

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/neonverse/gamestore-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const relatedLimit = 6

// Service handles game catalog operations
type Service struct {
	db *Database
}

// NewService creates a new catalog service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// GameRequest is the payload for creating or updating a game listing.
type GameRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	Image       string `json:"image"`
}

// CreateGame adds a listing owned by the acting seller.
func (s *Service) CreateGame(sellerID string, req GameRequest) (*types.Game, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", types.ErrValidation)
	}
	if req.Price < 0 || req.Stock < 0 {
		return nil, fmt.Errorf("%w: price and stock must not be negative", types.ErrValidation)
	}

	game := &types.Game{
		GameID:      "GME_" + uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
		CreatedBy:   sellerID,
	}

	if err := s.db.CreateGame(game); err != nil {
		return nil, err
	}

	log.Info().
		Str("game_id", game.GameID).
		Str("seller_id", sellerID).
		Int64("price", game.Price).
		Msg("game listed")

	return game, nil
}

// UpdateGame edits a listing. Only the owning seller may edit, and
// zero-valued fields keep their current value.
func (s *Service) UpdateGame(sellerID, gameID string, req GameRequest) (*types.Game, error) {
	game, err := s.db.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: game %s", types.ErrNotFound, gameID)
	}
	if game.CreatedBy != sellerID {
		return nil, fmt.Errorf("%w: game belongs to another seller", types.ErrForbidden)
	}

	if req.Title != "" {
		game.Title = req.Title
	}
	if req.Description != "" {
		game.Description = req.Description
	}
	if req.Price > 0 {
		game.Price = req.Price
	}
	if req.Stock > 0 {
		game.Stock = req.Stock
	}
	if req.Image != "" {
		game.Image = req.Image
	}

	if err := s.db.SaveGame(game); err != nil {
		return nil, err
	}
	return game, nil
}

// DeleteGame removes a listing. Refused when any order still
// references the game.
func (s *Service) DeleteGame(sellerID, gameID string) error {
	game, err := s.db.GetGame(gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return fmt.Errorf("%w: game %s", types.ErrNotFound, gameID)
	}
	if game.CreatedBy != sellerID {
		return fmt.Errorf("%w: game belongs to another seller", types.ErrForbidden)
	}

	refs, err := s.db.CountOrderReferences(gameID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: game is referenced by %d order line(s)", types.ErrValidation, refs)
	}

	return s.db.DeleteGame(game)
}

// ListGames returns the whole catalog, newest first.
func (s *Service) ListGames() ([]types.Game, error) {
	return s.db.ListGames()
}

// GetGame returns a single listing.
func (s *Service) GetGame(gameID string) (*types.Game, error) {
	game, err := s.db.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: game %s", types.ErrNotFound, gameID)
	}
	return game, nil
}

// ListRelated returns other listings from the same seller.
func (s *Service) ListRelated(gameID string) ([]types.Game, error) {
	game, err := s.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	return s.db.ListRelated(game, relatedLimit)
}

// ListReviews returns the reviews of a game, newest first.
func (s *Service) ListReviews(gameID string) ([]types.Review, error) {
	if _, err := s.GetGame(gameID); err != nil {
		return nil, err
	}
	return s.db.ListReviews(gameID)
}

// GinHandlers contains HTTP handlers for catalog endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for catalog endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListGamesHandler handles GET requests for the catalog
func (h *GinHandlers) ListGamesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		games, err := h.service.ListGames()
		response.Handle(c, games, err)
	}
}

// GetGameHandler handles GET requests for a single game
// URL parameter: id
func (h *GinHandlers) GetGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		game, err := h.service.GetGame(c.Param("id"))
		response.Handle(c, game, err)
	}
}

// ListRelatedHandler handles GET requests for related games
// URL parameter: id
func (h *GinHandlers) ListRelatedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		games, err := h.service.ListRelated(c.Param("id"))
		response.Handle(c, games, err)
	}
}

// ListReviewsHandler handles GET requests for a game's reviews
// URL parameter: id
func (h *GinHandlers) ListReviewsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reviews, err := h.service.ListReviews(c.Param("id"))
		response.Handle(c, reviews, err)
	}
}

// CreateGameHandler handles POST requests to list a game
// Requires the admin role
func (h *GinHandlers) CreateGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		game, err := h.service.CreateGame(c.GetString("userID"), req)
		response.Handle(c, game, err)
	}
}

// UpdateGameHandler handles PUT requests to edit a game
// Requires the admin role; only the owner may edit
// URL parameter: id
func (h *GinHandlers) UpdateGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		game, err := h.service.UpdateGame(c.GetString("userID"), c.Param("id"), req)
		response.Handle(c, game, err)
	}
}

// DeleteGameHandler handles DELETE requests for a game
// Requires the admin role; only the owner may delete
// URL parameter: id
func (h *GinHandlers) DeleteGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.service.DeleteGame(c.GetString("userID"), c.Param("id"))
		response.Handle(c, gin.H{"deleted": err == nil}, err)
	}
}
