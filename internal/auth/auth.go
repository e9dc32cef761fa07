package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/neonverse/gamestore-api/pkg/response"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already in use")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RegisterRequest is the payload for account creation. Role defaults
// to user; admin accounts are sellers.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries an issued token with the account profile.
type TokenResponse struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// Service handles authentication and account management operations
type Service struct {
	db        *Database
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService creates a new authentication service with the given JWT
// secret and token lifetime.
func NewService(gormDB *gorm.DB, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a new account and returns a signed token for it.
func (s *Service) Register(req RegisterRequest) (*TokenResponse, error) {
	existing, err := s.db.GetUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	role := req.Role
	switch role {
	case "":
		role = types.RoleUser
	case types.RoleUser, types.RoleAdmin:
	default:
		// superadmin is seeded, never self-registered
		return nil, fmt.Errorf("%w: invalid role %q", types.ErrValidation, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &types.User{
		UserID:   "USR_" + uuid.New().String(),
		Username: req.Username,
		Email:    req.Email,
		Password: string(hash),
		Role:     role,
	}

	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.UserID).Str("role", user.Role).Msg("account registered")

	return s.issueToken(user)
}

// Login verifies credentials and returns a signed token. Banned
// accounts are refused even with a correct password.
func (s *Service) Login(req LoginRequest) (*TokenResponse, error) {
	user, err := s.db.GetUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.IsBanned {
		return nil, types.ErrBanned
	}

	return s.issueToken(user)
}

func (s *Service) issueToken(user *types.User) (*TokenResponse, error) {
	expiration := time.Now().Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID:   user.UserID,
		Username: user.Username,
		Role:     user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		UserID:     user.UserID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// ListUsers returns every account, newest first.
func (s *Service) ListUsers() ([]types.User, error) {
	return s.db.ListUsers()
}

// ToggleBan flips the ban flag on an account. Superadmin accounts
// cannot be banned.
func (s *Service) ToggleBan(actorRole, userID string) (*types.User, error) {
	if err := Authorize(actorRole, true, ActionBanAccount); err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, userID)
	}
	if user.Role == types.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: superadmin accounts cannot be banned", types.ErrForbidden)
	}

	user.IsBanned = !user.IsBanned
	if err := s.db.SaveUser(user); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", user.UserID).
		Bool("is_banned", user.IsBanned).
		Msg("ban flag toggled")

	return user, nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterHandler handles POST requests to create accounts
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Register(req)
		if errors.Is(err, ErrEmailTaken) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// LoginHandler handles POST requests to authenticate accounts
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Login(req)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// ListUsersHandler handles GET requests for the account roster
// Requires the superadmin role
func (h *GinHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.service.ListUsers()
		response.Handle(c, users, err)
	}
}

// ToggleBanHandler handles PUT requests toggling an account ban
// Requires the superadmin role
// URL parameter: id
func (h *GinHandlers) ToggleBanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.service.ToggleBan(c.GetString("role"), c.Param("id"))
		response.Handle(c, user, err)
	}
}
