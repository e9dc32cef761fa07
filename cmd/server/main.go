package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/neonverse/gamestore-api/internal/auth"
	"github.com/neonverse/gamestore-api/internal/cart"
	"github.com/neonverse/gamestore-api/internal/catalog"
	"github.com/neonverse/gamestore-api/internal/config"
	"github.com/neonverse/gamestore-api/internal/database"
	"github.com/neonverse/gamestore-api/internal/orders"
	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/neonverse/gamestore-api/internal/wallet"
	"github.com/neonverse/gamestore-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the game store API server with graceful
// shutdown support.
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	authHandlers := auth.NewGinHandlers(authService)

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	cartService := cart.NewService(db)
	cartHandlers := cart.NewGinHandlers(cartService)

	orderService := orders.NewService(db)
	orderHandlers := orders.NewGinHandlers(orderService)

	walletService := wallet.NewService(db, cfg.Business)
	walletHandlers := wallet.NewGinHandlers(walletService)

	// Create and start the idempotency record janitor
	processor := orders.NewProcessor(orderService.GetDB())
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go processor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, db, cfg, authHandlers, catalogHandlers, cartHandlers, orderHandlers, walletHandlers)

	port := cfg.Server.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers.
// Route groups by actor:
// - Public: auth and catalog browsing
// - Buyer/seller routes: JWT plus a ban re-check against the database
// - Seller (admin) routes: additionally gated on the admin role
// - Superadmin routes: wallet approvals and account management
func setupRoutes(
	router *gin.Engine,
	db *gorm.DB,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
	cartHandlers *cart.GinHandlers,
	orderHandlers *orders.GinHandlers,
	walletHandlers *wallet.GinHandlers,
) {
	authed := []gin.HandlerFunc{
		middleware.JWTAuth(cfg.Auth.JWTSecret),
		middleware.BanGuard(db),
	}

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Catalog routes: browsing is public, listing management is
		// seller-only
		games := v1.Group("/games")
		{
			games.GET("", catalogHandlers.ListGamesHandler())
			games.GET("/:id", catalogHandlers.GetGameHandler())
			games.GET("/:id/related", catalogHandlers.ListRelatedHandler())
			games.GET("/:id/reviews", catalogHandlers.ListReviewsHandler())

			manage := games.Group("")
			manage.Use(authed...)
			manage.Use(middleware.RequireRole(types.RoleAdmin))
			{
				manage.POST("", catalogHandlers.CreateGameHandler())
				manage.PUT("/:id", catalogHandlers.UpdateGameHandler())
				manage.DELETE("/:id", catalogHandlers.DeleteGameHandler())
			}
		}

		// Cart routes
		cartGroup := v1.Group("/cart")
		cartGroup.Use(authed...)
		{
			cartGroup.POST("/add", cartHandlers.AddHandler())
			cartGroup.GET("", cartHandlers.GetHandler())
			cartGroup.DELETE("/:gameId", cartHandlers.RemoveHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.Use(authed...)
		{
			orderGroup.POST("/checkout", orderHandlers.CheckoutHandler())
			orderGroup.GET("/my-orders", orderHandlers.MyOrdersHandler())
			orderGroup.PUT("/cancel-request/:id", orderHandlers.RequestCancelHandler())
			orderGroup.PUT("/receive/:id", orderHandlers.ReceiveHandler())
			orderGroup.GET("/can-review/:gameId", orderHandlers.CanReviewHandler())
			orderGroup.POST("/review/:orderId/:gameId", orderHandlers.AddReviewHandler())

			sellerOrders := orderGroup.Group("/admin")
			sellerOrders.Use(middleware.RequireRole(types.RoleAdmin))
			{
				sellerOrders.GET("/orders", orderHandlers.AdminOrdersHandler())
				sellerOrders.PUT("/orders/:id/status", orderHandlers.ChangeStatusHandler())
				sellerOrders.PUT("/cancel-order/:id", orderHandlers.AdminCancelHandler())
			}
		}

		// Wallet and account routes
		users := v1.Group("/users")
		users.Use(authed...)
		{
			me := users.Group("/me")
			{
				me.GET("/balance", walletHandlers.BalanceHandler())
				me.POST("/topup", walletHandlers.RequestTopupHandler())
				me.GET("/topups", walletHandlers.MyTopupsHandler())

				seller := me.Group("")
				seller.Use(middleware.RequireRole(types.RoleAdmin))
				{
					seller.GET("/balance-history", walletHandlers.BalanceHistoryHandler())
					seller.POST("/withdraw", walletHandlers.RequestWithdrawHandler())
					seller.GET("/withdraws", walletHandlers.MyWithdrawsHandler())
				}
			}

			admin := users.Group("/admin")
			admin.Use(middleware.RequireRole(types.RoleSuperAdmin))
			{
				admin.GET("/withdraws", walletHandlers.AllWithdrawsHandler())
				admin.PUT("/withdraws/:id", walletHandlers.ApproveWithdrawHandler())
				admin.GET("/topups", walletHandlers.AllTopupsHandler())
				admin.PUT("/topups/:id", walletHandlers.ApproveTopupHandler())
				admin.GET("/users", authHandlers.ListUsersHandler())
				admin.PUT("/users/:id/ban", authHandlers.ToggleBanHandler())
			}
		}
	}
}
