package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"valuemetrix/internal/config"
	"valuemetrix/internal/database"
	"valuemetrix/internal/handlers"
	"valuemetrix/internal/identity"
	"valuemetrix/internal/insights"
	"valuemetrix/internal/logger"
	"valuemetrix/internal/middleware"
	"valuemetrix/internal/pricing"
	"valuemetrix/internal/services"
	"valuemetrix/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Register custom request validators
	validator.Register()

	// Create database manager and run migrations
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize the insight generator. Without an API key the server
	// still runs, serving templated narratives only.
	var generator insights.Generator = insights.FallbackGenerator{}
	if appConfig.GeminiAPIKey != "" {
		gemini, err := insights.NewGeminiGenerator(context.Background(), appConfig.GeminiAPIKey, appConfig.GeminiModel)
		if err != nil {
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		generator = gemini
	} else {
		log.Warn("GEMINI_API_KEY not set, insights will use the local fallback")
	}

	// Initialize services
	db := dbManager.DB()
	oracle := pricing.NewMockOracle(time.Now().UnixNano())
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	shareService := services.NewShareService(db)
	portfolioService := services.NewPortfolioService(db, shareService, oracle, generator)

	verifier := identity.NewGoogleVerifier(http.DefaultClient, appConfig.GoogleClientID)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, verifier, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, auditService)
	shareHandler := handlers.NewShareHandler(shareService, portfolioService, auditService)

	// Rate limiter for the whole API surface, one window per client IP
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimit, middleware.DefaultRateWindow)
	stopSweeper := limiter.StartSweeper(5 * time.Minute)
	defer stopSweeper()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")
	v1.Use(limiter.Middleware())

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/google", authHandler.GoogleSignIn)
	auth.POST("/signout", authHandler.SignOut)

	// Share-link routes: reads and tracking work anonymously, a session
	// upgrades tracking to the viewer set; revocation needs the owner.
	share := v1.Group("/share")
	share.GET("/:token", middleware.OptionalSession(), shareHandler.GetSharedPortfolio)
	share.POST("/:token/track", middleware.OptionalSession(), shareHandler.TrackAccess)
	share.POST("/:token/revoke", middleware.RequireSession(), shareHandler.RevokeAccess)

	// Portfolio reads are visibility-gated in the service, so the route
	// takes whatever session is present.
	v1.GET("/portfolios/:id", middleware.OptionalSession(), portfolioHandler.GetPortfolio)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.RequireSession())

	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/me/shared-with-me", shareHandler.GetSharedWithMe)

	portfolios := protected.Group("/portfolios")
	portfolios.POST("", portfolioHandler.CreatePortfolio)
	portfolios.GET("", portfolioHandler.GetPortfolios)
	portfolios.PUT("/:id", portfolioHandler.UpdatePortfolio)
	portfolios.DELETE("/:id", portfolioHandler.DeletePortfolio)

	log.Infof("Starting ValueMetrix API server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
