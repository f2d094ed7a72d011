package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"valuemetrix/internal/config"
	"valuemetrix/internal/handlers"
	"valuemetrix/internal/identity"
	"valuemetrix/internal/insights"
	"valuemetrix/internal/logger"
	"valuemetrix/internal/middleware"
	"valuemetrix/internal/models"
	"valuemetrix/internal/pricing"
	"valuemetrix/internal/services"
	"valuemetrix/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	config.Get()
	validator.Register()
}

// stubVerifier treats the credential string as a verified email, so
// tests can sign in as anyone without talking to Google.
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, credential string) (*identity.ExternalIdentity, error) {
	if credential == "" {
		return nil, fmt.Errorf("empty credential")
	}
	return &identity.ExternalIdentity{
		Subject: "stub-" + credential,
		Email:   credential,
		Name:    "Integration User",
	}, nil
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Portfolio{},
		&models.Holding{},
		&models.ShareAccess{},
		&models.ShareViewer{},
		&models.TokenAccessLog{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated
// in-memory SQLite, mirroring the production route table.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	oracle := pricing.NewMockOracle(42)
	generator := insights.FallbackGenerator{}
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	shareService := services.NewShareService(db)
	portfolioService := services.NewPortfolioService(db, shareService, oracle, generator)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, stubVerifier{}, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, auditService)
	shareHandler := handlers.NewShareHandler(shareService, portfolioService, auditService)

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimit, middleware.DefaultRateWindow)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(limiter.Middleware())

	auth := v1.Group("/auth")
	auth.POST("/google", authHandler.GoogleSignIn)
	auth.POST("/signout", authHandler.SignOut)

	share := v1.Group("/share")
	share.GET("/:token", middleware.OptionalSession(), shareHandler.GetSharedPortfolio)
	share.POST("/:token/track", middleware.OptionalSession(), shareHandler.TrackAccess)
	share.POST("/:token/revoke", middleware.RequireSession(), shareHandler.RevokeAccess)

	v1.GET("/portfolios/:id", middleware.OptionalSession(), portfolioHandler.GetPortfolio)

	protected := v1.Group("/")
	protected.Use(middleware.RequireSession())

	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/me/shared-with-me", shareHandler.GetSharedWithMe)

	portfolios := protected.Group("/portfolios")
	portfolios.POST("", portfolioHandler.CreatePortfolio)
	portfolios.GET("", portfolioHandler.GetPortfolios)
	portfolios.PUT("/:id", portfolioHandler.UpdatePortfolio)
	portfolios.DELETE("/:id", portfolioHandler.DeletePortfolio)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// signIn authenticates as the given email and returns the session token
// and user ID.
func (app *testApp) signIn(t *testing.T, email string) (token, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"credential":%q}`, email)
	rec := app.request("POST", "/api/v1/auth/google", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-in failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), user["id"].(string)
}

// createPortfolio creates a portfolio for the signed-in user and
// returns the response portfolio object.
func (app *testApp) createPortfolio(t *testing.T, token, body string) map[string]interface{} {
	t.Helper()
	rec := app.request("POST", "/api/v1/portfolios", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create portfolio failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["portfolio"].(map[string]interface{})
}

// uniqueEmail returns a fresh email address per call.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@test.com", prefix, time.Now().UnixNano())
}
