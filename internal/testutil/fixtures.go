package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"valuemetrix/internal/models"
	"valuemetrix/internal/token"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email: email,
		Name:  fmt.Sprintf("Test User %d", nextID()),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestPortfolio creates a portfolio with the given visibility and no holdings.
func CreateTestPortfolio(t *testing.T, db *gorm.DB, userID string, visibility models.Visibility) *models.Portfolio {
	t.Helper()

	portfolio := &models.Portfolio{
		UserID:      userID,
		Name:        fmt.Sprintf("Test Portfolio %d", nextID()),
		Visibility:  visibility,
		Cash:        decimal.NewFromInt(1000),
		LastUpdated: time.Now(),
	}
	if err := db.Create(portfolio).Error; err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
	return portfolio
}

// CreateTestHolding adds a holding to a portfolio.
func CreateTestHolding(t *testing.T, db *gorm.DB, portfolioID, symbol string, quantity decimal.Decimal) *models.Holding {
	t.Helper()

	holding := &models.Holding{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Name:        symbol + " Inc.",
		Quantity:    quantity,
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return holding
}

// CreateTestShareAccess creates a live share record with a fresh token.
func CreateTestShareAccess(t *testing.T, db *gorm.DB, portfolioID string) *models.ShareAccess {
	t.Helper()

	tok, err := token.New()
	if err != nil {
		t.Fatalf("failed to generate share token: %v", err)
	}
	share := &models.ShareAccess{
		Token:       tok,
		PortfolioID: portfolioID,
	}
	if err := db.Create(share).Error; err != nil {
		t.Fatalf("failed to create test share access: %v", err)
	}
	return share
}
