package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Visibility gates who may read a portfolio.
type Visibility string

const (
	// VisibilityPrivate restricts reads to the owner.
	VisibilityPrivate Visibility = "private"
	// VisibilityPublic allows anyone to read.
	VisibilityPublic Visibility = "public"
	// VisibilitySmartShared allows reads through a live share token.
	VisibilitySmartShared Visibility = "smart_shared"
)

// Portfolio is a named collection of holdings plus a cash balance,
// owned and mutated by exactly one user.
type Portfolio struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description,omitempty"`
	Visibility  Visibility      `gorm:"not null;default:'private'" json:"visibility"`
	Cash        decimal.Decimal `gorm:"type:numeric;not null" json:"cash"`
	LastUpdated time.Time       `json:"last_updated"`

	// InsightSummary holds the serialized narrative produced by the
	// insight generator. Opaque JSON text; malformed content reads as
	// "no insights available".
	InsightSummary string `json:"insight_summary,omitempty"`

	// Relationships
	User        User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Holdings    []Holding    `gorm:"foreignKey:PortfolioID" json:"holdings,omitempty"`
	ShareAccess *ShareAccess `gorm:"foreignKey:PortfolioID" json:"share_access,omitempty"`
}

// Holding is a position in a single symbol. Holdings have no identity
// independent of their portfolio: updates replace them wholesale.
type Holding struct {
	Base
	PortfolioID string          `gorm:"type:uuid;not null;index" json:"portfolio_id"`
	Symbol      string          `gorm:"not null" json:"symbol"`
	Name        string          `gorm:"not null" json:"name"`
	Quantity    decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
}
