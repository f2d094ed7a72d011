package models

import "time"

// ShareAccess is the capability record behind a shareable portfolio link.
// One row per portfolio, created when a portfolio first becomes
// smart_shared. Rows are never deleted, only revoked; IsRevoked moves
// from false to true exactly once and is never reversed.
type ShareAccess struct {
	Base
	Token       string `gorm:"uniqueIndex;not null" json:"token"`
	PortfolioID string `gorm:"type:uuid;uniqueIndex;not null" json:"portfolio_id"`
	IsRevoked   bool   `gorm:"not null;default:false" json:"is_revoked"`
	ViewCount   int64  `gorm:"not null;default:0" json:"view_count"`

	// Relationships
	Portfolio  Portfolio        `gorm:"foreignKey:PortfolioID" json:"portfolio,omitempty"`
	Viewers    []ShareViewer    `gorm:"foreignKey:ShareAccessID" json:"viewers,omitempty"`
	AccessLogs []TokenAccessLog `gorm:"foreignKey:ShareAccessID" json:"access_logs,omitempty"`
}

// ShareViewer records that an authenticated user has opened a share link
// at least once. The composite primary key makes viewer deduplication an
// atomic insert-if-absent at the database, and the same table serves as
// the user-side back-reference to shares they have accessed.
type ShareViewer struct {
	ShareAccessID string    `gorm:"type:uuid;primaryKey" json:"share_access_id"`
	UserID        string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// TokenAccessLog is an append-only audit entry, one row per access
// attempt, including attempts against revoked tokens.
type TokenAccessLog struct {
	Base
	ShareAccessID string `gorm:"type:uuid;not null;index" json:"share_access_id"`
	Fingerprint   string `json:"fingerprint"`
	IPAddress     string `json:"ip_address"`
	UserAgent     string `json:"user_agent"`
}
