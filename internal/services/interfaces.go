package services

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"valuemetrix/internal/identity"
	"valuemetrix/internal/insights"
	"valuemetrix/internal/models"
	"valuemetrix/internal/pagination"
)

// UserServicer defines the contract for local identity management.
type UserServicer interface {
	// ResolveExternalIdentity maps a verified provider identity onto a
	// local user record, creating it on first sign-in.
	ResolveExternalIdentity(ext *identity.ExternalIdentity) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
}

// AccessEvent describes one share-link page view.
type AccessEvent struct {
	Fingerprint string
	UserAgent   string
	IPAddress   string
	// ViewerID is the authenticated visitor's user ID, empty for
	// anonymous visitors.
	ViewerID string
}

// ShareServicer owns the lifecycle of share tokens: issuance,
// authorization against portfolio visibility, revocation, and viewer
// tracking.
type ShareServicer interface {
	// IssueToken creates the 1:1 ShareAccess for a portfolio inside tx
	// (pass nil to use the service's own handle).
	IssueToken(tx *gorm.DB, portfolioID string) (*models.ShareAccess, error)

	// ResolveAccess is the authorization gate for anonymous share-link
	// viewing. It fails with ErrShareNotFound for unknown tokens and for
	// tokens whose portfolio is no longer smart_shared, and with
	// ErrShareRevoked for revoked tokens regardless of visibility.
	ResolveAccess(token string) (*models.ShareAccess, *models.Portfolio, error)

	// RecordAccess logs one page view. The access log row is written
	// before the revocation check; view counting and viewer
	// deduplication happen atomically at the database.
	RecordAccess(token string, event AccessEvent) (*models.ShareAccess, error)

	// Revoke permanently disables a token. Owner-only.
	Revoke(token, requestingUserID string) error

	// AuthorizeRead decides read access to a portfolio for the given
	// viewer email (may be empty) and supplied share token (may be
	// empty). Owner always wins; then public; then a live matching
	// token on a smart_shared portfolio.
	AuthorizeRead(p *models.Portfolio, viewerEmail, suppliedToken string) bool

	// ListAccessedShares returns the shares a user has viewed while
	// authenticated (the user side of the viewer relation).
	ListAccessedShares(userID string) ([]models.ShareAccess, error)
}

// HoldingInput is one position in a create/update request.
type HoldingInput struct {
	Symbol   string
	Name     string
	Quantity decimal.Decimal
}

// PortfolioInput carries the owner-editable portfolio fields. Holdings
// replace the existing set wholesale.
type PortfolioInput struct {
	Name        string
	Description string
	Visibility  models.Visibility
	Cash        decimal.Decimal
	Holdings    []HoldingInput
}

// PortfolioView is a portfolio enriched with current prices, the total
// valuation, and the parsed insight narrative.
type PortfolioView struct {
	Portfolio  *models.Portfolio       `json:"portfolio"`
	Holdings   []insights.HoldingValue `json:"holdings"`
	TotalValue decimal.Decimal         `json:"total_value"`
	Insights   *insights.Narrative     `json:"insights,omitempty"`
	IsOwner    bool                    `json:"is_owner"`
	// ShareToken is populated only for the owner of a smart_shared
	// portfolio.
	ShareToken string `json:"share_token,omitempty"`
}

// PortfolioServicer defines the contract for portfolio management.
type PortfolioServicer interface {
	Create(ctx context.Context, userID string, in PortfolioInput) (*models.Portfolio, error)
	View(ctx context.Context, id, viewerEmail, suppliedToken string) (*PortfolioView, error)
	ViewShared(ctx context.Context, token string) (*PortfolioView, error)
	Update(ctx context.Context, id, userID string, in PortfolioInput) (*models.Portfolio, error)
	Delete(id, userID string) error
	ListByUser(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
