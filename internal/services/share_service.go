package services

import (
	"crypto/subtle"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "valuemetrix/internal/errors"
	"valuemetrix/internal/models"
	"valuemetrix/internal/token"
)

// issueAttempts bounds retries on a share token collision. The token
// space is 64^21 so a second collision in a row means something is
// broken, not unlucky.
const issueAttempts = 3

// shareService handles share token issuance, authorization and tracking.
type shareService struct {
	db *gorm.DB
}

// NewShareService creates a new ShareServicer.
func NewShareService(db *gorm.DB) ShareServicer {
	return &shareService{db: db}
}

// IssueToken creates the share record for a portfolio. A portfolio has
// at most one share record for its lifetime, so a second call fails on
// the portfolio_id unique constraint.
func (s *shareService) IssueToken(tx *gorm.DB, portfolioID string) (*models.ShareAccess, error) {
	if tx == nil {
		tx = s.db
	}
	if portfolioID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "portfolio id is required")
	}

	for attempt := 0; attempt < issueAttempts; attempt++ {
		t, err := token.New()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		share := &models.ShareAccess{
			Token:       t,
			PortfolioID: portfolioID,
		}
		err = tx.Create(share).Error
		if err == nil {
			return share, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Distinguish a token collision (retry with a fresh token)
			// from an existing share for this portfolio (caller bug).
			var count int64
			tx.Model(&models.ShareAccess{}).Where("portfolio_id = ?", portfolioID).Count(&count)
			if count > 0 {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "portfolio already has a share token")
			}
			continue
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return nil, apperrors.WithMessage(apperrors.ErrInternalServer, "could not generate a unique share token")
}

// ResolveAccess looks up a share token for anonymous viewing.
// Revocation is checked before visibility so a revoked link reports
// Forbidden even after the portfolio leaves smart_shared. A live token
// whose portfolio is no longer smart_shared is indistinguishable from
// an unknown one.
func (s *shareService) ResolveAccess(t string) (*models.ShareAccess, *models.Portfolio, error) {
	var share models.ShareAccess
	if err := s.db.Where("token = ?", t).First(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrShareNotFound
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if share.IsRevoked {
		return nil, nil, apperrors.ErrShareRevoked
	}

	var portfolio models.Portfolio
	err := s.db.Preload("Holdings").Preload("User").First(&portfolio, "id = ?", share.PortfolioID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrShareNotFound
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if portfolio.Visibility != models.VisibilitySmartShared {
		return nil, nil, apperrors.ErrShareNotFound
	}

	return &share, &portfolio, nil
}

// RecordAccess logs one view of a shared portfolio. The access log row
// is written before the revocation check so attempts against revoked
// tokens keep their audit trail. Counting and viewer dedup run in one
// transaction; the ON CONFLICT clause makes repeat views by the same
// user a no-op on the viewer set.
func (s *shareService) RecordAccess(t string, event AccessEvent) (*models.ShareAccess, error) {
	var share models.ShareAccess
	if err := s.db.Where("token = ?", t).First(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrShareNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entry := &models.TokenAccessLog{
		ShareAccessID: share.ID,
		Fingerprint:   event.Fingerprint,
		IPAddress:     event.IPAddress,
		UserAgent:     event.UserAgent,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if share.IsRevoked {
		return nil, apperrors.ErrShareRevoked
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ShareAccess{}).
			Where("id = ?", share.ID).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error; err != nil {
			return err
		}

		if event.ViewerID != "" {
			viewer := &models.ShareViewer{
				ShareAccessID: share.ID,
				UserID:        event.ViewerID,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(viewer).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.First(&share, "id = ?", share.ID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &share, nil
}

// Revoke disables a share token. Only the owner of the underlying
// portfolio may revoke, and revocation is one-way.
func (s *shareService) Revoke(t, requestingUserID string) error {
	var share models.ShareAccess
	if err := s.db.Where("token = ?", t).First(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrShareNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var portfolio models.Portfolio
	if err := s.db.First(&portfolio, "id = ?", share.PortfolioID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrShareNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if portfolio.UserID != requestingUserID {
		return apperrors.ErrNotPortfolioOwner
	}

	if share.IsRevoked {
		return nil
	}

	if err := s.db.Model(&share).UpdateColumn("is_revoked", true).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// AuthorizeRead decides whether a viewer may read a portfolio. Owner
// access never depends on visibility or token state.
func (s *shareService) AuthorizeRead(p *models.Portfolio, viewerEmail, suppliedToken string) bool {
	if p == nil {
		return false
	}

	if viewerEmail != "" && p.User.Email != "" && strings.EqualFold(viewerEmail, p.User.Email) {
		return true
	}

	switch p.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilitySmartShared:
		if suppliedToken == "" {
			return false
		}
		share := p.ShareAccess
		if share == nil {
			var row models.ShareAccess
			if err := s.db.Where("portfolio_id = ?", p.ID).First(&row).Error; err != nil {
				return false
			}
			share = &row
		}
		if share.IsRevoked {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(suppliedToken), []byte(share.Token)) == 1
	}

	return false
}

// ListAccessedShares returns the shares a user viewed while signed in,
// most recent first, with portfolio and owner preloaded.
func (s *shareService) ListAccessedShares(userID string) ([]models.ShareAccess, error) {
	var shares []models.ShareAccess
	err := s.db.
		Joins("JOIN share_viewers ON share_viewers.share_access_id = share_accesses.id").
		Where("share_viewers.user_id = ?", userID).
		Order("share_viewers.created_at DESC").
		Preload("Portfolio").
		Preload("Portfolio.User").
		Find(&shares).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return shares, nil
}
