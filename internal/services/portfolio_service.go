package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "valuemetrix/internal/errors"
	"valuemetrix/internal/insights"
	"valuemetrix/internal/logger"
	"valuemetrix/internal/models"
	"valuemetrix/internal/pagination"
	"valuemetrix/internal/pricing"
)

// portfolioService handles portfolio-related business logic.
type portfolioService struct {
	db        *gorm.DB
	shares    ShareServicer
	oracle    pricing.Oracle
	generator insights.Generator
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB, shares ShareServicer, oracle pricing.Oracle, generator insights.Generator) PortfolioServicer {
	return &portfolioService{db: db, shares: shares, oracle: oracle, generator: generator}
}

func validateInput(in *PortfolioInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "portfolio name is required")
	}
	switch in.Visibility {
	case "":
		in.Visibility = models.VisibilityPrivate
	case models.VisibilityPrivate, models.VisibilityPublic, models.VisibilitySmartShared:
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid visibility")
	}
	if in.Cash.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "cash cannot be negative")
	}
	for _, h := range in.Holdings {
		if strings.TrimSpace(h.Symbol) == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "holding symbol is required")
		}
		if h.Quantity.IsNegative() {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "holding quantity cannot be negative")
		}
	}
	return nil
}

// Create creates a portfolio with its holdings. A smart_shared
// portfolio gets its share token in the same transaction.
func (s *portfolioService) Create(ctx context.Context, userID string, in PortfolioInput) (*models.Portfolio, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	portfolio := &models.Portfolio{
		UserID:      userID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Visibility:  in.Visibility,
		Cash:        in.Cash,
		LastUpdated: time.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(portfolio).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := createHoldings(tx, portfolio.ID, in.Holdings); err != nil {
			return err
		}
		if in.Visibility == models.VisibilitySmartShared {
			if _, err := s.shares.IssueToken(tx, portfolio.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.refreshInsights(ctx, portfolio.ID)

	return s.load(portfolio.ID)
}

// View assembles the priced, authorized read model for a portfolio.
func (s *portfolioService) View(ctx context.Context, id, viewerEmail, suppliedToken string) (*PortfolioView, error) {
	portfolio, err := s.load(id)
	if err != nil {
		return nil, err
	}

	if !s.shares.AuthorizeRead(portfolio, viewerEmail, suppliedToken) {
		return nil, apperrors.ErrForbidden
	}

	isOwner := viewerEmail != "" && strings.EqualFold(viewerEmail, portfolio.User.Email)
	return s.buildView(ctx, portfolio, isOwner)
}

// ViewShared resolves a share token and assembles the read model for
// an anonymous viewer.
func (s *portfolioService) ViewShared(ctx context.Context, t string) (*PortfolioView, error) {
	share, portfolio, err := s.shares.ResolveAccess(t)
	if err != nil {
		return nil, err
	}
	portfolio.ShareAccess = share
	view, err := s.buildView(ctx, portfolio, false)
	if err != nil {
		return nil, err
	}
	// Anonymous viewers never see the token, even the one they came with.
	view.ShareToken = ""
	return view, nil
}

// Update replaces the editable fields and the full holding set. Moving
// a portfolio to smart_shared issues its token if it never had one;
// moving away leaves the token in place, dormant until the portfolio
// is shared again.
func (s *portfolioService) Update(ctx context.Context, id, userID string, in PortfolioInput) (*models.Portfolio, error) {
	portfolio, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if portfolio.UserID != userID {
		return nil, apperrors.ErrNotPortfolioOwner
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":         strings.TrimSpace(in.Name),
			"description":  in.Description,
			"visibility":   in.Visibility,
			"cash":         in.Cash,
			"last_updated": time.Now(),
		}
		if err := tx.Model(&models.Portfolio{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Unscoped().Where("portfolio_id = ?", id).Delete(&models.Holding{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := createHoldings(tx, id, in.Holdings); err != nil {
			return err
		}

		if in.Visibility == models.VisibilitySmartShared && portfolio.ShareAccess == nil {
			if _, err := s.shares.IssueToken(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.refreshInsights(ctx, id)

	return s.load(id)
}

// Delete soft-deletes a portfolio and its holdings. The share record
// stays behind so revoked-token history survives; ResolveAccess treats
// a deleted portfolio as not found.
func (s *portfolioService) Delete(id, userID string) error {
	portfolio, err := s.load(id)
	if err != nil {
		return err
	}
	if portfolio.UserID != userID {
		return apperrors.ErrNotPortfolioOwner
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("portfolio_id = ?", id).Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Portfolio{}, "id = ?", id).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ListByUser returns the user's portfolios, most recently updated first.
func (s *portfolioService) ListByUser(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.Portfolio{}).Where("user_id = ?", userID).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var portfolios []models.Portfolio
	err := s.db.Where("user_id = ?", userID).
		Order("last_updated DESC").
		Scopes(pagination.Paginate(page)).
		Preload("Holdings").
		Preload("ShareAccess").
		Find(&portfolios).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(portfolios, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func createHoldings(tx *gorm.DB, portfolioID string, in []HoldingInput) error {
	for _, h := range in {
		holding := &models.Holding{
			PortfolioID: portfolioID,
			Symbol:      strings.ToUpper(strings.TrimSpace(h.Symbol)),
			Name:        h.Name,
			Quantity:    h.Quantity,
		}
		if err := tx.Create(holding).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

func (s *portfolioService) load(id string) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	err := s.db.Preload("Holdings").Preload("User").Preload("ShareAccess").
		First(&portfolio, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPortfolioNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &portfolio, nil
}

// priceHoldings fetches current prices and computes per-holding values.
func (s *portfolioService) priceHoldings(ctx context.Context, holdings []models.Holding) ([]insights.HoldingValue, error) {
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	prices, err := s.oracle.FetchBatchPrices(ctx, symbols)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	values := make([]insights.HoldingValue, 0, len(holdings))
	for _, h := range holdings {
		price := prices[h.Symbol]
		values = append(values, insights.HoldingValue{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
			Price:    price,
			Value:    h.Quantity.Mul(price).Round(2),
		})
	}
	return values, nil
}

func (s *portfolioService) buildView(ctx context.Context, portfolio *models.Portfolio, isOwner bool) (*PortfolioView, error) {
	values, err := s.priceHoldings(ctx, portfolio.Holdings)
	if err != nil {
		return nil, err
	}

	total := portfolio.Cash
	for _, v := range values {
		total = total.Add(v.Value)
	}

	narrative, _ := insights.Parse(portfolio.InsightSummary)

	view := &PortfolioView{
		Portfolio:  portfolio,
		Holdings:   values,
		TotalValue: total,
		Insights:   narrative,
		IsOwner:    isOwner,
	}
	if isOwner && portfolio.ShareAccess != nil && !portfolio.ShareAccess.IsRevoked {
		view.ShareToken = portfolio.ShareAccess.Token
	}
	return view, nil
}

// refreshInsights regenerates the stored narrative after a write.
// Failures are logged and the stale narrative (or none) is kept; a
// portfolio is never broken by its insight pipeline.
func (s *portfolioService) refreshInsights(ctx context.Context, id string) {
	portfolio, err := s.load(id)
	if err != nil {
		logger.Get().Warnw("insight refresh: portfolio load failed", "portfolio_id", id, "error", err)
		return
	}

	if len(portfolio.Holdings) == 0 && portfolio.Cash.Equal(decimal.Zero) {
		if err := s.db.Model(&models.Portfolio{}).Where("id = ?", id).
			UpdateColumn("insight_summary", "").Error; err != nil {
			logger.Get().Warnw("insight refresh: clear failed", "portfolio_id", id, "error", err)
		}
		return
	}

	values, err := s.priceHoldings(ctx, portfolio.Holdings)
	if err != nil {
		logger.Get().Warnw("insight refresh: pricing failed", "portfolio_id", id, "error", err)
		return
	}

	summary := s.generator.Generate(ctx, values, portfolio.Cash)
	if _, ok := insights.Parse(summary); !ok {
		logger.Get().Warnw("insight refresh: generator produced unparseable narrative", "portfolio_id", id)
		return
	}

	if err := s.db.Model(&models.Portfolio{}).Where("id = ?", id).
		UpdateColumn("insight_summary", summary).Error; err != nil {
		logger.Get().Warnw("insight refresh: store failed", "portfolio_id", id, "error", err)
	}
}
