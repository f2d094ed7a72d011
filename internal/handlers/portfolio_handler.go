package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "valuemetrix/internal/errors"
	"valuemetrix/internal/models"
	"valuemetrix/internal/pagination"
	"valuemetrix/internal/services"
)

// PortfolioHandler handles portfolio-related requests.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	auditService     services.AuditServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, auditService services.AuditServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, auditService: auditService}
}

// HoldingRequest represents one position in a portfolio payload.
type HoldingRequest struct {
	Symbol   string          `json:"symbol" binding:"required,ticker"`
	Name     string          `json:"name" binding:"max=100"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PortfolioRequest represents the create/update payload. Holdings
// replace the stored set wholesale.
type PortfolioRequest struct {
	Name        string            `json:"name" binding:"required,min=1,max=100"`
	Description string            `json:"description" binding:"max=500"`
	Visibility  models.Visibility `json:"visibility" binding:"omitempty,visibility"`
	Cash        decimal.Decimal   `json:"cash"`
	Holdings    []HoldingRequest  `json:"holdings" binding:"omitempty,dive"`
}

func (r *PortfolioRequest) toInput() services.PortfolioInput {
	in := services.PortfolioInput{
		Name:        r.Name,
		Description: r.Description,
		Visibility:  r.Visibility,
		Cash:        r.Cash,
	}
	for _, h := range r.Holdings {
		in.Holdings = append(in.Holdings, services.HoldingInput{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
		})
	}
	return in
}

// CreatePortfolio handles the creation of a new portfolio.
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.portfolioService.Create(c.Request.Context(), userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_PORTFOLIO", "portfolio", portfolio.ID, c.ClientIP(),
		map[string]interface{}{"name": portfolio.Name, "visibility": portfolio.Visibility})

	c.JSON(http.StatusCreated, gin.H{"portfolio": portfolio})
}

// GetPortfolios handles listing the authenticated user's portfolios.
func (h *PortfolioHandler) GetPortfolios(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.portfolioService.ListByUser(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPortfolio handles retrieving a single portfolio. The route runs
// with an optional session: owners and signed-in viewers are
// identified by their session, anonymous viewers may supply a share
// token via the token query parameter.
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	view, err := h.portfolioService.View(
		c.Request.Context(),
		c.Param("id"),
		getUserEmail(c),
		c.Query("token"),
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// UpdatePortfolio handles replacing a portfolio's editable fields and
// holdings.
func (h *PortfolioHandler) UpdatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.portfolioService.Update(c.Request.Context(), c.Param("id"), userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PORTFOLIO", "portfolio", portfolio.ID, c.ClientIP(),
		map[string]interface{}{"name": portfolio.Name, "visibility": portfolio.Visibility})

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// DeletePortfolio handles deleting a portfolio.
func (h *PortfolioHandler) DeletePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	if err := h.portfolioService.Delete(id, userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_PORTFOLIO", "portfolio", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "portfolio deleted"})
}
