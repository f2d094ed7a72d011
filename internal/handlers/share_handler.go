package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "valuemetrix/internal/errors"
	"valuemetrix/internal/services"
)

// ShareHandler handles share-link requests.
type ShareHandler struct {
	shareService     services.ShareServicer
	portfolioService services.PortfolioServicer
	auditService     services.AuditServicer
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(shareService services.ShareServicer, portfolioService services.PortfolioServicer, auditService services.AuditServicer) *ShareHandler {
	return &ShareHandler{shareService: shareService, portfolioService: portfolioService, auditService: auditService}
}

// TrackRequest carries the client-side fingerprint for an access log
// entry. The fingerprint is opaque to the server.
type TrackRequest struct {
	Fingerprint string `json:"fingerprint" binding:"max=128"`
}

// GetSharedPortfolio resolves a share token and returns the priced
// portfolio view for anonymous consumption.
func (h *ShareHandler) GetSharedPortfolio(c *gin.Context) {
	view, err := h.portfolioService.ViewShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// TrackAccess records one view of a shared portfolio. Runs with an
// optional session so signed-in viewers land in the viewer set.
func (h *ShareHandler) TrackAccess(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	viewerID, _ := c.Get("userID")
	event := services.AccessEvent{
		Fingerprint: req.Fingerprint,
		UserAgent:   c.Request.UserAgent(),
		IPAddress:   c.ClientIP(),
	}
	if id, ok := viewerID.(string); ok {
		event.ViewerID = id
	}

	share, err := h.shareService.RecordAccess(c.Param("token"), event)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"view_count": share.ViewCount})
}

// RevokeAccess permanently disables a share token. Owner-only.
func (h *ShareHandler) RevokeAccess(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token := c.Param("token")
	if err := h.shareService.Revoke(token, userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REVOKE_SHARE", "share_access", token, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "share access revoked"})
}

// GetSharedWithMe lists the shares the authenticated user has viewed.
func (h *ShareHandler) GetSharedWithMe(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	shares, err := h.shareService.ListAccessedShares(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"shares": shares})
}
