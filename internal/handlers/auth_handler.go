package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "valuemetrix/internal/errors"
	"valuemetrix/internal/identity"
	"valuemetrix/internal/middleware"
	"valuemetrix/internal/models"
	"valuemetrix/internal/services"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	userService  services.UserServicer
	verifier     identity.Verifier
	auditService services.AuditServicer
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService services.UserServicer, verifier identity.Verifier, auditService services.AuditServicer) *AuthHandler {
	return &AuthHandler{userService: userService, verifier: verifier, auditService: auditService}
}

// GoogleSignInRequest carries the Google ID token from the sign-in widget.
type GoogleSignInRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// UserResponse represents the user data in the response.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	}
}

// GoogleSignIn verifies a Google ID token, upserts the local user and
// starts a cookie session. The session token is also returned in the
// body for non-browser clients.
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	ext, err := h.verifier.Verify(c.Request.Context(), req.Credential)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidIdentity, err))
		return
	}

	user, err := h.userService.ResolveExternalIdentity(ext)
	if err != nil {
		respondWithError(c, err)
		return
	}

	session, err := middleware.IssueSession(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	middleware.SetSessionCookie(c, session)

	h.auditService.Log(user.ID, "SIGN_IN", "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{
		"token": session,
		"user":  toUserResponse(user),
	})
}

// SignOut clears the session cookie. The JWT itself stays valid until
// expiry; signing out is a client-side affair.
func (h *AuthHandler) SignOut(c *gin.Context) {
	middleware.ClearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// GetProfile returns the authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}
