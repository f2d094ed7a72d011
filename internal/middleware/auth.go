package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"valuemetrix/internal/config"
	"valuemetrix/internal/models"
)

// SessionCookieName is the cookie carrying the session credential.
const SessionCookieName = "vm_session"

func sessionKey() []byte {
	return []byte(config.Get().SessionSecret)
}

// SessionClaims is the content of the session JWT: enough identity to
// render pages without a user lookup on every request.
type SessionClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	jwt.RegisteredClaims
}

// IssueSession signs a session token for the given user.
func IssueSession(user *models.User) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(config.Get().SessionDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "valuemetrix-api",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sessionKey())
}

// SetSessionCookie attaches the session credential to the response.
// httpOnly and SameSite=Lax always; Secure in production.
func SetSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token,
		int(config.Get().SessionDuration.Seconds()), "/", "",
		config.Get().IsProduction(), true)
}

// ClearSessionCookie removes the session credential.
func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "",
		config.Get().IsProduction(), true)
}

// ParseSession validates a session token and returns its claims.
func ParseSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sessionKey(), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

// sessionFromRequest extracts the credential from the session cookie,
// falling back to a bearer Authorization header for API clients.
func sessionFromRequest(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie, true
	}
	authHeader := c.GetHeader("Authorization")
	if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1], true
	}
	return "", false
}

func setSessionContext(c *gin.Context, claims *SessionClaims) {
	c.Set("userID", claims.UserID)
	c.Set("email", claims.Email)
	c.Set("userName", claims.Name)
}

// RequireSession verifies the session credential and aborts with 401
// when it is missing or invalid. Used on all protected paths.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := sessionFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"}})
			return
		}

		claims, err := ParseSession(credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Invalid or expired session"}})
			return
		}

		setSessionContext(c, claims)
		c.Next()
	}
}

// OptionalSession populates the request context when a valid session is
// present and continues anonymously otherwise. Used on share-view and
// portfolio-read paths that serve both owners and anonymous visitors.
func OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if credential, ok := sessionFromRequest(c); ok {
			if claims, err := ParseSession(credential); err == nil {
				setSessionContext(c, claims)
			}
		}
		c.Next()
	}
}
