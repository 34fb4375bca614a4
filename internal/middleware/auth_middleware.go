package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/pkg/auth"
)

// AccessTokenCookie - имя cookie с токеном доступа
const AccessTokenCookie = "access_token"

// Ключи контекста gin, которые заполняет RequireAuth
const (
	ContextUserID    = "user_id"
	ContextEmail     = "email"
	ContextRole      = "role"
	ContextSessionID = "session_id"
)

// SessionValidator проверяет, что сессия токена все еще активна
type SessionValidator interface {
	Validate(ctx context.Context, studentID uint, sessionID string) error
}

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	jwtService *auth.JWTService
	sessions   SessionValidator
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(jwtService *auth.JWTService, sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		sessions:   sessions,
	}
}

// RequireAuth проверяет токен доступа и активность его сессии.
// Токен берется из заголовка Authorization: Bearer, а при его отсутствии из cookie.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			abortUnauthorized(c, "Authorization header format must be Bearer {token}", "token_missing")
			return
		}

		claims, err := m.jwtService.ParseToken(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token", "token_invalid")
			return
		}

		// Токен выдан до последнего входа: сессия вытеснена
		if err := m.sessions.Validate(c.Request.Context(), claims.UserID, claims.SessionID); err != nil {
			log.Printf("[AuthMiddleware] Session rejected for student %d: %v", claims.UserID, err)
			abortUnauthorized(c, "Session is no longer active", "session_revoked")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextSessionID, claims.SessionID)

		c.Next()
	}
}

// AdminOnly пропускает только администраторов. Применяется после RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			abortUnauthorized(c, "Unauthorized", "token_missing")
			return
		}

		if c.GetString(ContextRole) != entity.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin rights required",
				"kind":  apperrors.KindForbidden,
			})
			return
		}

		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	token, err := c.Cookie(AccessTokenCookie)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

func abortUnauthorized(c *gin.Context, message, errorType string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      message,
		"error_type": errorType,
		"kind":       apperrors.KindUnauthorized,
	})
}
