package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	usageAccess    = "access"
	usageWebSocket = "websocket_auth"

	audienceAPI = "examprep-api"
	audienceWS  = "examprep-ws"
)

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTicketUsage    = errors.New("invalid ticket usage")
)

// JWTCustomClaims содержит пользовательские поля для токена
type JWTCustomClaims struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	Usage     string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// JWTService подписывает и проверяет токены доступа и WS-тикеты (HS256)
type JWTService struct {
	secret         []byte
	issuer         string
	expiration     time.Duration
	wsTicketExpiry time.Duration
}

// NewJWTService создает новый сервис JWT и возвращает ошибку при проблемах
func NewJWTService(secret, issuer string, expirationHrs, wsTicketExpirySec int) (*JWTService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	wsExpiry := time.Duration(wsTicketExpirySec) * time.Second
	if wsExpiry <= 0 {
		wsExpiry = 60 * time.Second
	}
	if issuer == "" {
		issuer = audienceAPI
	}

	return &JWTService{
		secret:         []byte(secret),
		issuer:         issuer,
		expiration:     time.Duration(expirationHrs) * time.Hour,
		wsTicketExpiry: wsExpiry,
	}, nil
}

// TokenTTL возвращает время жизни токена доступа
func (s *JWTService) TokenTTL() time.Duration {
	return s.expiration
}

// TicketTTL возвращает время жизни WS-тикета
func (s *JWTService) TicketTTL() time.Duration {
	return s.wsTicketExpiry
}

// GenerateToken создает токен доступа, привязанный к сессии sessionID
func (s *JWTService) GenerateToken(userID uint, email, role, sessionID string) (string, error) {
	return s.sign(userID, email, role, sessionID, usageAccess, audienceAPI, s.expiration)
}

// GenerateWSTicket создает короткоживущий тикет для подключения к WebSocket
func (s *JWTService) GenerateWSTicket(userID uint, email, role, sessionID string) (string, error) {
	ticket, err := s.sign(userID, email, role, sessionID, usageWebSocket, audienceWS, s.wsTicketExpiry)
	if err != nil {
		return "", err
	}
	log.Printf("[JWT] WS-тикет сгенерирован для пользователя ID=%d, истекает через %v", userID, s.wsTicketExpiry)
	return ticket, nil
}

func (s *JWTService) sign(userID uint, email, role, sessionID, usage, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTCustomClaims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		Usage:     usage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  jwt.ClaimStrings{audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка подписи токена для пользователя ID=%d: %v", userID, err)
		return "", err
	}
	return tokenString, nil
}

// ParseToken проверяет токен доступа. WS-тикеты здесь не принимаются.
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != usageAccess {
		return nil, ErrTicketUsage
	}
	return claims, nil
}

// ParseWSTicket проверяет JWT, используемый как WS тикет
func (s *JWTService) ParseWSTicket(ticketString string) (*JWTCustomClaims, error) {
	claims, err := s.parse(ticketString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != usageWebSocket {
		return nil, ErrTicketUsage
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, ErrTokenExpired
			}
		}
		log.Printf("[JWT] Ошибка при разборе токена: %v", err)
		return nil, ErrTokenInvalid
	}

	if !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	if claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
