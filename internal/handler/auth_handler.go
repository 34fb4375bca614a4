package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/handler/helper"
	"github.com/yourusername/examprep-api/internal/middleware"
	"github.com/yourusername/examprep-api/internal/service"
)

// AuthHandlerConfig содержит параметры выдачи cookie
type AuthHandlerConfig struct {
	TokenTTL     time.Duration
	TicketTTL    time.Duration
	SecureCookie bool
}

// AuthHandler обрабатывает запросы, связанные с аутентификацией
type AuthHandler struct {
	authService AuthAPI
	config      AuthHandlerConfig
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(authService AuthAPI, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{authService: authService, config: config}
}

// Register обрабатывает запрос на регистрацию
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	student, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusCreated, helper.ToStudentResponse(student))
}

// Login открывает новую сессию. Прежняя сессия студента перестает действовать.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(c, "AuthHandler", err)
		return
	}

	h.setAccessTokenCookie(c, result.AccessToken, int(h.config.TokenTTL.Seconds()))

	c.JSON(http.StatusOK, dto.AuthResponse{
		Student:     helper.ToStudentResponse(result.Student),
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.config.TokenTTL.Seconds()),
	})
}

// Logout закрывает текущую сессию
func (h *AuthHandler) Logout(c *gin.Context) {
	studentID := currentStudentID(c)

	if err := h.authService.Logout(c.Request.Context(), studentID, currentSessionID(c)); err != nil {
		log.Printf("[AuthHandler] Ошибка при выходе студента ID=%d: %v", studentID, err)
		handleServiceError(c, "AuthHandler", err)
		return
	}

	h.setAccessTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetMe возвращает профиль текущего студента
func (h *AuthHandler) GetMe(c *gin.Context) {
	student, err := h.authService.GetStudent(c.Request.Context(), currentStudentID(c))
	if err != nil {
		handleServiceError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusOK, helper.ToStudentResponse(student))
}

// GenerateWsTicket выдает короткоживущий тикет для WebSocket подключения
func (h *AuthHandler) GenerateWsTicket(c *gin.Context) {
	ticket, err := h.authService.IssueWSTicket(c.Request.Context(), currentStudentID(c), currentSessionID(c))
	if err != nil {
		handleServiceError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.WSTicketResponse{
		Ticket:    ticket,
		ExpiresIn: int(h.config.TicketTTL.Seconds()),
	})
}

func (h *AuthHandler) setAccessTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, token, maxAge, "/", "", h.config.SecureCookie, true)
}
