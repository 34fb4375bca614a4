package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/handler/helper"
	"github.com/yourusername/examprep-api/internal/websocket"
)

// TestHandler обрабатывает запросы к каталогу тестов и административные операции
type TestHandler struct {
	catalog     TestCatalogAPI
	enrollments EnrollmentGranter
	wsManager   *websocket.Manager
}

// NewTestHandler создает новый обработчик тестов
func NewTestHandler(catalog TestCatalogAPI, enrollments EnrollmentGranter, wsManager *websocket.Manager) *TestHandler {
	return &TestHandler{
		catalog:     catalog,
		enrollments: enrollments,
		wsManager:   wsManager,
	}
}

// GetTest возвращает тест для прохождения, без признаков правильности
func (h *TestHandler) GetTest(c *gin.Context) {
	testID := c.MustGet("testID").(uint)

	test, err := h.catalog.GetTestDefinition(c.Request.Context(), testID)
	if err != nil {
		handleServiceError(c, "TestHandler", err)
		return
	}

	c.JSON(http.StatusOK, helper.ToTestResponse(test))
}

// CreateTest создает тест с секциями и вопросами
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req dto.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	test := helper.ToTestEntity(&req)
	if err := h.catalog.CreateTest(c.Request.Context(), test); err != nil {
		handleServiceError(c, "TestHandler", err)
		return
	}

	c.JSON(http.StatusCreated, helper.ToTestResponse(test))
}

// AddQuestions дописывает вопросы в неактивный тест
func (h *TestHandler) AddQuestions(c *gin.Context) {
	testID := c.MustGet("testID").(uint)

	var req dto.AddQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	added, err := h.catalog.AddQuestions(c.Request.Context(), testID, helper.ToQuestionEntities(req.Questions))
	if err != nil {
		handleServiceError(c, "TestHandler", err)
		return
	}

	ids := make([]uint, 0, len(added))
	for _, q := range added {
		ids = append(ids, q.ID)
	}
	c.JSON(http.StatusCreated, gin.H{"test_id": testID, "added": len(added), "question_ids": ids})
}

// InvalidateTestCache сбрасывает кеш определения теста после правок в БД
func (h *TestHandler) InvalidateTestCache(c *gin.Context) {
	testID := c.MustGet("testID").(uint)

	if err := h.catalog.InvalidateTest(c.Request.Context(), testID); err != nil {
		handleServiceError(c, "TestHandler", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GrantEnrollment выдает студенту доступ к платному тесту
func (h *TestHandler) GrantEnrollment(c *gin.Context) {
	var req dto.GrantEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	enrollment, err := h.enrollments.GrantEnrollment(c.Request.Context(), req.StudentID, req.TestID, req.ExpiresAt)
	if err != nil {
		handleServiceError(c, "TestHandler", err)
		return
	}

	c.JSON(http.StatusCreated, enrollment)
}

// GetWSMetrics возвращает метрики WebSocket hub
func (h *TestHandler) GetWSMetrics(c *gin.Context) {
	if h.wsManager == nil {
		log.Printf("[TestHandler] WebSocket manager is not configured")
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.wsManager.GetMetrics())
}
