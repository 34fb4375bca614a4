package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/handler/helper"
	"github.com/yourusername/examprep-api/internal/service"
)

// AttemptHandler обрабатывает HTTP-запросы к попыткам
type AttemptHandler struct {
	attempts AttemptAPI
}

// NewAttemptHandler создает новый обработчик попыток
func NewAttemptHandler(attempts AttemptAPI) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// LaunchAttempt запускает новую попытку или возобновляет текущую
func (h *AttemptHandler) LaunchAttempt(c *gin.Context) {
	testID := c.MustGet("testID").(uint)

	var req dto.LaunchAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	result, err := h.attempts.Launch(c.Request.Context(), currentStudentID(c), testID, req.DeviceInfo)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, dto.LaunchAttemptResponse{
		Attempt: helper.ToAttemptResponse(result.Attempt),
		Resumed: result.Resumed,
		Time:    helper.ToTimeResponse(result.Attempt, result.Time),
	})
}

// GetAttempt возвращает попытку студента. Просроченная попытка сначала автосдается.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	attempt, _, err := h.attempts.ExpireCheck(c.Request.Context(), currentStudentID(c), attemptID)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, helper.ToAttemptResponse(attempt))
}

// GetStudentAttempts возвращает попытки студента по тесту, новые первыми
func (h *AttemptHandler) GetStudentAttempts(c *gin.Context) {
	testID := c.MustGet("testID").(uint)

	attempts, err := h.attempts.GetStudentAttempts(c.Request.Context(), currentStudentID(c), testID)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": helper.ToAttemptResponses(attempts)})
}

// GetAttemptTime возвращает серверный расчет оставшегося времени
func (h *AttemptHandler) GetAttemptTime(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	attempt, info, err := h.attempts.TimeStatus(c.Request.Context(), currentStudentID(c), attemptID)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, helper.ToTimeResponse(attempt, info))
}

// ExpireCheck автосдает попытку, если ее время вышло
func (h *AttemptHandler) ExpireCheck(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	attempt, expired, err := h.attempts.ExpireCheck(c.Request.Context(), currentStudentID(c), attemptID)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"expired": expired,
		"attempt": helper.ToAttemptResponse(attempt),
	})
}

// SaveAnswer сохраняет ответ на вопрос
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	var req dto.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	attempt, err := h.attempts.SaveAnswer(c.Request.Context(), currentStudentID(c), attemptID, helper.ToSaveAnswerInput(req))
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, helper.ToAttemptResponse(attempt))
}

// SubmitAttempt сдает попытку, при необходимости с последними ответами
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	var req dto.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	var answers []service.SaveAnswerInput
	for _, a := range req.Answers {
		answers = append(answers, helper.ToSaveAnswerInput(a))
	}

	attempt, err := h.attempts.Submit(c.Request.Context(), currentStudentID(c), attemptID, answers)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, helper.ToAttemptResponse(attempt))
}

// RecordViolation записывает нарушение прокторинга, пришедшее по HTTP
func (h *AttemptHandler) RecordViolation(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	var req dto.ViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	outcome, err := h.attempts.RecordViolation(c.Request.Context(), currentStudentID(c), attemptID,
		entity.ViolationType(req.ViolationType), req.Details)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.ViolationResponse{
		AttemptID:  attemptID,
		Count:      outcome.Count,
		Threshold:  outcome.Threshold,
		Terminated: outcome.Terminated,
		Status:     string(outcome.Attempt.Status),
	})
}

// GetAttemptReview возвращает разбор завершенной попытки
func (h *AttemptHandler) GetAttemptReview(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	review, err := h.attempts.GetAttemptReview(c.Request.Context(), currentStudentID(c), attemptID)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt": helper.ToAttemptResponse(review.Attempt),
		"items":   review.Items,
	})
}

// GetTestStats возвращает агрегированную статистику теста
func (h *AttemptHandler) GetTestStats(c *gin.Context) {
	testID := c.MustGet("testID").(uint)

	stats, err := h.attempts.GetTestStats(c.Request.Context(), testID)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RecalculateRanks пересчитывает места и перцентили теста (администратор)
func (h *AttemptHandler) RecalculateRanks(c *gin.Context) {
	testID := c.MustGet("testID").(uint)

	standings, err := h.attempts.RecalculateRanks(c.Request.Context(), testID)
	if err != nil {
		handleServiceError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"test_id": testID, "ranked": len(standings), "standings": standings})
}
