package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/middleware"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// handleServiceError переводит ошибку сервиса в HTTP-ответ {error, kind}.
// Текст внутренних ошибок клиенту не раскрывается.
func handleServiceError(c *gin.Context, component string, err error) {
	if apperrors.IsInternal(err) {
		log.Printf("ERROR: Internal server error in %s: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "kind": apperrors.KindInternal})
		return
	}
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error(), "kind": apperrors.Kind(err)})
}

// respondBindError отвечает на невалидное тело запроса
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": dto.ValidationMessage(err), "kind": apperrors.KindValidation})
}

func currentStudentID(c *gin.Context) uint {
	return c.MustGet(middleware.ContextUserID).(uint)
}

func currentSessionID(c *gin.Context) string {
	return c.GetString(middleware.ContextSessionID)
}
