package errors

import (
	"errors"
	"net/http"
)

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда попытка, тест или студент не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок аутентификации (неверный токен, сессия отозвана).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда попытка принадлежит другому студенту
	// или у студента нет доступа к платному тесту.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState используется для операций над завершенной попыткой
	// или над попыткой, не относящейся к указанному тесту.
	ErrInvalidState = errors.New("invalid attempt state")

	// ErrExpired используется, когда время попытки истекло.
	ErrExpired = errors.New("attempt time is over")

	// ErrLimitExceeded используется, когда исчерпан лимит попыток.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrConflict используется для конфликтов состояния.
	ErrConflict = errors.New("resource state conflict")
)

// Машиночитаемые виды ошибок, которые видят клиенты HTTP и WebSocket
const (
	KindNotFound      = "not_found"
	KindUnauthorized  = "unauthorized"
	KindForbidden     = "forbidden"
	KindValidation    = "validation_error"
	KindInvalidState  = "invalid_state"
	KindExpired       = "expired"
	KindLimitExceeded = "limit_exceeded"
	KindConflict      = "conflict"
	KindInternal      = "internal_error"
)

var kinds = []struct {
	err    error
	kind   string
	status int
}{
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrUnauthorized, KindUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, KindForbidden, http.StatusForbidden},
	{ErrValidation, KindValidation, http.StatusUnprocessableEntity},
	{ErrInvalidState, KindInvalidState, http.StatusConflict},
	{ErrExpired, KindExpired, http.StatusGone},
	{ErrLimitExceeded, KindLimitExceeded, http.StatusTooManyRequests},
	{ErrConflict, KindConflict, http.StatusConflict},
}

// Kind возвращает стабильный машиночитаемый вид ошибки.
// Для неизвестных ошибок возвращается KindInternal.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus возвращает HTTP статус для ошибки
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// IsInternal сообщает, что ошибка не относится к известной таксономии
// и ее текст не должен уходить клиенту.
func IsInternal(err error) bool {
	return Kind(err) == KindInternal
}
