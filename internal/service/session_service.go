package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

const activeSessionKeyPrefix = "session:student:"

func activeSessionKey(studentID uint) string {
	return fmt.Sprintf("%s%d", activeSessionKeyPrefix, studentID)
}

// SessionService хранит единственную активную сессию студента.
// Новый вход заменяет идентификатор, и все прежние токены перестают проходить проверку.
type SessionService struct {
	cacheRepo repository.CacheRepository
	ttl       time.Duration
}

// NewSessionService создает новый сервис сессий
func NewSessionService(cacheRepo repository.CacheRepository, ttl time.Duration) *SessionService {
	return &SessionService{cacheRepo: cacheRepo, ttl: ttl}
}

// Start открывает новую сессию и вытесняет предыдущую
func (s *SessionService) Start(ctx context.Context, studentID uint) (string, error) {
	sessionID := uuid.NewString()
	if err := s.cacheRepo.Set(ctx, activeSessionKey(studentID), sessionID, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	log.Printf("[SessionService] Студент #%d: новая сессия %s", studentID, sessionID)
	return sessionID, nil
}

// Validate проверяет, что sessionID совпадает с активной сессией студента.
// Недоступность хранилища тоже означает отказ.
func (s *SessionService) Validate(ctx context.Context, studentID uint, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRevoked
	}

	current, err := s.cacheRepo.Get(ctx, activeSessionKey(studentID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrSessionRevoked
		}
		log.Printf("[SessionService] Ошибка проверки сессии студента #%d: %v", studentID, err)
		return fmt.Errorf("session store unavailable: %w", apperrors.ErrUnauthorized)
	}

	if current != sessionID {
		return ErrSessionRevoked
	}
	return nil
}

// End закрывает сессию, если она все еще активна
func (s *SessionService) End(ctx context.Context, studentID uint, sessionID string) error {
	if err := s.Validate(ctx, studentID, sessionID); err != nil {
		// Сессия уже вытеснена или истекла: закрывать нечего
		return nil
	}
	if err := s.cacheRepo.Delete(ctx, activeSessionKey(studentID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	log.Printf("[SessionService] Студент #%d: сессия %s закрыта", studentID, sessionID)
	return nil
}
