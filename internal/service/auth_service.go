package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/pkg/auth"
)

const minPasswordLength = 8

// AuthService предоставляет методы для регистрации и входа студентов
type AuthService struct {
	studentRepo repository.StudentRepository
	jwtService  *auth.JWTService
	sessions    *SessionService
	adminEmails map[string]bool
}

// RegisterInput содержит данные для регистрации
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult содержит данные для ответа на запрос авторизации
type AuthResult struct {
	Student     *entity.Student `json:"student"`
	AccessToken string          `json:"access_token"`
	SessionID   string          `json:"-"`
}

// NewAuthService создает новый сервис аутентификации и возвращает ошибку при проблемах
func NewAuthService(
	studentRepo repository.StudentRepository,
	jwtService *auth.JWTService,
	sessions *SessionService,
	adminEmails []string,
) (*AuthService, error) {
	if studentRepo == nil {
		return nil, fmt.Errorf("StudentRepository is required for AuthService")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for AuthService")
	}
	if sessions == nil {
		return nil, fmt.Errorf("SessionService is required for AuthService")
	}

	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if email = normalizeEmail(email); email != "" {
			admins[email] = true
		}
	}

	return &AuthService{
		studentRepo: studentRepo,
		jwtService:  jwtService,
		sessions:    sessions,
		adminEmails: admins,
	}, nil
}

// Register регистрирует нового студента
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.Student, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
	}

	_, err := s.studentRepo.GetByEmail(ctx, input.Email)
	if err == nil {
		return nil, fmt.Errorf("%w: student with this email already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}

	role := entity.RoleStudent
	if s.adminEmails[input.Email] {
		role = entity.RoleAdmin
	}

	student := &entity.Student{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Role:     role,
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	log.Printf("[AuthService] Зарегистрирован студент ID=%d (%s)", student.ID, student.Email)
	return student, nil
}

// Login проверяет учетные данные, открывает новую сессию и выдает токен.
// Предыдущая сессия студента перестает действовать.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	student, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	sessionID, err := s.sessions.Start(ctx, student.ID)
	if err != nil {
		log.Printf("[AuthService] Ошибка открытия сессии для студента ID=%d: %v", student.ID, err)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	token, err := s.jwtService.GenerateToken(student.ID, student.Email, student.Role, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	log.Printf("[AuthService] Студент ID=%d (%s) успешно вошел в систему", student.ID, student.Email)
	return &AuthResult{Student: student, AccessToken: token, SessionID: sessionID}, nil
}

// Logout закрывает сессию, если она еще активна
func (s *AuthService) Logout(ctx context.Context, studentID uint, sessionID string) error {
	return s.sessions.End(ctx, studentID, sessionID)
}

// IssueWSTicket выдает короткоживущий тикет для WebSocket в рамках активной сессии
func (s *AuthService) IssueWSTicket(ctx context.Context, studentID uint, sessionID string) (string, error) {
	if err := s.sessions.Validate(ctx, studentID, sessionID); err != nil {
		return "", err
	}

	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", ErrStudentNotFound
		}
		return "", fmt.Errorf("failed to load student: %w", err)
	}

	ticket, err := s.jwtService.GenerateWSTicket(student.ID, student.Email, student.Role, sessionID)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации WebSocket тикета для студента ID=%d: %v", studentID, err)
		return "", fmt.Errorf("failed to generate ticket: %w", err)
	}
	return ticket, nil
}

// GetStudent возвращает профиль студента
func (s *AuthService) GetStudent(ctx context.Context, studentID uint) (*entity.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

// authenticate проверяет учетные данные без открытия сессии
func (s *AuthService) authenticate(ctx context.Context, email, password string) (*entity.Student, error) {
	email = normalizeEmail(email)

	student, err := s.studentRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AuthService] Студент с email %s не найден", email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	if !student.CheckPassword(password) {
		log.Printf("[AuthService] Неверный пароль для студента с email %s", email)
		return nil, ErrInvalidCredentials
	}
	return student, nil
}

// normalizeEmail приводит email к стандартному виду: trim пробелов + lowercase
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
