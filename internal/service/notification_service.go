package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
)

const resultEmailTimeout = 30 * time.Second

// ResultNotificationService отправляет студенту письмо с итогом попытки
type ResultNotificationService struct {
	studentRepo repository.StudentRepository
	email       EmailService
}

// NewResultNotificationService создает сервис уведомлений о результатах
func NewResultNotificationService(studentRepo repository.StudentRepository, email EmailService) *ResultNotificationService {
	return &ResultNotificationService{studentRepo: studentRepo, email: email}
}

// NotifyResult отправляет письмо в фоне. Ошибки доставки только логируются.
func (s *ResultNotificationService) NotifyResult(ctx context.Context, attempt *entity.Attempt, test *entity.Test) {
	snapshot := *attempt
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resultEmailTimeout)
		defer cancel()
		if err := s.send(sendCtx, &snapshot, test); err != nil {
			log.Printf("[NotificationService] Не удалось отправить результат попытки #%d: %v", snapshot.ID, err)
		}
	}()
}

func (s *ResultNotificationService) send(ctx context.Context, attempt *entity.Attempt, test *entity.Test) error {
	student, err := s.studentRepo.GetByID(ctx, attempt.StudentID)
	if err != nil {
		return fmt.Errorf("failed to load student %d: %w", attempt.StudentID, err)
	}
	return s.email.Send(ctx, buildResultEmail(student, attempt, test))
}

// buildResultEmail формирует письмо с итогом попытки
func buildResultEmail(student *entity.Student, attempt *entity.Attempt, test *entity.Test) EmailMessage {
	verdict := "not passed"
	if attempt.IsPassed {
		verdict = "passed"
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nYour attempt at %q is complete (%s).\nScore: %.2f (%d%%), %s.\nCorrect: %d, incorrect: %d, unanswered: %d.\n",
		student.Name, test.Title, attempt.Status, attempt.Score, attempt.Percentage, verdict,
		attempt.CorrectAnswers, attempt.IncorrectAnswers, attempt.UnansweredQuestions,
	)
	if !attempt.IsValid {
		text += "\nThe attempt was closed after repeated proctoring violations and is excluded from the leaderboard.\n"
	}

	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your attempt at <strong>%s</strong> is complete.</p><p>Score: <strong>%.2f</strong> (%d%%), %s.</p>",
		html.EscapeString(student.Name), html.EscapeString(test.Title), attempt.Score, attempt.Percentage, verdict,
	)

	return EmailMessage{
		To:             student.Email,
		Subject:        fmt.Sprintf("Your result: %s", test.Title),
		Text:           text,
		HTML:           body,
		IdempotencyKey: fmt.Sprintf("attempt-result-%d", attempt.ID),
	}
}
