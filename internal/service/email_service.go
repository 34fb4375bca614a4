package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailMessage - одно транзакционное письмо
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
	// IdempotencyKey защищает от повторной отправки одного итога
	IdempotencyKey string
}

// EmailService отправляет транзакционные письма
type EmailService interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// NoopEmailService используется, когда отправка писем выключена
type NoopEmailService struct{}

func (s *NoopEmailService) Send(ctx context.Context, msg EmailMessage) error {
	log.Printf("[EmailService] Отправка выключена, письмо %q для %s пропущено", msg.Subject, msg.To)
	return nil
}

// EmailRetryPolicy задает повторы при лимитах и временных сбоях провайдера
type EmailRetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxRetryAfter time.Duration
}

// DefaultEmailRetryPolicy возвращает политику повторов по умолчанию
func DefaultEmailRetryPolicy() EmailRetryPolicy {
	return EmailRetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
		MaxRetryAfter: 30 * time.Second,
	}
}

// resendSender - часть клиента Resend, нужная для отправки
type resendSender interface {
	SendWithOptions(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) (*resend.SendEmailResponse, error)
}

// ResendEmailService отправляет письма через Resend REST API
type ResendEmailService struct {
	from   string
	sender resendSender
	policy EmailRetryPolicy
}

// NewResendEmailService создает отправителя на ключе Resend
func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		sender: resend.NewClient(apiKey).Emails,
		policy: DefaultEmailRetryPolicy(),
	}, nil
}

// Send отправляет письмо, повторяя попытку при rate limit и таймаутах
func (s *ResendEmailService) Send(ctx context.Context, msg EmailMessage) error {
	if msg.To == "" || msg.Subject == "" {
		return fmt.Errorf("recipient and subject are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
	}
	options := &resend.SendEmailOptions{IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey)}

	attempts := s.policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for try := 0; try < attempts; try++ {
		_, err := s.sender.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, retryable := s.policy.delay(err, try)
		if !retryable {
			return fmt.Errorf("resend send failed: %w", err)
		}
		if try == attempts-1 {
			break
		}

		log.Printf("[EmailService] Повтор отправки %q через %v: %v", msg.Subject, wait, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("resend send failed after %d attempts: %w", attempts, lastErr)
}

// delay возвращает паузу перед следующей попыткой, если ошибка временная
func (p EmailRetryPolicy) delay(err error, try int) (time.Duration, bool) {
	backoff := time.Duration(try+1) * p.BaseDelay

	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter))
		if convErr != nil || seconds <= 0 {
			return time.Duration(try+1) * time.Second, true
		}
		wait := time.Duration(seconds) * time.Second
		if p.MaxRetryAfter > 0 && wait > p.MaxRetryAfter {
			wait = p.MaxRetryAfter
		}
		return wait, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return backoff, true
	}

	text := strings.ToLower(err.Error())
	if strings.Contains(text, "timeout") || strings.Contains(text, "temporar") {
		return backoff, true
	}
	return 0, false
}
