package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service/attemptmanager"
)

const (
	testStatsKeyPrefix  = "test:stats:"
	maxViolationDetails = 500
)

func testStatsKey(testID uint) string {
	return fmt.Sprintf("%s%d", testStatsKeyPrefix, testID)
}

// LaunchResult - итог запуска или возобновления попытки
type LaunchResult struct {
	Attempt *entity.Attempt `json:"attempt"`
	Resumed bool            `json:"resumed"`
	Time    TimeInfo        `json:"time"`
}

// ViolationOutcome - итог записи нарушения
type ViolationOutcome struct {
	Attempt    *entity.Attempt `json:"attempt"`
	Count      int             `json:"count"`
	Threshold  int             `json:"threshold"`
	Terminated bool            `json:"terminated"`
}

// AttemptService управляет жизненным циклом попыток: запуск, ответы,
// нарушения, сдача, автосдача по времени и пересчет мест.
type AttemptService struct {
	attemptRepo repository.AttemptRepository
	catalog     TestCatalog
	access      AccessChecker
	cacheRepo   repository.CacheRepository
	config      *attemptmanager.Config

	publisher AttemptEventPublisher
	notifier  ResultNotifier

	rankLocks sync.Map // map[uint]*sync.Mutex
	now       func() time.Time
}

// NewAttemptService создает новый сервис попыток
func NewAttemptService(
	attemptRepo repository.AttemptRepository,
	catalog TestCatalog,
	access AccessChecker,
	cacheRepo repository.CacheRepository,
	config *attemptmanager.Config,
) *AttemptService {
	if config == nil {
		config = attemptmanager.DefaultConfig()
	}
	return &AttemptService{
		attemptRepo: attemptRepo,
		catalog:     catalog,
		access:      access,
		cacheRepo:   cacheRepo,
		config:      config,
		now:         time.Now,
	}
}

// SetEventPublisher подключает получателя событий закрытия попыток
func (s *AttemptService) SetEventPublisher(publisher AttemptEventPublisher) {
	s.publisher = publisher
}

// SetResultNotifier подключает отправку итогов студенту
func (s *AttemptService) SetResultNotifier(notifier ResultNotifier) {
	s.notifier = notifier
}

// Now возвращает серверное время с точностью хранения в БД
func (s *AttemptService) Now() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// ============================================================================
// Запуск
// ============================================================================

// Launch возвращает активную попытку студента по тесту или создает новую.
// Просроченная активная попытка сначала автоматически сдается.
func (s *AttemptService) Launch(ctx context.Context, studentID, testID uint, deviceInfo map[string]interface{}) (*LaunchResult, error) {
	test, err := s.catalog.GetTestDefinition(ctx, testID)
	if err != nil {
		return nil, err
	}

	existing, err := s.attemptRepo.FindInProgress(ctx, studentID, testID)
	switch {
	case err == nil:
		now := s.Now()
		if !existing.IsExpired(now) {
			log.Printf("[AttemptService] Студент #%d возобновляет попытку #%d по тесту #%d", studentID, existing.ID, testID)
			return &LaunchResult{Attempt: existing, Resumed: true, Time: NewTimeInfo(existing, now)}, nil
		}
		if _, err := s.closeAttempt(ctx, existing, test, CloseExpired); err != nil && !errors.Is(err, ErrAlreadySubmitted) {
			return nil, err
		}
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to look up in-progress attempt: %w", err)
	}

	now := s.Now()
	if !test.IsAvailable(now) {
		return nil, ErrTestUnavailable
	}

	if s.access != nil {
		allowed, err := s.access.CanAttempt(ctx, studentID, test)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrEnrollmentRequired
		}
	}

	completed, err := s.attemptRepo.CountCompleted(ctx, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed attempts: %w", err)
	}
	if test.AttemptsAllowed > 0 && completed >= int64(test.AttemptsAllowed) {
		return nil, ErrAttemptLimitExceeded
	}

	duration := test.TotalDuration()
	if duration <= 0 {
		return nil, fmt.Errorf("test %d has no duration: %w", testID, apperrors.ErrInvalidState)
	}

	attempt := &entity.Attempt{
		StudentID:           studentID,
		TestID:              testID,
		Status:              entity.AttemptInProgress,
		StartTime:           now,
		Duration:            duration,
		TotalQuestions:      len(test.Questions),
		UnansweredQuestions: len(test.Questions),
		SectionWiseScore:    entity.SectionScores{},
		Violations:          entity.ViolationLog{},
		IsValid:             true,
	}
	if len(deviceInfo) > 0 {
		attempt.DeviceInfo = datatypes.JSONMap(deviceInfo)
	}

	if err := s.attemptRepo.CreateInProgress(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptInProgressExists) {
			// Параллельный запуск успел создать попытку: возвращаем ее
			winner, findErr := s.attemptRepo.FindInProgress(ctx, studentID, testID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load concurrent attempt: %w", findErr)
			}
			return &LaunchResult{Attempt: winner, Resumed: true, Time: NewTimeInfo(winner, s.Now())}, nil
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	log.Printf("[AttemptService] Студент #%d начал попытку #%d по тесту #%d (%d мин., %d вопросов)",
		studentID, attempt.ID, testID, duration, attempt.TotalQuestions)
	return &LaunchResult{Attempt: attempt, Resumed: false, Time: NewTimeInfo(attempt, now)}, nil
}

// ============================================================================
// Чтение
// ============================================================================

// GetAttempt возвращает попытку с ответами. Просроченная попытка сдается до ответа.
func (s *AttemptService) GetAttempt(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID, true)
	if err != nil {
		return nil, err
	}
	if attempt.IsExpired(s.Now()) {
		return s.expire(ctx, attempt, true)
	}
	return attempt, nil
}

// GetStudentAttempts возвращает все попытки студента по тесту, новые первыми
func (s *AttemptService) GetStudentAttempts(ctx context.Context, studentID, testID uint) ([]entity.Attempt, error) {
	attempts, err := s.attemptRepo.ListByStudentAndTest(ctx, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

// TimeStatus возвращает серверный расчет времени. Просроченная попытка сдается.
func (s *AttemptService) TimeStatus(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, TimeInfo, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID, false)
	if err != nil {
		return nil, TimeInfo{}, err
	}
	if attempt.IsExpired(s.Now()) {
		if attempt, err = s.expire(ctx, attempt, false); err != nil {
			return nil, TimeInfo{}, err
		}
	}
	return attempt, NewTimeInfo(attempt, s.Now()), nil
}

// ExpireCheck сдает попытку, если ее время вышло. Возвращает попытку
// и признак того, что время попытки закончилось.
func (s *AttemptService) ExpireCheck(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, bool, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID, false)
	if err != nil {
		return nil, false, err
	}
	now := s.Now()
	if attempt.IsExpired(now) {
		closed, err := s.expire(ctx, attempt, false)
		if err != nil {
			return nil, false, err
		}
		return closed, true, nil
	}
	return attempt, !now.Before(attempt.Deadline()), nil
}

// GetAttemptReview возвращает разбор завершенной попытки
func (s *AttemptService) GetAttemptReview(ctx context.Context, studentID, attemptID uint) (*AttemptReview, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID, true)
	if err != nil {
		return nil, err
	}
	if attempt.Status == entity.AttemptInProgress {
		if !attempt.IsExpired(s.Now()) {
			return nil, ErrAttemptNotFinished
		}
		if attempt, err = s.expire(ctx, attempt, true); err != nil {
			return nil, err
		}
	}

	test, err := s.catalog.GetTestDefinition(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[uint]*entity.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		byQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}

	items := make([]ReviewItem, 0, len(test.Questions))
	for i := range test.Questions {
		q := &test.Questions[i]
		item := ReviewItem{
			QuestionID:         q.ID,
			Section:            sectionOf(q.Section),
			Type:               string(q.Type),
			Text:               q.Text,
			Options:            q.Identifiers(),
			CorrectIdentifiers: q.CorrectIdentifiers(),
			SelectedOptions:    []string{},
		}
		if ans, ok := byQuestion[q.ID]; ok {
			item.SelectedOptions = ans.SelectedOptions
			item.IsCorrect = ans.IsCorrect
			item.MarksAwarded = ans.MarksAwarded
			item.IsMarkedForReview = ans.IsMarkedForReview
		}
		items = append(items, item)
	}

	return &AttemptReview{Attempt: attempt, Items: items}, nil
}

// ============================================================================
// Ответы и сдача
// ============================================================================

// SaveAnswer сохраняет или заменяет ответ на вопрос активной попытки
func (s *AttemptService) SaveAnswer(ctx context.Context, studentID, attemptID uint, input SaveAnswerInput) (*entity.Attempt, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID, false)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, ErrAlreadySubmitted
	}

	test, err := s.catalog.GetTestDefinition(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if attempt.IsExpired(now) {
		s.closeQuietly(ctx, attempt, test, CloseExpired)
		return nil, ErrAttemptExpired
	}

	updated, err := s.upsertAnswer(ctx, attempt, test, input, now)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Submit сохраняет переданные ответы и сдает попытку.
// Если время уже вышло, попытка сдается автоматически и возвращается без ошибки.
func (s *AttemptService) Submit(ctx context.Context, studentID, attemptID uint, answers []SaveAnswerInput) (*entity.Attempt, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID, false)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, ErrAlreadySubmitted
	}

	test, err := s.catalog.GetTestDefinition(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if attempt.IsExpired(now) {
		return s.closeAttempt(ctx, attempt, test, CloseExpired)
	}

	for _, input := range answers {
		if _, err := s.upsertAnswer(ctx, attempt, test, input, now); err != nil {
			if errors.Is(err, ErrAttemptExpired) {
				return s.reload(ctx, attempt.ID, false)
			}
			return nil, err
		}
	}

	return s.closeAttempt(ctx, attempt, test, CloseManual)
}

// upsertAnswer проверяет ответ и пишет его в БД
func (s *AttemptService) upsertAnswer(ctx context.Context, attempt *entity.Attempt, test *entity.Test, input SaveAnswerInput, now time.Time) (*entity.Attempt, error) {
	if input.QuestionID == 0 {
		return nil, validationError("question_id is required")
	}
	if input.TimeSpent < 0 {
		return nil, validationError("time_spent must not be negative")
	}

	question := findQuestion(test, input.QuestionID)
	if question == nil {
		return nil, validationError("question %d does not belong to test %d", input.QuestionID, test.ID)
	}

	section := strings.TrimSpace(input.Section)
	if section == "" {
		section = sectionOf(question.Section)
	}

	answer := &entity.AttemptAnswer{
		QuestionID:        input.QuestionID,
		SelectedOptions:   normalizeSelection(input.SelectedOptions),
		IsMarkedForReview: input.IsMarkedForReview,
		TimeSpent:         input.TimeSpent,
		Section:           section,
	}

	updated, err := s.attemptRepo.UpsertAnswer(ctx, attempt.ID, answer, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAttemptNotInProgress):
			return nil, ErrAlreadySubmitted
		case errors.Is(err, repository.ErrAttemptDeadlinePassed):
			s.closeQuietly(ctx, attempt, test, CloseExpired)
			return nil, ErrAttemptExpired
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	return updated, nil
}

// ============================================================================
// Нарушения
// ============================================================================

// RecordViolation дописывает нарушение в журнал. При достижении порога
// попытка принудительно сдается и помечается недействительной.
func (s *AttemptService) RecordViolation(ctx context.Context, studentID, attemptID uint, violationType entity.ViolationType, details string) (*ViolationOutcome, error) {
	if !violationType.IsValid() {
		return nil, validationError("unknown violation type %q", violationType)
	}

	attempt, err := s.getOwned(ctx, studentID, attemptID, false)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, ErrAlreadySubmitted
	}

	now := s.Now()
	if attempt.IsExpired(now) {
		s.closeQuietly(ctx, attempt, nil, CloseExpired)
		return nil, ErrAttemptExpired
	}

	details = truncateUTF8(details, maxViolationDetails)

	updated, err := s.attemptRepo.AppendViolation(ctx, attempt.ID, entity.Violation{
		Type:      violationType,
		Details:   details,
		Timestamp: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrAttemptNotInProgress) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("failed to record violation: %w", err)
	}

	outcome := &ViolationOutcome{
		Attempt:   updated,
		Count:     updated.Violations.CountTowardsLimit(),
		Threshold: s.config.ViolationThreshold,
	}
	log.Printf("[AttemptService] Попытка #%d: нарушение %s (%d/%d)", attempt.ID, violationType, outcome.Count, outcome.Threshold)

	if outcome.Threshold > 0 && outcome.Count >= outcome.Threshold {
		test, err := s.catalog.GetTestDefinition(ctx, updated.TestID)
		if err != nil {
			return nil, err
		}
		closed, err := s.closeAttempt(ctx, updated, test, CloseViolation)
		if err != nil {
			if errors.Is(err, ErrAlreadySubmitted) {
				// Попытку уже закрыл другой путь
				outcome.Attempt, err = s.reload(ctx, attempt.ID, false)
				return outcome, err
			}
			return nil, err
		}
		outcome.Attempt = closed
		outcome.Terminated = true
	}

	return outcome, nil
}

// RecordDisconnect фиксирует обрыв соединения. Порог нарушений не затрагивается,
// для закрытых попыток ничего не делает.
func (s *AttemptService) RecordDisconnect(ctx context.Context, studentID, attemptID uint) error {
	attempt, err := s.getOwned(ctx, studentID, attemptID, false)
	if err != nil {
		return err
	}
	if attempt.Status != entity.AttemptInProgress {
		return nil
	}

	_, err = s.attemptRepo.AppendViolation(ctx, attempt.ID, entity.Violation{
		Type:      entity.ViolationDisconnect,
		Details:   "websocket connection closed",
		Timestamp: s.Now(),
	})
	if err != nil && !errors.Is(err, repository.ErrAttemptNotInProgress) {
		return fmt.Errorf("failed to record disconnect: %w", err)
	}
	return nil
}

// ============================================================================
// Автосдача по времени
// ============================================================================

// AutoSubmitIfExpired сдает попытку, если время вышло. Владельца не проверяет:
// вызывается таймером и фоновым проходом. Возвращает true, если закрыл именно этот вызов.
func (s *AttemptService) AutoSubmitIfExpired(ctx context.Context, attemptID uint) (*entity.Attempt, bool, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, false, ErrAttemptNotFound
		}
		return nil, false, err
	}
	if !attempt.IsExpired(s.Now()) {
		return attempt, false, nil
	}

	closed, err := s.closeAttempt(ctx, attempt, nil, CloseExpired)
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			current, reloadErr := s.reload(ctx, attemptID, false)
			return current, false, reloadErr
		}
		return nil, false, err
	}
	return closed, true, nil
}

// CloseOverdue закрывает до limit просроченных попыток
func (s *AttemptService) CloseOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.attemptRepo.ListExpiredInProgress(ctx, s.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue attempts: %w", err)
	}

	closed := 0
	for i := range overdue {
		_, err := s.closeAttempt(ctx, &overdue[i], nil, CloseExpired)
		if err == nil {
			closed++
			continue
		}
		if !errors.Is(err, ErrAlreadySubmitted) {
			log.Printf("[AttemptService] Не удалось закрыть просроченную попытку #%d: %v", overdue[i].ID, err)
		}
	}
	return closed, nil
}

// ============================================================================
// Места и статистика
// ============================================================================

// RecalculateRanks пересчитывает места и перцентили всех зачтенных попыток теста
func (s *AttemptService) RecalculateRanks(ctx context.Context, testID uint) ([]entity.Standing, error) {
	lock, _ := s.rankLocks.LoadOrStore(testID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	attempts, err := s.attemptRepo.ListRankable(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankable attempts: %w", err)
	}

	standings := attemptmanager.ComputeStandings(attempts)
	if err := s.attemptRepo.UpdateStandings(ctx, standings); err != nil {
		return nil, fmt.Errorf("failed to update standings: %w", err)
	}

	s.invalidateStats(ctx, testID)
	log.Printf("[AttemptService] Тест #%d: пересчитаны места для %d попыток", testID, len(standings))
	return standings, nil
}

// GetTestStats возвращает агрегированную статистику теста по зачтенным попыткам
func (s *AttemptService) GetTestStats(ctx context.Context, testID uint) (*entity.TestStats, error) {
	if _, err := s.catalog.GetTestDefinition(ctx, testID); err != nil {
		return nil, err
	}

	key := testStatsKey(testID)
	if s.cacheRepo != nil {
		var cached entity.TestStats
		if err := s.cacheRepo.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AttemptService] Ошибка чтения кеша статистики теста #%d: %v", testID, err)
		}
	}

	stats, err := s.attemptRepo.GetTestStats(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute test stats: %w", err)
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(ctx, key, stats, s.config.StatsCacheTTL); err != nil {
			log.Printf("[AttemptService] Не удалось закешировать статистику теста #%d: %v", testID, err)
		}
	}
	return stats, nil
}

func (s *AttemptService) invalidateStats(ctx context.Context, testID uint) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(ctx, testStatsKey(testID)); err != nil {
		log.Printf("[AttemptService] Не удалось сбросить кеш статистики теста #%d: %v", testID, err)
	}
}

// ============================================================================
// Закрытие попытки
// ============================================================================

// closeAttempt переводит попытку в терминальное состояние и считает баллы.
// test может быть nil: тогда определение берется из каталога.
func (s *AttemptService) closeAttempt(ctx context.Context, attempt *entity.Attempt, test *entity.Test, reason CloseReason) (*entity.Attempt, error) {
	if test == nil {
		var err error
		if test, err = s.catalog.GetTestDefinition(ctx, attempt.TestID); err != nil {
			return nil, err
		}
	}

	actual := reason
	closed, err := s.attemptRepo.Finalize(ctx, attempt.ID, func(a *entity.Attempt) error {
		now := s.Now()
		// Ручная сдача после дедлайна засчитывается как автосдача
		if actual == CloseManual && a.IsExpired(now) {
			actual = CloseExpired
		}

		applyScore(a, attemptmanager.ScoreAttempt(test, a.Answers))
		a.SubmittedAt = &now

		switch actual {
		case CloseExpired:
			end := a.Deadline()
			a.EndTime = &end
			a.Status = entity.AttemptAutoSubmitted
		case CloseViolation:
			a.EndTime = &now
			a.Status = entity.AttemptAutoSubmitted
			a.IsValid = false
		default:
			a.EndTime = &now
			a.Status = entity.AttemptSubmitted
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAttemptNotInProgress):
			return nil, ErrAlreadySubmitted
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to finalize attempt %d: %w", attempt.ID, err)
	}

	log.Printf("[AttemptService] Попытка #%d закрыта (%s): статус %s, балл %.2f, %d%%, valid=%v",
		closed.ID, actual, closed.Status, closed.Score, closed.Percentage, closed.IsValid)

	s.afterClose(ctx, closed, test, actual)
	return closed, nil
}

// afterClose выполняет действия после фиксации результата.
// Их ошибки не откатывают сдачу: места можно пересчитать повторно.
func (s *AttemptService) afterClose(ctx context.Context, attempt *entity.Attempt, test *entity.Test, reason CloseReason) {
	if attempt.IsValid {
		standings, err := s.RecalculateRanks(ctx, attempt.TestID)
		if err != nil {
			log.Printf("[AttemptService] Ошибка пересчета мест теста #%d: %v", attempt.TestID, err)
		}
		for _, st := range standings {
			if st.AttemptID == attempt.ID {
				rank, percentile := st.Rank, st.Percentile
				attempt.Rank, attempt.Percentile = &rank, &percentile
				break
			}
		}
	}

	if s.publisher != nil {
		s.publisher.AttemptClosed(ctx, attempt, reason)
	}
	if s.notifier != nil {
		s.notifier.NotifyResult(ctx, attempt, test)
	}
}

// closeQuietly закрывает попытку, логируя ошибки
func (s *AttemptService) closeQuietly(ctx context.Context, attempt *entity.Attempt, test *entity.Test, reason CloseReason) {
	if _, err := s.closeAttempt(ctx, attempt, test, reason); err != nil && !errors.Is(err, ErrAlreadySubmitted) {
		log.Printf("[AttemptService] Не удалось закрыть попытку #%d (%s): %v", attempt.ID, reason, err)
	}
}

// expire автоматически сдает попытку по времени. Если ее уже закрыли, возвращает текущее состояние.
func (s *AttemptService) expire(ctx context.Context, attempt *entity.Attempt, withAnswers bool) (*entity.Attempt, error) {
	closed, err := s.closeAttempt(ctx, attempt, nil, CloseExpired)
	if err != nil && !errors.Is(err, ErrAlreadySubmitted) {
		return nil, err
	}
	if err == nil && !withAnswers {
		return closed, nil
	}
	return s.reload(ctx, attempt.ID, withAnswers)
}

func (s *AttemptService) reload(ctx context.Context, attemptID uint, withAnswers bool) (*entity.Attempt, error) {
	var (
		attempt *entity.Attempt
		err     error
	)
	if withAnswers {
		attempt, err = s.attemptRepo.GetWithAnswers(ctx, attemptID)
	} else {
		attempt, err = s.attemptRepo.GetByID(ctx, attemptID)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}
	return attempt, nil
}

// getOwned загружает попытку и проверяет, что она принадлежит студенту
func (s *AttemptService) getOwned(ctx context.Context, studentID, attemptID uint, withAnswers bool) (*entity.Attempt, error) {
	attempt, err := s.reload(ctx, attemptID, withAnswers)
	if err != nil {
		return nil, err
	}
	if !attempt.BelongsTo(studentID) {
		return nil, ErrNotAttemptOwner
	}
	return attempt, nil
}

// ============================================================================
// Вспомогательные функции
// ============================================================================

func applyScore(a *entity.Attempt, result attemptmanager.ScoreResult) {
	a.TotalQuestions = result.TotalQuestions
	a.AttemptedQuestions = result.AttemptedQuestions
	a.CorrectAnswers = result.CorrectAnswers
	a.IncorrectAnswers = result.IncorrectAnswers
	a.UnansweredQuestions = result.UnansweredQuestions
	a.Score = result.Score
	a.Percentage = result.Percentage
	a.IsPassed = result.IsPassed
	a.SectionWiseScore = result.Sections
}

func findQuestion(test *entity.Test, questionID uint) *entity.Question {
	for i := range test.Questions {
		if test.Questions[i].ID == questionID {
			return &test.Questions[i]
		}
	}
	return nil
}

// normalizeSelection убирает пустые значения и пробелы по краям
func normalizeSelection(selected []string) entity.StringArray {
	out := make(entity.StringArray, 0, len(selected))
	for _, s := range selected {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// truncateUTF8 обрезает строку до limit байт, не разрывая руну
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func sectionOf(name string) string {
	if strings.TrimSpace(name) == "" {
		return attemptmanager.DefaultSection
	}
	return name
}
