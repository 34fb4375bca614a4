package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

const testDefinitionKeyPrefix = "test:def:"

func testDefinitionKey(testID uint) string {
	return fmt.Sprintf("%s%d", testDefinitionKeyPrefix, testID)
}

// CatalogService отдает определения тестов с кешированием в Redis
type CatalogService struct {
	testRepo     repository.TestRepository
	questionRepo repository.QuestionRepository
	cacheRepo    repository.CacheRepository
	cacheTTL     time.Duration
}

// NewCatalogService создает новый сервис каталога тестов
func NewCatalogService(
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
) *CatalogService {
	return &CatalogService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		cacheRepo:    cacheRepo,
		cacheTTL:     cacheTTL,
	}
}

// GetTestDefinition возвращает тест с секциями и вопросами.
// Ошибки кеша не прерывают запрос: определение читается из БД.
func (s *CatalogService) GetTestDefinition(ctx context.Context, testID uint) (*entity.Test, error) {
	key := testDefinitionKey(testID)

	if s.cacheRepo != nil {
		var cached entity.Test
		err := s.cacheRepo.GetJSON(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[CatalogService] Ошибка чтения кеша теста #%d: %v", testID, err)
		}
	}

	test, err := s.testRepo.GetWithQuestions(ctx, testID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to load test %d: %w", testID, err)
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(ctx, key, test, s.cacheTTL); err != nil {
			log.Printf("[CatalogService] Не удалось закешировать тест #%d: %v", testID, err)
		}
	}

	return test, nil
}

// InvalidateTest удаляет определение теста из кеша
func (s *CatalogService) InvalidateTest(ctx context.Context, testID uint) error {
	if s.cacheRepo == nil {
		return nil
	}
	if err := s.cacheRepo.Delete(ctx, testDefinitionKey(testID)); err != nil {
		return fmt.Errorf("failed to invalidate test %d: %w", testID, err)
	}
	log.Printf("[CatalogService] Кеш теста #%d сброшен", testID)
	return nil
}

// CreateTest проверяет и сохраняет новый тест вместе с секциями и вопросами
func (s *CatalogService) CreateTest(ctx context.Context, test *entity.Test) error {
	if err := normalizeTest(test); err != nil {
		return err
	}

	if err := s.testRepo.Create(ctx, test); err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}

	log.Printf("[CatalogService] Создан тест #%d \"%s\": %d вопросов, %d мин.",
		test.ID, test.Title, len(test.Questions), test.TotalDuration())
	return nil
}

// AddQuestions дописывает вопросы в конец неактивного теста.
// Активный тест не меняется: у начатых попыток набор вопросов зафиксирован.
func (s *CatalogService) AddQuestions(ctx context.Context, testID uint, questions []entity.Question) ([]entity.Question, error) {
	if s.questionRepo == nil {
		return nil, fmt.Errorf("question repository is not configured")
	}
	if len(questions) == 0 {
		return nil, validationError("at least one question is required")
	}

	test, err := s.testRepo.GetWithQuestions(ctx, testID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to load test %d: %w", testID, err)
	}
	if test.IsActive {
		return nil, fmt.Errorf("test %d is active, deactivate it before editing questions: %w", testID, apperrors.ErrConflict)
	}

	sectionNames := make(map[string]bool, len(test.Sections))
	for _, sec := range test.Sections {
		sectionNames[sec.Name] = true
	}
	for i := range questions {
		if err := checkQuestion(&questions[i], i, sectionNames); err != nil {
			return nil, err
		}
	}

	if err := s.questionRepo.AppendToTest(ctx, testID, questions); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to add questions to test %d: %w", testID, err)
	}

	if err := s.InvalidateTest(ctx, testID); err != nil {
		log.Printf("[CatalogService] %v", err)
	}
	log.Printf("[CatalogService] В тест #%d добавлено вопросов: %d", testID, len(questions))
	return questions, nil
}

// normalizeTest проверяет определение теста и заполняет значения по умолчанию
func normalizeTest(test *entity.Test) error {
	test.Title = strings.TrimSpace(test.Title)
	if test.Title == "" {
		return validationError("title is required")
	}
	if len(test.Questions) == 0 {
		return validationError("test must contain at least one question")
	}
	if test.AttemptsAllowed <= 0 {
		test.AttemptsAllowed = 1
	}
	if test.PassingMarks < 0 || test.PassingMarks > 100 {
		return validationError("passing_marks must be a percentage between 0 and 100")
	}
	if test.ValidFrom != nil && test.ValidUntil != nil && !test.ValidUntil.After(*test.ValidFrom) {
		return validationError("valid_until must be after valid_from")
	}

	sectionNames := make(map[string]bool, len(test.Sections))
	for i := range test.Sections {
		sec := &test.Sections[i]
		sec.Name = strings.TrimSpace(sec.Name)
		if sec.Name == "" {
			return validationError("section %d has no name", i)
		}
		if sec.Duration < 0 {
			return validationError("section %q has negative duration", sec.Name)
		}
		sec.Position = i
		sectionNames[sec.Name] = true
	}

	if test.TotalDuration() <= 0 {
		return validationError("test duration must be positive")
	}

	for i := range test.Questions {
		if err := checkQuestion(&test.Questions[i], i, sectionNames); err != nil {
			return err
		}
		test.Questions[i].Position = i
	}

	if test.TotalMarks <= 0 {
		test.TotalMarks = test.SumOfMarks()
	}
	return nil
}

// checkQuestion проверяет один вопрос; sectionNames пуст для теста без секций
func checkQuestion(q *entity.Question, i int, sectionNames map[string]bool) error {
	if !q.Type.IsValid() {
		return validationError("question %d has unknown type %q", i, q.Type)
	}
	if strings.TrimSpace(q.Text) == "" {
		return validationError("question %d has no text", i)
	}
	if len(q.Options) == 0 {
		return validationError("question %d has no options", i)
	}
	if len(sectionNames) > 0 && q.Section != "" && !sectionNames[q.Section] {
		return validationError("question %d references unknown section %q", i, q.Section)
	}

	seen := make(map[string]int, len(q.Options))
	for j := range q.Options {
		q.Options[j].Text = strings.TrimSpace(q.Options[j].Text)
		id := q.Options[j].Identifier(j)
		if prev, ok := seen[id]; ok {
			return validationError("question %d: options %d and %d share identifier %q", i, prev, j, id)
		}
		seen[id] = j
	}
	return nil
}
