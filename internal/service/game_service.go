package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"soup-server/internal/ai"
	"soup-server/internal/models"
	"soup-server/internal/repository"
	"soup-server/internal/schemas"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GameService is the puzzle lifecycle engine. It owns every durable write to
// soups and tries, sequences judge calls with store operations and enforces
// the status state machine:
//
//	unresolved -> resolved | given_up (terminal; hints stay appendable)
//
// Every transition is all-or-nothing: any judge failure or schema-validation
// failure aborts with zero durable mutation. The store write is the commit
// point; refreshing the view cache afterwards is the caller's concern.
type GameService interface {
	CreateSoup(ctx context.Context, theme string, locale string) (*models.Soup, error)
	GetSoup(ctx context.Context, id uuid.UUID) (*models.Soup, error)
	ListSoups(ctx context.Context) ([]models.Soup, error)
	DeleteSoup(ctx context.Context, id uuid.UUID) error
	AskQuestion(ctx context.Context, soupID uuid.UUID, question string, locale string) (*models.Try, error)
	SubmitSolution(ctx context.Context, soupID uuid.UUID, solution string, locale string) (*models.Soup, error)
	GiveUp(ctx context.Context, soupID uuid.UUID, locale string) (*models.Soup, error)
	RequestHint(ctx context.Context, soupID uuid.UUID, locale string) (*models.Soup, error)
}

type gameServiceImpl struct {
	repo   repository.SoupRepository
	judge  ai.JudgeClient
	logger *zap.Logger
}

// NewGameService creates a new instance of GameService.
func NewGameService(repo repository.SoupRepository, judge ai.JudgeClient, logger *zap.Logger) GameService {
	return &gameServiceImpl{
		repo:   repo,
		judge:  judge,
		logger: logger.Named("GameService"),
	}
}

// CreateSoup asks the judge to invent a puzzle and persists it as unresolved.
func (s *gameServiceImpl) CreateSoup(ctx context.Context, theme string, locale string) (*models.Soup, error) {
	log := s.logger.With(zap.String("locale", locale))
	log.Info("CreateSoup called", zap.Bool("hasTheme", theme != ""))

	userContent := "No particular theme, improvise freely."
	if strings.TrimSpace(theme) != "" {
		userContent = "Theme: " + theme
	}

	rawText, err := s.judge.Complete(ctx, ai.CreateSoupPrompt(locale), userContent)
	if err != nil {
		log.Warn("Judge call failed during creation", zap.Error(err))
		return nil, err
	}

	creation, err := schemas.ParseSoupCreation(rawText)
	if err != nil {
		log.Warn("Judge creation output rejected", zap.Error(err))
		return nil, err
	}

	soup, err := s.repo.CreateSoup(ctx, repository.CreateSoupParams{
		Title:   creation.Title,
		Surface: creation.Surface,
		Truth:   creation.Truth,
	})
	if err != nil {
		log.Error("Failed to persist created soup", zap.Error(err))
		return nil, fmt.Errorf("ошибка сохранения созданного супа: %w", err)
	}

	log.Info("Soup created", zap.String("soupID", soup.ID.String()), zap.String("title", soup.Title))
	return soup, nil
}

// GetSoup returns the soup merged with its tries.
func (s *gameServiceImpl) GetSoup(ctx context.Context, id uuid.UUID) (*models.Soup, error) {
	return s.repo.GetSoup(ctx, id)
}

// ListSoups returns all soups merged with their tries.
func (s *gameServiceImpl) ListSoups(ctx context.Context) ([]models.Soup, error) {
	return s.repo.ListSoups(ctx)
}

// DeleteSoup cascade-deletes the soup and its tries.
func (s *gameServiceImpl) DeleteSoup(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSoupCascade(ctx, id)
}

// AskQuestion classifies one player question against the truth and appends
// the resulting try. The soup's own status never changes here: asking never
// auto-resolves a puzzle.
func (s *gameServiceImpl) AskQuestion(ctx context.Context, soupID uuid.UUID, question string, locale string) (*models.Try, error) {
	log := s.logger.With(zap.String("soupID", soupID.String()))

	// Пустой вопрос отклоняем до обращения к судье
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrInvalidInput)
	}

	soup, err := s.repo.GetSoup(ctx, soupID)
	if err != nil {
		return nil, err
	}
	if soup.Status != models.StatusUnresolved {
		log.Warn("Question asked on a terminal soup", zap.String("status", string(soup.Status)))
		return nil, fmt.Errorf("%w: cannot ask questions in status %s", models.ErrInvalidOperation, soup.Status)
	}

	rawText, err := s.judge.Complete(ctx, ai.JudgeTryPrompt(locale, soup.Truth), question)
	if err != nil {
		log.Warn("Judge call failed during question classification", zap.Error(err))
		return nil, err
	}

	judgment, err := schemas.ParseTryJudgment(rawText)
	if err != nil {
		log.Warn("Judge try output rejected", zap.Error(err))
		return nil, err
	}

	try := &models.Try{
		ID:       uuid.New(),
		SoupID:   soupID,
		Status:   judgment.Status,
		Question: question,
		Response: judgment.Response,
		Reason:   judgment.Reason,
		CreateAt: time.Now().UTC(),
	}
	if err := s.repo.AddTry(ctx, soupID, try); err != nil {
		log.Error("Failed to persist try", zap.Error(err))
		return nil, err
	}

	log.Info("Try recorded", zap.String("tryID", try.ID.String()), zap.String("status", string(try.Status)))
	return try, nil
}

// SubmitSolution runs the two-phase solve protocol: a hard correctness gate
// followed by advisory scoring. The two judge calls stay separate so that a
// wrong solution (ErrSolutionIncorrect) is distinguishable from a broken
// scoring response (ErrInvalidJudgeOutput).
func (s *gameServiceImpl) SubmitSolution(ctx context.Context, soupID uuid.UUID, solution string, locale string) (*models.Soup, error) {
	log := s.logger.With(zap.String("soupID", soupID.String()))

	if strings.TrimSpace(solution) == "" {
		return nil, fmt.Errorf("%w: solution is empty", models.ErrInvalidInput)
	}

	soup, err := s.repo.GetSoup(ctx, soupID)
	if err != nil {
		return nil, err
	}
	if soup.Status != models.StatusUnresolved {
		log.Warn("Solution submitted on a terminal soup", zap.String("status", string(soup.Status)))
		return nil, fmt.Errorf("%w: cannot solve in status %s", models.ErrInvalidOperation, soup.Status)
	}

	// Фаза 1: бинарная проверка решения
	judgeSystem, judgeUser := ai.JudgeSolutionPrompts(soup.Truth, solution)
	judgeText, err := s.judge.Complete(ctx, judgeSystem, judgeUser)
	if err != nil {
		log.Warn("Judge call failed during solution judgment", zap.Error(err))
		return nil, err
	}
	affirmative, err := schemas.ParseSolutionJudgment(judgeText)
	if err != nil {
		log.Warn("Judge solution judgment rejected", zap.Error(err))
		return nil, err
	}
	if !affirmative {
		log.Info("Solution judged incorrect")
		return nil, models.ErrSolutionIncorrect
	}

	// Фаза 2: оценка и разбор
	evalSystem, evalUser := ai.EvaluateSolutionPrompts(
		locale, soup.Truth, solution, formatTries(soup.Tries), formatHintCount(soup.Hints))
	evalText, err := s.judge.Complete(ctx, evalSystem, evalUser)
	if err != nil {
		log.Warn("Judge call failed during solution evaluation", zap.Error(err))
		return nil, err
	}
	evaluation, err := schemas.ParseSolutionEvaluation(evalText)
	if err != nil {
		// Мягкий сбой: решение верное, но оценка не распарсилась - ничего не пишем
		log.Warn("Judge evaluation output rejected, nothing persisted", zap.Error(err))
		return nil, err
	}

	// Перечитываем текущую запись, чтобы не затереть параллельно добавленные подсказки
	current, err := s.repo.GetSoup(ctx, soupID)
	if err != nil {
		return nil, err
	}

	solutionCopy := solution
	score := evaluation.Score
	explanation := evaluation.Explanation
	resolved := &models.Soup{
		ID:          current.ID,
		Title:       current.Title,
		Surface:     current.Surface,
		Truth:       current.Truth,
		Hints:       current.Hints,
		Status:      models.StatusResolved,
		Solution:    &solutionCopy,
		Score:       &score,
		Explanation: &explanation,
		CreateAt:    current.CreateAt,
		UpdateAt:    current.UpdateAt,
		Tries:       current.Tries,
	}
	if err := s.repo.ReplaceSoup(ctx, resolved); err != nil {
		log.Error("Failed to persist resolved soup", zap.Error(err))
		return nil, err
	}

	log.Info("Soup resolved", zap.Int("score", score))
	return resolved, nil
}

// GiveUp asks the judge to narrate the truth and marks the soup given_up.
func (s *gameServiceImpl) GiveUp(ctx context.Context, soupID uuid.UUID, locale string) (*models.Soup, error) {
	log := s.logger.With(zap.String("soupID", soupID.String()))

	soup, err := s.repo.GetSoup(ctx, soupID)
	if err != nil {
		return nil, err
	}
	if soup.Status != models.StatusUnresolved {
		log.Warn("Give up on a terminal soup", zap.String("status", string(soup.Status)))
		return nil, fmt.Errorf("%w: cannot give up in status %s", models.ErrInvalidOperation, soup.Status)
	}

	system, user := ai.GiveUpPrompts(locale, soup.Surface, soup.Truth)
	narration, err := s.judge.Complete(ctx, system, user)
	if err != nil {
		log.Warn("Judge call failed during give up", zap.Error(err))
		return nil, err
	}
	narration = strings.TrimSpace(narration)
	if narration == "" {
		return nil, fmt.Errorf("%w: empty give-up narration", models.ErrInvalidJudgeOutput)
	}

	// Перечитываем перед записью, подсказки могли добавиться
	current, err := s.repo.GetSoup(ctx, soupID)
	if err != nil {
		return nil, err
	}

	givenUp := &models.Soup{
		ID:          current.ID,
		Title:       current.Title,
		Surface:     current.Surface,
		Truth:       current.Truth,
		Hints:       current.Hints,
		Status:      models.StatusGivenUp,
		Explanation: &narration,
		CreateAt:    current.CreateAt,
		UpdateAt:    current.UpdateAt,
		Tries:       current.Tries,
	}
	if err := s.repo.ReplaceSoup(ctx, givenUp); err != nil {
		log.Error("Failed to persist given-up soup", zap.Error(err))
		return nil, err
	}

	log.Info("Soup given up")
	return givenUp, nil
}

// RequestHint asks the judge for one new hint and appends it. Hints are
// orthogonal to resolution: the operation is allowed in every durable
// status and carries the status-specific fields forward unchanged.
func (s *gameServiceImpl) RequestHint(ctx context.Context, soupID uuid.UUID, locale string) (*models.Soup, error) {
	log := s.logger.With(zap.String("soupID", soupID.String()))

	soup, err := s.repo.GetSoup(ctx, soupID)
	if err != nil {
		return nil, err
	}

	system, user := ai.HintPrompts(locale, soup.Truth, formatTries(soup.Tries), formatHints(soup.Hints))
	hint, err := s.judge.Complete(ctx, system, user)
	if err != nil {
		log.Warn("Judge call failed during hint request", zap.Error(err))
		return nil, err
	}
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return nil, fmt.Errorf("%w: empty hint", models.ErrInvalidJudgeOutput)
	}

	// Перечитываем перед записью
	current, err := s.repo.GetSoup(ctx, soupID)
	if err != nil {
		return nil, err
	}

	updated := &models.Soup{
		ID:          current.ID,
		Title:       current.Title,
		Surface:     current.Surface,
		Truth:       current.Truth,
		Hints:       append(append([]string{}, current.Hints...), hint),
		Status:      current.Status,
		Solution:    current.Solution,
		Score:       current.Score,
		Explanation: current.Explanation,
		CreateAt:    current.CreateAt,
		UpdateAt:    current.UpdateAt,
		Tries:       current.Tries,
	}
	if err := s.repo.ReplaceSoup(ctx, updated); err != nil {
		log.Error("Failed to persist hint", zap.Error(err))
		return nil, err
	}

	log.Info("Hint appended", zap.Int("hintCount", len(updated.Hints)))
	return updated, nil
}

// formatTries формирует историю вопросов для контекста судьи.
func formatTries(tries []models.Try) string {
	if len(tries) == 0 {
		return "(no questions asked)"
	}
	lines := make([]string, 0, len(tries))
	for i, try := range tries {
		if try.Status == models.TryStatusValid && try.Response != nil {
			lines = append(lines, fmt.Sprintf("%d. Q: %s\n   A: %s (%s)", i+1, try.Question, *try.Response, try.Reason))
		} else {
			lines = append(lines, fmt.Sprintf("%d. Q: %s\n   A: invalid (%s)", i+1, try.Question, try.Reason))
		}
	}
	return strings.Join(lines, "\n")
}

// formatHints перечисляет уже выданные подсказки.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(hints))
	for i, hint := range hints {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, hint))
	}
	return strings.Join(lines, "\n")
}

func formatHintCount(hints []string) string {
	return fmt.Sprintf("%d", len(hints))
}
