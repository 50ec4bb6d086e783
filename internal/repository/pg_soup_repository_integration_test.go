package repository_test // Используем _test пакет для изоляции

import (
	"context"
	"errors"
	"testing"
	"time"

	"soup-server/internal/models"
	"soup-server/internal/repository"
	"soup-server/migrations"
	"soup-server/pkg/migration"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoryIntegrationSuite гоняет репозиторий против настоящего PostgreSQL
type RepositoryIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	repo        repository.SoupRepository
}

// SetupSuite выполняется один раз перед всеми тестами в наборе
func (s *RepositoryIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	// --- Запуск Postgres ---
	pgContainer, err := postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	pool, err := pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err)
	s.pool = pool

	// Применяем миграции из встроенной файловой системы
	require.NoError(s.T(), migration.NewMigrator(pool, migrations.FS, ".").Up(s.ctx),
		"Failed to apply migrations")

	s.repo = repository.NewPgSoupRepository(pool, zap.NewNop())
}

// TearDownSuite выполняется один раз после всех тестов
func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		require.NoError(s.T(), s.pgContainer.Terminate(s.ctx))
	}
}

// SetupTest очищает таблицы перед каждым тестом
func (s *RepositoryIntegrationSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE tries, soups`)
	require.NoError(s.T(), err)
}

func (s *RepositoryIntegrationSuite) mustCreateSoup() *models.Soup {
	soup, err := s.repo.CreateSoup(s.ctx, repository.CreateSoupParams{
		Title:   "The Silent Diner",
		Surface: "A man orders turtle soup, takes one sip and leaves in tears.",
		Truth:   "He recognizes the taste from a shipwreck years ago.",
	})
	require.NoError(s.T(), err)
	return soup
}

func (s *RepositoryIntegrationSuite) newTry(soupID uuid.UUID, question string, createAt time.Time) *models.Try {
	response := models.ResponseNo
	return &models.Try{
		ID:       uuid.New(),
		SoupID:   soupID,
		Status:   models.TryStatusValid,
		Question: question,
		Response: &response,
		Reason:   "The truth says otherwise.",
		CreateAt: createAt,
	}
}

func (s *RepositoryIntegrationSuite) countRows(table string) int {
	var n int
	require.NoError(s.T(), s.pool.QueryRow(s.ctx, `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func (s *RepositoryIntegrationSuite) TestAddTryMissingParentPersistsNothing() {
	try := s.newTry(uuid.New(), "Was it poisoned?", time.Now().UTC())

	err := s.repo.AddTry(s.ctx, try.SoupID, try)

	assert.True(s.T(), errors.Is(err, models.ErrNotFound))
	// Транзакция откатилась целиком, вопрос не сохранился
	assert.Equal(s.T(), 0, s.countRows("tries"))
}

func (s *RepositoryIntegrationSuite) TestAddTryBumpsParentUpdateAt() {
	soup := s.mustCreateSoup()
	before := soup.UpdateAt

	time.Sleep(50 * time.Millisecond)
	try := s.newTry(soup.ID, "Was it poisoned?", time.Now().UTC())
	require.NoError(s.T(), s.repo.AddTry(s.ctx, soup.ID, try))

	reloaded, err := s.repo.GetSoup(s.ctx, soup.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), reloaded.UpdateAt.After(before),
		"update_at must be refreshed by AddTry: before=%v after=%v", before, reloaded.UpdateAt)
	require.Len(s.T(), reloaded.Tries, 1)
	assert.Equal(s.T(), try.ID, reloaded.Tries[0].ID)
}

func (s *RepositoryIntegrationSuite) TestReplaceSoupBumpsUpdateAtAndKeepsCreateAt() {
	soup := s.mustCreateSoup()
	before := soup.UpdateAt

	time.Sleep(50 * time.Millisecond)
	explanation := "He survived a shipwreck."
	givenUp := *soup
	givenUp.Status = models.StatusGivenUp
	givenUp.Explanation = &explanation
	require.NoError(s.T(), s.repo.ReplaceSoup(s.ctx, &givenUp))

	reloaded, err := s.repo.GetSoup(s.ctx, soup.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusGivenUp, reloaded.Status)
	require.NotNil(s.T(), reloaded.Explanation)
	assert.Equal(s.T(), explanation, *reloaded.Explanation)
	assert.True(s.T(), reloaded.UpdateAt.After(before))
	assert.WithinDuration(s.T(), soup.CreateAt, reloaded.CreateAt, time.Millisecond)
}

func (s *RepositoryIntegrationSuite) TestReplaceSoupRejectsInvalidRecord() {
	soup := s.mustCreateSoup()

	// resolved без score и explanation нарушает инвариант статуса
	solution := "A guess"
	broken := *soup
	broken.Status = models.StatusResolved
	broken.Solution = &solution
	err := s.repo.ReplaceSoup(s.ctx, &broken)

	assert.True(s.T(), errors.Is(err, models.ErrValidation))

	// Запись в БД не изменилась
	reloaded, getErr := s.repo.GetSoup(s.ctx, soup.ID)
	require.NoError(s.T(), getErr)
	assert.Equal(s.T(), models.StatusUnresolved, reloaded.Status)
	assert.Nil(s.T(), reloaded.Solution)
}

func (s *RepositoryIntegrationSuite) TestDeleteSoupCascade() {
	victim := s.mustCreateSoup()
	survivor := s.mustCreateSoup()
	now := time.Now().UTC()
	require.NoError(s.T(), s.repo.AddTry(s.ctx, victim.ID, s.newTry(victim.ID, "Q1?", now)))
	require.NoError(s.T(), s.repo.AddTry(s.ctx, victim.ID, s.newTry(victim.ID, "Q2?", now.Add(time.Second))))
	require.NoError(s.T(), s.repo.AddTry(s.ctx, survivor.ID, s.newTry(survivor.ID, "Q3?", now)))

	require.NoError(s.T(), s.repo.DeleteSoupCascade(s.ctx, victim.ID))

	// Суп и все его вопросы исчезли, чужие вопросы не задеты
	_, err := s.repo.GetSoup(s.ctx, victim.ID)
	assert.True(s.T(), errors.Is(err, models.ErrNotFound))
	assert.Equal(s.T(), 1, s.countRows("soups"))
	assert.Equal(s.T(), 1, s.countRows("tries"))

	reloaded, err := s.repo.GetSoup(s.ctx, survivor.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), reloaded.Tries, 1)
}

func (s *RepositoryIntegrationSuite) TestDeleteSoupCascadeMissingSoupChangesNothing() {
	soup := s.mustCreateSoup()
	require.NoError(s.T(), s.repo.AddTry(s.ctx, soup.ID, s.newTry(soup.ID, "Q1?", time.Now().UTC())))

	err := s.repo.DeleteSoupCascade(s.ctx, uuid.New())

	assert.True(s.T(), errors.Is(err, models.ErrNotFound))
	// Откат всей транзакции: существующие записи на месте
	assert.Equal(s.T(), 1, s.countRows("soups"))
	assert.Equal(s.T(), 1, s.countRows("tries"))
}

func (s *RepositoryIntegrationSuite) TestGetSoupMergesTriesInCreateOrder() {
	soup := s.mustCreateSoup()
	base := time.Now().UTC()
	second := s.newTry(soup.ID, "Second?", base.Add(2*time.Second))
	first := s.newTry(soup.ID, "First?", base)
	// Вставляем не по порядку, читать должны по create_at
	require.NoError(s.T(), s.repo.AddTry(s.ctx, soup.ID, second))
	require.NoError(s.T(), s.repo.AddTry(s.ctx, soup.ID, first))

	reloaded, err := s.repo.GetSoup(s.ctx, soup.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), reloaded.Tries, 2)
	assert.Equal(s.T(), "First?", reloaded.Tries[0].Question)
	assert.Equal(s.T(), "Second?", reloaded.Tries[1].Question)

	soups, err := s.repo.ListSoups(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), soups, 1)
	assert.Len(s.T(), soups[0].Tries, 2)
}

// TestRepositoryIntegrationSuite запускает набор тестов
func TestRepositoryIntegrationSuite(t *testing.T) {
	// Пропускаем тесты, если запущены с флагом -short
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	suite.Run(t, new(RepositoryIntegrationSuite))
}
