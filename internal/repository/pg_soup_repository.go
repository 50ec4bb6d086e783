package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"soup-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check
var _ SoupRepository = (*pgSoupRepository)(nil)

type pgSoupRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgSoupRepository создает репозиторий супов поверх pgxpool.
func NewPgSoupRepository(pool *pgxpool.Pool, logger *zap.Logger) SoupRepository {
	return &pgSoupRepository{
		pool:   pool,
		logger: logger.Named("PgSoupRepo"),
	}
}

const soupColumns = "id, title, surface, truth, hints, status, solution, score, explanation, create_at, update_at"

// Create - Реализация метода CreateSoup
func (r *pgSoupRepository) CreateSoup(ctx context.Context, params CreateSoupParams) (*models.Soup, error) {
	now := time.Now().UTC()
	soup := &models.Soup{
		ID:       uuid.New(),
		Title:    params.Title,
		Surface:  params.Surface,
		Truth:    params.Truth,
		Hints:    []string{},
		Status:   models.StatusUnresolved,
		CreateAt: now,
		UpdateAt: now,
		Tries:    []models.Try{},
	}
	if err := soup.Validate(); err != nil {
		return nil, err
	}

	hintsJSON, err := json.Marshal(soup.Hints)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации hints: %w", err)
	}

	query := `
        INSERT INTO soups
            (id, title, surface, truth, hints, status, create_at, update_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	logFields := []zap.Field{zap.String("soupID", soup.ID.String())}
	r.logger.Debug("Creating soup", logFields...)

	_, err = r.pool.Exec(ctx, query,
		soup.ID, soup.Title, soup.Surface, soup.Truth, hintsJSON, soup.Status, soup.CreateAt, soup.UpdateAt,
	)
	if err != nil {
		r.logger.Error("Failed to create soup", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("ошибка создания soup: %w", err)
	}
	r.logger.Info("Soup created successfully", logFields...)
	return soup, nil
}

// GetSoup возвращает суп вместе с его вопросами
func (r *pgSoupRepository) GetSoup(ctx context.Context, id uuid.UUID) (*models.Soup, error) {
	soup, err := r.getSoupRecord(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}

	tries, err := r.getTriesBySoupID(ctx, id)
	if err != nil {
		return nil, err
	}
	soup.Tries = tries
	return soup, nil
}

// ListSoups возвращает все супы, каждый со своими вопросами
func (r *pgSoupRepository) ListSoups(ctx context.Context) ([]models.Soup, error) {
	query := `SELECT ` + soupColumns + ` FROM soups ORDER BY create_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list soups", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка soups: %w", err)
	}
	defer rows.Close()

	var soups []models.Soup
	for rows.Next() {
		soup, err := scanSoup(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки soup: %w", err)
		}
		soups = append(soups, *soup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по soups: %w", err)
	}

	// Одним запросом забираем все вопросы и раскладываем по супам
	triesQuery := `
        SELECT id, soup_id, status, question, response, reason, create_at
        FROM tries
        ORDER BY create_at ASC
    `
	triesRows, err := r.pool.Query(ctx, triesQuery)
	if err != nil {
		r.logger.Error("Failed to list tries", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка tries: %w", err)
	}
	defer triesRows.Close()

	triesBySoup := make(map[uuid.UUID][]models.Try)
	for triesRows.Next() {
		try, err := scanTry(triesRows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки try: %w", err)
		}
		triesBySoup[try.SoupID] = append(triesBySoup[try.SoupID], *try)
	}
	if err := triesRows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по tries: %w", err)
	}

	for i := range soups {
		tries, ok := triesBySoup[soups[i].ID]
		if !ok {
			tries = []models.Try{}
		}
		soups[i].Tries = tries
	}
	return soups, nil
}

// ReplaceSoup выполняет идемпотентный upsert полной записи
func (r *pgSoupRepository) ReplaceSoup(ctx context.Context, soup *models.Soup) error {
	if err := soup.Validate(); err != nil {
		return err
	}
	soup.UpdateAt = time.Now().UTC()

	hintsJSON, err := json.Marshal(soup.Hints)
	if err != nil {
		return fmt.Errorf("ошибка сериализации hints: %w", err)
	}

	query := `
        INSERT INTO soups
            (id, title, surface, truth, hints, status, solution, score, explanation, create_at, update_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            surface = EXCLUDED.surface,
            truth = EXCLUDED.truth,
            hints = EXCLUDED.hints,
            status = EXCLUDED.status,
            solution = EXCLUDED.solution,
            score = EXCLUDED.score,
            explanation = EXCLUDED.explanation,
            update_at = EXCLUDED.update_at
    `
	logFields := []zap.Field{zap.String("soupID", soup.ID.String()), zap.String("status", string(soup.Status))}
	r.logger.Debug("Replacing soup", logFields...)

	_, err = r.pool.Exec(ctx, query,
		soup.ID, soup.Title, soup.Surface, soup.Truth, hintsJSON, soup.Status,
		soup.Solution, soup.Score, soup.Explanation, soup.CreateAt, soup.UpdateAt,
	)
	if err != nil {
		r.logger.Error("Failed to replace soup", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка замены soup %s: %w", soup.ID, err)
	}
	r.logger.Info("Soup replaced successfully", logFields...)
	return nil
}

// AddTry - транзакционное добавление вопроса с проверкой существования супа
func (r *pgSoupRepository) AddTry(ctx context.Context, soupID uuid.UUID, try *models.Try) error {
	if try.SoupID != soupID {
		return fmt.Errorf("%w: try soupId %s does not match %s", models.ErrValidation, try.SoupID, soupID)
	}
	if err := try.Validate(); err != nil {
		return err
	}

	logFields := []zap.Field{zap.String("soupID", soupID.String()), zap.String("tryID", try.ID.String())}

	return r.withTransaction(ctx, func(tx DBTX) error {
		// Проверяем существование родителя внутри транзакции
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM soups WHERE id = $1)`, soupID).Scan(&exists); err != nil {
			r.logger.Error("Failed to check soup existence", append(logFields, zap.Error(err))...)
			return fmt.Errorf("ошибка проверки существования soup: %w", err)
		}
		if !exists {
			r.logger.Warn("Soup not found for AddTry", logFields...)
			return models.ErrNotFound
		}

		query := `
            INSERT INTO tries
                (id, soup_id, status, question, response, reason, create_at)
            VALUES
                ($1, $2, $3, $4, $5, $6, $7)
        `
		if _, err := tx.Exec(ctx, query,
			try.ID, try.SoupID, try.Status, try.Question, try.Response, try.Reason, try.CreateAt,
		); err != nil {
			r.logger.Error("Failed to insert try", append(logFields, zap.Error(err))...)
			return fmt.Errorf("ошибка добавления try: %w", err)
		}

		// Отмечаем изменение на родителе
		if _, err := tx.Exec(ctx, `UPDATE soups SET update_at = $1 WHERE id = $2`, time.Now().UTC(), soupID); err != nil {
			return fmt.Errorf("ошибка обновления update_at у soup: %w", err)
		}

		r.logger.Info("Try added successfully", logFields...)
		return nil
	})
}

// DeleteSoupCascade - транзакционное каскадное удаление супа и его вопросов
func (r *pgSoupRepository) DeleteSoupCascade(ctx context.Context, id uuid.UUID) error {
	logFields := []zap.Field{zap.String("soupID", id.String())}

	return r.withTransaction(ctx, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `DELETE FROM tries WHERE soup_id = $1`, id); err != nil {
			r.logger.Error("Failed to delete tries for soup", append(logFields, zap.Error(err))...)
			return fmt.Errorf("ошибка удаления tries для soup %s: %w", id, err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM soups WHERE id = $1`, id)
		if err != nil {
			r.logger.Error("Failed to delete soup", append(logFields, zap.Error(err))...)
			return fmt.Errorf("ошибка удаления soup %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			// Родителя не было, транзакция откатится целиком
			r.logger.Warn("Soup not found for cascade delete", logFields...)
			return models.ErrNotFound
		}

		r.logger.Info("Soup deleted with tries", logFields...)
		return nil
	})
}

// withTransaction выполняет функцию в транзакции с автоматическим rollback при ошибке
func (r *pgSoupRepository) withTransaction(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				r.logger.Error("Failed to rollback transaction after panic",
					zap.Error(rollbackErr), zap.Any("panic", p))
			}
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			r.logger.Error("Failed to rollback transaction",
				zap.Error(rollbackErr), zap.NamedError("original_error", err))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *pgSoupRepository) getSoupRecord(ctx context.Context, q DBTX, id uuid.UUID) (*models.Soup, error) {
	query := `SELECT ` + soupColumns + ` FROM soups WHERE id = $1`
	row := q.QueryRow(ctx, query, id)
	soup, err := scanSoup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Soup not found by ID", zap.String("soupID", id.String()))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get soup by ID", zap.String("soupID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения soup %s: %w", id, err)
	}
	return soup, nil
}

func (r *pgSoupRepository) getTriesBySoupID(ctx context.Context, soupID uuid.UUID) ([]models.Try, error) {
	query := `
        SELECT id, soup_id, status, question, response, reason, create_at
        FROM tries
        WHERE soup_id = $1
        ORDER BY create_at ASC
    `
	rows, err := r.pool.Query(ctx, query, soupID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения tries для soup %s: %w", soupID, err)
	}
	defer rows.Close()

	tries := []models.Try{}
	for rows.Next() {
		try, err := scanTry(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки try: %w", err)
		}
		tries = append(tries, *try)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по tries: %w", err)
	}
	return tries, nil
}

// scanSoup читает одну строку soups (порядок колонок - soupColumns)
func scanSoup(row pgx.Row) (*models.Soup, error) {
	soup := &models.Soup{}
	var hintsJSON []byte
	err := row.Scan(
		&soup.ID, &soup.Title, &soup.Surface, &soup.Truth, &hintsJSON, &soup.Status,
		&soup.Solution, &soup.Score, &soup.Explanation, &soup.CreateAt, &soup.UpdateAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hintsJSON, &soup.Hints); err != nil {
		return nil, fmt.Errorf("ошибка десериализации hints: %w", err)
	}
	if soup.Hints == nil {
		soup.Hints = []string{}
	}
	return soup, nil
}

// scanTry читает одну строку tries
func scanTry(row pgx.Row) (*models.Try, error) {
	try := &models.Try{}
	err := row.Scan(
		&try.ID, &try.SoupID, &try.Status, &try.Question, &try.Response, &try.Reason, &try.CreateAt,
	)
	if err != nil {
		return nil, err
	}
	return try, nil
}
