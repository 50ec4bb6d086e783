package repository

import (
	"context"

	"soup-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX объединяет pgxpool.Pool и pgx.Tx, чтобы репозиторий мог работать
// как с пулом, так и внутри транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateSoupParams содержит поля, которые придумал судья при генерации.
type CreateSoupParams struct {
	Title   string
	Surface string
	Truth   string
}

// SoupRepository is the durable Puzzle Store: CRUD over soups plus the two
// transactional composite operations (AddTry, DeleteSoupCascade).
//
// Every successful write refreshes update_at. The repository never retries
// internally; callers own retry policy. Records that violate the
// status/field-set invariant are rejected with models.ErrValidation before
// any SQL runs.
type SoupRepository interface {
	// CreateSoup assigns an id, sets status=unresolved and empty hints,
	// stamps both timestamps and returns the hydrated soup (empty try list).
	CreateSoup(ctx context.Context, params CreateSoupParams) (*models.Soup, error)
	// GetSoup returns the soup merged with its tries (sorted by create_at
	// ascending) or models.ErrNotFound.
	GetSoup(ctx context.Context, id uuid.UUID) (*models.Soup, error)
	// ListSoups returns all soups, each merged with its tries.
	ListSoups(ctx context.Context) ([]models.Soup, error)
	// ReplaceSoup is an idempotent full-record upsert of a schema-valid soup.
	ReplaceSoup(ctx context.Context, soup *models.Soup) error
	// AddTry atomically verifies the parent soup exists and inserts the try.
	// Returns models.ErrNotFound if the parent is missing; nothing is
	// persisted in that case.
	AddTry(ctx context.Context, soupID uuid.UUID, try *models.Try) error
	// DeleteSoupCascade atomically deletes the soup and every try with a
	// matching soup_id. Returns models.ErrNotFound if the soup is missing;
	// no partial deletion is ever observable.
	DeleteSoupCascade(ctx context.Context, id uuid.UUID) error
}
