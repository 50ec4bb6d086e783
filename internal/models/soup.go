package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SoupStatus определяет статус загадки
type SoupStatus string

const (
	// StatusCreating is a transient UI placeholder only. It is never written
	// to the database; the view cache uses it for optimistic entries.
	StatusCreating   SoupStatus = "creating"
	StatusUnresolved SoupStatus = "unresolved" // Загадка активна, можно задавать вопросы
	StatusResolved   SoupStatus = "resolved"   // Решена игроком
	StatusGivenUp    SoupStatus = "given_up"   // Игрок сдался
)

// Soup представляет одну загадку "черепашьего супа".
//
// The Solution/Score/Explanation fields form a discriminated union over
// Status: resolved carries all three, given_up carries only Explanation,
// unresolved carries none. Validate enforces this before every durable
// write; callers must never hand-assemble a record that skips it.
type Soup struct {
	ID      uuid.UUID  `json:"id" db:"id"`
	Title   string     `json:"title" db:"title"`
	Surface string     `json:"surface" db:"surface"` // Видимая часть загадки ("汤面")
	Truth   string     `json:"truth" db:"truth"`     // Скрытая разгадка ("汤底")
	Hints   []string   `json:"hints" db:"hints"`     // Append-only
	Status  SoupStatus `json:"status" db:"status"`

	// Conditional fields, see the union invariant above.
	Solution    *string `json:"solution,omitempty" db:"solution"`
	Score       *int    `json:"score,omitempty" db:"score"`
	Explanation *string `json:"explanation,omitempty" db:"explanation"`

	CreateAt time.Time `json:"createAt" db:"create_at"`
	UpdateAt time.Time `json:"updateAt" db:"update_at"`

	// Tries заполняется при чтении (join по soup_id), в БД не хранится.
	Tries []Try `json:"tries" db:"-"`
}

// Validate checks the status tag and the field set it permits.
func (s *Soup) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("%w: soup id is empty", ErrValidation)
	}
	if s.Title == "" || s.Surface == "" || s.Truth == "" {
		return fmt.Errorf("%w: title, surface and truth are required", ErrValidation)
	}
	if s.Hints == nil {
		return fmt.Errorf("%w: hints must not be nil (use an empty slice)", ErrValidation)
	}
	switch s.Status {
	case StatusUnresolved:
		if s.Solution != nil || s.Score != nil || s.Explanation != nil {
			return fmt.Errorf("%w: unresolved soup must not carry solution/score/explanation", ErrValidation)
		}
	case StatusResolved:
		if s.Solution == nil || s.Score == nil || s.Explanation == nil {
			return fmt.Errorf("%w: resolved soup requires solution, score and explanation", ErrValidation)
		}
		if *s.Score < 0 || *s.Score > 100 {
			return fmt.Errorf("%w: score %d is out of range [0,100]", ErrValidation, *s.Score)
		}
	case StatusGivenUp:
		if s.Explanation == nil {
			return fmt.Errorf("%w: given_up soup requires explanation", ErrValidation)
		}
		if s.Solution != nil || s.Score != nil {
			return fmt.Errorf("%w: given_up soup must not carry solution/score", ErrValidation)
		}
	case StatusCreating:
		// creating никогда не пишется в БД
		return fmt.Errorf("%w: creating status is not persistable", ErrValidation)
	default:
		return fmt.Errorf("%w: unknown soup status %q", ErrValidation, s.Status)
	}
	return nil
}

// IsTerminal reports whether the soup reached resolved or given_up.
func (s *Soup) IsTerminal() bool {
	return s.Status == StatusResolved || s.Status == StatusGivenUp
}

// PlaceholderSoup is the optimistic list entry shown while generation is in
// flight. It mirrors the original client's transient "creating" card and
// never reaches the repository.
type PlaceholderSoup struct {
	ID       uuid.UUID  `json:"id"`
	Status   SoupStatus `json:"status"`
	CreateAt time.Time  `json:"createAt"`
}

// NewPlaceholderSoup создает временную запись со статусом creating.
func NewPlaceholderSoup() PlaceholderSoup {
	return PlaceholderSoup{
		ID:       uuid.New(),
		Status:   StatusCreating,
		CreateAt: time.Now().UTC(),
	}
}
