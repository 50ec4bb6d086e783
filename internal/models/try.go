package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TryStatus определяет результат классификации вопроса
type TryStatus string

const (
	TryStatusValid   TryStatus = "valid"   // Закрытый вопрос, судья дал ответ
	TryStatusInvalid TryStatus = "invalid" // Вопрос отклонен (не закрытой формы и т.п.)
)

// TryResponse is the judge's verdict for a valid question.
type TryResponse string

const (
	ResponseYes       TryResponse = "yes"
	ResponseNo        TryResponse = "no"
	ResponseUnrelated TryResponse = "unrelated"
)

// Try представляет один вопрос игрока и вердикт судьи.
//
// A try is immutable once persisted: it is only ever appended via the
// store's transactional AddTry or removed by the parent's cascade delete.
// Response is set only when Status is valid.
type Try struct {
	ID       uuid.UUID    `json:"id" db:"id"`
	SoupID   uuid.UUID    `json:"soupId" db:"soup_id"`
	Status   TryStatus    `json:"status" db:"status"`
	Question string       `json:"question" db:"question"`
	Response *TryResponse `json:"response,omitempty" db:"response"`
	Reason   string       `json:"reason" db:"reason"`
	CreateAt time.Time    `json:"createAt" db:"create_at"`
}

// Validate checks the status tag and the field set it permits.
func (t *Try) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: try id is empty", ErrValidation)
	}
	if t.SoupID == uuid.Nil {
		return fmt.Errorf("%w: try soupId is empty", ErrValidation)
	}
	if t.Question == "" {
		return fmt.Errorf("%w: try question is empty", ErrValidation)
	}
	if t.Reason == "" {
		return fmt.Errorf("%w: try reason is empty", ErrValidation)
	}
	switch t.Status {
	case TryStatusValid:
		if t.Response == nil {
			return fmt.Errorf("%w: valid try requires a response", ErrValidation)
		}
		switch *t.Response {
		case ResponseYes, ResponseNo, ResponseUnrelated:
		default:
			return fmt.Errorf("%w: unknown try response %q", ErrValidation, *t.Response)
		}
	case TryStatusInvalid:
		if t.Response != nil {
			return fmt.Errorf("%w: invalid try must not carry a response", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown try status %q", ErrValidation, t.Status)
	}
	return nil
}
