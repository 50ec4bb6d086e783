// Package schemas validates the judge's raw text against the expected shape
// of each lifecycle operation. The model's output is untrusted: it is never
// executed or interpolated, only parsed and checked here.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"

	"soup-server/internal/models"
)

// SoupCreation is the judge's output for the creation prompt.
type SoupCreation struct {
	Title   string `json:"title"`
	Surface string `json:"surface"`
	Truth   string `json:"truth"`
}

// TryJudgment is the judge's output for the question-classification prompt.
type TryJudgment struct {
	Status   models.TryStatus    `json:"status"`
	Response *models.TryResponse `json:"response,omitempty"`
	Reason   string              `json:"reason"`
}

// SolutionEvaluation is the judge's output for the scoring prompt.
type SolutionEvaluation struct {
	Explanation string `json:"explanation"`
	Score       int    `json:"score"`
}

// sanitizeModelOutput убирает markdown-ограждения, которые модели любят
// добавлять вокруг JSON.
func sanitizeModelOutput(raw string) []byte {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return []byte(s)
}

// ParseSoupCreation parses and validates the creation result.
func ParseSoupCreation(raw string) (*SoupCreation, error) {
	data := sanitizeModelOutput(raw)
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: creation result", models.ErrMalformedJudgeOutput)
	}
	var result SoupCreation
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: creation result: %v", models.ErrInvalidJudgeOutput, err)
	}
	if result.Title == "" || result.Surface == "" || result.Truth == "" {
		return nil, fmt.Errorf("%w: creation result is missing title, surface or truth", models.ErrInvalidJudgeOutput)
	}
	return &result, nil
}

// ParseTryJudgment parses and validates the question-classification result.
func ParseTryJudgment(raw string) (*TryJudgment, error) {
	data := sanitizeModelOutput(raw)
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: try judgment", models.ErrMalformedJudgeOutput)
	}
	var result TryJudgment
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: try judgment: %v", models.ErrInvalidJudgeOutput, err)
	}
	if result.Reason == "" {
		return nil, fmt.Errorf("%w: try judgment is missing a reason", models.ErrInvalidJudgeOutput)
	}
	switch result.Status {
	case models.TryStatusValid:
		if result.Response == nil {
			return nil, fmt.Errorf("%w: valid try judgment is missing a response", models.ErrInvalidJudgeOutput)
		}
		switch *result.Response {
		case models.ResponseYes, models.ResponseNo, models.ResponseUnrelated:
		default:
			return nil, fmt.Errorf("%w: unknown try response %q", models.ErrInvalidJudgeOutput, *result.Response)
		}
	case models.TryStatusInvalid:
		if result.Response != nil {
			return nil, fmt.Errorf("%w: invalid try judgment must not carry a response", models.ErrInvalidJudgeOutput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown try judgment status %q", models.ErrInvalidJudgeOutput, result.Status)
	}
	return &result, nil
}

// ParseSolutionJudgment interprets the literal boolean signal of the solve
// judgment phase, compared case- and whitespace-insensitively.
func ParseSolutionJudgment(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: solution judgment is not a true/false literal", models.ErrInvalidJudgeOutput)
	}
}

// ParseSolutionEvaluation parses and validates the scoring result.
func ParseSolutionEvaluation(raw string) (*SolutionEvaluation, error) {
	data := sanitizeModelOutput(raw)
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: solution evaluation", models.ErrMalformedJudgeOutput)
	}
	var result SolutionEvaluation
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: solution evaluation: %v", models.ErrInvalidJudgeOutput, err)
	}
	if result.Explanation == "" {
		return nil, fmt.Errorf("%w: solution evaluation is missing an explanation", models.ErrInvalidJudgeOutput)
	}
	if result.Score < 0 || result.Score > 100 {
		return nil, fmt.Errorf("%w: score %d is out of range [0,100]", models.ErrInvalidJudgeOutput, result.Score)
	}
	return &result, nil
}
