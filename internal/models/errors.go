package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound   = errors.New("resource not found") // Soup or try missing at operation time
	ErrValidation = errors.New("record failed schema validation")

	// Caller input errors
	ErrInvalidInput      = errors.New("invalid input data")
	ErrInvalidOperation  = errors.New("operation not allowed in current soup status")
	ErrOperationInFlight = errors.New("another operation for this soup is already in flight")

	// Judge Gateway errors
	ErrJudgeUnavailable     = errors.New("judge is unavailable")                      // Transport/provider failure
	ErrMalformedJudgeOutput = errors.New("judge output is not valid JSON")            // Ответ пришел, но это не JSON
	ErrInvalidJudgeOutput   = errors.New("judge output failed expected-shape checks") // JSON валиден, но схема не совпала

	// Domain-level rejection, not a system error: the judge decided the
	// submitted solution does not match the truth. UIs present this as
	// "try again" rather than a failure.
	ErrSolutionIncorrect = errors.New("solution does not match the truth")
)
