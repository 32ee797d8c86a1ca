package domain

import "errors"

// Domain errors
var (
	ErrMissingFields    = errors.New("missing required fields: playerId, gameId, score, playerName")
	ErrScoreOutOfRange  = errors.New("score must be between 0 and 999999")
	ErrPlayerIDRequired = errors.New("playerId is required")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrRecordNotFound   = errors.New("score record not found")
)

// IsValidationError checks if an error is a bad-input type error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrScoreOutOfRange) ||
		errors.Is(err, ErrPlayerIDRequired)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrRecordNotFound)
}
