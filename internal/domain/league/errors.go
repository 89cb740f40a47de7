package league

import "errors"

var (
	// ErrInvalidConfig is returned for bad cohort settings.
	ErrInvalidConfig = errors.New("invalid league config")
	// ErrLeagueOutOfRange flags a stored league outside the enum.
	ErrLeagueOutOfRange = errors.New("league outside enum")
)
