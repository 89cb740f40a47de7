package service

import (
	"errors"
	"fmt"

	"github.com/okian/merit/internal/domain/errs"
)

// Service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrQueueFull        = errors.New("award queue is full")
	ErrInvalidSeason    = fmt.Errorf("invalid season: %w", errs.ErrInvalidInput)
	ErrInvalidMission   = fmt.Errorf("invalid mission: %w", errs.ErrInvalidInput)
	ErrSeasonTransition = fmt.Errorf("illegal season transition: %w", errs.ErrConflict)
)
