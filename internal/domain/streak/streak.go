// Package streak implements the per-user activity streak state machine.
//
// The state of a user is (current, best, shelters, lastScored). All
// functions are pure: callers load the row, call Advance, and persist the
// returned row inside the same transaction as the award.
package streak

import (
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/model"
)

// Transition names the branch Advance took.
type Transition string

// Transitions.
const (
	Started   Transition = "started"   // first ever scored day
	Extended  Transition = "extended"  // scored yesterday
	SameDay   Transition = "same_day"  // already counted today
	Sheltered Transition = "sheltered" // gap forgiven by a shelter
	Reset     Transition = "reset"     // gap without shelter
)

// Outcome is the result of Advance.
type Outcome struct {
	Streak     model.UserStreak
	Transition Transition
}

// Advance applies an award on today to s.
func Advance(s model.UserStreak, today model.Date) (Outcome, error) {
	if err := check(s); err != nil {
		return Outcome{}, err
	}
	next := s
	var tr Transition

	switch {
	case s.LastScoredDate.IsZero():
		next.CurrentStreakDays = 1
		tr = Started
	case s.LastScoredDate == today:
		tr = SameDay
	case s.LastScoredDate.AddDays(1) == today:
		next.CurrentStreakDays++
		tr = Extended
	case s.LastScoredDate.Before(today) && s.SheltersAvailable > 0:
		// one shelter bridges the whole gap, however long
		next.SheltersAvailable--
		next.CurrentStreakDays++
		tr = Sheltered
	case s.LastScoredDate.Before(today):
		next.CurrentStreakDays = 1
		tr = Reset
	default:
		// Last scored date is in the future relative to today: the clock
		// moved backwards. Leave the row alone rather than rewind it.
		return Outcome{Streak: s, Transition: SameDay}, nil
	}

	if next.CurrentStreakDays > next.BestStreakDays {
		next.BestStreakDays = next.CurrentStreakDays
	}
	next.LastScoredDate = today

	if err := check(next); err != nil {
		return Outcome{}, err
	}
	return Outcome{Streak: next, Transition: tr}, nil
}

// Effective returns the streak length that counts for a multiplier on
// today: the stored length while the streak is still alive (scored today or
// yesterday, or a shelter will bridge the gap), otherwise zero.
func Effective(s model.UserStreak, today model.Date) int {
	if s.LastScoredDate.IsZero() {
		return 0
	}
	if s.LastScoredDate == today || s.LastScoredDate.AddDays(1) == today {
		return s.CurrentStreakDays
	}
	if s.LastScoredDate.Before(today) && s.SheltersAvailable > 0 {
		return s.CurrentStreakDays
	}
	return 0
}

// Expired reports whether the daily rollover should zero the streak: the
// user missed at least one full day and holds no shelter to bridge it.
func Expired(s model.UserStreak, today model.Date) bool {
	if s.CurrentStreakDays == 0 || s.LastScoredDate.IsZero() {
		return false
	}
	return s.LastScoredDate.AddDays(1).Before(today) && s.SheltersAvailable == 0
}

// Rollover returns s with the current streak cleared when Expired.
func Rollover(s model.UserStreak, today model.Date) (model.UserStreak, bool) {
	if !Expired(s, today) {
		return s, false
	}
	s.CurrentStreakDays = 0
	return s, true
}

// GrantShelters adds n shelters.
func GrantShelters(s model.UserStreak, n int) (model.UserStreak, error) {
	if n <= 0 {
		return s, errs.Invalid(errShelterCount)
	}
	s.SheltersAvailable += n
	return s, check(s)
}

func check(s model.UserStreak) error {
	if err := s.Validate(); err != nil {
		return errs.Invariant("user_streak", "user %s: %v", s.UserID, err)
	}
	return nil
}
