package model

import (
	"regexp"
	"time"
)

// LearnerSession is the per-learner interaction state of one practice session:
// who is practising, which record is on screen and which category is selected.
// It is owned by the practice layer; the scheduler never sees it.
type LearnerSession struct {
	ID        string    `json:"id"`
	Learner   string    `json:"learner"`
	CurrentID int       `json:"current_id,omitempty"` // 0 when no record is active
	Category  string    `json:"category,omitempty"`   // empty selects all categories
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session has expired.
func (s *LearnerSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// HasCurrent reports whether a record is active.
func (s *LearnerSession) HasCurrent() bool {
	return s.CurrentID != 0
}

var learnerRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateLearner checks a learner name. Names are used as file names by
// some stores, so only letters, digits, '.', '_' and '-' are allowed.
func ValidateLearner(name string) error {
	if !learnerRe.MatchString(name) {
		return NewValidationError("invalid learner name",
			FieldError{Field: "learner", Message: "must be 1-64 letters, digits, '.', '_' or '-' and start with a letter or digit"})
	}
	return nil
}
