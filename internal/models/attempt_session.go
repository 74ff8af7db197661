package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attempt session statuses.
const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusSubmitted  = "submitted"
	AttemptStatusExpired    = "expired"
	AttemptStatusAbandoned  = "abandoned"
)

// AttemptSession tracks an assessment attempt while the learner is answering it.
// It lives in the gateway database only; the LMS receives the scored result.
type AttemptSession struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	UserID        string            `gorm:"size:64;index;not null" json:"user_id"`
	AssessmentID  string            `gorm:"size:64;index;not null" json:"assessment_id"`
	CourseID      string            `gorm:"size:64;not null" json:"course_id"`
	EnrollmentID  string            `gorm:"size:64;not null" json:"enrollment_id"`
	AttemptNumber int               `gorm:"not null" json:"attempt_number"`
	Token         string            `gorm:"type:text" json:"-"`
	Answers       datatypes.JSONMap `gorm:"type:json" json:"answers"`
	Status        string            `gorm:"size:16;index;not null" json:"status"`
	Score         *int              `json:"score,omitempty"`
	Passed        *bool             `json:"passed,omitempty"`
	AutoSubmitted bool              `json:"auto_submitted"`
	StartedAt     time.Time         `gorm:"not null" json:"started_at"`
	Deadline      *time.Time        `json:"deadline,omitempty"`
	SubmittedAt   *time.Time        `json:"submitted_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Open reports whether answers may still be changed.
func (s AttemptSession) Open() bool {
	return s.Status == AttemptStatusInProgress
}

// Expired reports whether the deadline has passed at the reference time.
func (s AttemptSession) Expired(reference time.Time) bool {
	return s.Deadline != nil && !reference.Before(*s.Deadline)
}

// Remaining returns the time left before the deadline. Sessions without a time
// limit report a negative duration.
func (s AttemptSession) Remaining(reference time.Time) time.Duration {
	if s.Deadline == nil {
		return -1
	}
	left := s.Deadline.Sub(reference)
	if left < 0 {
		return 0
	}
	return left
}
