package models

import (
	"strconv"
	"time"
)

// Question types understood by the scoring rules.
const (
	QuestionMultipleChoice = "multiple-choice"
	QuestionTrueFalse      = "true-false"
	QuestionEssay          = "essay"
	QuestionFillBlank      = "fill-blank"
	QuestionMatching       = "matching"
	QuestionOrdering       = "ordering"
)

// Assessment defaults applied when the server omits a value.
const (
	DefaultMaxAttempts  = 3
	DefaultPassingScore = 70
)

// Option is one selectable answer of a question.
type Option struct {
	ID        string `json:"_id,omitempty"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is a single assessment item.
type Question struct {
	ID            string      `json:"_id,omitempty"`
	Type          string      `json:"type"`
	Text          string      `json:"question"`
	Options       []Option    `json:"options,omitempty"`
	CorrectAnswer interface{} `json:"correctAnswer,omitempty"`
	Points        int         `json:"points,omitempty"`
	Explanation   string      `json:"explanation,omitempty"`
}

// Key returns the identifier answers are submitted under.
func (q Question) Key(index int) string {
	if q.ID != "" {
		return q.ID
	}
	return strconv.Itoa(index)
}

// Assessment is a scored quiz attached to a course.
type Assessment struct {
	ID           string     `json:"_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Course       Ref        `json:"course"`
	Type         string     `json:"type,omitempty"`
	Questions    []Question `json:"questions"`
	TimeLimit    int        `json:"timeLimit,omitempty"`
	MaxAttempts  int        `json:"maxAttempts,omitempty"`
	PassingScore int        `json:"passingScore,omitempty"`
	IsPublished  bool       `json:"isPublished"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// EffectiveMaxAttempts returns the attempt cap, defaulting to DefaultMaxAttempts.
func (a Assessment) EffectiveMaxAttempts() int {
	if a.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return a.MaxAttempts
}

// AssessmentStatus is the server's view of a learner's standing on an assessment.
type AssessmentStatus struct {
	CanTake         bool                 `json:"canTake"`
	CurrentAttempts int                  `json:"currentAttempts"`
	MaxAttempts     int                  `json:"maxAttempts"`
	BestScore       int                  `json:"bestScore"`
	Passed          bool                 `json:"passed"`
	Completed       *CompletedAssessment `json:"completedAssessment,omitempty"`
}
