package dto

// AssessmentInput validates assessment create and update payloads. The same payload
// is also checked against the assessment JSON schema before it is sent upstream.
type AssessmentInput struct {
	Title        string          `json:"title" validate:"required,min=3,max=200"`
	Description  string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Course       string          `json:"course" validate:"required"`
	Type         string          `json:"type,omitempty" validate:"omitempty,oneof=quiz exam assignment"`
	Questions    []QuestionInput `json:"questions" validate:"required,min=1,dive"`
	TimeLimit    int             `json:"timeLimit,omitempty" validate:"omitempty,gte=1,lte=600"`
	MaxAttempts  int             `json:"maxAttempts,omitempty" validate:"omitempty,gte=1,lte=20"`
	PassingScore int             `json:"passingScore,omitempty" validate:"omitempty,gte=1,lte=100"`
	IsPublished  *bool           `json:"isPublished,omitempty"`
}

// QuestionInput validates a single question of an assessment.
type QuestionInput struct {
	Type          string        `json:"type" validate:"required,oneof=multiple-choice true-false essay fill-blank matching ordering"`
	Text          string        `json:"question" validate:"required"`
	Options       []OptionInput `json:"options,omitempty" validate:"omitempty,dive"`
	CorrectAnswer interface{}   `json:"correctAnswer,omitempty"`
	Points        int           `json:"points,omitempty" validate:"omitempty,gte=0"`
	Explanation   string        `json:"explanation,omitempty"`
}

// OptionInput validates a multiple-choice option.
type OptionInput struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

// AnswersRequest carries answers for an in-progress attempt, keyed by question id or
// index. A null answer clears the stored one.
type AnswersRequest struct {
	Answers map[string]interface{} `json:"answers" validate:"required"`
}
