package progress

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// QuestionResult is the outcome for a single question.
type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Type       string `json:"type"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
}

// ScoreResult is the outcome of scoring a whole attempt.
type ScoreResult struct {
	Score          int              `json:"score"`
	Passed         bool             `json:"passed"`
	PassingScore   int              `json:"passing_score"`
	CorrectCount   int              `json:"correct_count"`
	TotalQuestions int              `json:"total_questions"`
	Questions      []QuestionResult `json:"questions"`
}

// PassingScoreFor returns the threshold an attempt must reach to pass. The LMS
// defaults passingScore to 70; an explicit value on the assessment wins.
func PassingScoreFor(assessment models.Assessment) int {
	if assessment.PassingScore <= 0 || assessment.PassingScore > 100 {
		return models.DefaultPassingScore
	}
	return assessment.PassingScore
}

// ScoreAttempt grades the submitted answers, keyed by question id (or index when the
// question has no id). There is no partial credit.
func ScoreAttempt(assessment models.Assessment, answers map[string]interface{}) (ScoreResult, error) {
	passing := PassingScoreFor(assessment)
	total := len(assessment.Questions)
	result := ScoreResult{
		PassingScore:   passing,
		TotalQuestions: total,
		Questions:      make([]QuestionResult, 0, total),
	}
	if total == 0 {
		return result, fmt.Errorf("score assessment %s: %w", assessment.ID, ErrNoQuestions)
	}

	for index, question := range assessment.Questions {
		key := question.Key(index)
		submitted, answered := answers[key]
		if answered && submitted == nil {
			answered = false
		}

		correct := answered && isCorrect(question, submitted)
		if correct {
			result.CorrectCount++
		}
		result.Questions = append(result.Questions, QuestionResult{
			QuestionID: key,
			Type:       question.Type,
			Answered:   answered,
			Correct:    correct,
		})
	}

	result.Score = roundHalfUp(float64(result.CorrectCount) / float64(total) * 100)
	result.Passed = result.Score >= passing
	return result, nil
}

func isCorrect(question models.Question, submitted interface{}) bool {
	switch question.Type {
	case models.QuestionMultipleChoice:
		text, ok := submitted.(string)
		if !ok {
			return false
		}
		for _, option := range question.Options {
			if option.IsCorrect && option.Text == text {
				return true
			}
		}
		return false
	case models.QuestionTrueFalse:
		text, ok := submitted.(string)
		if !ok {
			return false
		}
		canonical, ok := canonicalBoolean(question)
		return ok && text == canonical
	default:
		return strictEqual(question.CorrectAnswer, submitted)
	}
}

// canonicalBoolean renders the true-false key as "True" or "False".
func canonicalBoolean(question models.Question) (string, bool) {
	switch v := question.CorrectAnswer.(type) {
	case bool:
		return renderBool(v), true
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return renderBool(parsed), true
		}
	}

	for _, option := range question.Options {
		if !option.IsCorrect {
			continue
		}
		if parsed, err := strconv.ParseBool(strings.TrimSpace(option.Text)); err == nil {
			return renderBool(parsed), true
		}
	}
	return "", false
}

func renderBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// strictEqual compares the answer key and the submission as decoded JSON values, so
// arrays (matching, ordering) compare element-wise and numbers compare by value.
func strictEqual(expected, submitted interface{}) bool {
	if expected == nil || submitted == nil {
		return false
	}
	left, err := normalizeJSON(expected)
	if err != nil {
		return false
	}
	right, err := normalizeJSON(submitted)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}

func normalizeJSON(value interface{}) (interface{}, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
