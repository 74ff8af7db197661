package progress

import (
	"fmt"
	"time"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// AttemptOutcome is a scored attempt ready to be folded into an enrollment.
type AttemptOutcome struct {
	AssessmentID string
	Score        int
	PassingScore int
	StartedAt    *time.Time
}

// RecordAttempt folds an attempt into the enrollment's assessment history and returns
// the updated summary together with the full updated list. The input is not mutated.
// The attempt cap is the caller's concern; see CheckAssessmentEligibility.
func RecordAttempt(p models.EnrollmentProgress, outcome AttemptOutcome, now time.Time) (models.CompletedAssessment, []models.CompletedAssessment) {
	passing := outcome.PassingScore
	if passing <= 0 {
		passing = models.DefaultPassingScore
	}
	completedAt := now
	passed := outcome.Score >= passing

	updated := make([]models.CompletedAssessment, len(p.CompletedAssessments))
	copy(updated, p.CompletedAssessments)

	for i := range updated {
		if !updated[i].Assessment.Is(outcome.AssessmentID) {
			continue
		}

		prior := updated[i]
		attempts := make([]models.AttemptRecord, len(prior.Attempts), len(prior.Attempts)+1)
		copy(attempts, prior.Attempts)
		attempts = append(attempts, models.AttemptRecord{
			AttemptNumber: len(prior.Attempts) + 1,
			Score:         outcome.Score,
			StartedAt:     outcome.StartedAt,
			CompletedAt:   &completedAt,
		})

		best := prior.BestScore
		if outcome.Score > best {
			best = outcome.Score
		}

		updated[i] = models.CompletedAssessment{
			Assessment:  prior.Assessment,
			Score:       outcome.Score,
			BestScore:   best,
			Passed:      passed,
			Attempts:    attempts,
			CompletedAt: &completedAt,
		}
		return updated[i], updated
	}

	created := models.CompletedAssessment{
		Assessment: models.NewRef(outcome.AssessmentID),
		Score:      outcome.Score,
		BestScore:  outcome.Score,
		Passed:     passed,
		Attempts: []models.AttemptRecord{{
			AttemptNumber: 1,
			Score:         outcome.Score,
			StartedAt:     outcome.StartedAt,
			CompletedAt:   &completedAt,
		}},
		CompletedAt: &completedAt,
	}
	updated = append(updated, created)
	return created, updated
}

// Eligibility reports whether a learner may start another attempt.
type Eligibility struct {
	CurrentAttempts int  `json:"current_attempts"`
	MaxAttempts     int  `json:"max_attempts"`
	CanTake         bool `json:"can_take"`
}

// CheckAssessmentEligibility compares the recorded attempts with the cap. A
// non-positive maxAttempts means the default of 3.
func CheckAssessmentEligibility(completed *models.CompletedAssessment, maxAttempts int) Eligibility {
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}
	current := 0
	if completed != nil {
		current = len(completed.Attempts)
	}
	return Eligibility{
		CurrentAttempts: current,
		MaxAttempts:     maxAttempts,
		CanTake:         current < maxAttempts,
	}
}

// EnsureCanAttempt checks unlock and eligibility before an attempt is started or
// submitted.
func EnsureCanAttempt(enrollment models.Enrollment, assessment models.Assessment, totalContentItems int) (Eligibility, error) {
	contentPct := ComputeContentProgress(totalContentItems, enrollment.Progress.CompletedContentIDs())
	eligibility := CheckAssessmentEligibility(enrollment.Progress.FindAssessment(assessment.ID), assessment.EffectiveMaxAttempts())

	if !IsAssessmentUnlocked(contentPct) {
		return eligibility, ErrAssessmentLocked
	}
	if !eligibility.CanTake {
		return eligibility, fmt.Errorf("%w (%d of %d used)", ErrMaxAttemptsReached, eligibility.CurrentAttempts, eligibility.MaxAttempts)
	}
	return eligibility, nil
}

// FindEnrollment returns the enrollment for a course, whatever shape the course
// reference arrived in.
func FindEnrollment(enrollments []models.Enrollment, courseID interface{}) (models.Enrollment, bool) {
	id := models.ExtractID(courseID)
	if id == "" {
		return models.Enrollment{}, false
	}
	for _, enrollment := range enrollments {
		if enrollment.Course.Is(id) {
			return enrollment, true
		}
	}
	return models.Enrollment{}, false
}
