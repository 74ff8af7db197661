// Package progress derives enrollment progress, gates assessments and scores attempts.
// Every function here is pure: callers own I/O and persist the results.
package progress

import (
	"errors"
	"math"
	"strings"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// Fixed business rules.
const (
	ContentWeight    = 0.7
	AssessmentWeight = 0.3
	UnlockThreshold  = 80
)

var (
	// ErrNoQuestions flags an assessment that cannot be scored.
	ErrNoQuestions = errors.New("assessment has no questions")
	// ErrMaxAttemptsReached is returned when the attempt cap is exhausted.
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	// ErrAssessmentLocked is returned when content progress is below the unlock threshold.
	ErrAssessmentLocked = errors.New("complete at least 80% of the course content to unlock this assessment")
)

// ComputeContentProgress returns the completed share of a course's content as an
// integer percentage. Duplicate and blank ids are ignored.
func ComputeContentProgress(totalContentItems int, completedContentIDs []string) int {
	if totalContentItems <= 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(completedContentIDs))
	for _, id := range completedContentIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		seen[id] = struct{}{}
	}

	ratio := float64(len(seen)) / float64(totalContentItems)
	if ratio > 1 {
		ratio = 1
	}
	return roundHalfUp(ratio * 100)
}

// ComputeOverallProgress blends content and assessment progress 70/30.
func ComputeOverallProgress(contentProgressPct, assessmentProgressPct int) int {
	return clampPercent(roundHalfUp(float64(contentProgressPct)*ContentWeight + float64(assessmentProgressPct)*AssessmentWeight))
}

// IsAssessmentUnlocked reports whether enough content is complete to take assessments.
func IsAssessmentUnlocked(contentProgressPct int) bool {
	return contentProgressPct >= UnlockThreshold
}

// ComputeAssessmentProgress returns the share of a course's assessments the learner
// has passed. Only assessments listed in assessmentIDs count when it is non-empty.
func ComputeAssessmentProgress(totalAssessments int, completed []models.CompletedAssessment, assessmentIDs ...string) int {
	if totalAssessments <= 0 {
		return 0
	}

	allowed := make(map[string]struct{}, len(assessmentIDs))
	for _, id := range assessmentIDs {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}

	passed := make(map[string]struct{})
	for _, item := range completed {
		if !item.Passed || item.Assessment.IsZero() {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[item.Assessment.ID]; !ok {
				continue
			}
		}
		passed[item.Assessment.ID] = struct{}{}
	}

	ratio := float64(len(passed)) / float64(totalAssessments)
	if ratio > 1 {
		ratio = 1
	}
	return roundHalfUp(ratio * 100)
}

// Totals describes the size of a course used to derive progress.
type Totals struct {
	ContentItems  int
	Assessments   int
	AssessmentIDs []string
}

// Snapshot is the derived view of an enrollment's progress.
type Snapshot struct {
	ContentProgress    int  `json:"content_progress"`
	AssessmentProgress int  `json:"assessment_progress"`
	OverallProgress    int  `json:"overall_progress"`
	AssessmentUnlocked bool `json:"assessment_unlocked"`
}

// Derive computes the progress snapshot for the given progress document.
func Derive(p models.EnrollmentProgress, totals Totals) Snapshot {
	content := ComputeContentProgress(totals.ContentItems, p.CompletedContentIDs())
	assessment := ComputeAssessmentProgress(totals.Assessments, p.CompletedAssessments, totals.AssessmentIDs...)
	return Snapshot{
		ContentProgress:    content,
		AssessmentProgress: assessment,
		OverallProgress:    ComputeOverallProgress(content, assessment),
		AssessmentUnlocked: IsAssessmentUnlocked(content),
	}
}

// Recompute returns a copy of p with OverallProgress re-derived from its inputs.
// Applying it repeatedly to the same inputs yields the same document.
func Recompute(p models.EnrollmentProgress, totals Totals) models.EnrollmentProgress {
	out := p
	out.OverallProgress = Derive(p, totals).OverallProgress
	return out
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
