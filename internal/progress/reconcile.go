package progress

import (
	"time"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// Mismatch describes a field where the provisional write and the server disagree.
type Mismatch struct {
	Field       string      `json:"field"`
	Provisional interface{} `json:"provisional"`
	Confirmed   interface{} `json:"confirmed"`
}

// Reconciliation is the result of comparing a provisional write with the server's copy.
type Reconciliation struct {
	Progress   models.EnrollmentProgress `json:"progress"`
	Confirmed  bool                      `json:"confirmed"`
	Mismatches []Mismatch                `json:"mismatches,omitempty"`
}

// Reconcile compares what was sent with what the server now reports for one
// assessment. The server copy is always returned; mismatches are reported so the
// caller can log them.
func Reconcile(provisional, confirmed models.EnrollmentProgress, assessmentID string) Reconciliation {
	out := Reconciliation{Progress: confirmed, Confirmed: true}

	if assessmentID != "" {
		sent := provisional.FindAssessment(assessmentID)
		stored := confirmed.FindAssessment(assessmentID)
		switch {
		case sent != nil && stored == nil:
			out.Mismatches = append(out.Mismatches, Mismatch{Field: "completedAssessments", Provisional: len(sent.Attempts), Confirmed: 0})
		case sent != nil && stored != nil:
			if len(sent.Attempts) != len(stored.Attempts) {
				out.Mismatches = append(out.Mismatches, Mismatch{Field: "attempts", Provisional: len(sent.Attempts), Confirmed: len(stored.Attempts)})
			}
			if sent.Score != stored.Score {
				out.Mismatches = append(out.Mismatches, Mismatch{Field: "score", Provisional: sent.Score, Confirmed: stored.Score})
			}
			if sent.BestScore != stored.BestScore {
				out.Mismatches = append(out.Mismatches, Mismatch{Field: "bestScore", Provisional: sent.BestScore, Confirmed: stored.BestScore})
			}
			if sent.Passed != stored.Passed {
				out.Mismatches = append(out.Mismatches, Mismatch{Field: "passed", Provisional: sent.Passed, Confirmed: stored.Passed})
			}
		}
	}

	if provisional.OverallProgress != confirmed.OverallProgress {
		out.Mismatches = append(out.Mismatches, Mismatch{Field: "overallProgress", Provisional: provisional.OverallProgress, Confirmed: confirmed.OverallProgress})
	}
	if len(provisional.CompletedContent) != len(confirmed.CompletedContent) {
		out.Mismatches = append(out.Mismatches, Mismatch{Field: "completedContent", Provisional: len(provisional.CompletedContent), Confirmed: len(confirmed.CompletedContent)})
	}

	out.Confirmed = len(out.Mismatches) == 0
	return out
}

// MarkContentComplete returns a copy of p with the content item recorded as complete.
// It is a no-op when the item is already recorded.
func MarkContentComplete(p models.EnrollmentProgress, contentID string, at time.Time) models.EnrollmentProgress {
	if p.HasCompletedContent(contentID) {
		return p
	}
	out := p
	out.CompletedContent = make([]models.CompletedContent, len(p.CompletedContent), len(p.CompletedContent)+1)
	copy(out.CompletedContent, p.CompletedContent)
	out.CompletedContent = append(out.CompletedContent, models.CompletedContent{
		Content:     models.NewRef(contentID),
		CompletedAt: &at,
	})
	out.LastActivity = &at
	return out
}
