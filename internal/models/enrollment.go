package models

import "time"

// Enrollment statuses reported by the LMS.
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusDropped   = "dropped"
)

// Enrollment links a learner to a course together with their progress.
type Enrollment struct {
	ID         string             `json:"_id"`
	User       Ref                `json:"user"`
	Course     Ref                `json:"course"`
	Status     string             `json:"status,omitempty"`
	Progress   EnrollmentProgress `json:"progress"`
	EnrolledAt *time.Time         `json:"enrolledAt,omitempty"`
}

// EnrollmentProgress is the progress document stored on an enrollment.
type EnrollmentProgress struct {
	CompletedContent     []CompletedContent    `json:"completedContent"`
	CompletedAssessments []CompletedAssessment `json:"completedAssessments"`
	OverallProgress      int                   `json:"overallProgress"`
	LastActivity         *time.Time            `json:"lastActivity,omitempty"`
}

// CompletedContentIDs returns the ids of completed content, in stored order.
func (p EnrollmentProgress) CompletedContentIDs() []string {
	ids := make([]string, 0, len(p.CompletedContent))
	for _, item := range p.CompletedContent {
		if !item.Content.IsZero() {
			ids = append(ids, item.Content.ID)
		}
	}
	return ids
}

// HasCompletedContent reports whether the content item is recorded as complete.
func (p EnrollmentProgress) HasCompletedContent(contentID string) bool {
	for _, item := range p.CompletedContent {
		if item.Content.Is(contentID) {
			return true
		}
	}
	return false
}

// FindAssessment returns the attempt history for an assessment, or nil.
func (p EnrollmentProgress) FindAssessment(assessmentID string) *CompletedAssessment {
	for i := range p.CompletedAssessments {
		if p.CompletedAssessments[i].Assessment.Is(assessmentID) {
			return &p.CompletedAssessments[i]
		}
	}
	return nil
}

// CompletedContent records one finished content item.
type CompletedContent struct {
	Content     Ref        `json:"content"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// CompletedAssessment summarises every attempt a learner made at one assessment.
// Passed is derived from the latest attempt's score.
type CompletedAssessment struct {
	Assessment  Ref             `json:"assessment"`
	Score       int             `json:"score"`
	BestScore   int             `json:"bestScore"`
	Passed      bool            `json:"passed"`
	Attempts    []AttemptRecord `json:"attempts"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// AttemptRecord is one scored submission.
type AttemptRecord struct {
	AttemptNumber int        `json:"attemptNumber"`
	Score         int        `json:"score"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// ProgressUpdate is the body of PUT /enrollments/:id/progress.
type ProgressUpdate struct {
	CompletedContent     []CompletedContent    `json:"completedContent,omitempty"`
	CompletedAssessments []CompletedAssessment `json:"completedAssessments,omitempty"`
	OverallProgress      int                   `json:"overallProgress"`
	LastActivity         *time.Time            `json:"lastActivity,omitempty"`
}
