package models

import "time"

// Certificate is issued once per passed assessment, keyed by (user, assessment).
type Certificate struct {
	ID                string     `json:"_id"`
	User              Ref        `json:"user"`
	Course            Ref        `json:"course,omitempty"`
	Assessment        Ref        `json:"assessment,omitempty"`
	CertificateNumber string     `json:"certificateNumber"`
	Score             int        `json:"score,omitempty"`
	IssuedAt          *time.Time `json:"issuedAt,omitempty"`
	DownloadURL       string     `json:"downloadUrl,omitempty"`
}

// CertificateRequest asks the LMS to issue an assessment certificate.
type CertificateRequest struct {
	AssessmentID string `json:"assessmentId"`
	CourseID     string `json:"courseId,omitempty"`
	Score        int    `json:"score"`
}
