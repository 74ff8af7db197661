package service

import (
	"context"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// The interfaces below are the slices of *lmsclient.Client each service needs.

// CourseAPI reads and writes courses.
type CourseAPI interface {
	ListCourses(ctx context.Context, query dto.CourseQuery) ([]models.Course, error)
	GetCourse(ctx context.Context, id string) (models.Course, error)
	CreateCourse(ctx context.Context, input dto.CourseInput) (models.Course, error)
	UpdateCourse(ctx context.Context, id string, input dto.CourseInput) (models.Course, error)
	DeleteCourse(ctx context.Context, id string) error
}

// CategoryAPI reads and writes categories.
type CategoryAPI interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, input dto.CategoryInput) (models.Category, error)
	UpdateCategory(ctx context.Context, id string, input dto.CategoryInput) (models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// ContentAPI reads and writes course content.
type ContentAPI interface {
	ListContent(ctx context.Context, courseID string) ([]models.ContentItem, error)
	GetContent(ctx context.Context, id string) (models.ContentItem, error)
	CreateContent(ctx context.Context, input dto.ContentInput) (models.ContentItem, error)
	UpdateContent(ctx context.Context, id string, input dto.ContentInput) (models.ContentItem, error)
	DeleteContent(ctx context.Context, id string) error
	UploadContent(ctx context.Context, upload lmsclient.Upload) (models.UploadedFile, error)
}

// AssessmentAPI reads and writes assessments.
type AssessmentAPI interface {
	ListAssessments(ctx context.Context, courseID string) ([]models.Assessment, error)
	GetAssessment(ctx context.Context, id string) (models.Assessment, error)
	CreateAssessment(ctx context.Context, input dto.AssessmentInput) (models.Assessment, error)
	UpdateAssessment(ctx context.Context, id string, input dto.AssessmentInput) (models.Assessment, error)
	DeleteAssessment(ctx context.Context, id string) error
}

// EnrollmentAPI reads enrollments and writes progress.
type EnrollmentAPI interface {
	ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error)
	Enroll(ctx context.Context, courseID string) (models.Enrollment, error)
	UpdateProgress(ctx context.Context, enrollmentID string, update models.ProgressUpdate) (models.Enrollment, error)
	AssessmentStatus(ctx context.Context, enrollmentID, assessmentID string) (models.AssessmentStatus, error)
}

// CertificateAPI issues and downloads certificates.
type CertificateAPI interface {
	GenerateAssessmentCertificate(ctx context.Context, req models.CertificateRequest) (models.Certificate, error)
	ListMyCertificates(ctx context.Context) ([]models.Certificate, error)
	CertificateDownload(ctx context.Context, id string) (models.Certificate, error)
	CertificatePDF(ctx context.Context, id string) (lmsclient.Document, error)
}

// UserAPI manages accounts.
type UserAPI interface {
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	UpdateUser(ctx context.Context, id string, input dto.UserUpdateRequest) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// AdminAPI reads admin dashboards.
type AdminAPI interface {
	DashboardStats(ctx context.Context) (models.DashboardStats, error)
	DashboardActivities(ctx context.Context, limit int) ([]models.AdminActivity, error)
	Analytics(ctx context.Context, period string) (models.Analytics, error)
}

var (
	_ CourseAPI      = (*lmsclient.Client)(nil)
	_ CategoryAPI    = (*lmsclient.Client)(nil)
	_ ContentAPI     = (*lmsclient.Client)(nil)
	_ AssessmentAPI  = (*lmsclient.Client)(nil)
	_ EnrollmentAPI  = (*lmsclient.Client)(nil)
	_ CertificateAPI = (*lmsclient.Client)(nil)
	_ UserAPI        = (*lmsclient.Client)(nil)
	_ AdminAPI       = (*lmsclient.Client)(nil)
)
