package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// fakeLMS is an in-memory stand-in for the LMS server.
type fakeLMS struct {
	mu sync.Mutex

	courses      map[string]models.Course
	content      map[string][]models.ContentItem
	assessments  map[string]models.Assessment
	enrollments  map[string][]models.Enrollment
	certificates []models.Certificate
	categories   []models.Category
	users        []models.User
	stats        models.DashboardStats

	progressErr     error
	contentErr      error
	progressCalls   []models.ProgressUpdate
	enrollmentLists int
	statsCalls      int
	generated       int
	uploads         []string
}

func newFakeLMS() *fakeLMS {
	return &fakeLMS{
		courses:     map[string]models.Course{},
		content:     map[string][]models.ContentItem{},
		assessments: map[string]models.Assessment{},
		enrollments: map[string][]models.Enrollment{},
	}
}

func notFound(endpoint string) error {
	return &lmsclient.APIError{StatusCode: 404, Method: "GET", Endpoint: endpoint, Message: "Not found"}
}

func (f *fakeLMS) ListCourses(context.Context, dto.CourseQuery) ([]models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Course, 0, len(f.courses))
	for _, course := range f.courses {
		out = append(out, course)
	}
	return out, nil
}

func (f *fakeLMS) GetCourse(_ context.Context, id string) (models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	course, ok := f.courses[id]
	if !ok {
		return models.Course{}, notFound("/courses/{id}")
	}
	return course, nil
}

func (f *fakeLMS) CreateCourse(_ context.Context, input dto.CourseInput) (models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	course := models.Course{ID: fmt.Sprintf("course-%d", len(f.courses)+1), Title: input.Title}
	f.courses[course.ID] = course
	return course, nil
}

func (f *fakeLMS) UpdateCourse(_ context.Context, id string, input dto.CourseInput) (models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	course, ok := f.courses[id]
	if !ok {
		return models.Course{}, notFound("/courses/{id}")
	}
	course.Title = input.Title
	f.courses[id] = course
	return course, nil
}

func (f *fakeLMS) DeleteCourse(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[id]; !ok {
		return notFound("/courses/{id}")
	}
	delete(f.courses, id)
	return nil
}

func (f *fakeLMS) ListCategories(context.Context) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Category(nil), f.categories...), nil
}

func (f *fakeLMS) CreateCategory(_ context.Context, input dto.CategoryInput) (models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	category := models.Category{ID: fmt.Sprintf("cat-%d", len(f.categories)+1), Name: input.Name}
	f.categories = append(f.categories, category)
	return category, nil
}

func (f *fakeLMS) UpdateCategory(_ context.Context, id string, input dto.CategoryInput) (models.Category, error) {
	return models.Category{ID: id, Name: input.Name}, nil
}

func (f *fakeLMS) DeleteCategory(context.Context, string) error { return nil }

func (f *fakeLMS) ListContent(_ context.Context, courseID string) ([]models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	return append([]models.ContentItem(nil), f.content[courseID]...), nil
}

func (f *fakeLMS) GetContent(_ context.Context, id string) (models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, items := range f.content {
		for _, item := range items {
			if item.ID == id {
				return item, nil
			}
		}
	}
	return models.ContentItem{}, notFound("/content/{id}")
}

func (f *fakeLMS) CreateContent(_ context.Context, input dto.ContentInput) (models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := models.ContentItem{ID: fmt.Sprintf("content-%d", len(f.content[input.Course])+1), Course: models.NewRef(input.Course), Title: input.Title, Type: input.Type, Order: input.Order}
	f.content[input.Course] = append(f.content[input.Course], item)
	return item, nil
}

func (f *fakeLMS) UpdateContent(_ context.Context, id string, input dto.ContentInput) (models.ContentItem, error) {
	return models.ContentItem{ID: id, Title: input.Title, Type: input.Type}, nil
}

func (f *fakeLMS) DeleteContent(context.Context, string) error { return nil }

func (f *fakeLMS) UploadContent(_ context.Context, upload lmsclient.Upload) (models.UploadedFile, error) {
	body, err := io.ReadAll(upload.Body)
	if err != nil {
		return models.UploadedFile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload.Kind+":"+upload.ContentType)
	return models.UploadedFile{URL: "/uploads/" + upload.FileName, FileName: upload.FileName, Size: int64(len(body))}, nil
}

func (f *fakeLMS) ListAssessments(_ context.Context, courseID string) ([]models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Assessment
	for _, assessment := range f.assessments {
		if courseID == "" || assessment.Course.Is(courseID) {
			out = append(out, assessment)
		}
	}
	return out, nil
}

func (f *fakeLMS) GetAssessment(_ context.Context, id string) (models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assessment, ok := f.assessments[id]
	if !ok {
		return models.Assessment{}, notFound("/assessments/{id}")
	}
	return assessment, nil
}

func (f *fakeLMS) CreateAssessment(_ context.Context, input dto.AssessmentInput) (models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assessment := models.Assessment{ID: fmt.Sprintf("assessment-%d", len(f.assessments)+1), Title: input.Title, Course: models.NewRef(input.Course)}
	f.assessments[assessment.ID] = assessment
	return assessment, nil
}

func (f *fakeLMS) UpdateAssessment(_ context.Context, id string, input dto.AssessmentInput) (models.Assessment, error) {
	return models.Assessment{ID: id, Title: input.Title, Course: models.NewRef(input.Course)}, nil
}

func (f *fakeLMS) DeleteAssessment(context.Context, string) error { return nil }

func (f *fakeLMS) ListEnrollments(_ context.Context, userID string) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrollmentLists++
	return append([]models.Enrollment(nil), f.enrollments[userID]...), nil
}

func (f *fakeLMS) Enroll(ctx context.Context, courseID string) (models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID := lmsclient.TokenFromContext(ctx)
	enrollment := models.Enrollment{
		ID:     fmt.Sprintf("enrollment-%s-%s", userID, courseID),
		User:   models.NewRef(userID),
		Course: models.NewRef(courseID),
		Status: models.EnrollmentStatusActive,
	}
	f.enrollments[userID] = append(f.enrollments[userID], enrollment)
	return enrollment, nil
}

func (f *fakeLMS) UpdateProgress(_ context.Context, enrollmentID string, update models.ProgressUpdate) (models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressCalls = append(f.progressCalls, update)
	if f.progressErr != nil {
		return models.Enrollment{}, f.progressErr
	}
	for userID, list := range f.enrollments {
		for i := range list {
			if list[i].ID != enrollmentID {
				continue
			}
			list[i].Progress = models.EnrollmentProgress{
				CompletedContent:     update.CompletedContent,
				CompletedAssessments: update.CompletedAssessments,
				OverallProgress:      update.OverallProgress,
				LastActivity:         update.LastActivity,
			}
			f.enrollments[userID] = list
			return list[i], nil
		}
	}
	return models.Enrollment{}, notFound("/enrollments/{id}/progress")
}

func (f *fakeLMS) AssessmentStatus(_ context.Context, enrollmentID, assessmentID string) (models.AssessmentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, list := range f.enrollments {
		for _, enrollment := range list {
			if enrollment.ID != enrollmentID {
				continue
			}
			status := models.AssessmentStatus{CanTake: true, MaxAttempts: models.DefaultMaxAttempts}
			if history := enrollment.Progress.FindAssessment(assessmentID); history != nil {
				status.CurrentAttempts = len(history.Attempts)
				status.BestScore = history.BestScore
				status.Passed = history.Passed
				status.CanTake = status.CurrentAttempts < status.MaxAttempts
			}
			return status, nil
		}
	}
	return models.AssessmentStatus{}, notFound("/enrollments/{id}/assessment-status/{assessmentId}")
}

func (f *fakeLMS) GenerateAssessmentCertificate(_ context.Context, req models.CertificateRequest) (models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated++
	certificate := models.Certificate{
		ID:                fmt.Sprintf("cert-%d", f.generated),
		Assessment:        models.NewRef(req.AssessmentID),
		Course:            models.NewRef(req.CourseID),
		CertificateNumber: fmt.Sprintf("GEMA-%04d", f.generated),
		Score:             req.Score,
	}
	f.certificates = append(f.certificates, certificate)
	return certificate, nil
}

func (f *fakeLMS) ListMyCertificates(context.Context) ([]models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Certificate(nil), f.certificates...), nil
}

func (f *fakeLMS) CertificateDownload(_ context.Context, id string) (models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, certificate := range f.certificates {
		if certificate.ID == id {
			return certificate, nil
		}
	}
	return models.Certificate{}, notFound("/certificates/{id}/download")
}

func (f *fakeLMS) CertificatePDF(_ context.Context, id string) (lmsclient.Document, error) {
	return lmsclient.Document{ContentType: "application/pdf", FileName: "certificate-" + id + ".pdf", Body: []byte("%PDF")}, nil
}

func (f *fakeLMS) ListUsers(context.Context, string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeLMS) GetUser(_ context.Context, id string) (models.User, error) {
	return models.User{ID: id}, nil
}

func (f *fakeLMS) UpdateUser(_ context.Context, id string, input dto.UserUpdateRequest) (models.User, error) {
	return models.User{ID: id, Name: input.Name, Role: input.Role}, nil
}

func (f *fakeLMS) DeleteUser(context.Context, string) error { return nil }

func (f *fakeLMS) DashboardStats(context.Context) (models.DashboardStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	return f.stats, nil
}

func (f *fakeLMS) DashboardActivities(context.Context, int) ([]models.AdminActivity, error) {
	return []models.AdminActivity{{ID: "act-1", Type: "enrollment", Action: "created"}}, nil
}

func (f *fakeLMS) Analytics(_ context.Context, period string) (models.Analytics, error) {
	return models.Analytics{Period: period, PassRate: 0.5}, nil
}

// captureNotifier records notifications for assertions.
type captureNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (c *captureNotifier) Notify(_ context.Context, n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
}

func (c *captureNotifier) levels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item.Level)
	}
	return out
}

func (c *captureNotifier) last() Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return Notification{}
	}
	return c.items[len(c.items)-1]
}

// services wires every per-resource service to one fake LMS.
type services struct {
	lms          *fakeLMS
	notifier     *captureNotifier
	courses      CourseService
	content      ContentService
	assessments  AssessmentService
	enrollments  EnrollmentService
	certificates CertificateService
	learner      LearnerService
}

func newServices(lms *fakeLMS) services {
	validate := validator.New()
	notifier := &captureNotifier{}
	logger := zerolog.Nop()

	s := services{
		lms:          lms,
		notifier:     notifier,
		courses:      NewCourseService(lms, validate, notifier, logger),
		content:      NewContentService(lms, validate, notifier, 1, logger),
		assessments:  NewAssessmentService(lms, validate, notifier, logger),
		enrollments:  NewEnrollmentService(lms, notifier, logger),
		certificates: NewCertificateService(lms, notifier, logger),
	}
	s.learner = NewLearnerService(s.courses, s.content, s.assessments, s.enrollments, notifier, logger)
	return s
}

// seedCourse creates a course with n content items and one assessment whose answers
// are "yes" for every question.
func seedCourse(lms *fakeLMS, courseID string, contentItems, questions int) models.Assessment {
	lms.courses[courseID] = models.Course{ID: courseID, Title: "Course " + courseID}
	for i := 0; i < contentItems; i++ {
		lms.content[courseID] = append(lms.content[courseID], models.ContentItem{
			ID:     fmt.Sprintf("%s-c%d", courseID, i+1),
			Course: models.NewRef(courseID),
			Type:   models.ContentTypeText,
			Order:  contentItems - i,
		})
	}
	assessment := models.Assessment{ID: courseID + "-quiz", Title: "Quiz", Course: models.NewRef(courseID)}
	for i := 0; i < questions; i++ {
		assessment.Questions = append(assessment.Questions, models.Question{
			ID:   fmt.Sprintf("q%d", i+1),
			Type: models.QuestionMultipleChoice,
			Options: []models.Option{
				{Text: "no"},
				{Text: "yes", IsCorrect: true},
			},
		})
	}
	lms.assessments[assessment.ID] = assessment
	return assessment
}

func enrollUser(lms *fakeLMS, userID, courseID string, completed int) models.Enrollment {
	enrollment := models.Enrollment{
		ID:     "enr-" + userID + "-" + courseID,
		User:   models.NewRef(userID),
		Course: models.NewRef(courseID),
		Status: models.EnrollmentStatusActive,
	}
	for i := 0; i < completed; i++ {
		enrollment.Progress.CompletedContent = append(enrollment.Progress.CompletedContent, models.CompletedContent{
			Content: models.NewRef(fmt.Sprintf("%s-c%d", courseID, i+1)),
		})
	}
	lms.enrollments[userID] = append(lms.enrollments[userID], enrollment)
	return enrollment
}

// rejectingLMS answers reads from the embedded fake and fails selected writes with err.
type rejectingLMS struct {
	*fakeLMS
	err error
}

func (r rejectingLMS) CreateCourse(context.Context, dto.CourseInput) (models.Course, error) {
	return models.Course{}, r.err
}

func (r rejectingLMS) DeleteCategory(context.Context, string) error { return r.err }

func (r rejectingLMS) UpdateUser(context.Context, string, dto.UserUpdateRequest) (models.User, error) {
	return models.User{}, r.err
}

func (r rejectingLMS) GenerateAssessmentCertificate(context.Context, models.CertificateRequest) (models.Certificate, error) {
	return models.Certificate{}, r.err
}

func (r rejectingLMS) ListMyCertificates(context.Context) ([]models.Certificate, error) {
	return nil, r.err
}
