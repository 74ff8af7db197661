package handler_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/handler"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
)

type mockAdmin struct {
	lastLimit int
}

func (m *mockAdmin) Dashboard(_ context.Context, limit int) (service.AdminDashboard, error) {
	m.lastLimit = limit
	return service.AdminDashboard{Stats: models.DashboardStats{TotalUsers: 12, TotalCourses: 3}}, nil
}

func (m *mockAdmin) Analytics(_ context.Context, period string) (models.Analytics, error) {
	if period == "forever" {
		return models.Analytics{}, fmt.Errorf("%w: %q", service.ErrUnsupportedPeriod, period)
	}
	return models.Analytics{Period: period, PassRate: 0.75}, nil
}

type mockContent struct {
	uploadKind string
	uploadName string
	uploadErr  error
	listed     string
}

func (m *mockContent) List(_ context.Context, courseID string) ([]models.ContentItem, error) {
	m.listed = courseID
	return []models.ContentItem{{ID: "k1", Course: models.NewRef(courseID), Order: 1}}, nil
}

func (m *mockContent) Get(_ context.Context, id string) (models.ContentItem, error) {
	return models.ContentItem{ID: id}, nil
}

func (m *mockContent) Create(_ context.Context, input dto.ContentInput) (models.ContentItem, error) {
	return models.ContentItem{ID: "k9", Title: input.Title}, nil
}

func (m *mockContent) Update(_ context.Context, id string, input dto.ContentInput) (models.ContentItem, error) {
	return models.ContentItem{ID: id, Title: input.Title}, nil
}

func (m *mockContent) Delete(context.Context, string) error { return nil }

func (m *mockContent) Upload(_ context.Context, kind string, file *multipart.FileHeader) (models.UploadedFile, error) {
	if m.uploadErr != nil {
		return models.UploadedFile{}, m.uploadErr
	}
	m.uploadKind = kind
	m.uploadName = file.Filename
	return models.UploadedFile{URL: "https://cdn.example.com/" + file.Filename, FileName: file.Filename, Size: file.Size}, nil
}

type mockAssessments struct {
	createErr error
}

func (m *mockAssessments) List(_ context.Context, courseID string) ([]models.Assessment, error) {
	return []models.Assessment{{ID: "a1", Course: models.NewRef(courseID)}}, nil
}

func (m *mockAssessments) Get(_ context.Context, id string) (models.Assessment, error) {
	return models.Assessment{ID: id}, nil
}

func (m *mockAssessments) Create(_ context.Context, input dto.AssessmentInput) (models.Assessment, error) {
	if m.createErr != nil {
		return models.Assessment{}, m.createErr
	}
	return models.Assessment{ID: "a9", Title: input.Title}, nil
}

func (m *mockAssessments) Update(_ context.Context, id string, input dto.AssessmentInput) (models.Assessment, error) {
	return models.Assessment{ID: id, Title: input.Title}, nil
}

func (m *mockAssessments) Delete(context.Context, string) error { return nil }

type mockUsers struct {
	lastRole string
	deleted  []string
}

func (m *mockUsers) List(_ context.Context, role string) ([]models.User, error) {
	m.lastRole = role
	return []models.User{{ID: "u2", Role: models.RoleStudent}}, nil
}

func (m *mockUsers) Get(_ context.Context, id string) (models.User, error) {
	return models.User{ID: id}, nil
}

func (m *mockUsers) Update(_ context.Context, id string, input dto.UserUpdateRequest) (models.User, error) {
	return models.User{ID: id, Role: input.Role}, nil
}

func (m *mockUsers) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type adminFixture struct {
	app         *fiber.App
	admin       *mockAdmin
	courses     *mockCourses
	content     *mockContent
	assessments *mockAssessments
	users       *mockUsers
}

func newAdminFixture() adminFixture {
	fx := adminFixture{
		app:         newTestApp(),
		admin:       &mockAdmin{},
		courses:     &mockCourses{},
		content:     &mockContent{},
		assessments: &mockAssessments{},
		users:       &mockUsers{},
	}
	group := fx.app.Group("/api/v1/admin", middleware.RequireRole(models.RoleAdmin, models.RoleInstructor))
	handler.NewAdminDashboardHandler(fx.admin, testLogger).Register(group)
	handler.NewAdminCourseHandler(fx.courses, mockCategories{}, testValidator(), testLogger).Register(group)
	handler.NewAdminContentHandler(fx.content, testLogger).Register(group)
	handler.NewAdminAssessmentHandler(fx.assessments, testLogger).Register(group)
	handler.NewAdminUserHandler(fx.users, testLogger).Register(group)
	return fx
}

func TestAdminHandlers_RequireStaffRole(t *testing.T) {
	fx := newAdminFixture()

	resp, _ := perform(t, fx.app, newRequest(http.MethodGet, "/api/v1/admin/dashboard", nil))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/dashboard", nil), "u2", models.RoleStudent))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Equal(t, lmsclient.ErrForbidden.Error(), body.Message)

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/dashboard", nil), "u3", models.RoleInstructor))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminDashboardHandler_LimitAndPeriod(t *testing.T) {
	fx := newAdminFixture()

	resp, body := perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/dashboard?limit=500", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 50, fx.admin.lastLimit)
	var dashboard service.AdminDashboard
	decodeData(t, body, &dashboard)
	require.Equal(t, 12, dashboard.Stats.TotalUsers)

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/dashboard?limit=abc", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/analytics?period=30d", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var analytics models.Analytics
	decodeData(t, body, &analytics)
	require.Equal(t, "30d", analytics.Period)

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/analytics?period=forever", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAdminCourseHandler_CreateSurfacesServerErrors(t *testing.T) {
	fx := newAdminFixture()

	resp, body := perform(t, fx.app, as(newRequest(http.MethodPost, "/api/v1/admin/courses", dto.CourseInput{Title: "Go Basics"}), "u1", models.RoleInstructor))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "Go Basics", fx.courses.created.Title)
	var course models.Course
	decodeData(t, body, &course)
	require.Equal(t, "c9", course.ID)

	fx.courses.createErr = &lmsclient.APIError{StatusCode: 409, Message: "A course with this title already exists"}
	resp, body = perform(t, fx.app, as(newRequest(http.MethodPost, "/api/v1/admin/courses", dto.CourseInput{Title: "Go Basics"}), "u1", models.RoleInstructor))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "A course with this title already exists", body.Message)

	resp, body = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/courses/missing", nil), "u1", models.RoleInstructor))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Course not found", body.Message)
}

func TestAdminContentHandler_ListRequiresCourse(t *testing.T) {
	fx := newAdminFixture()

	resp, _ := perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/content", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/content?courseId=c1", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "c1", fx.content.listed)
}

func uploadRequest(t *testing.T, target, field, name string, data []byte) *http.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAdminContentHandler_Upload(t *testing.T) {
	fx := newAdminFixture()

	req := uploadRequest(t, "/api/v1/admin/content/upload?type=image", "file", "diagram.png", []byte("\x89PNG\r\n\x1a\nrest"))
	resp, body := perform(t, fx.app, as(req, "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "image", fx.content.uploadKind)
	require.Equal(t, "diagram.png", fx.content.uploadName)
	var uploaded models.UploadedFile
	decodeData(t, body, &uploaded)
	require.Equal(t, "https://cdn.example.com/diagram.png", uploaded.URL)

	req = uploadRequest(t, "/api/v1/admin/content/upload?type=image", "attachment", "diagram.png", []byte("x"))
	resp, body = perform(t, fx.app, as(req, "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "file is required", body.Message)

	fx.content.uploadErr = service.ErrUploadTypeNotAllowed
	req = uploadRequest(t, "/api/v1/admin/content/upload?type=image", "file", "notes.txt", []byte("plain"))
	resp, _ = perform(t, fx.app, as(req, "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestAdminAssessmentHandler_RejectsInvalidAssessment(t *testing.T) {
	fx := newAdminFixture()
	fx.assessments.createErr = fmt.Errorf("%w: /questions/0 missing properties: 'correctAnswer'", service.ErrInvalidAssessment)

	resp, body := perform(t, fx.app, as(newRequest(http.MethodPost, "/api/v1/admin/assessments", dto.AssessmentInput{Title: "Quiz"}), "u1", models.RoleInstructor))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body.Message, "correctAnswer")

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/assessments?courseId=c1", nil), "u1", models.RoleInstructor))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminUserHandler_AdminOnly(t *testing.T) {
	fx := newAdminFixture()

	resp, _ := perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/users", nil), "u3", models.RoleInstructor))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodGet, "/api/v1/admin/users?role=%20Student%20", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "student", fx.users.lastRole)

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodDelete, "/api/v1/admin/users/u1", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = perform(t, fx.app, as(newRequest(http.MethodDelete, "/api/v1/admin/users/u2", nil), "u1", models.RoleAdmin))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"u2"}, fx.users.deleted)
}
