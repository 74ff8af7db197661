package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected type does not match the upload kind.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadKind indicates an unknown upload kind.
	ErrUploadKind = errors.New("upload type must be one of video, audio, document or image")
)

var uploadKinds = map[string]func(mime string) bool{
	models.ContentTypeVideo: func(m string) bool { return strings.HasPrefix(m, "video/") },
	models.ContentTypeAudio: func(m string) bool { return strings.HasPrefix(m, "audio/") },
	models.ContentTypeImage: func(m string) bool { return strings.HasPrefix(m, "image/") },
	models.ContentTypeDocument: func(m string) bool {
		switch {
		case m == "application/pdf", m == "text/plain", m == "application/msword", m == "application/rtf":
			return true
		case strings.HasPrefix(m, "application/vnd.openxmlformats-officedocument."):
			return true
		case strings.HasPrefix(m, "application/vnd.ms-"):
			return true
		}
		return false
	},
}

// ContentService manages course content.
type ContentService interface {
	List(ctx context.Context, courseID string) ([]models.ContentItem, error)
	Get(ctx context.Context, id string) (models.ContentItem, error)
	Create(ctx context.Context, input dto.ContentInput) (models.ContentItem, error)
	Update(ctx context.Context, id string, input dto.ContentInput) (models.ContentItem, error)
	Delete(ctx context.Context, id string) error
	Upload(ctx context.Context, kind string, file *multipart.FileHeader) (models.UploadedFile, error)
}

type contentService struct {
	api       ContentAPI
	validator *validator.Validate
	notifier  Notifier
	logger    zerolog.Logger
	tracer    trace.Tracer
	maxSize   int64
}

// NewContentService constructs the content service. Uploads larger than maxSizeMB
// are rejected before they are forwarded.
func NewContentService(api ContentAPI, validate *validator.Validate, notifier Notifier, maxSizeMB int, logger zerolog.Logger) ContentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &contentService{
		api:       api,
		validator: validate,
		notifier:  notifier,
		logger:    logger.With().Str("component", "content_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-lms-gateway/internal/service/content"),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
	}
}

func (s *contentService) List(ctx context.Context, courseID string) ([]models.ContentItem, error) {
	items, err := s.api.ListContent(ctx, courseID)
	if err != nil {
		return nil, notifyFailure(ctx, s.notifier, s.logger, "content.list", err)
	}
	sortContent(items)
	return items, nil
}

func (s *contentService) Get(ctx context.Context, id string) (models.ContentItem, error) {
	item, err := s.api.GetContent(ctx, id)
	if err != nil {
		return models.ContentItem{}, notifyFailure(ctx, s.notifier, s.logger, "content.get", err)
	}
	return item, nil
}

func (s *contentService) Create(ctx context.Context, input dto.ContentInput) (models.ContentItem, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.ContentItem{}, err
	}
	item, err := s.api.CreateContent(ctx, input)
	if err != nil {
		return models.ContentItem{}, notifyFailure(ctx, s.notifier, s.logger, "content.create", err)
	}
	notifySuccess(ctx, s.notifier, "content.create", "Content created successfully")
	return item, nil
}

func (s *contentService) Update(ctx context.Context, id string, input dto.ContentInput) (models.ContentItem, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.ContentItem{}, err
	}
	item, err := s.api.UpdateContent(ctx, id, input)
	if err != nil {
		return models.ContentItem{}, notifyFailure(ctx, s.notifier, s.logger, "content.update", err)
	}
	notifySuccess(ctx, s.notifier, "content.update", "Content updated successfully")
	return item, nil
}

func (s *contentService) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteContent(ctx, id); err != nil {
		return notifyFailure(ctx, s.notifier, s.logger, "content.delete", err)
	}
	notifySuccess(ctx, s.notifier, "content.delete", "Content deleted successfully")
	return nil
}

func (s *contentService) Upload(ctx context.Context, kind string, file *multipart.FileHeader) (models.UploadedFile, error) {
	ctx, span := s.tracer.Start(ctx, "content.upload")
	defer span.End()

	kind = strings.ToLower(strings.TrimSpace(kind))
	accepts, ok := uploadKinds[kind]
	if !ok {
		span.SetStatus(codes.Error, "unknown kind")
		return models.UploadedFile{}, ErrUploadKind
	}
	if file == nil {
		span.SetStatus(codes.Error, "missing file")
		return models.UploadedFile{}, errors.New("file is required")
	}
	span.SetAttributes(
		attribute.String("upload.kind", kind),
		attribute.Int64("upload.request_size", file.Size),
	)
	if file.Size > s.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return models.UploadedFile{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return models.UploadedFile{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return models.UploadedFile{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return models.UploadedFile{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	contentType := strings.ToLower(strings.Split(detected.String(), ";")[0])
	span.SetAttributes(attribute.String("upload.detected_mime", contentType))
	if !accepts(contentType) {
		span.SetStatus(codes.Error, "type not allowed")
		return models.UploadedFile{}, ErrUploadTypeNotAllowed
	}

	uploaded, err := s.api.UploadContent(ctx, lmsclient.Upload{
		Kind:        kind,
		FileName:    filepath.Base(file.Filename),
		ContentType: contentType,
		Body:        bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream rejected upload")
		return models.UploadedFile{}, notifyFailure(ctx, s.notifier, s.logger, "content.upload", err)
	}
	if uploaded.MimeType == "" {
		uploaded.MimeType = contentType
	}
	notifySuccess(ctx, s.notifier, "content.upload", "File uploaded successfully")
	return uploaded, nil
}

func sortContent(items []models.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
}
