package models

import "time"

// Content item types served by the LMS.
const (
	ContentTypeVideo      = "video"
	ContentTypeAudio      = "audio"
	ContentTypeDocument   = "document"
	ContentTypeText       = "text"
	ContentTypeQuiz       = "quiz"
	ContentTypeAssignment = "assignment"
	ContentTypeImage      = "image"
	ContentTypeLink       = "link"
)

// ContentTypes lists every content type accepted by the LMS.
var ContentTypes = []string{
	ContentTypeVideo,
	ContentTypeAudio,
	ContentTypeDocument,
	ContentTypeText,
	ContentTypeQuiz,
	ContentTypeAssignment,
	ContentTypeImage,
	ContentTypeLink,
}

// Course is a catalog entry.
type Course struct {
	ID            string     `json:"_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Category      Ref        `json:"category,omitempty"`
	Instructor    Ref        `json:"instructor,omitempty"`
	Level         string     `json:"level,omitempty"`
	Duration      int        `json:"duration,omitempty"`
	Thumbnail     string     `json:"thumbnail,omitempty"`
	IsPublished   bool       `json:"isPublished"`
	EnrolledCount int        `json:"enrollmentCount,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// Category groups courses in the catalog.
type Category struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	IsActive    bool   `json:"isActive"`
}

// ContentItem is one unit of course material that can be marked complete.
type ContentItem struct {
	ID          string     `json:"_id"`
	Course      Ref        `json:"course"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type"`
	Duration    int        `json:"duration,omitempty"`
	Order       int        `json:"order"`
	URL         string     `json:"url,omitempty"`
	FileURL     string     `json:"fileUrl,omitempty"`
	Body        string     `json:"content,omitempty"`
	IsPublished bool       `json:"isPublished"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// UploadedFile is returned by the LMS after a multipart content upload.
type UploadedFile struct {
	URL      string `json:"url"`
	FileName string `json:"filename,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Size     int64  `json:"size,omitempty"`
}
