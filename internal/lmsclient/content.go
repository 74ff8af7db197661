package lmsclient

import (
	"context"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// ListContent returns a course's content items.
func (c *Client) ListContent(ctx context.Context, courseID string) ([]models.ContentItem, error) {
	var out []models.ContentItem
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/content", query: map[string]string{"courseId": courseID}}, "content", &out)
	return out, err
}

// GetContent returns one content item.
func (c *Client) GetContent(ctx context.Context, id string) (models.ContentItem, error) {
	var out models.ContentItem
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/content/{id}", params: map[string]string{"id": id}}, "content", &out)
	return out, err
}

// CreateContent creates a content item.
func (c *Client) CreateContent(ctx context.Context, input dto.ContentInput) (models.ContentItem, error) {
	var out models.ContentItem
	err := c.into(ctx, call{method: http.MethodPost, endpoint: "/content", body: input}, "content", &out)
	return out, err
}

// UpdateContent edits a content item.
func (c *Client) UpdateContent(ctx context.Context, id string, input dto.ContentInput) (models.ContentItem, error) {
	var out models.ContentItem
	err := c.into(ctx, call{method: http.MethodPut, endpoint: "/content/{id}", params: map[string]string{"id": id}, body: input}, "content", &out)
	return out, err
}

// DeleteContent removes a content item.
func (c *Client) DeleteContent(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "/content/{id}", params: map[string]string{"id": id}}, nil)
}

// Upload describes a file forwarded to the LMS upload endpoint.
type Upload struct {
	Kind        string
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadContent sends a multipart upload to POST /content/upload?type=.
func (c *Client) UploadContent(ctx context.Context, upload Upload) (models.UploadedFile, error) {
	var out models.UploadedFile
	err := c.into(ctx, call{
		method:   http.MethodPost,
		endpoint: "/content/upload",
		query:    map[string]string{"type": upload.Kind},
		prepare: func(r *resty.Request) {
			r.SetMultipartField("file", upload.FileName, upload.ContentType, upload.Body)
		},
	}, "file", &out)
	return out, err
}
