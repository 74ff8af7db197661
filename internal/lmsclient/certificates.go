package lmsclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// GenerateAssessmentCertificate issues (or returns the existing) certificate for a
// passed assessment.
func (c *Client) GenerateAssessmentCertificate(ctx context.Context, req models.CertificateRequest) (models.Certificate, error) {
	var out models.Certificate
	err := c.into(ctx, call{method: http.MethodPost, endpoint: "/certificates/generate-assessment", body: req}, "certificate", &out)
	return out, err
}

// ListMyCertificates returns the current user's certificates.
func (c *Client) ListMyCertificates(ctx context.Context) ([]models.Certificate, error) {
	var out []models.Certificate
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/certificates/my"}, "certificates", &out)
	return out, err
}

// CertificateDownload returns the certificate metadata used by the download page.
func (c *Client) CertificateDownload(ctx context.Context, id string) (models.Certificate, error) {
	var out models.Certificate
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/certificates/{id}/download", params: map[string]string{"id": id}}, "certificate", &out)
	return out, err
}

// Document is a binary payload returned by the LMS.
type Document struct {
	ContentType string
	FileName    string
	Body        []byte
}

// CertificatePDF downloads the rendered certificate.
func (c *Client) CertificatePDF(ctx context.Context, id string) (Document, error) {
	resp, err := c.execute(ctx, call{method: http.MethodGet, endpoint: "/certificates/{id}/download-pdf", params: map[string]string{"id": id}})
	if err != nil {
		return Document{}, err
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return Document{
		ContentType: contentType,
		FileName:    fmt.Sprintf("certificate-%s.pdf", id),
		Body:        resp.Body(),
	}, nil
}
