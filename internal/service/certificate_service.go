package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// CertificateService issues and serves certificates.
type CertificateService interface {
	Generate(ctx context.Context, req models.CertificateRequest) (models.Certificate, error)
	ListMine(ctx context.Context) ([]models.Certificate, error)
	Download(ctx context.Context, id string) (models.Certificate, error)
	PDF(ctx context.Context, id string) (lmsclient.Document, error)
	FindForAssessment(ctx context.Context, assessmentID string) *models.Certificate
}

type certificateService struct {
	api      CertificateAPI
	notifier Notifier
	logger   zerolog.Logger
}

// NewCertificateService constructs the certificate service.
func NewCertificateService(api CertificateAPI, notifier Notifier, logger zerolog.Logger) CertificateService {
	return &certificateService{
		api:      api,
		notifier: notifier,
		logger:   logger.With().Str("component", "certificate_service").Logger(),
	}
}

func (s *certificateService) Generate(ctx context.Context, req models.CertificateRequest) (models.Certificate, error) {
	certificate, err := s.api.GenerateAssessmentCertificate(ctx, req)
	if err != nil {
		return models.Certificate{}, notifyFailure(ctx, s.notifier, s.logger, "certificates.generate", err)
	}
	notifySuccess(ctx, s.notifier, "certificates.generate", "Certificate generated successfully")
	return certificate, nil
}

func (s *certificateService) ListMine(ctx context.Context) ([]models.Certificate, error) {
	certificates, err := s.api.ListMyCertificates(ctx)
	if err != nil {
		return nil, notifyFailure(ctx, s.notifier, s.logger, "certificates.list", err)
	}
	return certificates, nil
}

func (s *certificateService) Download(ctx context.Context, id string) (models.Certificate, error) {
	certificate, err := s.api.CertificateDownload(ctx, id)
	if err != nil {
		return models.Certificate{}, notifyFailure(ctx, s.notifier, s.logger, "certificates.download", err)
	}
	return certificate, nil
}

func (s *certificateService) PDF(ctx context.Context, id string) (lmsclient.Document, error) {
	document, err := s.api.CertificatePDF(ctx, id)
	if err != nil {
		return lmsclient.Document{}, notifyFailure(ctx, s.notifier, s.logger, "certificates.pdf", err)
	}
	return document, nil
}

// FindForAssessment probes for an existing certificate. Failures are logged and
// reported as "none found".
func (s *certificateService) FindForAssessment(ctx context.Context, assessmentID string) *models.Certificate {
	certificates, err := s.api.ListMyCertificates(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Str("assessment_id", assessmentID).Msg("certificate probe failed")
		return nil
	}
	for i := range certificates {
		if certificates[i].Assessment.Is(assessmentID) {
			return &certificates[i]
		}
	}
	return nil
}
