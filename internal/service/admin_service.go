package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// ErrUnsupportedPeriod is returned for analytics periods the LMS does not offer.
var ErrUnsupportedPeriod = errors.New("period must be one of 7d, 30d, 90d or 1y")

// AdminDashboard is the admin landing payload.
type AdminDashboard struct {
	Stats      models.DashboardStats  `json:"stats"`
	Activities []models.AdminActivity `json:"activities"`
	CacheHit   bool                   `json:"cache_hit"`
}

// AdminService aggregates admin dashboards. Stats are cached in redis because every
// admin page load requests them.
type AdminService interface {
	Dashboard(ctx context.Context, activityLimit int) (AdminDashboard, error)
	Analytics(ctx context.Context, period string) (models.Analytics, error)
}

type adminService struct {
	api      AdminAPI
	cache    *redis.Client
	cacheTTL time.Duration
	notifier Notifier
	logger   zerolog.Logger
}

// NewAdminService constructs the admin dashboard service.
func NewAdminService(api AdminAPI, cache *redis.Client, ttl time.Duration, notifier Notifier, logger zerolog.Logger) AdminService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &adminService{
		api:      api,
		cache:    cache,
		cacheTTL: ttl,
		notifier: notifier,
		logger:   logger.With().Str("component", "admin_service").Logger(),
	}
}

func (s *adminService) Dashboard(ctx context.Context, activityLimit int) (AdminDashboard, error) {
	ctx, span := otel.Tracer("github.com/noah-isme/gema-lms-gateway/internal/service/admin").Start(ctx, "admin.dashboard")
	defer span.End()

	if activityLimit <= 0 {
		activityLimit = 10
	}

	var dashboard AdminDashboard
	const statsKey = "lms:admin:stats"
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, statsKey).Bytes()
		if err == nil {
			if unmarshalErr := json.Unmarshal(cached, &dashboard.Stats); unmarshalErr == nil {
				dashboard.CacheHit = true
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read admin stats cache")
		}
	}
	span.SetAttributes(attribute.Bool("admin.cache_hit", dashboard.CacheHit))

	if !dashboard.CacheHit {
		stats, err := s.api.DashboardStats(ctx)
		if err != nil {
			return AdminDashboard{}, notifyFailure(ctx, s.notifier, s.logger, "admin.stats", err)
		}
		dashboard.Stats = stats
		if s.cache != nil {
			if payload, err := json.Marshal(stats); err == nil {
				if err := s.cache.Set(ctx, statsKey, payload, s.cacheTTL).Err(); err != nil {
					s.logger.Warn().Err(err).Msg("failed to store admin stats cache")
				}
			}
		}
	}

	activities, err := s.api.DashboardActivities(ctx, activityLimit)
	if err != nil {
		return AdminDashboard{}, notifyFailure(ctx, s.notifier, s.logger, "admin.activities", err)
	}
	dashboard.Activities = activities
	return dashboard, nil
}

func (s *adminService) Analytics(ctx context.Context, period string) (models.Analytics, error) {
	switch period {
	case "", "7d", "30d", "90d", "1y":
	default:
		return models.Analytics{}, fmt.Errorf("%w: %q", ErrUnsupportedPeriod, period)
	}
	analytics, err := s.api.Analytics(ctx, period)
	if err != nil {
		return models.Analytics{}, notifyFailure(ctx, s.notifier, s.logger, "admin.analytics", err)
	}
	return analytics, nil
}
