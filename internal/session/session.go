// Package session owns the identity lifecycle: login, register, restore and logout.
// Sessions are mirrored to redis keyed by a digest of the bearer token so that any
// gateway replica can restore them.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/observability"
)

const keyPrefix = "lms:session:"

var (
	// ErrNoSession is returned when a token has no live session.
	ErrNoSession = errors.New("no active session")
	// ErrTokenExpired is returned for tokens whose exp claim has passed.
	ErrTokenExpired = errors.New("session token expired")
)

// Session is an authenticated identity.
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// HasRole reports whether the session user holds any of the roles.
func (s Session) HasRole(roles ...string) bool {
	current := s.User.NormalizedRole()
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), current) {
			return true
		}
	}
	return false
}

func (s Session) IsAdmin() bool      { return s.HasRole(models.RoleAdmin) }
func (s Session) IsInstructor() bool { return s.HasRole(models.RoleInstructor) }
func (s Session) IsStudent() bool    { return s.HasRole(models.RoleStudent) }

// Authenticator is the subset of the LMS client the store depends on.
type Authenticator interface {
	Login(ctx context.Context, req dto.LoginRequest) (models.AuthResult, error)
	Register(ctx context.Context, req dto.RegisterRequest) (models.AuthResult, error)
	Me(ctx context.Context) (models.User, error)
}

// Store performs session transitions. Persistence is a side effect of the
// transitions only.
type Store struct {
	auth       Authenticator
	redis      *redis.Client
	defaultTTL time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewStore builds a store. A nil redis client disables the durable mirror.
func NewStore(auth Authenticator, redisClient *redis.Client, defaultTTL time.Duration, logger zerolog.Logger) *Store {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Store{
		auth:       auth,
		redis:      redisClient,
		defaultTTL: defaultTTL,
		logger:     logger.With().Str("component", "session_store").Logger(),
		now:        time.Now,
	}
}

// Login authenticates with the LMS and persists the resulting session.
func (s *Store) Login(ctx context.Context, req dto.LoginRequest) (Session, error) {
	result, err := s.auth.Login(ctx, req)
	if err != nil {
		observability.SessionTransitions().WithLabelValues("login", "failure").Inc()
		return Session{}, err
	}
	session, err := s.establish(ctx, result)
	s.count("login", err)
	return session, err
}

// Register creates the account and signs the user in.
func (s *Store) Register(ctx context.Context, req dto.RegisterRequest) (Session, error) {
	result, err := s.auth.Register(ctx, req)
	if err != nil {
		observability.SessionTransitions().WithLabelValues("register", "failure").Inc()
		return Session{}, err
	}
	session, err := s.establish(ctx, result)
	s.count("register", err)
	return session, err
}

// Restore returns the session for token, consulting the mirror first and the LMS
// server second.
func (s *Store) Restore(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrNoSession
	}

	if session, ok := s.load(ctx, token); ok {
		if session.ExpiresAt != nil && !s.now().Before(*session.ExpiresAt) {
			s.Teardown(ctx, token)
			observability.SessionTransitions().WithLabelValues("restore", "expired").Inc()
			return Session{}, ErrTokenExpired
		}
		observability.SessionTransitions().WithLabelValues("restore", "cached").Inc()
		return session, nil
	}

	session, err := s.Refresh(ctx, token)
	if err != nil {
		observability.SessionTransitions().WithLabelValues("restore", "failure").Inc()
		if errors.Is(err, lmsclient.ErrUnauthorized) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	observability.SessionTransitions().WithLabelValues("restore", "success").Inc()
	return session, nil
}

// Refresh re-reads the profile behind token and rewrites the mirror.
func (s *Store) Refresh(ctx context.Context, token string) (Session, error) {
	expiresAt, err := s.expiry(token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.auth.Me(lmsclient.WithToken(ctx, token))
	if err != nil {
		return Session{}, err
	}

	session := Session{Token: token, User: user, ExpiresAt: expiresAt, CreatedAt: s.now().UTC()}
	s.save(ctx, session)
	return session, nil
}

// Logout discards the session.
func (s *Store) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoSession
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, key(token)).Err(); err != nil {
			observability.SessionTransitions().WithLabelValues("logout", "failure").Inc()
			return fmt.Errorf("delete session: %w", err)
		}
	}
	observability.SessionTransitions().WithLabelValues("logout", "success").Inc()
	return nil
}

// Teardown drops a session the LMS server rejected. It matches
// lmsclient.UnauthorizedHandler.
func (s *Store) Teardown(ctx context.Context, token string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(context.WithoutCancel(ctx), key(token)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to tear down rejected session")
		return
	}
	observability.SessionTransitions().WithLabelValues("teardown", "success").Inc()
	s.logger.Info().Msg("session torn down after upstream rejection")
}

func (s *Store) establish(ctx context.Context, result models.AuthResult) (Session, error) {
	token := strings.TrimSpace(result.Token)
	if token == "" {
		return Session{}, errors.New("lms server returned no token")
	}
	expiresAt, err := s.expiry(token)
	if err != nil {
		return Session{}, err
	}

	session := Session{Token: token, User: result.User, ExpiresAt: expiresAt, CreatedAt: s.now().UTC()}
	s.save(ctx, session)
	return session, nil
}

// expiry reads the exp claim without verifying the signature; the LMS server is the
// verifier. Opaque tokens have no expiry.
func (s *Store) expiry(token string) (*time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, nil
	}
	at := exp.Time.UTC()
	if !s.now().Before(at) {
		return nil, ErrTokenExpired
	}
	return &at, nil
}

func (s *Store) ttl(session Session) time.Duration {
	if session.ExpiresAt == nil {
		return s.defaultTTL
	}
	remaining := session.ExpiresAt.Sub(s.now())
	if remaining > s.defaultTTL {
		return s.defaultTTL
	}
	return remaining
}

func (s *Store) save(ctx context.Context, session Session) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(session)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode session")
		return
	}
	if err := s.redis.Set(ctx, key(session.Token), payload, s.ttl(session)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist session")
	}
}

func (s *Store) load(ctx context.Context, token string) (Session, bool) {
	if s.redis == nil {
		return Session{}, false
	}
	raw, err := s.redis.Get(ctx, key(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read session")
		}
		return Session{}, false
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed session")
		return Session{}, false
	}
	return session, true
}

func (s *Store) count(transition string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	observability.SessionTransitions().WithLabelValues(transition, result).Inc()
}

func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}
