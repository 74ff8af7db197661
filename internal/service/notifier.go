package service

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/observability"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// Notification is a user-facing message emitted by a data-access operation.
type Notification struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Operation string    `json:"operation"`
	UserID    string    `json:"user_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Notifier delivers notifications. Delivery never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Recorder buffers notifications raised while serving one request.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Items returns the buffered notifications.
func (r *Recorder) Items() []Notification {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

type recorderKey struct{}

// WithRecorder attaches a recorder so handlers can return raised notifications.
func WithRecorder(ctx context.Context, recorder *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, recorder)
}

func recorderFrom(ctx context.Context) *Recorder {
	if ctx == nil {
		return nil
	}
	recorder, _ := ctx.Value(recorderKey{}).(*Recorder)
	return recorder
}

type eventNotifier struct {
	conn      *nats.Conn
	subject   string
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewNotifier publishes notifications to NATS when conn is set and always logs them.
func NewNotifier(conn *nats.Conn, subject string, logger zerolog.Logger) Notifier {
	return &eventNotifier{
		conn:      conn,
		subject:   strings.TrimSpace(subject),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "notifier").Logger(),
		now:       time.Now,
	}
}

func (n *eventNotifier) Notify(ctx context.Context, item Notification) {
	item.Message = strings.TrimSpace(html.UnescapeString(n.sanitizer.Sanitize(item.Message)))
	if item.Message == "" {
		return
	}
	if item.SentAt.IsZero() {
		item.SentAt = n.now().UTC()
	}

	observability.Notifications().WithLabelValues(item.Level).Inc()
	if recorder := recorderFrom(ctx); recorder != nil {
		recorder.mu.Lock()
		recorder.items = append(recorder.items, item)
		recorder.mu.Unlock()
	}

	event := n.logger.Info()
	if item.Level == LevelError {
		event = n.logger.Warn()
	}
	event.Str("operation", item.Operation).Str("level", item.Level).Msg(item.Message)

	if n.conn == nil || n.subject == "" {
		return
	}
	payload, err := json.Marshal(item)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to encode notification")
		return
	}
	if err := n.conn.Publish(n.subject+"."+item.Level, payload); err != nil {
		n.logger.Warn().Err(err).Msg("failed to publish notification")
	}
}

// notifySuccess and notifyFailure are the shared mutation epilogue: log, notify and
// hand the error back unchanged.
func notifySuccess(ctx context.Context, notifier Notifier, operation, message string) {
	if notifier == nil {
		return
	}
	notifier.Notify(ctx, Notification{Level: LevelSuccess, Operation: operation, Message: message})
}

func notifyFailure(ctx context.Context, notifier Notifier, logger zerolog.Logger, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	logger.Error().Err(err).Str("operation", operation).Msg("lms operation failed")
	if notifier != nil {
		notifier.Notify(ctx, Notification{Level: LevelError, Operation: operation, Message: UserMessage(err)})
	}
	return err
}

// UserMessage converts an error into the wording shown to users. Server messages
// are surfaced verbatim.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, lmsclient.ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, lmsclient.ErrForbidden):
		return lmsclient.ErrForbidden.Error()
	case errors.Is(err, lmsclient.ErrTransport):
		return "Unable to reach the learning server. Please try again."
	}
	if apiErr, ok := lmsclient.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
