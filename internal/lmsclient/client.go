// Package lmsclient is the REST client for the remote LMS server.
package lmsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-lms-gateway/internal/observability"
)

// Config configures the client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// UnauthorizedHandler is invoked whenever the LMS server answers 401 for a token.
type UnauthorizedHandler func(ctx context.Context, token string)

// Client talks to the LMS REST API. It is safe for concurrent use.
type Client struct {
	http           *resty.Client
	logger         zerolog.Logger
	tracer         trace.Tracer
	onUnauthorized UnauthorizedHandler
}

// Option customises the client.
type Option func(*options)

type options struct {
	httpClient     *http.Client
	onUnauthorized UnauthorizedHandler
}

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithUnauthorizedHandler registers the session teardown hook at construction.
func WithUnauthorizedHandler(handler UnauthorizedHandler) Option {
	return func(o *options) {
		o.onUnauthorized = handler
	}
}

// New builds a client for the LMS API rooted at cfg.BaseURL (for example
// https://lms.example.com/api).
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Client {
	settings := options{}
	for _, opt := range opts {
		opt(&settings)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = "gema-lms-gateway"
	}

	httpClient := resty.New()
	if settings.httpClient != nil {
		httpClient = resty.NewWithClient(settings.httpClient)
	}
	httpClient.
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", agent)

	return &Client{
		http:           httpClient,
		logger:         logger.With().Str("component", "lms_client").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/gema-lms-gateway/internal/lmsclient"),
		onUnauthorized: settings.onUnauthorized,
	}
}

// OnUnauthorized registers the session teardown hook.
func (c *Client) OnUnauthorized(handler UnauthorizedHandler) {
	c.onUnauthorized = handler
}

type tokenKey struct{}

// WithToken attaches the bearer token used for calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// TokenFromContext returns the bearer token bound to ctx.
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	return ""
}

// call describes one request. Endpoint is the path template, used as the metrics label.
type call struct {
	method   string
	endpoint string
	params   map[string]string
	query    map[string]string
	body     interface{}
	prepare  func(*resty.Request)
}

func (c *Client) execute(ctx context.Context, req call) (*resty.Response, error) {
	ctx, span := c.tracer.Start(ctx, "lms."+strings.ToLower(req.method)+" "+req.endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("lms.endpoint", req.endpoint),
	)

	token := TokenFromContext(ctx)
	r := c.http.R().SetContext(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	if len(req.params) > 0 {
		r.SetPathParams(req.params)
	}
	if len(req.query) > 0 {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	}
	if req.prepare != nil {
		req.prepare(r)
	}

	start := time.Now()
	resp, err := r.Execute(req.method, req.endpoint)
	observability.UpstreamLatency().WithLabelValues(req.method, req.endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.UpstreamRequests().WithLabelValues(req.method, req.endpoint, "transport_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method, req.endpoint, ctxErr)
		}
		c.logger.Warn().Err(err).Str("method", req.method).Str("endpoint", req.endpoint).Msg("lms request failed")
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.method, req.endpoint, err)
	}

	status := resp.StatusCode()
	observability.UpstreamRequests().WithLabelValues(req.method, req.endpoint, strconv.Itoa(status)).Inc()
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status >= http.StatusBadRequest {
		apiErr := parseAPIError(req.method, req.endpoint, status, resp.Body())
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)

		if status == http.StatusUnauthorized && token != "" && c.onUnauthorized != nil {
			c.onUnauthorized(ctx, token)
		}
		return resp, apiErr
	}

	return resp, nil
}

// do executes the call and decodes the JSON payload into out when out is non-nil.
func (c *Client) do(ctx context.Context, req call, out interface{}) error {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body())) == 0 {
		return nil
	}
	if err := decodePayload(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, req.method, req.endpoint, err)
	}
	return nil
}

// decodePayload accepts both the bare resource and the {success, data} envelope the
// LMS wraps most responses in. When key is set, a nested field of the object
// (e.g. "courses") is tried as well.
func decodePayload(body []byte, out interface{}, keys ...string) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty body")
	}

	if trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if data, ok := envelope["data"]; ok && len(bytes.TrimSpace(data)) > 0 && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
				return decodePayload(data, out, keys...)
			}
			for _, key := range keys {
				// a resource may carry a field named like its own key ("content")
				if nested, ok := envelope[key]; ok && json.Unmarshal(nested, out) == nil {
					return nil
				}
			}
		}
	}

	return json.Unmarshal(trimmed, out)
}

// into decodes a response that may arrive bare, enveloped or under a named key such
// as "courses" or "enrollment".
func (c *Client) into(ctx context.Context, req call, key string, out interface{}) error {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	if err := decodePayload(resp.Body(), out, key); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, req.method, req.endpoint, err)
	}
	return nil
}
