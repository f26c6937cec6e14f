// Package client is the HTTP client of the blogging API. Every request goes
// through Request, which attaches the session token and normalizes failures
// into *Error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabot-ai/inkpost/internal/observability"
	"github.com/alphabot-ai/inkpost/internal/rate"
	"github.com/alphabot-ai/inkpost/internal/session"
)

const requestIDHeader = "X-Request-ID"

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Store
	limiter    rate.Limiter
	logger     *slog.Logger
	metrics    *observability.ClientMetrics
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter paces outgoing requests. Requests share one bucket per base URL.
func WithLimiter(l rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *observability.ClientMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a client for baseURL using st as the single session.
func New(baseURL string, st *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		session:    st,
		logger:     observability.Discard(),
		tracer:     otel.Tracer(observability.TracerName),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Session() *session.Store {
	return c.session
}

// Request performs a JSON call. It returns nil for 204 and for empty 2xx
// bodies, the raw body otherwise. A 2xx body that is not JSON is a
// KindDecode error.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return c.send(ctx, method, path, reader, header)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, header http.Header) (json.RawMessage, error) {
	resp, err := c.do(ctx, method, path, body, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, errorMessage(data))
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, decodeError(errors.New("response body is not JSON"))
	}
	return json.RawMessage(data), nil
}

// do issues the request with auth, tracing and pacing applied. The caller
// owns the response body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.baseURL); err != nil {
			return nil, &Error{Kind: KindThrottled, Message: MsgThrottled, Err: err}
		}
	}

	op := operationName(method, path)
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	c.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(op, 0, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.WarnContext(ctx, "api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		return nil, transportError(err)
	}

	c.metrics.ObserveRequest(op, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	c.logger.DebugContext(ctx, "api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", reqID),
	)
	return resp, nil
}

// requireSession clears a present but expired or undecodable token before an
// authenticated call.
func (c *Client) requireSession(ctx context.Context) error {
	cleared, err := c.session.ExpireIfNeeded(ctx)
	if err != nil {
		return fmt.Errorf("clear expired session: %w", err)
	}
	if cleared {
		c.logger.InfoContext(ctx, "session expired, token cleared")
		return sessionExpired(0)
	}
	return nil
}

// errorMessage extracts message or error from a JSON error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// operationName collapses ids out of path so metric labels stay bounded.
func operationName(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case parts[0] == "admin":
		if len(parts) >= 3 && parts[1] == "users" {
			parts[2] = ":username"
		} else if len(parts) >= 3 {
			parts[2] = ":id"
		}
	case len(parts) >= 2:
		parts[1] = ":id"
	}
	return method + " /" + strings.Join(parts, "/")
}

// decodeEnvelope unmarshals raw[key] into T, or raw itself when key is absent.
func decodeEnvelope[T any](raw json.RawMessage, key string) (T, error) {
	var out T
	if raw == nil {
		return out, nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err == nil {
		if inner, ok := env[key]; ok {
			raw = inner
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, decodeError(err)
	}
	return out, nil
}

func listQuery(page, limit, defaultLimit int) url.Values {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
}
