package chat

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
	"path"
	"strings"
	"time"

	"github.com/ashureev/agent-studio/internal/domain"
)

// maxErrorBody caps how much of a failed response is read into a StatusError.
const maxErrorBody = 4 << 10

// Request is everything the backend needs to answer one user message.
type Request struct {
	Message        string            `json:"message"`
	AttachmentName string            `json:"attachmentName,omitempty"`
	History        []Message         `json:"history"`
	Draft          domain.AgentDraft `json:"agent"`
}

// Transport opens the response stream for one request. Implementations
// classify failures with ErrRouteNotFound, ErrUnavailable or *StatusError.
type Transport interface {
	Send(ctx context.Context, req Request) (io.ReadCloser, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (io.ReadCloser, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, req Request) (io.ReadCloser, error) {
	return f(ctx, req)
}

// HTTPTransport posts requests to the backend chat route and returns the
// NDJSON response body.
type HTTPTransport struct {
	endpoint   *url.URL
	httpClient *http.Client
	headers    http.Header
	logger     *slog.Logger
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.httpClient = client
	}
}

// WithResponseTimeout bounds how long to wait for response headers. The
// body itself may stream for as long as the backend keeps it open.
func WithResponseTimeout(timeout time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return
		}
		tr := base.Clone()
		tr.ResponseHeaderTimeout = timeout
		t.httpClient = &http.Client{Transport: tr}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) {
		t.headers.Add(key, value)
	}
}

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewHTTPTransport creates a transport for baseURL joined with chatPath.
func NewHTTPTransport(baseURL, chatPath string, opts ...HTTPOption) (*HTTPTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", baseURL)
	}
	u.Path = path.Join("/", u.Path, chatPath)

	t := &HTTPTransport{
		endpoint:   u,
		httpClient: &http.Client{},
		headers:    make(http.Header),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Endpoint returns the URL requests are posted to.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint.String()
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req Request) (io.ReadCloser, error) {
	if req.History == nil {
		req.History = []Message{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	httpReq.Header.Set("Cache-Control", "no-cache")
	for k, vs := range t.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("%w: POST %s", ErrRouteNotFound, t.endpoint.Path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			t.logger.Warn("failed to read error response body", "status", resp.StatusCode, "error", readErr)
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(raw)}
	}

	return &classifiedBody{ctx: ctx, rc: resp.Body}, nil
}

// errorMessage extracts {"error": "..."} or {"detail": "..."} from a JSON
// error body, and otherwise returns the body text.
func errorMessage(raw []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(raw))
}

func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxErrorBody))
	_ = rc.Close()
}

// classifiedBody marks read failures that are not caused by the caller's
// context as ErrUnavailable, so an abrupt termination mid-stream is
// recognizable upstream.
type classifiedBody struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (b *classifiedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	if ctxErr := b.ctx.Err(); ctxErr != nil {
		return n, ctxErr
	}
	return n, fmt.Errorf("%w: stream interrupted: %w", ErrUnavailable, err)
}

func (b *classifiedBody) Close() error {
	return b.rc.Close()
}
