package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
)

const maxResponseBytes = 16 << 20

// Client posts JSON to one remote service and classifies the outcome.
type Client struct {
	baseURL string
	http    *http.Client
	headers map[string]string
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Per-call deadlines come
// from the context, so the client needs no timeout of its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		headers: map[string]string{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client posts to.
func (c *Client) BaseURL() string { return c.baseURL }

// PostJSON sends body to baseURL+path and decodes a 2xx answer into out (which
// may be nil or a *json.RawMessage). Failures come back as *TransportError or
// *StatusError.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	url := c.baseURL + path
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	ref := common.ReferenceIDFromContext(ctx)
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		c.logger.Error("remote.http.encode_error", "req_id", reqID, "error", err)
		return fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		c.logger.Error("remote.http.build_request_error", "req_id", reqID, "error", err)
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if ref != "" {
		req.Header.Set("X-Reference-ID", ref)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("remote.http.request",
		"req_id", reqID,
		"reference_id", ref,
		"url", url,
		"content_length", len(bs),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote.http.send_error", "req_id", reqID, "url", url, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return &TransportError{URL: url, Err: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("remote.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	c.logger.Info("remote.http.response",
		"req_id", reqID,
		"reference_id", ref,
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case transientStatuses[resp.StatusCode]:
		return &TransportError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case unprocessableStatuses[resp.StatusCode]:
		return &StatusError{URL: url, Status: resp.StatusCode, Body: snippet(raw), Err: common.ErrUnprocessable}
	case resp.StatusCode/100 != 2:
		return &StatusError{URL: url, Status: resp.StatusCode, Body: snippet(raw)}
	}
	if readErr != nil {
		return &TransportError{URL: url, Err: fmt.Errorf("read body: %w", readErr)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &StatusError{URL: url, Status: resp.StatusCode, Body: snippet(raw),
			Err: fmt.Errorf("%w: decode response: %v", common.ErrUnprocessable, err)}
	}
	return nil
}

func snippet(raw []byte) string {
	const n = 512
	if len(raw) > n {
		return string(raw[:n])
	}
	return string(raw)
}

// DocumentPayload is the JSON body sent to recognition services.
type DocumentPayload struct {
	ReferenceID  string                 `json:"referenceId"`
	ContentType  string                 `json:"contentType"`
	DocumentType constants.DocumentType `json:"documentType"`
	Content      []byte                 `json:"content"` // base64 on the wire
}

func NewDocumentPayload(doc entity.RawDocument) DocumentPayload {
	return DocumentPayload{
		ReferenceID:  doc.ReferenceID,
		ContentType:  doc.MIME(),
		DocumentType: doc.Type,
		Content:      doc.Content,
	}
}
