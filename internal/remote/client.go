// Package remote implements the HTTP client for the LexHub document
// indexing service. Every operation classifies failures into the shared
// error taxonomy and runs under the configured backoff policy, so callers
// see either a result, a typed terminal error, or a spent retry budget.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/model"
)

const (
	// DefaultBaseURL is the production LexHub endpoint.
	DefaultBaseURL = "https://lexhub.studiolex.it/api/v1"

	// DefaultTimeout is the per-attempt request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultPoolSize is the connection pool size for parallel uploads.
	DefaultPoolSize = 4

	// pageSize is the page limit for cursor-paginated list endpoints.
	pageSize = 100
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the service endpoint (default: DefaultBaseURL).
	BaseURL string

	// APIKey authenticates requests. An empty key is allowed here; the
	// service rejects unauthenticated calls and the failure surfaces as a
	// typed credential error.
	APIKey string

	// Timeout is the per-attempt request timeout (default: 60s).
	Timeout time.Duration

	// PoolSize is the connection pool size (default: 4).
	PoolSize int

	// Backoff is the retry schedule for remote calls. Zero value means the
	// default policy.
	Backoff lexerrors.BackoffPolicy

	// BreakerFailures is the consecutive-failure threshold before the
	// circuit opens. Zero disables the breaker.
	BreakerFailures int

	// BreakerReset is how long an open circuit waits before admitting a
	// probe request (default: 30s when the breaker is enabled).
	BreakerReset time.Duration
}

// Client talks to the LexHub service over HTTP.
type Client struct {
	cfg       Config
	client    *http.Client
	transport *http.Transport
	breaker   *lexerrors.CircuitBreaker
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client with the given configuration.
// Zero-value fields fall back to defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = lexerrors.DefaultBackoffPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Pool sized for parallel uploads. No client-level timeout: each
	// attempt carries its own context deadline so a slow indexing call
	// cannot be cut off by a global setting.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	var breaker *lexerrors.CircuitBreaker
	if cfg.BreakerFailures > 0 {
		reset := cfg.BreakerReset
		if reset == 0 {
			reset = 30 * time.Second
		}
		breaker = lexerrors.NewCircuitBreaker("lexhub",
			lexerrors.WithMaxFailures(cfg.BreakerFailures),
			lexerrors.WithResetTimeout(reset),
		)
	}

	return &Client{
		cfg:       cfg,
		client:    &http.Client{Transport: transport},
		transport: transport,
		breaker:   breaker,
		logger:    logger,
	}
}

// CreateStore creates a new document store and returns its server-side
// representation, including the canonical name assigned by the service.
func (c *Client) CreateStore(ctx context.Context, displayName, description string) (*model.Store, error) {
	payload, err := marshalJSON(apiCreateStoreRequest{
		DisplayName: displayName,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	return lexerrors.RetryWithResult(ctx, c.cfg.Backoff, func() (*model.Store, error) {
		body, err := c.doRequest(ctx, http.MethodPost, "/stores", "application/json", payload)
		if err != nil {
			return nil, err
		}
		store, err := decodeData[apiStore](body)
		if err != nil {
			return nil, err
		}
		return store.toModel(), nil
	})
}

// ListStores returns all stores, following cursor pagination. Each page
// fetch retries independently.
func (c *Client) ListStores(ctx context.Context) ([]model.Store, error) {
	var out []model.Store
	cursor := ""

	for {
		result, err := lexerrors.RetryWithResult(ctx, c.cfg.Backoff, func() (storePage, error) {
			return c.fetchStorePage(ctx, cursor)
		})
		if err != nil {
			return nil, err
		}

		for i := range result.stores {
			out = append(out, *result.stores[i].toModel())
		}
		if result.next == "" {
			return out, nil
		}
		cursor = result.next
	}
}

type storePage struct {
	stores []apiStore
	next   string
}

func (c *Client) fetchStorePage(ctx context.Context, cursor string) (storePage, error) {
	path := fmt.Sprintf("/stores?limit=%d", pageSize)
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}

	body, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return storePage{}, err
	}
	stores, next, err := decodePage[apiStore](body)
	if err != nil {
		return storePage{}, err
	}
	return storePage{stores: stores, next: next}, nil
}

// DeleteStore deletes a store and all its indexed documents. A missing
// store surfaces as a not-found error; callers that want idempotent
// semantics swallow it.
func (c *Client) DeleteStore(ctx context.Context, name string) error {
	return lexerrors.Retry(ctx, c.cfg.Backoff, func() error {
		path := "/stores/" + url.PathEscape(name) + "?force=true"
		_, err := c.doRequest(ctx, http.MethodDelete, path, "", nil)
		return err
	})
}

// UploadFile uploads a local file into a store. The file is read once
// before any remote call: local read failures never consume the retry
// budget or touch the network.
func (c *Client) UploadFile(ctx context.Context, storeName, path string, meta model.Metadata, chunking model.Chunking) (*model.FileRef, error) {
	body, contentType, err := buildUploadBody(path, meta, chunking)
	if err != nil {
		return nil, err
	}

	endpoint := "/stores/" + url.PathEscape(storeName) + "/documents"
	return lexerrors.RetryWithResult(ctx, c.cfg.Backoff, func() (*model.FileRef, error) {
		respBody, err := c.doRequest(ctx, http.MethodPost, endpoint, contentType, body)
		if err != nil {
			return nil, err
		}
		doc, err := decodeData[apiDocument](respBody)
		if err != nil {
			return nil, err
		}
		return doc.toModel(), nil
	})
}

// GetFile fetches the current state of an indexed document. Used to poll
// for indexing completion after upload.
func (c *Client) GetFile(ctx context.Context, storeName, fileName string) (*model.FileRef, error) {
	path := "/stores/" + url.PathEscape(storeName) + "/documents/" + url.PathEscape(fileName)
	return lexerrors.RetryWithResult(ctx, c.cfg.Backoff, func() (*model.FileRef, error) {
		body, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
		if err != nil {
			return nil, err
		}
		doc, err := decodeData[apiDocument](body)
		if err != nil {
			return nil, err
		}
		return doc.toModel(), nil
	})
}

// ListFiles returns all documents in a store, following cursor pagination.
func (c *Client) ListFiles(ctx context.Context, storeName string) ([]model.FileRef, error) {
	var out []model.FileRef
	cursor := ""
	base := "/stores/" + url.PathEscape(storeName) + "/documents"

	for {
		type docPage struct {
			docs []apiDocument
			next string
		}
		result, err := lexerrors.RetryWithResult(ctx, c.cfg.Backoff, func() (docPage, error) {
			path := fmt.Sprintf("%s?limit=%d", base, pageSize)
			if cursor != "" {
				path += "&cursor=" + url.QueryEscape(cursor)
			}
			body, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
			if err != nil {
				return docPage{}, err
			}
			docs, next, err := decodePage[apiDocument](body)
			if err != nil {
				return docPage{}, err
			}
			return docPage{docs: docs, next: next}, nil
		})
		if err != nil {
			return nil, err
		}

		for i := range result.docs {
			out = append(out, *result.docs[i].toModel())
		}
		if result.next == "" {
			return out, nil
		}
		cursor = result.next
	}
}

// Query runs a natural-language query against a store and returns the
// grounded answer with citations.
func (c *Client) Query(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	payload, err := marshalJSON(apiQueryRequest{
		Query:   req.QueryText,
		Filters: req.Filters,
	})
	if err != nil {
		return nil, err
	}

	path := "/stores/" + url.PathEscape(req.StoreName) + "/query"
	return lexerrors.RetryWithResult(ctx, c.cfg.Backoff, func() (*model.QueryResult, error) {
		body, err := c.doRequest(ctx, http.MethodPost, path, "application/json", payload)
		if err != nil {
			return nil, err
		}
		resp, err := decodeData[apiQueryResponse](body)
		if err != nil {
			return nil, err
		}
		return resp.toModel(), nil
	})
}

// CheckAuth verifies the API key with a minimal request.
func (c *Client) CheckAuth(ctx context.Context) error {
	return lexerrors.Retry(ctx, c.cfg.Backoff, func() error {
		_, err := c.doRequest(ctx, http.MethodGet, "/stores?limit=1", "", nil)
		return err
	})
}

// doRequest performs a single HTTP attempt: circuit breaker gate, round
// trip, status classification, breaker outcome recording. Retries happen
// one level up.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		// Fail fast without issuing or recording a request: a gated call
		// says nothing about service health.
		return nil, lexerrors.New(lexerrors.ErrCodeRemoteUnavailable, "remote service unavailable", nil).
			WithDetail("circuit", c.breaker.State().String())
	}

	start := time.Now()
	respBody, status, err := c.roundTrip(ctx, method, path, contentType, body)
	if err != nil {
		c.recordOutcome(err)
		c.logger.Debug("remote request failed",
			"method", method,
			"path", path,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, err
	}

	c.logger.Debug("remote request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds())

	if status >= 400 {
		lexErr := classifyStatus(status, respBody)
		c.recordOutcome(lexErr)
		return nil, lexErr
	}

	c.recordOutcome(nil)
	return respBody, nil
}

// recordOutcome feeds the circuit breaker. Only transient failures count
// against it: auth, validation, and not-found responses prove the service
// is reachable and healthy.
func (c *Client) recordOutcome(err error) {
	if c.breaker == nil {
		return
	}
	if err == nil {
		c.breaker.RecordSuccess()
		return
	}
	if lexerrors.KindOf(err) == lexerrors.KindTransient {
		c.breaker.RecordFailure()
	}
}

// roundTrip executes one HTTP request with a per-attempt timeout. The
// request runs in a goroutine so parent-context cancellation can abort
// immediately instead of waiting out a stalled connection.
func (c *Client) roundTrip(ctx context.Context, method, path, contentType string, body []byte) ([]byte, int, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, 0, lexerrors.New(lexerrors.ErrCodeInternal, "client is closed", nil)
	}
	c.mu.RUnlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, 0, lexerrors.New(lexerrors.ErrCodeInternal, "failed to create request", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	type result struct {
		body   []byte
		status int
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := c.httpClient().Do(req)
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{body: data, status: resp.StatusCode}
	}()

	select {
	case <-ctx.Done():
		// Force-close so the in-flight request aborts instead of holding
		// a pooled connection, then give the goroutine a moment to exit.
		c.ForceCloseConnections()
		select {
		case <-resultCh:
		case <-time.After(100 * time.Millisecond):
		}
		return nil, 0, ctx.Err()

	case res := <-resultCh:
		if res.err != nil {
			// The transport may notice parent cancellation before the
			// select does; keep cancellation raw either way.
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, classifyTransport(res.err)
		}
		return res.body, res.status, nil
	}
}

func (c *Client) httpClient() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Close releases idle connections. The client must not be used after Close.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.transport.CloseIdleConnections()
}

// ForceCloseConnections aggressively drops all connections by swapping the
// transport. Used on cancellation so a stalled request cannot pin its
// connection until the server responds.
func (c *Client) ForceCloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transport.CloseIdleConnections()
	c.transport = &http.Transport{
		MaxIdleConns:        c.cfg.PoolSize,
		MaxIdleConnsPerHost: c.cfg.PoolSize,
		MaxConnsPerHost:     c.cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
		DisableKeepAlives:   true,
	}
	c.client = &http.Client{Transport: c.transport}
}

// buildUploadBody assembles the multipart payload: the file itself plus
// metadata and chunking as JSON form fields.
func buildUploadBody(path string, meta model.Metadata, chunking model.Chunking) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, "", lexerrors.New(lexerrors.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", path), err).
				WithDetail("path", path)
		case os.IsPermission(err):
			return nil, "", lexerrors.New(lexerrors.ErrCodeFilePermission,
				fmt.Sprintf("permission denied: %s", path), err).
				WithDetail("path", path)
		default:
			return nil, "", lexerrors.New(lexerrors.ErrCodeUploadFailed,
				fmt.Sprintf("failed to open %s", path), err)
		}
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", lexerrors.New(lexerrors.ErrCodeUploadFailed, "failed to build upload body", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", lexerrors.New(lexerrors.ErrCodeUploadFailed,
			fmt.Sprintf("failed to read %s", path), err)
	}

	metaJSON, err := marshalJSON(meta)
	if err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("metadata", string(metaJSON)); err != nil {
		return nil, "", lexerrors.New(lexerrors.ErrCodeUploadFailed, "failed to build upload body", err)
	}

	if !chunking.IsZero() {
		chunkJSON, err := marshalJSON(chunking)
		if err != nil {
			return nil, "", err
		}
		if err := writer.WriteField("chunking", string(chunkJSON)); err != nil {
			return nil, "", lexerrors.New(lexerrors.ErrCodeUploadFailed, "failed to build upload body", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", lexerrors.New(lexerrors.ErrCodeUploadFailed, "failed to build upload body", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
