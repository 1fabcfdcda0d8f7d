package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"fsanano/storefront/internal/model"

	"github.com/andybalholm/brotli"
)

const (
	userIDHeader         = "X-User-ID"
	idempotencyKeyHeader = "Idempotency-Key"
)

type Config struct {
	BaseURL  string
	UserID   model.ID
	Timeout  time.Duration
	CacheTTL time.Duration
}

type cachedProducts struct {
	items  []model.Product
	expiry time.Time
}

// Client talks to the shop REST API as a single user.
type Client struct {
	client *http.Client
	config Config
	now    func() time.Time

	cacheMu  sync.RWMutex
	products *cachedProducts
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		client: &http.Client{
			Transport: &Transport{
				UserID: cfg.UserID,
				Base:   http.DefaultTransport,
			},
			Timeout: cfg.Timeout,
		},
		config: cfg,
		now:    time.Now,
	}
}

// Transport adds the caller identity, content negotiation and the
// idempotency key carried by the request context.
type Transport struct {
	UserID model.ID
	Base   http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.UserID != 0 {
		req.Header.Set(userIDHeader, t.UserID.String())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")
	if key := IdempotencyKey(req.Context()); key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	return t.Base.RoundTrip(req)
}

type idempotencyKey struct{}

// WithIdempotencyKey makes every mutating request sent with ctx carry key.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}

// envelope is the part of every response body shared by all endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Method: req.Method, Path: req.URL.Path, Err: err}
	}

	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &readCloserWrapper{Reader: brotli.NewReader(resp.Body), Closer: resp.Body}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: req.Method, Path: req.URL.Path, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &ServiceError{StatusCode: resp.StatusCode, Message: "malformed response body", Err: decodeErr}
	}
	if !env.Success {
		return &ServiceError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &ServiceError{StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
		}
	}
	return nil
}

type readCloserWrapper struct {
	io.Reader
	io.Closer
}

func (r *readCloserWrapper) Read(p []byte) (n int, err error) {
	return r.Reader.Read(p)
}

func (r *readCloserWrapper) Close() error {
	return r.Closer.Close()
}

// IsStatus reports whether err is a ServiceError with the given status code.
func IsStatus(err error, status int) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.StatusCode == status
}
