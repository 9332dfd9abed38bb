// Package transport runs requests against the attendance API with a fixed
// attempt budget and exponential backoff.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

const maxBodyBytes = 4 << 20

// redactedFields never reach the logs with their values.
var redactedFields = map[string]bool{
	"password": true,
	"userName": true,
	"UUID":     true,
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	// BackoffBase is multiplied by 2^attempt between attempts.
	BackoffBase time.Duration
	Headers     http.Header
}

// DefaultHeaders identify the caller as the vendor's mobile web shell.
func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 19_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Html5Plus/1.0")
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("X-Requested-With", "XMLHttpRequest")
	return h
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Second,
		Headers:     DefaultHeaders(),
	}
}

type Request struct {
	Method string
	Path   string
	Form   url.Values
	Query  url.Values
	Header http.Header
	// Sensitive keeps the response body out of the logs.
	Sensitive bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Executor)

// WithHTTPClient replaces the executor's client. The caller owns its timeout
// and cookie jar.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// Executor sends every request through one http.Client so cookies and
// keep-alive connections are shared across the session.
type Executor struct {
	cfg    Config
	base   *url.URL
	client *http.Client
	sleep  Sleeper
	log    zerolog.Logger
}

func NewExecutor(cfg Config, log zerolog.Logger, opts ...Option) (*Executor, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase < 0 {
		cfg.BackoffBase = 0
	}
	if cfg.Headers == nil {
		cfg.Headers = DefaultHeaders()
	}

	e := &Executor{
		cfg:   cfg,
		base:  base,
		sleep: sleepContext,
		log:   log.With().Str("component", "transport").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		e.client = &http.Client{Timeout: cfg.Timeout, Jar: jar}
	}
	return e, nil
}

// Do sends req, retrying transport failures and non-2xx responses until the
// attempt budget is spent. The final failure is returned as *TransportError.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	target := e.resolve(req)
	log := e.log.With().
		Str("request_id", ksuid.New().String()).
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()

	log.Debug().
		Str("url", target).
		Str("form", redact(req.Form)).
		Msg("request")

	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		resp, err := e.once(ctx, req, target)
		if err == nil {
			log.Info().
				Int("status", resp.StatusCode).
				Int("bytes", len(resp.Body)).
				Msg("response")
			if !req.Sensitive {
				log.Debug().Bytes("body", truncate(resp.Body, 512)).Msg("response body")
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, &TransportError{Method: req.Method, Path: req.Path, Attempts: attempt + 1, Err: ctx.Err()}
		}
		if attempt == e.cfg.MaxAttempts-1 {
			break
		}

		backoff := e.backoff(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", e.cfg.MaxAttempts).
			Dur("backoff", backoff).
			Msg("request failed, retrying")
		if err := e.sleep(ctx, backoff); err != nil {
			return nil, &TransportError{Method: req.Method, Path: req.Path, Attempts: attempt + 1, Err: err}
		}
	}

	log.Error().Err(lastErr).Int("attempts", e.cfg.MaxAttempts).Msg("request failed")
	return nil, &TransportError{Method: req.Method, Path: req.Path, Attempts: e.cfg.MaxAttempts, Err: lastErr}
}

func (e *Executor) once(ctx context.Context, req Request, target string) (*Response, error) {
	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range e.cfg.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(truncate(data, 256))}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (e *Executor) resolve(req Request) string {
	u := *e.base
	u.Path = e.base.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String()
}

// backoff returns BackoffBase * 2^attempt for the zero-based attempt index.
func (e *Executor) backoff(attempt int) time.Duration {
	return time.Duration(float64(e.cfg.BackoffBase) * math.Pow(2, float64(attempt)))
}

// Close drops idle keep-alive connections.
func (e *Executor) Close() {
	e.client.CloseIdleConnections()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func redact(form url.Values) string {
	if len(form) == 0 {
		return ""
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := strings.Join(form[k], ",")
		if redactedFields[k] {
			v = "***"
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "&")
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
