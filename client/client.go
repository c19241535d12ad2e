package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quantumauth-io/rulesign-go/headers"
	"github.com/quantumauth-io/rulesign-go/log"
	"github.com/quantumauth-io/rulesign-go/rules"
	"github.com/quantumauth-io/rulesign-go/session"
	"github.com/quantumauth-io/rulesign-go/signing"
)

const (
	DefaultTimeout = 30 * time.Second

	maxResponseSize = 16 << 20
)

var (
	// ErrAuthenticatedCall marks a signed request the platform did not accept.
	ErrAuthenticatedCall = errors.New("client: authenticated call failed")
	ErrInvalidBody       = errors.New("client: response body is not JSON")
)

// StatusError is a non-200 reply. RequestID matches the requestID field of
// the debug log lines for the same call.
type StatusError struct {
	Code      int
	Body      string
	RequestID string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: http status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrAuthenticatedCall }

// TransportError is a signed request that got no usable reply: the round
// trip or the body read failed. Err is kept intact so callers can match
// context.DeadlineExceeded, *url.Error and the like.
type TransportError struct {
	Path      string
	RequestID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrAuthenticatedCall }

// RulesSource supplies the rules for each call. *rules.Fetcher satisfies it.
type RulesSource interface {
	Fetch(ctx context.Context) (*rules.Rules, error)
}

type Config struct {
	// BaseURL is scheme and host, e.g. https://example.com. Paths are appended.
	BaseURL        string
	Timeout        time.Duration
	AcceptLanguage string
	HTTPClient     *http.Client
	// Now overrides the signing clock.
	Now func() time.Time
}

type Client struct {
	baseURL        string
	http           *http.Client
	acceptLanguage string
	now            func() time.Time

	rules   RulesSource
	session session.Session
}

func New(cfg Config, src RulesSource, sess session.Session) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	if src == nil {
		return nil, errors.New("client: rules source is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           httpClient,
		acceptLanguage: cfg.AcceptLanguage,
		now:            now,
		rules:          src,
		session:        sess,
	}, nil
}

// Headers fetches fresh rules and returns the signed header set for path
// without sending anything.
func (c *Client) Headers(ctx context.Context, path string) (headers.Set, error) {
	r, err := c.rules.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return c.sign(r, path)
}

func (c *Client) sign(r *rules.Rules, path string) (headers.Set, error) {
	sig, err := signing.DeriveAt(r, signing.RequestContext{
		Path:      path,
		UserID:    c.session.UserID(),
		Timestamp: c.now(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "sign %s", path)
	}

	return headers.Assemble(headers.Input{
		AppToken:       r.AppToken,
		Signature:      sig,
		Session:        c.session,
		AcceptLanguage: c.acceptLanguage,
	}), nil
}

// Get issues a signed GET for path and returns the JSON body verbatim.
// Rule failures wrap rules.ErrFetch; a non-200 reply is a *StatusError and a
// failed round trip a *TransportError. Both match ErrAuthenticatedCall.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, errors.Wrapf(signing.ErrInvalidPath, "%q", path)
	}

	set, err := c.Headers(ctx, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "client: build request")
	}
	set.Apply(req.Header)

	requestID := uuid.NewString()
	log.Debug("sending signed request", "requestID", requestID, "path", path, "time", set[headers.HeaderTime])

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Path: path, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Path: path, RequestID: requestID, Err: errors.Wrap(err, "read body")}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body), RequestID: requestID}
	}
	if !json.Valid(body) {
		return nil, errors.Wrapf(ErrInvalidBody, "%s", path)
	}

	log.Debug("signed request succeeded", "requestID", requestID, "path", path, "bytes", len(body))
	return json.RawMessage(body), nil
}

// Call is Get for callers that only want a payload. Failures are logged
// and reported as a nil result.
func (c *Client) Call(ctx context.Context, path string) json.RawMessage {
	body, err := c.Get(ctx, path)
	if err == nil {
		return body
	}

	var (
		se *StatusError
		te *TransportError
	)
	switch {
	case errors.As(err, &se):
		log.Error("authenticated call rejected", "path", path, "requestID", se.RequestID, "status", se.Code, "body", se.Body)
	case errors.As(err, &te):
		log.Error("authenticated call failed", "path", path, "requestID", te.RequestID, "error", te.Err)
	case errors.Is(err, rules.ErrFetch):
		log.Error("failed to fetch signing rules", "path", path, "error", err)
	default:
		log.Error("authenticated call failed", "path", path, "error", err)
	}
	return nil
}
