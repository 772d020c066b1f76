package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrPermanent marks a transport failure that retrying cannot fix.
var ErrPermanent = errors.New("queue: permanent transport failure")

// Transport delivers a mutation to the server. A nil error is an
// acknowledgement. Errors wrapping ErrPermanent mark the mutation stuck,
// every other error is treated as transient.
type Transport interface {
	Send(ctx context.Context, m Mutation) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, m Mutation) error

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, m Mutation) error {
	return f(ctx, m)
}

// TokenSource supplies the bearer credential for each request.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// HTTPTransport replays mutations against the profile sync HTTP API.
type HTTPTransport struct {
	BaseURL string
	Token   TokenSource
	Client  *http.Client
}

// NewHTTPTransport builds a transport for baseURL.
func NewHTTPTransport(baseURL string, token TokenSource) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("queue: server responded %d", e.StatusCode)
	}
	return fmt.Sprintf("queue: server responded %d: %s", e.StatusCode, e.Body)
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, m Mutation) error {
	path, body, err := requestFor(m)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", m.ID.String())
	if t.Token != nil {
		token, err := t.Token(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	if transientStatus(resp.StatusCode) {
		return statusErr
	}
	return fmt.Errorf("%w: %w", ErrPermanent, statusErr)
}

func requestFor(m Mutation) (string, map[string]any, error) {
	switch m.Kind {
	case KindSync:
		m.foldProfiles()
		return "/api/profiles", map[string]any{
			"profiles": m.Profiles,
			"fullSync": m.FullSync,
		}, nil
	case KindSave:
		return "/api/profile", m.Payload, nil
	default:
		return "", nil, ErrUnknownKind
	}
}

func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return code != http.StatusNotImplemented
	case code == http.StatusUnauthorized:
		// the TokenSource may refresh an expired token
		return true
	default:
		return false
	}
}
