// ABOUTME: Bitrix24 REST webhook client with request pacing
// ABOUTME: Every call is a JSON POST to <webhook><method>.json
package bitrix

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

	"golang.org/x/time/rate"

	"github.com/harperreed/crmpulse/logging"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRate is the sustained requests per second allowed per webhook.
	DefaultRate = 2.0
)

// UserMessage is shown to the user when an import fails.
const UserMessage = "Не удалось загрузить данные из Bitrix24. Проверьте вебхук и повторите попытку."

var (
	// ErrTransport marks network failures and non-OK HTTP responses.
	ErrTransport = errors.New("bitrix transport error")
	// ErrMissingResult marks a response without a result field.
	ErrMissingResult = errors.New("bitrix response has no result")
)

// APIError is an error reported by the API in the response body.
type APIError struct {
	Method      string
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", e.Method, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Code, e.Description)
}

// Response is the envelope of every API call.
type Response struct {
	Result json.RawMessage `json:"result"`
	Next   *int            `json:"next,omitempty"`
	Total  int             `json:"total,omitempty"`

	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Client calls one Bitrix24 webhook.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit sets the sustained request rate. Zero or less disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a client for a webhook URL such as
// https://example.bitrix24.ru/rest/1/secret/.
func NewClient(webhook string, opts ...Option) *Client {
	if !strings.HasSuffix(webhook, "/") {
		webhook += "/"
	}
	c := &Client{
		baseURL: webhook,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes a REST method with a JSON body.
func (c *Client) Call(ctx context.Context, method string, params any) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}

	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method+".json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logging.Component("bitrix").Debug("request", "method", method)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read body: %w", ErrTransport, method, err)
	}

	var out Response
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && out.Error != "" {
			return nil, fmt.Errorf("%w: %s returned %d: %w", ErrTransport, method, resp.StatusCode,
				&APIError{Method: method, Code: out.Error, Description: out.ErrorDescription})
		}
		return nil, fmt.Errorf("%w: %s returned %d", ErrTransport, method, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s: invalid JSON: %w", ErrTransport, method, decodeErr)
	}
	if out.Error != "" {
		return nil, &APIError{Method: method, Code: out.Error, Description: out.ErrorDescription}
	}
	if len(out.Result) == 0 || string(out.Result) == "null" {
		return nil, fmt.Errorf("%w: %s", ErrMissingResult, method)
	}
	return &out, nil
}
