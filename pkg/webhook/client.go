package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/lenient"
	log "github.com/sirupsen/logrus"
)

// maxBodyBytes caps how much of an upstream reply is read.
const maxBodyBytes = 10 << 20

// StatusError is returned for a non-2xx upstream reply.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook %s returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Poster sends a JSON payload to a named endpoint.
type Poster interface {
	Post(ctx context.Context, name string, payload interface{}) (*Response, error)
}

// Getter queries a named endpoint.
type Getter interface {
	Get(ctx context.Context, name string, query url.Values) (*Response, error)
}

// Client resolves endpoint names through a Registry and performs the calls.
type Client struct {
	registry   *Registry
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client whose calls time out after timeout unless the
// endpoint sets its own.
func NewClient(registry *Registry, timeout time.Duration) *Client {
	return &Client{
		registry:   registry,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Registry returns the registry the client resolves names against.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Post marshals payload and POSTs it. A non-2xx reply returns the parsed
// Response together with a *StatusError.
func (c *Client) Post(ctx context.Context, name string, payload interface{}) (*Response, error) {
	ep, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.call(ctx, ep, http.MethodPost, nil, body)
}

// Get issues a GET with query appended to the endpoint URL.
func (c *Client) Get(ctx context.Context, name string, query url.Values) (*Response, error) {
	ep, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, ep, http.MethodGet, query, nil)
}

func (c *Client) call(ctx context.Context, ep Endpoint, method string, query url.Values, body []byte) (*Response, error) {
	raw, err := c.send(ctx, ep, method, query, body)
	if err != nil {
		return nil, err
	}
	resp := ParseResponse(raw.Code, raw.Body)
	if raw.Code < 200 || raw.Code > 299 {
		return resp, &StatusError{Endpoint: ep.Name, Code: raw.Code, Body: truncate(string(raw.Body), 256)}
	}
	if resp.Kind != KindText && resp.Outcome != lenient.OutcomeParsed {
		log.Warnf("webhook %s: reply recovered leniently (%s)", ep.Name, resp.Outcome)
	}
	return resp, nil
}

// rawReply is an upstream reply before classification.
type rawReply struct {
	Code   int
	Header http.Header
	Body   []byte
}

func (c *Client) send(ctx context.Context, ep Endpoint, method string, query url.Values, body []byte) (*rawReply, error) {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := ep.URL
	if len(query) > 0 {
		u, err := url.Parse(ep.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid url for webhook %s: %w", ep.Name, err)
		}
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("webhook %s: %s failed after %s: %v", ep.Name, method, time.Since(start), err)
		return nil, fmt.Errorf("failed to execute request to %s: %w", ep.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", ep.Name, err)
	}
	log.Debugf("webhook %s: %s -> %d (%d bytes, %s)", ep.Name, method, resp.StatusCode, len(data), time.Since(start))
	return &rawReply{Code: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
