package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/ASHISH26940/marketing-ops-api/pkg/lenient"
	log "github.com/sirupsen/logrus"
)

// RecoveryHeader names the lenient decode rung used to repair a relayed body.
const RecoveryHeader = "X-Body-Recovery"

var ErrMethodNotAllowed = errors.New("method not allowed")

// Forwarded is an upstream reply ready to be relayed to the browser.
type Forwarded struct {
	Code        int
	ContentType string
	Body        []byte
	// Recovery is empty when Body is the upstream body verbatim.
	Recovery string
}

// Forwarder relays requests to registry endpoints without authentication,
// retry or transformation beyond the optional repair.
type Forwarder struct {
	client *Client
}

func NewForwarder(client *Client) *Forwarder {
	return &Forwarder{client: client}
}

// Forward sends body to the named endpoint with method and returns the reply.
// Endpoints not marked for the proxy are reported as unknown.
func (f *Forwarder) Forward(ctx context.Context, name, method string, query url.Values, body []byte) (*Forwarded, error) {
	ep, err := f.client.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !ep.Proxy {
		log.Warnf("Forward: refused passthrough to internal endpoint %s", name)
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	if !ep.Allows(method) {
		return nil, fmt.Errorf("%w: %s on %s", ErrMethodNotAllowed, method, name)
	}
	if len(body) == 0 {
		body = nil
	}

	raw, err := f.client.send(ctx, ep, method, query, body)
	if err != nil {
		return nil, err
	}

	out := &Forwarded{
		Code:        raw.Code,
		ContentType: raw.Header.Get("Content-Type"),
		Body:        raw.Body,
	}
	if out.ContentType == "" {
		out.ContentType = "application/json"
	}
	if !ep.Repair || len(raw.Body) == 0 || json.Valid(raw.Body) {
		return out, nil
	}

	res := lenient.Decode(raw.Body)
	repaired, err := json.Marshal(res.Value)
	if err != nil {
		log.Errorf("Forward: failed to encode repaired body from %s: %v", name, err)
		return out, nil
	}
	log.Warnf("Forward: repaired invalid JSON from %s (%s)", name, res.Outcome)
	out.Body = repaired
	out.ContentType = "application/json"
	out.Recovery = res.Outcome.String()
	return out, nil
}
