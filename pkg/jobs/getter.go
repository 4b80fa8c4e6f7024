package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
)

// StatusGetter lets a webhook.Poller read job statuses. A terminal status
// delivered by callback wins; otherwise the upstream status endpoint is
// asked when Upstream is set, else the job reads as still processing.
type StatusGetter struct {
	Store    Store
	Upstream webhook.Getter
}

func (g *StatusGetter) Get(ctx context.Context, name string, query url.Values) (*webhook.Response, error) {
	requestID := query.Get("requestId")

	status, err := g.Store.Get(ctx, requestID)
	switch {
	case err == nil && status.Terminal():
		return statusResponse(status)
	case err != nil && !errors.Is(err, ErrJobNotFound):
		return nil, err
	}

	if g.Upstream != nil {
		return g.Upstream.Get(ctx, name, query)
	}
	if status == nil {
		status = &Status{RequestID: requestID, State: StateProcessing}
	}
	return statusResponse(status)
}

func statusResponse(s *Status) (*webhook.Response, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return webhook.ParseResponse(200, body), nil
}
