package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval    = 15 * time.Second
	DefaultPollMaxAttempts = 60
)

var (
	ErrPollTimeout      = errors.New("lead generation timed out")
	ErrIncompleteResult = errors.New("generation completed without sheet details")
	ErrGenerationFailed = errors.New("lead generation failed")
)

// Poller queries a status endpoint until the request reaches a terminal state.
type Poller struct {
	getter      Getter
	endpoint    string
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits between attempts; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller polls the named status endpoint through getter. Non-positive
// values fall back to 15s and 60 attempts.
func NewPoller(getter Getter, endpoint string, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	if endpoint == "" {
		endpoint = EndpointLeadsStatus
	}
	return &Poller{
		getter:      getter,
		endpoint:    endpoint,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		Sleep:       sleepContext,
	}
}

// PollUntilComplete returns the completed status body, ErrIncompleteResult
// when completion lacks sheet details, ErrGenerationFailed when upstream
// reports failure, ErrPollTimeout after MaxAttempts non-terminal replies, or
// ctx.Err() when the caller gives up. Transport errors use up an attempt.
func (p *Poller) PollUntilComplete(ctx context.Context, requestID string) (*StatusBody, error) {
	query := url.Values{"requestId": []string{requestID}}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := p.getter.Get(ctx, p.endpoint, query)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warnf("PollUntilComplete: attempt %d/%d for %s failed: %v", attempt, p.MaxAttempts, requestID, err)
		case resp.Kind == KindStatus:
			body := resp.Status
			if body.IsComplete() {
				if !body.HasSheet() {
					return nil, fmt.Errorf("%w (request %s)", ErrIncompleteResult, requestID)
				}
				log.Infof("PollUntilComplete: request %s complete after %d attempts", requestID, attempt)
				return body, nil
			}
			if body.IsFailed() {
				msg := body.Error
				if msg == "" {
					msg = body.Message
				}
				return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, msg)
			}
			log.Debugf("PollUntilComplete: request %s status %q (attempt %d/%d)", requestID, body.Status, attempt, p.MaxAttempts)
		default:
			log.Debugf("PollUntilComplete: request %s returned %s-shaped reply (attempt %d/%d)", requestID, resp.Kind, attempt, p.MaxAttempts)
		}

		if attempt < p.MaxAttempts {
			if err := p.Sleep(ctx, p.Interval); err != nil {
				return nil, err
			}
		}
	}

	log.Warnf("PollUntilComplete: request %s gave up after %d attempts", requestID, p.MaxAttempts)
	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, p.MaxAttempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
