package webhook

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

// scriptedGetter replays canned replies; the last one repeats forever.
type scriptedGetter struct {
	replies []func() (*Response, error)
	calls   int
	queries []url.Values
}

func (g *scriptedGetter) Get(ctx context.Context, name string, query url.Values) (*Response, error) {
	g.queries = append(g.queries, query)
	i := g.calls
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	g.calls++
	return g.replies[i]()
}

func statusReply(body string) func() (*Response, error) {
	return func() (*Response, error) { return ParseResponse(200, []byte(body)), nil }
}

func newTestPoller(g Getter) (*Poller, *int) {
	p := NewPoller(g, "", 15*time.Second, 60)
	sleeps := 0
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return ctx.Err()
	}
	return p, &sleeps
}

func TestPollStopsAfterExactlyMaxAttempts(t *testing.T) {
	g := &scriptedGetter{replies: []func() (*Response, error){statusReply(`{"status":"processing"}`)}}
	p, sleeps := newTestPoller(g)

	_, err := p.PollUntilComplete(context.Background(), "req-1")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if g.calls != 60 {
		t.Errorf("calls = %d, want 60", g.calls)
	}
	if *sleeps != 59 {
		t.Errorf("sleeps = %d, want 59", *sleeps)
	}
	if g.queries[0].Get("requestId") != "req-1" {
		t.Errorf("query = %v", g.queries[0])
	}
}

func TestPollCompletes(t *testing.T) {
	g := &scriptedGetter{replies: []func() (*Response, error){
		statusReply(`{"status":"processing"}`),
		func() (*Response, error) { return nil, errors.New("connection reset") },
		statusReply(`{"status":"complete","SheetID":"s9","SheetLink":"https://sheet/s9"}`),
	}}
	p, _ := newTestPoller(g)

	body, err := p.PollUntilComplete(context.Background(), "req-2")
	if err != nil {
		t.Fatalf("PollUntilComplete: %v", err)
	}
	if body.SheetID != "s9" || g.calls != 3 {
		t.Errorf("body = %+v after %d calls", body, g.calls)
	}
}

func TestPollTerminalErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"complete without sheet", `{"status":"complete","SheetID":"s1"}`, ErrIncompleteResult},
		{"failed upstream", `{"status":"failed","message":"no leads found"}`, ErrGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &scriptedGetter{replies: []func() (*Response, error){statusReply(tt.body)}}
			p, _ := newTestPoller(g)
			if _, err := p.PollUntilComplete(context.Background(), "r"); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if g.calls != 1 {
				t.Errorf("calls = %d, want 1", g.calls)
			}
		})
	}
}

func TestPollHonoursCancellation(t *testing.T) {
	g := &scriptedGetter{replies: []func() (*Response, error){statusReply(`{"status":"processing"}`)}}
	p, _ := newTestPoller(g)
	ctx, cancel := context.WithCancel(context.Background())
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := p.PollUntilComplete(ctx, "r"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if g.calls != 1 {
		t.Errorf("calls = %d, want 1", g.calls)
	}
}
