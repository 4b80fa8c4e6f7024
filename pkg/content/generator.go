package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/lenient"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	log "github.com/sirupsen/logrus"
)

// Prompt is what the user asks a generator for.
type Prompt struct {
	Topic    string                 `json:"topic"`
	Audience string                 `json:"audience,omitempty"`
	Tone     string                 `json:"tone,omitempty"`
	Keywords []string               `json:"keywords,omitempty"`
	Notes    string                 `json:"notes,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// Draft is generated content not yet saved.
type Draft struct {
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Generator drafts content of a kind. WebhookGenerator and llm.Service implement it.
type Generator interface {
	Generate(ctx context.Context, kind Kind, prompt Prompt) (*Draft, error)
}

// WebhookGenerator drafts content through the kind's automation webhook.
type WebhookGenerator struct {
	poster webhook.Poster
}

func NewWebhookGenerator(poster webhook.Poster) *WebhookGenerator {
	return &WebhookGenerator{poster: poster}
}

func (g *WebhookGenerator) Generate(ctx context.Context, kind Kind, prompt Prompt) (*Draft, error) {
	endpoint := kind.Endpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoGenerator, kind)
	}

	resp, err := g.poster.Post(ctx, endpoint, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", kind, err)
	}

	draft := &Draft{Title: prompt.Topic, Metadata: map[string]interface{}{"source": endpoint}}
	if resp.Outcome != lenient.OutcomeParsed && resp.Kind != webhook.KindText {
		draft.Metadata["recovery"] = resp.Outcome.String()
	}

	switch resp.Kind {
	case webhook.KindStatus:
		body := resp.Status
		if body.Title != "" {
			draft.Title = body.Title
		}
		draft.Content = body.Content
		if draft.Content == "" {
			draft.Content = body.Message
		}
		if draft.Content == "" {
			// no recognised content field: keep the whole object
			if b, err := json.Marshal(body.Fields); err == nil {
				draft.Content = string(b)
			}
		}
	case webhook.KindRows:
		lines := make([]string, 0, len(resp.Rows)+len(resp.Items))
		for _, row := range resp.Rows {
			lines = append(lines, strings.Join(row, " | "))
		}
		for _, item := range resp.Items {
			if b, err := json.Marshal(item); err == nil {
				lines = append(lines, string(b))
			}
		}
		draft.Content = strings.Join(lines, "\n")
	case webhook.KindText:
		if !resp.IsAccepted() {
			draft.Content = strings.TrimSpace(resp.Text)
		}
	}

	if strings.TrimSpace(draft.Content) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyGenerate, kind)
	}
	return draft, nil
}

// Generate drafts content with gen and saves it through Add.
func (s *Store) Generate(ctx context.Context, gen Generator, prompt Prompt) (*db.ContentItem, error) {
	draft, err := gen.Generate(ctx, s.kind, prompt)
	if err != nil {
		log.Errorf("Generate: %s draft for user %s failed: %v", s.kind, s.userID, err)
		return nil, err
	}
	return s.Add(ctx, ItemFromDraft(draft))
}

// ItemFromDraft converts a draft into an unsaved item.
func ItemFromDraft(d *Draft) db.ContentItem {
	item := db.ContentItem{Title: d.Title, Content: d.Content}
	if len(d.Metadata) > 0 {
		if b, err := json.Marshal(d.Metadata); err == nil {
			item.Metadata = b
		}
	}
	return item
}
