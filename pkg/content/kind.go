// Package content manages the user's generated marketing content. Six content
// kinds share one table layout and one Store implementation.
package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
)

var (
	ErrUnknownKind   = errors.New("unknown content kind")
	ErrItemNotFound  = errors.New("content item not found")
	ErrNotUpdatable  = errors.New("content kind does not support updates")
	ErrNoGenerator   = errors.New("content kind has no generation webhook")
	ErrEmptyGenerate = errors.New("generation returned no content")
)

// Kind names a content collection as it appears in URLs.
type Kind string

const (
	KindArticles    Kind = "articles"
	KindIdeas       Kind = "ideas"
	KindOutlines    Kind = "outlines"
	KindNewsletters Kind = "newsletters"
	KindSocialPosts Kind = "social-posts"
	KindBrochures   Kind = "brochures"
)

type kindInfo struct {
	table     string
	endpoint  string
	updatable bool
}

var kinds = map[Kind]kindInfo{
	KindArticles:    {table: "articles", updatable: true},
	KindIdeas:       {table: "article_ideas", endpoint: webhook.EndpointArticleThemes},
	KindOutlines:    {table: "article_outlines", endpoint: webhook.EndpointArticleOutline, updatable: true},
	KindNewsletters: {table: "newsletter_outlines", endpoint: webhook.EndpointNewsletter, updatable: true},
	KindSocialPosts: {table: "social_posts", endpoint: webhook.EndpointSocialPost, updatable: true},
	KindBrochures:   {table: "brochures", endpoint: webhook.EndpointBrochureContent, updatable: true},
}

// AllKinds lists every kind in a stable order.
func AllKinds() []Kind {
	return []Kind{KindArticles, KindIdeas, KindOutlines, KindNewsletters, KindSocialPosts, KindBrochures}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Table is the database table backing the kind.
func (k Kind) Table() string { return kinds[k].table }

// Endpoint is the registry name of the kind's generation webhook, or "".
func (k Kind) Endpoint() string { return kinds[k].endpoint }

// Updatable reports whether items of the kind may be edited in place.
func (k Kind) Updatable() bool { return kinds[k].updatable }
