package webhook

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// EnrichmentKind selects which enrichment scenario runs over a lead sheet.
type EnrichmentKind string

const (
	EnrichContacts  EnrichmentKind = "contacts"
	EnrichCompanies EnrichmentKind = "companies"
	EnrichSocials   EnrichmentKind = "socials"
)

// ParseEnrichmentKind defaults an empty value to contacts.
func ParseEnrichmentKind(s string) (EnrichmentKind, error) {
	switch k := EnrichmentKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return EnrichContacts, nil
	case EnrichContacts, EnrichCompanies, EnrichSocials:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

func (k EnrichmentKind) Endpoint() string {
	switch k {
	case EnrichCompanies:
		return EndpointEnrichCompanies
	case EnrichSocials:
		return EndpointEnrichSocials
	default:
		return EndpointEnrichContacts
	}
}

// EnrichRequest is posted to the enrichment scenario. CallbackURL is where
// the scenario reports completion.
type EnrichRequest struct {
	SheetID     string `json:"sheetId"`
	HistoryID   string `json:"historyId"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Enricher starts enrichment runs. It does not track them; completion
// arrives through the enrichment callback.
type Enricher struct {
	poster Poster
}

func NewEnricher(poster Poster) *Enricher {
	return &Enricher{poster: poster}
}

// Trigger returns nil once the scenario has accepted the run.
func (e *Enricher) Trigger(ctx context.Context, kind EnrichmentKind, req EnrichRequest) error {
	if strings.TrimSpace(req.SheetID) == "" {
		return fmt.Errorf("%w: sheet id is required", ErrInvalidForm)
	}

	resp, err := e.poster.Post(ctx, kind.Endpoint(), req)
	if err != nil {
		log.Errorf("Trigger: %s enrichment for sheet %s failed: %v", kind, req.SheetID, err)
		return fmt.Errorf("failed to start %s enrichment: %w", kind, err)
	}
	if resp.Kind == KindStatus && resp.Status.IsFailed() {
		msg := resp.Status.Error
		if msg == "" {
			msg = resp.Status.Message
		}
		return fmt.Errorf("%w: %s enrichment rejected: %s", ErrGenerationFailed, kind, msg)
	}
	log.Infof("Trigger: %s enrichment started for history entry %s", kind, req.HistoryID)
	return nil
}
