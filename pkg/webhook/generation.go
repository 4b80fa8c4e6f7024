package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidForm        = errors.New("invalid lead form")
	ErrUnexpectedResponse = errors.New("unexpected response from lead generation service")
	ErrUnknownVariant     = errors.New("unknown generation variant")
)

// Variant selects the lead generation scenario.
type Variant string

const (
	VariantBroad  Variant = "broad"
	VariantSniper Variant = "sniper"
)

// ParseVariant defaults an empty value to broad.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case "", VariantBroad:
		return VariantBroad, nil
	case VariantSniper:
		return VariantSniper, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// Endpoint is the registry name the variant posts to.
func (v Variant) Endpoint() string {
	if v == VariantSniper {
		return EndpointLeadsSniper
	}
	return EndpointLeadsBroad
}

type Location struct {
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
}

// LeadForm is the lead generation request as the dashboard submits it.
type LeadForm struct {
	ProductName          string   `json:"productName"`
	ProductDescription   string   `json:"productDescription"`
	Location             Location `json:"location"`
	Industries           []string `json:"industries"`
	CompanySize          []string `json:"companySize"`
	AdditionalIndustries string   `json:"additionalIndustries,omitempty"`
	RequestID            string   `json:"requestId,omitempty"`
	CallbackURL          string   `json:"callbackUrl,omitempty"`
}

// Validate performs presence checks only.
func (f *LeadForm) Validate() error {
	var missing []string
	if strings.TrimSpace(f.ProductName) == "" {
		missing = append(missing, "productName")
	}
	if strings.TrimSpace(f.Location.Country) == "" {
		missing = append(missing, "location.country")
	}
	hasIndustry := strings.TrimSpace(f.AdditionalIndustries) != ""
	for _, ind := range f.Industries {
		if strings.TrimSpace(ind) != "" {
			hasIndustry = true
			break
		}
	}
	if !hasIndustry {
		missing = append(missing, "industries")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidForm, strings.Join(missing, ", "))
	}
	return nil
}

// GenerationResult is what a submission resolved to. Pending results carry a
// RequestID and are completed later by polling or by callback.
type GenerationResult struct {
	Success    bool   `json:"success"`
	Pending    bool   `json:"pending,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	SheetID    string `json:"sheetId,omitempty"`
	SheetLink  string `json:"sheetLink,omitempty"`
	LeadsCount int    `json:"leadsCount,omitempty"`
	Error      string `json:"error,omitempty"`
}

// GenerationService submits lead forms to the generation webhooks.
type GenerationService struct {
	poster Poster
}

func NewGenerationService(poster Poster) *GenerationService {
	return &GenerationService{poster: poster}
}

// Generate issues exactly one POST. Failures are reported in the result,
// never as a Go error, so callers always have something to record.
func (s *GenerationService) Generate(ctx context.Context, form LeadForm, variant Variant) GenerationResult {
	if err := form.Validate(); err != nil {
		return GenerationResult{Success: false, Error: err.Error()}
	}
	if form.RequestID == "" {
		form.RequestID = uuid.NewString()
	}

	resp, err := s.poster.Post(ctx, variant.Endpoint(), form)
	if err != nil {
		log.Errorf("Generate: %s request %s failed: %v", variant, form.RequestID, err)
		return GenerationResult{Success: false, RequestID: form.RequestID, Error: fmt.Sprintf("lead generation request failed: %v", err)}
	}
	return resultFromResponse(resp, form.RequestID)
}

func resultFromResponse(resp *Response, requestID string) GenerationResult {
	switch resp.Kind {
	case KindStatus:
		body := resp.Status
		if body.RequestID != "" {
			requestID = body.RequestID
		}
		switch {
		case body.HasSheet():
			return GenerationResult{
				Success:    true,
				RequestID:  requestID,
				SheetID:    body.SheetID,
				SheetLink:  body.SheetLink,
				LeadsCount: int(body.LeadsCount),
			}
		case body.IsProcessing():
			return GenerationResult{Success: true, Pending: true, RequestID: requestID}
		case body.IsFailed():
			msg := body.Error
			if msg == "" {
				msg = body.Message
			}
			if msg == "" {
				msg = ErrGenerationFailed.Error()
			}
			return GenerationResult{Success: false, RequestID: requestID, Error: msg}
		}
	case KindText:
		if resp.IsAccepted() {
			return GenerationResult{Success: true, Pending: true, RequestID: requestID}
		}
	}
	log.Warnf("resultFromResponse: unexpected %s-shaped reply for request %s", resp.Kind, requestID)
	return GenerationResult{Success: false, RequestID: requestID, Error: ErrUnexpectedResponse.Error()}
}
