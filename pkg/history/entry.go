package history

import (
	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/lib/pq"
)

// EntryFromResult builds the history row recorded for a finished generation.
func EntryFromResult(form webhook.LeadForm, res webhook.GenerationResult) db.LeadHistory {
	entry := db.LeadHistory{
		ProductName:          form.ProductName,
		ProductDescription:   form.ProductDescription,
		Country:              form.Location.Country,
		State:                form.Location.State,
		Industries:           pq.StringArray(nonNil(form.Industries)),
		CompanySize:          pq.StringArray(nonNil(form.CompanySize)),
		AdditionalIndustries: form.AdditionalIndustries,
		EnrichmentStatus:     db.EnrichmentNotStarted,
	}
	if res.Success && !res.Pending {
		entry.Status = db.HistoryStatusSuccess
		entry.SheetID = res.SheetID
		entry.SheetLink = res.SheetLink
		entry.LeadsCount = res.LeadsCount
	} else {
		entry.Status = db.HistoryStatusError
		entry.ErrorMessage = res.Error
	}
	return entry
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
