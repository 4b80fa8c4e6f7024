package webhook

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// rowKeys are the object keys a status-shaped import reply may nest its rows under.
var rowKeys = []string{"values", "rows", "data", "leads"}

// LeadImporter fetches the rows of a generated lead sheet.
type LeadImporter struct {
	poster Poster
}

func NewLeadImporter(poster Poster) *LeadImporter {
	return &LeadImporter{poster: poster}
}

// Import returns one map per lead. Tuple rows use the first row as header;
// object rows are taken as they are.
func (i *LeadImporter) Import(ctx context.Context, sheetID string) ([]map[string]string, error) {
	if strings.TrimSpace(sheetID) == "" {
		return nil, fmt.Errorf("%w: sheet id is required", ErrInvalidForm)
	}

	resp, err := i.poster.Post(ctx, EndpointImportLeads, map[string]string{"sheetId": sheetID})
	if err != nil {
		return nil, fmt.Errorf("failed to import leads from sheet %s: %w", sheetID, err)
	}

	rows, items := resp.Rows, resp.Items
	if resp.Kind == KindStatus {
		rows, items = nestedRows(resp.Status.Fields)
	}
	if resp.Kind == KindText || (len(rows) == 0 && len(items) == 0 && resp.Kind != KindRows) {
		return nil, fmt.Errorf("%w: %s-shaped import reply", ErrUnexpectedResponse, resp.Kind)
	}

	leads := rowsToRecords(rows)
	for _, item := range items {
		rec := make(map[string]string, len(item))
		for k, v := range item {
			rec[k] = cellString(v)
		}
		leads = append(leads, rec)
	}
	log.Infof("Import: sheet %s yielded %d leads", sheetID, len(leads))
	return leads, nil
}

func nestedRows(fields map[string]interface{}) ([][]string, []map[string]interface{}) {
	for _, key := range rowKeys {
		for k, v := range fields {
			if !strings.EqualFold(k, key) {
				continue
			}
			switch arr := v.(type) {
			case []interface{}:
				return rowsFromArray(arr)
			case string:
				// a whole sheet serialized into one string
				res := ParseResponse(0, []byte(arr))
				if res.Kind == KindRows {
					return res.Rows, res.Items
				}
			}
		}
	}
	return nil, nil
}

// rowsToRecords keys each data row by the header row. Blank header cells get
// a positional name and short rows leave trailing columns empty.
func rowsToRecords(rows [][]string) []map[string]string {
	if len(rows) < 2 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = h
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
