package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ASHISH26940/marketing-ops-api/pkg/lenient"
)

// Kind tags the shape of a webhook reply.
type Kind int

const (
	// KindStatus is a JSON object, usually carrying status/SheetID/SheetLink.
	KindStatus Kind = iota
	// KindRows is a JSON array of tuples or objects, e.g. sheet rows.
	KindRows
	// KindText is a plain text body such as "Accepted".
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindRows:
		return "rows"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Upstream status values.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusErrored    = "error"
	StatusFailed     = "failed"
)

// FlexInt accepts 12, "12" or "" in JSON.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexInt(n)
	return nil
}

// StatusBody is the object-shaped reply of the generation and status endpoints.
// Keys are matched case-insensitively; Fields keeps the whole object.
type StatusBody struct {
	Status     string                 `json:"status"`
	RequestID  string                 `json:"requestId,omitempty"`
	SheetID    string                 `json:"SheetID,omitempty"`
	SheetLink  string                 `json:"SheetLink,omitempty"`
	LeadsCount FlexInt                `json:"leadsCount,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Title      string                 `json:"title,omitempty"`
	Content    string                 `json:"content,omitempty"`
	Fields     map[string]interface{} `json:"-"`
}

// HasSheet reports whether both sheet fields are present.
func (s *StatusBody) HasSheet() bool {
	return s.SheetID != "" && s.SheetLink != ""
}

// Field renders the first field matching one of names, ignoring case.
func (s *StatusBody) Field(names ...string) string {
	return lookupString(s.Fields, names...)
}

func (s *StatusBody) normalized() string {
	return strings.ToLower(strings.TrimSpace(s.Status))
}

func (s *StatusBody) IsProcessing() bool { return s.normalized() == StatusProcessing }
func (s *StatusBody) IsComplete() bool   { return s.normalized() == StatusComplete }

func (s *StatusBody) IsFailed() bool {
	st := s.normalized()
	return st == StatusErrored || st == StatusFailed
}

// Response is a webhook reply sorted into one of three shapes. Consumers
// switch on Kind instead of probing the body.
type Response struct {
	Kind       Kind
	HTTPStatus int
	Status     *StatusBody
	// Rows holds tuple-shaped arrays with every cell rendered as a string.
	Rows [][]string
	// Items holds object-shaped array elements.
	Items   []map[string]interface{}
	Text    string
	Outcome lenient.Outcome
	Raw     []byte
}

// IsAccepted reports a plain "Accepted" acknowledgement.
func (r *Response) IsAccepted() bool {
	return r.Kind == KindText && strings.EqualFold(strings.TrimSpace(r.Text), "accepted")
}

// ParseResponse classifies body. It never fails: anything that cannot be
// recovered as JSON becomes KindText.
func ParseResponse(httpStatus int, body []byte) *Response {
	resp := &Response{HTTPStatus: httpStatus, Raw: body}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		resp.Kind = KindText
		resp.Outcome = lenient.OutcomePlaceholder
		return resp
	}

	res := lenient.Decode(trimmed)
	resp.Outcome = res.Outcome
	if res.Outcome == lenient.OutcomePlaceholder {
		resp.Kind = KindText
		resp.Text = string(trimmed)
		return resp
	}

	switch v := res.Value.(type) {
	case map[string]interface{}:
		resp.Kind = KindStatus
		resp.Status = statusFromMap(v)
	case []interface{}:
		resp.Kind = KindRows
		resp.Rows, resp.Items = rowsFromArray(v)
	default:
		resp.Kind = KindText
		resp.Text = cellString(v)
	}
	return resp
}

func statusFromMap(m map[string]interface{}) *StatusBody {
	s := &StatusBody{Fields: m}
	s.Status = lookupString(m, "status")
	s.RequestID = lookupString(m, "requestId", "request_id")
	s.SheetID = lookupString(m, "SheetID", "sheet_id")
	s.SheetLink = lookupString(m, "SheetLink", "sheet_link", "sheetUrl")
	s.Message = lookupString(m, "message")
	s.Error = lookupString(m, "error")
	s.Title = lookupString(m, "title")
	s.Content = lookupString(m, "content")
	if raw := lookupString(m, "leadsCount", "leads_count"); raw != "" {
		var n FlexInt
		if err := n.UnmarshalJSON([]byte(raw)); err == nil {
			s.LeadsCount = n
		}
	}
	return s
}

// lookupString finds the first key matching one of names, ignoring case, and
// renders its value as a string.
func lookupString(m map[string]interface{}, names ...string) string {
	for _, name := range names {
		if v, ok := m[name]; ok && v != nil {
			return cellString(v)
		}
		for k, v := range m {
			if strings.EqualFold(k, name) && v != nil {
				return cellString(v)
			}
		}
	}
	return ""
}

// rowsFromArray splits an array into tuple rows and object items. String
// elements holding a JSON array ("arrays-as-strings") are decoded into rows.
func rowsFromArray(arr []interface{}) ([][]string, []map[string]interface{}) {
	var rows [][]string
	var items []map[string]interface{}
	for _, el := range arr {
		switch v := el.(type) {
		case []interface{}:
			rows = append(rows, cellsOf(v))
		case map[string]interface{}:
			items = append(items, v)
		case string:
			var inner []interface{}
			if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &inner); err == nil {
				rows = append(rows, cellsOf(inner))
				continue
			}
			rows = append(rows, []string{v})
		default:
			rows = append(rows, []string{cellString(v)})
		}
	}
	return rows, items
}

func cellsOf(values []interface{}) []string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = cellString(v)
	}
	return cells
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
