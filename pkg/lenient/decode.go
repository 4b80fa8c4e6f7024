// Package lenient decodes JSON bodies returned by automation webhooks that do
// not reliably produce valid JSON (truncated bodies, concatenated values,
// JSON wrapped in prose).
//
// Decode never fails. It walks a fixed ladder and reports which rung produced
// the value, so callers can tell a trusted parse from a best-effort recovery:
//
//  1. parse the body as-is                                    OutcomeParsed
//  2. cut at the last '}' or ']' before the syntax error and
//     close the brackets still open at the cut                 OutcomeTruncated
//  3. take the first balanced {...} or [...] span that parses OutcomeExtracted
//  4. synthesize a placeholder success object                 OutcomePlaceholder
package lenient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Outcome names the rung of the ladder that produced a Result.
type Outcome int

const (
	OutcomeParsed Outcome = iota
	OutcomeTruncated
	OutcomeExtracted
	OutcomePlaceholder
)

// maxSpanStarts bounds the span search so a large non-JSON body stays linear-ish.
const maxSpanStarts = 32

// maxRawEcho is how much of an unparseable body is echoed in a placeholder.
const maxRawEcho = 512

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeTruncated:
		return "truncated"
	case OutcomeExtracted:
		return "extracted"
	case OutcomePlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the value recovered from a body plus how it was recovered.
type Result struct {
	Value   interface{}
	Outcome Outcome
	// Err is the error from the as-is parse. Nil when Outcome is OutcomeParsed.
	Err error
}

// Trusted reports whether the body parsed without any recovery.
func (r Result) Trusted() bool {
	return r.Outcome == OutcomeParsed
}

// Into copies the recovered value into v using JSON struct tags.
func (r Result) Into(v interface{}) error {
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Errorf("failed to re-encode recovered value: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("recovered value does not fit target: %w", err)
	}
	return nil
}

// Decode runs the recovery ladder over raw.
func Decode(raw []byte) Result {
	data := bytes.TrimSpace(raw)

	var parsed interface{}
	parseErr := json.Unmarshal(data, &parsed)
	if parseErr == nil {
		return Result{Value: parsed, Outcome: OutcomeParsed}
	}

	var synErr *json.SyntaxError
	if errors.As(parseErr, &synErr) {
		if cut, ok := truncateAt(data, synErr.Offset); ok {
			var v interface{}
			if err := json.Unmarshal(cut, &v); err == nil {
				return Result{Value: v, Outcome: OutcomeTruncated, Err: parseErr}
			}
		}
	}

	if span, ok := firstSpan(data); ok {
		var v interface{}
		if err := json.Unmarshal(span, &v); err == nil {
			return Result{Value: v, Outcome: OutcomeExtracted, Err: parseErr}
		}
	}

	return Result{Value: Placeholder(data), Outcome: OutcomePlaceholder, Err: parseErr}
}

// DecodeString is Decode for string bodies.
func DecodeString(raw string) Result {
	return Decode([]byte(raw))
}

// Placeholder is the object substituted for a body nothing could be recovered from.
func Placeholder(raw []byte) map[string]interface{} {
	echo := string(raw)
	if len(echo) > maxRawEcho {
		echo = echo[:maxRawEcho]
	}
	return map[string]interface{}{
		"success": true,
		"message": "response received but could not be parsed",
		"raw":     echo,
	}
}

// truncateAt cuts data at the last closing bracket before offset and appends
// the closers of every bracket still open there. A syntax error that follows
// a complete value (trailing content) is not handled here.
func truncateAt(data []byte, offset int64) ([]byte, bool) {
	cut := int(offset)
	if cut <= 0 {
		return nil, false
	}
	if cut > len(data) {
		cut = len(data)
	}
	if json.Valid(data[:cut-1]) {
		return nil, false
	}
	idx := bytes.LastIndexAny(data[:cut], "}]")
	if idx < 0 {
		return nil, false
	}
	head := data[:idx+1]
	closers, ok := openClosers(head)
	if !ok {
		return nil, false
	}
	out := make([]byte, 0, len(head)+len(closers))
	out = append(out, head...)
	return append(out, closers...), true
}

// openClosers returns, innermost first, the closers for brackets left open at
// the end of data. It fails when data ends inside a string or is unbalanced.
func openClosers(data []byte) ([]byte, bool) {
	var stack []byte
	inString, escaped := false, false
	for _, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return nil, false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString {
		return nil, false
	}
	closers := make([]byte, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		closers = append(closers, stack[i])
	}
	return closers, true
}

// firstSpan returns the first balanced object or array that is valid JSON.
func firstSpan(data []byte) ([]byte, bool) {
	starts := 0
	for i := 0; i < len(data) && starts < maxSpanStarts; i++ {
		if data[i] != '{' && data[i] != '[' {
			continue
		}
		starts++
		end := matchClose(data, i)
		if end < 0 {
			continue
		}
		if span := data[i : end+1]; json.Valid(span) {
			return span, true
		}
	}
	return nil, false
}

// matchClose returns the index of the bracket closing data[start], or -1.
func matchClose(data []byte, start int) int {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
