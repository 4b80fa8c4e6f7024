package lenient

import (
	"testing"
)

func TestDecodeLadder(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		outcome Outcome
	}{
		{"valid object", `{"a":1}`, OutcomeParsed},
		{"valid array", `[["x","y"]]`, OutcomeParsed},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", OutcomeParsed},
		{"truncated mid value", `{"a":1,"b":2`, OutcomePlaceholder},
		{"concatenated values", `{"a":1}{"b":2}`, OutcomeExtracted},
		{"prose around json", `Here you go: {"status":"processing"} thanks`, OutcomeExtracted},
		{"truncated array of objects", `{"rows":[{"a":1},{"b":`, OutcomeTruncated},
		{"plain text", `Accepted`, OutcomePlaceholder},
		{"empty body", ``, OutcomePlaceholder},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := DecodeString(c.raw)
			if res.Outcome != c.outcome {
				t.Fatalf("DecodeString(%q) outcome = %s; want %s", c.raw, res.Outcome, c.outcome)
			}
			if res.Value == nil {
				t.Fatalf("DecodeString(%q) returned nil value", c.raw)
			}
			if res.Trusted() != (c.outcome == OutcomeParsed) {
				t.Fatalf("Trusted() = %v for outcome %s", res.Trusted(), res.Outcome)
			}
			if c.outcome != OutcomeParsed && res.Err == nil {
				t.Fatalf("expected original parse error to be kept for outcome %s", res.Outcome)
			}
		})
	}
}

func TestDecodeTruncatedFallsBackToPlaceholder(t *testing.T) {
	res := DecodeString(`{"a":1,"b":2`)
	obj, ok := res.Value.(map[string]interface{})
	if !ok {
		t.Fatalf("placeholder value is %T; want object", res.Value)
	}
	if obj["success"] != true {
		t.Fatalf("placeholder success = %v; want true", obj["success"])
	}
	if obj["raw"] != `{"a":1,"b":2` {
		t.Fatalf("placeholder raw = %v", obj["raw"])
	}
}

func TestDecodeConcatenatedReturnsFirstValue(t *testing.T) {
	res := DecodeString(`{"a":1}{"b":2}`)
	obj, ok := res.Value.(map[string]interface{})
	if !ok {
		t.Fatalf("value is %T; want object", res.Value)
	}
	if obj["a"] != float64(1) {
		t.Fatalf("a = %v; want 1", obj["a"])
	}
	if _, has := obj["b"]; has {
		t.Fatalf("second value leaked into result: %v", obj)
	}
}

func TestDecodeTruncatedClosesOpenBrackets(t *testing.T) {
	res := DecodeString(`{"rows":[{"a":1},{"b":`)
	var got struct {
		Rows []map[string]int `json:"rows"`
	}
	if err := res.Into(&got); err != nil {
		t.Fatalf("Into: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0]["a"] != 1 {
		t.Fatalf("rows = %+v; want one row with a=1", got.Rows)
	}
}

func TestPlaceholderEchoIsBounded(t *testing.T) {
	raw := make([]byte, maxRawEcho*2)
	for i := range raw {
		raw[i] = 'x'
	}
	p := Placeholder(raw)
	if got := len(p["raw"].(string)); got != maxRawEcho {
		t.Fatalf("raw echo length = %d; want %d", got, maxRawEcho)
	}
}

func TestMatchCloseIgnoresBracketsInStrings(t *testing.T) {
	data := []byte(`{"a":"}]"}tail`)
	if end := matchClose(data, 0); end != 9 {
		t.Fatalf("matchClose = %d; want 9", end)
	}
}
