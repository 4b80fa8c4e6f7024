package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func validForm() LeadForm {
	return LeadForm{
		ProductName: "Acme CRM",
		Location:    Location{Country: "Germany"},
		Industries:  []string{"Software"},
		CompanySize: []string{"11-50"},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	reg := NewRegistry(
		Endpoint{Name: EndpointLeadsBroad, URL: srv.URL + "/broad"},
		Endpoint{Name: EndpointLeadsSniper, URL: srv.URL + "/sniper"},
	)
	return NewClient(reg, 5*time.Second)
}

func TestLeadFormValidate(t *testing.T) {
	form := validForm()
	if err := form.Validate(); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}

	form.Location.Country = ""
	form.Industries = []string{" "}
	err := form.Validate()
	if !errors.Is(err, ErrInvalidForm) {
		t.Fatalf("err = %v, want ErrInvalidForm", err)
	}
	if !strings.Contains(err.Error(), "location.country") || !strings.Contains(err.Error(), "industries") {
		t.Errorf("error should name missing fields: %v", err)
	}
}

func TestGenerateOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		success  bool
		pending  bool
		sheetID  string
		errorMsg string
	}{
		{"sheet ready", 200, `{"status":"success","SheetID":"s1","SheetLink":"https://sheet/s1","leadsCount":12}`, true, false, "s1", ""},
		{"processing", 200, `{"status":"processing","requestId":"up-1"}`, true, true, "", ""},
		{"plain accepted", 202, `Accepted`, true, true, "", ""},
		{"unknown shape", 200, `{"ok":true}`, false, false, "", ErrUnexpectedResponse.Error()},
		{"upstream error", 500, `boom`, false, false, "", "status 500"},
		{"reported failure", 200, `{"status":"error","error":"quota exceeded"}`, false, false, "", "quota exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			res := NewGenerationService(client).Generate(context.Background(), validForm(), VariantBroad)

			if res.Success != tt.success || res.Pending != tt.pending {
				t.Fatalf("result = %+v", res)
			}
			if res.SheetID != tt.sheetID {
				t.Errorf("SheetID = %q, want %q", res.SheetID, tt.sheetID)
			}
			if tt.errorMsg != "" && !strings.Contains(res.Error, tt.errorMsg) {
				t.Errorf("Error = %q, want it to contain %q", res.Error, tt.errorMsg)
			}
			if res.RequestID == "" {
				t.Error("request id should always be set")
			}
		})
	}
}

func TestGenerateSendsOnePostToVariant(t *testing.T) {
	var calls int
	var gotPath string
	var got LeadForm
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotPath = r.URL.Path
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusBadGateway)
	})

	res := NewGenerationService(client).Generate(context.Background(), validForm(), VariantSniper)
	if res.Success {
		t.Fatal("502 must not be a success")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1 (no retry)", calls)
	}
	if gotPath != "/sniper" || got.ProductName != "Acme CRM" {
		t.Errorf("path = %q, body = %+v", gotPath, got)
	}
}

func TestGenerateRejectsInvalidFormWithoutCalling(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("webhook must not be called for an invalid form")
	})
	res := NewGenerationService(client).Generate(context.Background(), LeadForm{}, VariantBroad)
	if res.Success || res.Error == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestParseVariant(t *testing.T) {
	if v, _ := ParseVariant(""); v != VariantBroad {
		t.Errorf("empty variant = %q", v)
	}
	if v, _ := ParseVariant("Sniper"); v.Endpoint() != EndpointLeadsSniper {
		t.Errorf("sniper endpoint = %q", v.Endpoint())
	}
	if _, err := ParseVariant("shotgun"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("err = %v", err)
	}
}
