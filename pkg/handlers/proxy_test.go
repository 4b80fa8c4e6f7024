package handlers

import (
	"net/http"
	"testing"

	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/google/uuid"
)

func TestProxyRelaysVerbatim(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.reply("make-webhook", http.StatusTeapot, `{"hello":"world"}`)

	w := env.do(t, http.MethodPost, "/.netlify/functions/make-webhook", `{"x":1}`, uuid.Nil, "Origin", testOrigin)
	if w.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want upstream 418", w.Code)
	}
	if w.Body.String() != `{"hello":"world"}` {
		t.Errorf("body = %s", w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("allow origin = %q", got)
	}
	if w.Header().Get(webhook.RecoveryHeader) != "" {
		t.Error("valid body must not be marked as recovered")
	}
	calls := env.upstream.callsTo("make-webhook")
	if len(calls) != 1 || calls[0].Body != `{"x":1}` {
		t.Errorf("upstream calls = %+v", calls)
	}
}

func TestProxyRepairsInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.reply("webhook", http.StatusOK, `{"leads":[1,2]} <!-- served by make -->`)

	w := env.do(t, http.MethodGet, "/api/proxy/webhook?sheet=abc", nil, uuid.Nil, "Origin", testOrigin)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get(webhook.RecoveryHeader); got != "extracted" {
		t.Errorf("recovery header = %q, want extracted", got)
	}
	if w.Body.String() != `{"leads":[1,2]}` {
		t.Errorf("body = %s", w.Body.String())
	}
	if calls := env.upstream.callsTo("webhook"); len(calls) != 1 || calls[0].Query != "sheet=abc" {
		t.Errorf("upstream calls = %+v", calls)
	}
}

func TestProxyErrorsCarryCORS(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"method not allowed", http.MethodGet, "/.netlify/functions/make-webhook", http.StatusMethodNotAllowed},
		{"unknown endpoint", http.MethodPost, "/.netlify/functions/nope", http.StatusNotFound},
		{"preflight", http.MethodOptions, "/.netlify/functions/import-leads", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := []string{"Origin", testOrigin}
			if tt.method == http.MethodOptions {
				headers = append(headers, "Access-Control-Request-Method", http.MethodPost)
			}
			w := env.do(t, tt.method, tt.path, nil, uuid.Nil, headers...)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
				t.Errorf("allow origin = %q", got)
			}
		})
	}
	if n := len(env.upstream.callsTo("make-webhook")); n != 0 {
		t.Errorf("disallowed method reached upstream %d times", n)
	}
}

func TestProxyHidesInternalEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{webhook.EndpointLeadsBroad, webhook.EndpointEnrichContacts, webhook.EndpointScriptVoiceover} {
		w := env.do(t, http.MethodPost, "/.netlify/functions/"+name, `{"q":"dentists"}`, uuid.Nil, "Origin", testOrigin)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s = %d, want 404", name, w.Code)
		}
		if n := len(env.upstream.callsTo(name)); n != 0 {
			t.Errorf("%s reached upstream %d times", name, n)
		}
	}
}
