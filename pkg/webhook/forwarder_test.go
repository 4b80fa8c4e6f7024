package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newForwarder(t *testing.T, repair bool, handler http.HandlerFunc) *Forwarder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	reg := NewRegistry(
		Endpoint{Name: "webhook", URL: srv.URL, Methods: []string{"POST"}, Repair: repair, Proxy: true},
		Endpoint{Name: EndpointLeadsBroad, URL: srv.URL},
	)
	return NewForwarder(NewClient(reg, 5*time.Second))
}

func TestForwardVerbatim(t *testing.T) {
	f := newForwarder(t, false, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":1}` {
			t.Errorf("upstream got body %q", body)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "not json {")
	})

	out, err := f.Forward(context.Background(), "webhook", "POST", nil, []byte(`{"q":1}`))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.Code != http.StatusTeapot || string(out.Body) != "not json {" || out.Recovery != "" {
		t.Errorf("out = %+v", out)
	}
	if out.ContentType != "text/plain" {
		t.Errorf("ContentType = %q", out.ContentType)
	}
}

func TestForwardRepairsInvalidJSON(t *testing.T) {
	f := newForwarder(t, true, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"a":1}{"b":2}`)
	})

	out, err := f.Forward(context.Background(), "webhook", "POST", nil, []byte(`{}`))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.Recovery != "extracted" {
		t.Errorf("Recovery = %q, want extracted", out.Recovery)
	}
	var v map[string]int
	if err := json.Unmarshal(out.Body, &v); err != nil || v["a"] != 1 {
		t.Errorf("repaired body = %s (%v)", out.Body, err)
	}
}

func TestForwardRejectsMethod(t *testing.T) {
	f := newForwarder(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})
	if _, err := f.Forward(context.Background(), "webhook", "DELETE", nil, nil); !errors.Is(err, ErrMethodNotAllowed) {
		t.Fatalf("err = %v, want ErrMethodNotAllowed", err)
	}
	if _, err := f.Forward(context.Background(), "nope", "POST", nil, nil); !errors.Is(err, ErrUnknownEndpoint) {
		t.Fatalf("err = %v, want ErrUnknownEndpoint", err)
	}
}

func TestForwardRefusesInternalEndpoint(t *testing.T) {
	f := newForwarder(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})
	if _, err := f.Forward(context.Background(), EndpointLeadsBroad, "POST", nil, []byte(`{}`)); !errors.Is(err, ErrUnknownEndpoint) {
		t.Fatalf("err = %v, want ErrUnknownEndpoint", err)
	}
}
