package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/google/uuid"
)

func seedEntry(t *testing.T, env *testEnv, user uuid.UUID, sheetID string) db.LeadHistory {
	t.Helper()
	row, err := env.history.Insert(context.Background(), &db.LeadHistory{
		UserID:           user,
		ProductName:      "Acme",
		Status:           db.HistoryStatusSuccess,
		SheetID:          sheetID,
		EnrichmentStatus: db.EnrichmentNotStarted,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return *row
}

func TestListAndDeleteHistory(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	entry := seedEntry(t, env, user, "s1")
	seedEntry(t, env, uuid.New(), "other")

	var listed []db.LeadHistory
	w := env.do(t, http.MethodGet, "/api/history", nil, user)
	envelope(t, w, &listed)
	if w.Code != http.StatusOK || len(listed) != 1 || listed[0].ID != entry.ID {
		t.Fatalf("list = %d %+v", w.Code, listed)
	}

	if w := env.do(t, http.MethodDelete, "/api/history/"+entry.ID.String(), nil, user); w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/history/"+entry.ID.String(), nil, user); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/history/not-a-uuid", nil, user); w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestEnrichmentRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	entry := seedEntry(t, env, user, "sheet-42")
	path := "/api/history/" + entry.ID.String()

	w := env.do(t, http.MethodPost, path+"/enrich", map[string]string{"variant": "contacts"}, user)
	if w.Code != http.StatusAccepted {
		t.Fatalf("trigger = %d body = %s", w.Code, w.Body.String())
	}
	calls := env.upstream.callsTo(webhook.EndpointEnrichContacts)
	if len(calls) != 1 {
		t.Fatalf("enrich calls = %d", len(calls))
	}
	var sent webhook.EnrichRequest
	json.Unmarshal([]byte(calls[0].Body), &sent)
	if sent.SheetID != "sheet-42" || sent.HistoryID != entry.ID.String() {
		t.Errorf("sent = %+v", sent)
	}

	row, _ := env.history.FindByID(context.Background(), user, entry.ID)
	if row.EnrichmentStatus != db.EnrichmentInProgress || row.EnrichmentCount != 1 {
		t.Errorf("after trigger: %+v", row)
	}

	cb := env.do(t, http.MethodPost, "/api/webhooks/enrichment-callback",
		map[string]string{"historyId": entry.ID.String(), "status": "complete"},
		uuid.Nil, WebhookSecretHeader, testSecret)
	if cb.Code != http.StatusOK {
		t.Fatalf("callback = %d body = %s", cb.Code, cb.Body.String())
	}

	var status struct {
		EnrichmentStatus string `json:"enrichmentStatus"`
		EnrichmentCount  int    `json:"enrichmentCount"`
	}
	envelope(t, env.do(t, http.MethodGet, path+"/enrichment", nil, user), &status)
	if status.EnrichmentStatus != db.EnrichmentCompleted || status.EnrichmentCount != 1 {
		t.Errorf("status = %+v", status)
	}

	job, err := env.jobs.Get(context.Background(), jobs.EnrichmentKey(entry.ID.String()))
	if err != nil || job.State != jobs.StateComplete {
		t.Errorf("job = %+v, %v", job, err)
	}
}

func TestEnrichmentNeedsSheet(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	entry := seedEntry(t, env, user, "")

	w := env.do(t, http.MethodPost, "/api/history/"+entry.ID.String()+"/enrich", map[string]string{"variant": "companies"}, user)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/history/"+entry.ID.String()+"/enrich", map[string]string{"variant": "horoscopes"}, user)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown variant = %d, want 400", w.Code)
	}
}

func TestEnrichmentCallbackWithoutRun(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/webhooks/enrichment-callback",
		map[string]string{"historyId": uuid.NewString(), "status": "complete"},
		uuid.Nil, WebhookSecretHeader, testSecret)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestImportLeads(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.reply(webhook.EndpointImportLeads, http.StatusOK,
		`[["Company","Email"],["Acme","a@acme.test"],["",""],["Globex","g@globex.test"]]`)
	user := uuid.New()
	entry := seedEntry(t, env, user, "sheet-7")
	path := "/api/history/" + entry.ID.String()

	w := env.do(t, http.MethodPost, path+"/import", nil, user)
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d body = %s", w.Code, w.Body.String())
	}
	var updated db.LeadHistory
	envelope(t, w, &updated)
	if updated.Status != db.HistoryStatusCompleted || updated.LeadsCount != 2 {
		t.Errorf("entry = %+v", updated)
	}

	var leads []map[string]string
	envelope(t, env.do(t, http.MethodGet, path+"/leads", nil, user), &leads)
	if len(leads) != 2 || leads[0]["Company"] != "Acme" || leads[1]["Email"] != "g@globex.test" {
		t.Errorf("leads = %+v", leads)
	}
}
