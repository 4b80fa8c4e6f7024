package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/appstate"
	"github.com/ASHISH26940/marketing-ops-api/pkg/config"
	"github.com/ASHISH26940/marketing-ops-api/pkg/content"
	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/services"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	testOrigin = "http://localhost:5173"
	testSecret = "s3cret"
)

// --- in-memory repositories ---

type memHistoryRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]db.LeadHistory
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{rows: make(map[uuid.UUID]db.LeadHistory)}
}

func (r *memHistoryRepo) Insert(ctx context.Context, e *db.LeadHistory) (*db.LeadHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := *e
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()
	r.rows[row.ID] = row
	return &row, nil
}

func (r *memHistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]db.LeadHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []db.LeadHistory
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memHistoryRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*db.LeadHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (r *memHistoryRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return sql.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *memHistoryRepo) UpdateEnrichment(ctx context.Context, userID, id uuid.UUID, status string, at time.Time) (*db.LeadHistory, error) {
	return r.update(userID, id, func(row *db.LeadHistory) {
		row.EnrichmentStatus = status
		row.EnrichmentTimestamp = sql.NullTime{Time: at, Valid: true}
		if status == db.EnrichmentInProgress {
			row.EnrichmentCount++
		}
	})
}

func (r *memHistoryRepo) UpdateOutcome(ctx context.Context, userID, id uuid.UUID, status string, n int) (*db.LeadHistory, error) {
	return r.update(userID, id, func(row *db.LeadHistory) {
		row.Status = status
		row.LeadsCount = n
	})
}

func (r *memHistoryRepo) update(userID, id uuid.UUID, fn func(*db.LeadHistory)) (*db.LeadHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return nil, sql.ErrNoRows
	}
	fn(&row)
	r.rows[id] = row
	return &row, nil
}

func (r *memHistoryRepo) forUser(userID uuid.UUID) []db.LeadHistory {
	rows, _ := r.ListByUser(context.Background(), userID)
	return rows
}

type memContentRepo struct {
	mu     sync.Mutex
	tables map[string][]db.ContentItem
}

func newMemContentRepo() *memContentRepo {
	return &memContentRepo{tables: make(map[string][]db.ContentItem)}
}

func (r *memContentRepo) Insert(ctx context.Context, table string, item *db.ContentItem) (*db.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := *item
	row.CreatedAt, row.UpdatedAt = time.Now(), time.Now()
	r.tables[table] = append(r.tables[table], row)
	return &row, nil
}

func (r *memContentRepo) ListByUser(ctx context.Context, table string, userID uuid.UUID) ([]db.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []db.ContentItem
	for _, row := range r.tables[table] {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memContentRepo) Delete(ctx context.Context, table string, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.tables[table]
	for i, row := range rows {
		if row.ID == id && row.UserID == userID {
			r.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *memContentRepo) Update(ctx context.Context, table string, userID, id uuid.UUID, p db.ContentPatch) (*db.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.tables[table] {
		if row.ID != id || row.UserID != userID {
			continue
		}
		if p.Title != nil {
			row.Title = *p.Title
		}
		if p.Content != nil {
			row.Content = *p.Content
		}
		if len(p.Metadata) > 0 {
			row.Metadata = p.Metadata
		}
		row.UpdatedAt = time.Now()
		r.tables[table][i] = row
		return &row, nil
	}
	return nil, sql.ErrNoRows
}

type memLeadRepo struct {
	mu    sync.Mutex
	leads map[uuid.UUID][]db.Lead
}

func (r *memLeadRepo) ReplaceForHistory(ctx context.Context, userID, historyID uuid.UUID, leads []db.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]db.Lead, len(leads))
	for i, l := range leads {
		l.ID, l.UserID, l.HistoryID = uuid.New(), userID, historyID
		out[i] = l
	}
	r.leads[historyID] = out
	return nil
}

func (r *memLeadRepo) ListByHistory(ctx context.Context, userID, historyID uuid.UUID) ([]db.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []db.Lead
	for _, l := range r.leads[historyID] {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

type memVideoRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]db.VideoProjectRow
}

func (r *memVideoRepo) Save(ctx context.Context, row *db.VideoProjectRow) (*db.VideoProjectRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.rows[row.ID]; ok && prev.UserID != row.UserID {
		return nil, sql.ErrNoRows
	}
	saved := *row
	saved.UpdatedAt = time.Now()
	r.rows[row.ID] = saved
	return &saved, nil
}

func (r *memVideoRepo) Find(ctx context.Context, userID, id uuid.UUID) (*db.VideoProjectRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]db.User
}

func (r *memUserRepo) Create(ctx context.Context, u *db.User) (*db.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := *u
	row.ID = uuid.New()
	r.users[row.ID] = row
	return &row, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*db.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

// --- fake automation platform ---

type upstreamCall struct {
	Name   string
	Method string
	Query  string
	Body   string
}

type upstreamReply struct {
	Code int
	Body string
}

// fakeUpstream serves every registry endpoint under /hook/<name>.
type fakeUpstream struct {
	mu      sync.Mutex
	calls   []upstreamCall
	replies map[string]upstreamReply
	srv     *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	f := &fakeUpstream{replies: make(map[string]upstreamReply)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/hook/")
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, upstreamCall{Name: name, Method: r.Method, Query: r.URL.RawQuery, Body: string(body)})
		reply, ok := f.replies[name]
		f.mu.Unlock()
		if !ok {
			reply = upstreamReply{Code: http.StatusOK, Body: "Accepted"}
		}
		w.WriteHeader(reply.Code)
		io.WriteString(w, reply.Body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) reply(name string, code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[name] = upstreamReply{Code: code, Body: body}
}

func (f *fakeUpstream) callsTo(name string) []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []upstreamCall
	for _, c := range f.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeUpstream) registry() *webhook.Registry {
	ep := func(name string, repair bool, methods ...string) webhook.Endpoint {
		return webhook.Endpoint{Name: name, URL: f.srv.URL + "/hook/" + name, Methods: methods, Repair: repair}
	}
	proxied := func(e webhook.Endpoint) webhook.Endpoint {
		e.Proxy = true
		return e
	}
	return webhook.NewRegistry(
		ep(webhook.EndpointLeadsBroad, false),
		ep(webhook.EndpointLeadsSniper, false),
		proxied(ep(webhook.EndpointImportLeads, true)),
		ep(webhook.EndpointEnrichContacts, false),
		ep(webhook.EndpointArticleThemes, false),
		ep(webhook.EndpointNewsletter, false),
		ep(webhook.EndpointScriptVoiceover, false),
		proxied(ep("webhook", true, http.MethodGet, http.MethodPost)),
		proxied(ep("make-webhook", false, http.MethodPost)),
	)
}

// --- test environment ---

type testEnv struct {
	h        *Handlers
	router   *gin.Engine
	tokens   *services.TokenService
	jobs     *jobs.MemoryStore
	history  *memHistoryRepo
	content  *memContentRepo
	leads    *memLeadRepo
	users    *memUserRepo
	upstream *fakeUpstream
}

func newTestEnv(t *testing.T, tweak ...func(*Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := newFakeUpstream(t)
	client := webhook.NewClient(up.registry(), 5*time.Second)
	store := jobs.NewMemoryStore(time.Hour)
	env := &testEnv{
		tokens:   services.NewTokenService("test-secret", time.Hour),
		jobs:     store,
		history:  newMemHistoryRepo(),
		content:  newMemContentRepo(),
		leads:    &memLeadRepo{leads: make(map[uuid.UUID][]db.Lead)},
		users:    &memUserRepo{users: make(map[uuid.UUID]db.User)},
		upstream: up,
	}

	deps := Deps{
		Config: &config.Config{
			Host:           "127.0.0.1",
			Port:           "8080",
			AllowedOrigins: []string{testOrigin},
			WebhookSecret:  testSecret,
			ExportDir:      t.TempDir(),
		},
		Users:      env.users,
		Leads:      env.leads,
		Videos:     &memVideoRepo{rows: make(map[uuid.UUID]db.VideoProjectRow)},
		Tokens:     env.tokens,
		Sessions:   appstate.NewRegistry(appstate.Repos{History: env.history, Content: env.content}, time.Hour),
		Jobs:       store,
		Generation: webhook.NewGenerationService(client),
		Poller:     webhook.NewPoller(&jobs.StatusGetter{Store: store}, "", time.Millisecond, 5000),
		Importer:   webhook.NewLeadImporter(client),
		Enricher:   webhook.NewEnricher(client),
		Forwarder:  webhook.NewForwarder(client),
		Scripts:    webhook.NewScriptWriter(client),
		Drafts:     content.NewWebhookGenerator(client),
	}
	for _, fn := range tweak {
		fn(&deps)
	}

	env.h = NewHandlers(deps)
	env.router = gin.New()
	env.h.RegisterRoutes(env.router)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		env.h.Shutdown(ctx)
	})
	return env
}

// do sends body (a string is sent as is, anything else as JSON). A non-nil
// user is authenticated with a fresh token.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, user uuid.UUID, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != uuid.Nil {
		token, err := e.tokens.GenerateToken(user, "user@example.com", "user")
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// envelope decodes a JSONResponse, unmarshalling data into v when given.
func envelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) (success bool, message string) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	if v != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, v); err != nil {
			t.Fatalf("decode data %s: %v", resp.Data, err)
		}
	}
	return resp.Success, resp.Message
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, uuid.Nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/history", "/api/content/articles", "/api/video/projects/" + uuid.NewString()} {
		if w := env.do(t, http.MethodGet, path, nil, uuid.Nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", path, w.Code)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sql.ErrNoRows, http.StatusNotFound},
		{content.ErrNotUpdatable, http.StatusBadRequest},
		{webhook.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{webhook.ErrPollTimeout, http.StatusGatewayTimeout},
		{&webhook.StatusError{Endpoint: "x", Code: 500}, http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
