package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/session"
	"ledger/internal/storage"
)

type testEnv struct {
	t     *testing.T
	srv   *Server
	store *ledger.Store
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := ledger.New(storage.NewPersister(storage.NewMemoryKV(), log.Discard()), ledger.WithLogger(log.Discard()))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 10000
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC) }
	}
	srv := NewServer(":0", store, session.NewManager(store, log.Discard()), log.Discard(), opts)
	t.Cleanup(srv.limiter.Stop)
	return &testEnv{t: t, srv: srv, store: store}
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(username, password string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/login", `{"username":"`+username+`","password":"`+password+`"}`, "")
	if rr.Code != http.StatusOK {
		e.t.Fatalf("login %s: status=%d body=%s", username, rr.Code, rr.Body.String())
	}
	var resp loginResponse
	decode(e.t, rr, &resp)
	return resp.Token
}

func (e *testEnv) addStaff(adminToken, username string) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/users", `{"username":"`+username+`","password":"pw","role":"staff"}`, adminToken)
	if rr.Code != http.StatusCreated {
		e.t.Fatalf("create staff: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("healthz status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("middleware headers missing: %v", rr.Header())
	}

	// Generate at least one observation of a ledger metric.
	env.do(http.MethodPost, "/api/login", `{"username":"admin","password":"nope"}`, "")
	rr = env.do(http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ledger_logins_total") {
		t.Fatalf("metrics status=%d", rr.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, Options{})

	if rr := env.do(http.MethodGet, "/api/me", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("me without session: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/api/login", `{"username":"admin","password":"wrong"}`, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/api/login", `{"username":"admin"}`, ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing password: status=%d", rr.Code)
	}

	rr := env.do(http.MethodPost, "/api/login", `{"username":"admin","password":"admin123"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "admin123") {
		t.Fatalf("password leaked in login response")
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookies[0])
	me := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(me, req)
	var u userResponse
	decode(t, me, &u)
	if me.Code != http.StatusOK || u.Username != "admin" || u.Role != core.RoleAdmin {
		t.Fatalf("me: status=%d user=%+v", me.Code, u)
	}

	token := cookies[0].Value
	if rr := env.do(http.MethodPost, "/api/logout", "", token); rr.Code != http.StatusNoContent {
		t.Fatalf("logout: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/api/me", "", token); rr.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: status=%d", rr.Code)
	}
}

func TestJobsCRUD(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login("admin", "admin123")

	rr := env.do(http.MethodPost, "/api/jobs", `{"date":"2024-01-15","clientName":"Acme","vendor":"Widget","amount":100,"description":"install"}`, token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Job
	decode(t, rr, &created)
	if created.ID == "" || created.Amount != "100" || rr.Header().Get("Location") != "/api/jobs/"+created.ID {
		t.Fatalf("unexpected job %+v location=%q", created, rr.Header().Get("Location"))
	}

	rr = env.do(http.MethodPut, "/api/jobs/"+created.ID, `{"date":"2024-01-16","clientName":"Acme","amount":"120.50"}`, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status=%d body=%s", rr.Code, rr.Body.String())
	}
	jobs := env.store.ListJobs()
	if len(jobs) != 1 || jobs[0].Amount != "120.50" || jobs[0].Date != core.NewDate(2024, 1, 16) {
		t.Fatalf("unexpected jobs after update: %+v", jobs)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"update unknown id", http.MethodPut, "/api/jobs/missing", `{"date":"2024-01-16","clientName":"Acme","amount":"1"}`, http.StatusNotFound},
		{"malformed amount", http.MethodPost, "/api/jobs", `{"date":"2024-01-16","clientName":"Acme","amount":"abc"}`, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/api/jobs", `{"date":"2024-01-16","clientName":"Acme","amount":-5}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/jobs", `{"date":"16/01/2024","clientName":"Acme","amount":"1"}`, http.StatusUnprocessableEntity},
		{"missing client", http.MethodPost, "/api/jobs", `{"date":"2024-01-16","amount":"1"}`, http.StatusUnprocessableEntity},
		{"broken json", http.MethodPost, "/api/jobs", `{"date":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/jobs", ``, http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/api/jobs", `{"date":"2024-01-16","clientName":"A","amount":"1"} {}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(tt.method, tt.path, tt.body, token); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
	if got := len(env.store.ListJobs()); got != 1 {
		t.Fatalf("rejected requests must not add jobs, have %d", got)
	}

	for i := 0; i < 2; i++ {
		if rr := env.do(http.MethodDelete, "/api/jobs/"+created.ID, "", token); rr.Code != http.StatusNoContent {
			t.Fatalf("delete #%d: status=%d", i+1, rr.Code)
		}
	}
	rr = env.do(http.MethodGet, "/api/jobs", "", token)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("list after delete: %s", rr.Body.String())
	}
}

func TestPaymentsCRUD(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login("admin", "admin123")

	rr := env.do(http.MethodPost, "/api/payments", `{"date":"2024-01-20","vendor":"Supplier","amount":"40"}`, token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var p core.Payment
	decode(t, rr, &p)

	if rr := env.do(http.MethodPost, "/api/payments", `{"date":"2024-01-20","amount":"40"}`, token); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing vendor: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPut, "/api/payments/"+p.ID, `{"date":"2024-01-21","vendor":"Supplier","amount":"45"}`, token); rr.Code != http.StatusOK {
		t.Fatalf("update: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodDelete, "/api/payments/"+p.ID, "", token); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status=%d", rr.Code)
	}
	if len(env.store.ListPayments()) != 0 {
		t.Fatal("payment not deleted")
	}
}

func TestProductRename(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login("admin", "admin123")

	if rr := env.do(http.MethodPost, "/api/products", `{"name":"Widget","rate":10,"description":""}`, token); rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(http.MethodPost, "/api/products", `{"name":"Widget","rate":10}`, token); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPut, "/api/products/Widget", `{"name":"Widget2","rate":10,"description":""}`, token); rr.Code != http.StatusOK {
		t.Fatalf("rename: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(http.MethodPut, "/api/products/Widget", `{"name":"Widget3","rate":10}`, token); rr.Code != http.StatusNotFound {
		t.Fatalf("rename of old name: status=%d", rr.Code)
	}

	products := env.store.ListProducts()
	if len(products) != 1 || products[0].Name != "Widget2" {
		t.Fatalf("unexpected products: %+v", products)
	}

	if rr := env.do(http.MethodDelete, "/api/products/Widget%202", "", token); rr.Code != http.StatusNoContent {
		t.Fatalf("delete unknown: status=%d", rr.Code)
	}
}

func TestUserManagementIsAdminOnly(t *testing.T) {
	env := newTestEnv(t, Options{})
	admin := env.login("admin", "admin123")
	env.addStaff(admin, "sam")

	rr := env.do(http.MethodGet, "/api/users", "", admin)
	if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "admin123") {
		t.Fatalf("list users: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var users []userResponse
	decode(t, rr, &users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %+v", users)
	}

	if rr := env.do(http.MethodPost, "/api/users", `{"username":"sam","password":"x","role":"staff"}`, admin); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate username: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/api/users", `{"username":"kim","password":"x","role":"owner"}`, admin); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad role: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodDelete, "/api/users/"+users[0].ID, "", admin); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("delete last admin: status=%d", rr.Code)
	}

	staff := env.login("sam", "pw")
	for _, tt := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/users", ""},
		{http.MethodPost, "/api/users", `{"username":"x","password":"x","role":"admin"}`},
		{http.MethodDelete, "/api/users/" + users[0].ID, ""},
		{http.MethodPut, "/api/settings", `{"companyName":"X","currency":"EUR","dateFormat":"YYYY-MM-DD","theme":"dark"}`},
	} {
		if rr := env.do(tt.method, tt.path, tt.body, staff); rr.Code != http.StatusForbidden {
			t.Errorf("%s %s as staff: status=%d", tt.method, tt.path, rr.Code)
		}
	}
	if rr := env.do(http.MethodGet, "/api/settings", "", staff); rr.Code != http.StatusOK {
		t.Fatalf("staff get settings: status=%d", rr.Code)
	}
}

func TestDeletingSignedInUserEndsSession(t *testing.T) {
	env := newTestEnv(t, Options{})
	admin := env.login("admin", "admin123")
	if rr := env.do(http.MethodPost, "/api/users", `{"username":"boss","password":"pw","role":"admin"}`, admin); rr.Code != http.StatusCreated {
		t.Fatalf("create admin: status=%d", rr.Code)
	}
	boss := env.login("boss", "pw")
	var id string
	for _, u := range env.store.ListUsers() {
		if u.Username == "boss" {
			id = u.ID
		}
	}
	if rr := env.do(http.MethodDelete, "/api/users/"+id, "", boss); rr.Code != http.StatusNoContent {
		t.Fatalf("delete self: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/api/me", "", boss); rr.Code != http.StatusUnauthorized {
		t.Fatalf("session should end: status=%d", rr.Code)
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, Options{})
	admin := env.login("admin", "admin123")

	rr := env.do(http.MethodGet, "/api/settings", "", admin)
	var got core.Settings
	decode(t, rr, &got)
	if got != core.DefaultSettings() {
		t.Fatalf("defaults: %+v", got)
	}

	if rr := env.do(http.MethodPut, "/api/settings", `{"companyName":"Shop","currency":"eur","dateFormat":"YYYY-MM-DD","theme":"dark"}`, admin); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("lower-case currency: status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPut, "/api/settings", `{"companyName":"Shop","currency":"EUR","dateFormat":"DD/MM/YYYY","theme":"neon"}`, admin); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad theme: status=%d", rr.Code)
	}
	rr = env.do(http.MethodPut, "/api/settings", `{"companyName":"Shop","currency":"EUR","dateFormat":"DD/MM/YYYY","theme":"dark"}`, admin)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status=%d body=%s", rr.Code, rr.Body.String())
	}
	want := core.Settings{CompanyName: "Shop", Currency: "EUR", DateFormat: core.DateFormatEU, Theme: core.ThemeDark}
	if env.store.Settings() != want {
		t.Fatalf("stored settings: %+v", env.store.Settings())
	}

	// Echoing the default record back must be accepted.
	body, _ := json.Marshal(core.DefaultSettings())
	if rr := env.do(http.MethodPut, "/api/settings", string(body), admin); rr.Code != http.StatusOK {
		t.Fatalf("echo defaults: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if env.store.Settings().DateFormat != core.DateFormatDMYDash {
		t.Fatalf("date format not kept: %+v", env.store.Settings())
	}
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login("admin", "admin123")
	env.do(http.MethodPost, "/api/jobs", `{"date":"2024-01-15","clientName":"A","amount":100}`, token)
	env.do(http.MethodPost, "/api/jobs", `{"date":"2024-02-01","clientName":"B","amount":50}`, token)
	env.do(http.MethodPost, "/api/payments", `{"date":"2024-01-20","vendor":"V","amount":"30.25"}`, token)

	rr := env.do(http.MethodGet, "/api/summary?month=2024-01", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Month     string `json:"month"`
		Income    string `json:"income"`
		Expense   string `json:"expense"`
		Net       string `json:"net"`
		JobCount  int    `json:"jobCount"`
		Currency  string `json:"currency"`
		Formatted struct {
			From string `json:"from"`
			To   string `json:"to"`
			Net  string `json:"net"`
		} `json:"formatted"`
	}
	decode(t, rr, &resp)
	if resp.Month != "2024-01" || resp.Income != "100.00" || resp.Expense != "30.25" || resp.Net != "69.75" || resp.JobCount != 1 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
	if resp.Currency != "INR" || resp.Formatted.Net != "INR 69.75" {
		t.Fatalf("unexpected formatting: %+v", resp)
	}
	if resp.Formatted.From != "01-01-2024" || resp.Formatted.To != "31-01-2024" {
		t.Fatalf("unexpected formatting: %+v", resp)
	}

	// The clock is pinned to January 2024.
	rr = env.do(http.MethodGet, "/api/summary", "", token)
	decode(t, rr, &resp)
	if resp.Month != "2024-01" {
		t.Fatalf("default month = %s", resp.Month)
	}

	if rr := env.do(http.MethodGet, "/api/summary?month=2024-13", "", token); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid month: status=%d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		if rr := env.do(http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d", i+1, rr.Code)
		}
	}
	rr := env.do(http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusTooManyRequests || !strings.Contains(rr.Body.String(), "rate limit") {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login("admin", "admin123")
	if err := env.store.Teardown(context.Background()); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if rr := env.do(http.MethodPost, "/api/products", `{"name":"A","rate":"1"}`, token); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestConcurrentLoginsGetTheirOwnToken(t *testing.T) {
	env := newTestEnv(t, Options{})
	admin := env.login("admin", "admin123")
	env.addStaff(admin, "sam")

	type issued struct {
		username string
		token    string
	}
	results := make([]issued, 100)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := `{"username":"admin","password":"admin123"}`
			if i%2 == 1 {
				body = `{"username":"sam","password":"pw"}`
			}
			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
			rr := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(rr, req)

			var resp loginResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || rr.Code != http.StatusOK {
				t.Errorf("login %d: status=%d err=%v", i, rr.Code, err)
				return
			}
			cookies := rr.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Value != resp.Token {
				t.Errorf("login %d: cookie does not carry the body token", i)
			}
			results[i] = issued{username: resp.User.Username, token: resp.Token}
		}(i)
	}
	wg.Wait()

	live := 0
	for _, r := range results {
		rr := env.do(http.MethodGet, "/api/me", "", r.token)
		if rr.Code != http.StatusOK {
			continue
		}
		live++
		var me userResponse
		decode(t, rr, &me)
		if me.Username != r.username {
			t.Fatalf("token issued to %s signs in as %s", r.username, me.Username)
		}
	}
	if live != 1 {
		t.Fatalf("%d tokens still valid, want 1", live)
	}
}
