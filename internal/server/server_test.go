package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/db"
	"fintrack/internal/engine"
	"fintrack/internal/engine/auth"
	"fintrack/internal/metrics"
	"fintrack/internal/migrate"
)

const (
	testOwner  int64 = 4242
	otherOwner int64 = 777
	testSecret       = "test-secret"
)

type testServer struct {
	URL    string
	client *http.Client
	auth   auth.Service
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func (s *testServer) bearer(t *testing.T, owner int64) map[string]string {
	t.Helper()
	token, err := s.auth.SignToken(owner, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// newTestServer pins the engine clock at 2026-02-01 11:00 in Tashkent.
func newTestServer(t *testing.T, devLogin bool) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC) }
	e.Metrics = metrics.New()
	svc := auth.Service{Repo: e.Repo, Secret: testSecret}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{Service: svc, AllowDevLogin: devLogin},
		Metrics:  e.Metrics,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		auth:   svc,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, string(data))
	}
	return env.Error
}

func createObligation(t *testing.T, srv *testServer, owner int64, body map[string]any) ObligationResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/obligations", body, srv.bearer(t, owner))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create obligation status %d: %s", res.StatusCode, string(data))
	}
	var o ObligationResponse
	if err := json.Unmarshal(data, &o); err != nil {
		t.Fatalf("unmarshal obligation: %v", err)
	}
	return o
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be public, got %d", res.StatusCode)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/obligations", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	if e := decodeError(t, data); e.Code != "unauthorized" {
		t.Fatalf("unexpected error code %q", e.Code)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/obligations", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token should be rejected, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{"owner_id": 1}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dev login must be off by default, got %d", res.StatusCode)
	}
}

func TestPayMonthlyAdvancesAndRecordsExpense(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()
	hdr := srv.bearer(t, testOwner)

	o := createObligation(t, srv, testOwner, map[string]any{
		"amount":       "1 200 000",
		"category":     "Rent",
		"frequency":    "monthly",
		"day_of_month": 10,
	})
	if o.DueDate != "2026-02-10" || o.Amount != "1200000" {
		t.Fatalf("unexpected obligation: %+v", o)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/obligations/"+o.ID+"/pay?amount=1150000", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pay status %d: %s", res.StatusCode, string(data))
	}
	var paid PayResponse
	if err := json.Unmarshal(data, &paid); err != nil {
		t.Fatalf("unmarshal pay: %v", err)
	}
	if paid.Obligation.DueDate != "2026-03-10" || paid.Retired {
		t.Fatalf("unexpected obligation after pay: %+v", paid.Obligation)
	}
	if paid.Expense.Amount != "1150000" || paid.Expense.Date != "2026-02-01" || paid.Expense.Category != "Rent" {
		t.Fatalf("unexpected expense: %+v", paid.Expense)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/expenses", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list expenses %d: %s", res.StatusCode, string(data))
	}
	var expenses []ExpenseResponse
	_ = json.Unmarshal(data, &expenses)
	if len(expenses) != 1 || expenses[0].ObligationID == nil || *expenses[0].ObligationID != o.ID {
		t.Fatalf("expected the pay expense, got %+v", expenses)
	}
}

func TestOnceObligationPaidThenGone(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()
	hdr := srv.bearer(t, testOwner)

	o := createObligation(t, srv, testOwner, map[string]any{
		"amount":    "90000",
		"category":  "Internet",
		"frequency": "once",
		"due_date":  "05.02.2026",
	})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/obligations/"+o.ID+"/pay", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pay status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/obligations/"+o.ID+"/pay", nil, hdr)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("second pay should 404, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/obligations?include_settled=true", nil, hdr)
	var all []ObligationResponse
	_ = json.Unmarshal(data, &all)
	if res.StatusCode != http.StatusOK || len(all) != 1 || !all[0].IsPaid || all[0].PaymentDate == nil {
		t.Fatalf("settled obligation should be listed as paid: %d %+v", res.StatusCode, all)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/obligations", map[string]any{
		"amount":    "-5",
		"category":  "Gym",
		"frequency": "weekly",
	}, srv.bearer(t, testOwner))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	e := decodeError(t, data)
	if e.Code != "invalid_input" || e.Details["field"] != "amount" {
		t.Fatalf("unexpected error: %+v", e)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/obligations", nil, srv.bearer(t, testOwner))
	var items []ObligationResponse
	_ = json.Unmarshal(data, &items)
	if res.StatusCode != http.StatusOK || len(items) != 0 {
		t.Fatalf("nothing should be persisted: %+v", items)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()
	o := createObligation(t, srv, testOwner, map[string]any{
		"amount": "10", "category": "Phone", "frequency": "weekly", "weekday": 2,
	})

	other := srv.bearer(t, otherOwner)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/obligations/" + o.ID},
		{http.MethodPost, "/v1/obligations/" + o.ID + "/pay"},
		{http.MethodPost, "/v1/obligations/" + o.ID + "/skip"},
		{http.MethodDelete, "/v1/obligations/" + o.ID},
	} {
		res, data := doJSON(t, srv.Client(), tc.method, srv.URL+tc.path, nil, other)
		if res.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s as another owner: %d %s", tc.method, tc.path, res.StatusCode, string(data))
		}
	}

	res, _ := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v1/obligations/"+o.ID, nil, srv.bearer(t, testOwner))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("owner delete should 204, got %d", res.StatusCode)
	}
}

func TestReminderScanAndAck(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()
	hdr := srv.bearer(t, testOwner)
	o := createObligation(t, srv, testOwner, map[string]any{
		"amount": "50000", "category": "Water", "frequency": "once", "due_date": "tomorrow",
	})

	scan := func() []ReminderResponse {
		res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/reminders/due_tomorrow", nil, hdr)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("scan status %d: %s", res.StatusCode, string(data))
		}
		var out []ReminderResponse
		_ = json.Unmarshal(data, &out)
		return out
	}
	got := scan()
	if len(got) != 1 || got[0].ObligationID != o.ID || got[0].DaysUntil != 1 || got[0].Description != "Water" {
		t.Fatalf("unexpected reminders: %+v", got)
	}

	ack := func(due string) (*http.Response, []byte) {
		body := map[string]any{"reminders": []map[string]any{{"obligation_id": o.ID, "due_date": due}}}
		return doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/reminders/due_tomorrow/ack", body, hdr)
	}
	// an ack for a different occurrence of the same obligation marks nothing
	stale, _ := time.Parse("2006-01-02", got[0].DueDate)
	res, data := ack(stale.AddDate(0, 0, -7).Format("2006-01-02"))
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"marked":0`) {
		t.Fatalf("stale ack: %d %s", res.StatusCode, string(data))
	}
	if res, _ := ack("next week"); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed due date should 400, got %d", res.StatusCode)
	}
	res, data = ack(got[0].DueDate)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"marked":1`) {
		t.Fatalf("ack: %d %s", res.StatusCode, string(data))
	}
	if again := scan(); len(again) != 0 {
		t.Fatalf("acked reminder selected again: %+v", again)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/reminders/weekly", nil, hdr)
	if res.StatusCode != http.StatusBadRequest && res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown class should be rejected, got %d", res.StatusCode)
	}
}

func TestLedgerBalanceAndReport(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()
	hdr := srv.bearer(t, testOwner)

	for _, body := range []map[string]any{
		{"amount": "3000000", "description": "Salary"},
	} {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/incomes", body, hdr)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("income: %d %s", res.StatusCode, string(data))
		}
	}
	for _, body := range []map[string]any{
		{"amount": "400000", "category": "Food"},
		{"amount": "100000", "category": "Transport", "date": "2026-02-01"},
	} {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/expenses", body, hdr)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("expense: %d %s", res.StatusCode, string(data))
		}
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/expenses", map[string]any{"amount": "5"}, hdr)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expense without category should 400, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/balance?year=2026&month=2", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("balance: %d %s", res.StatusCode, string(data))
	}
	var bal MonthBalanceResponse
	_ = json.Unmarshal(data, &bal)
	if bal.Income != "3000000" || bal.Expenses != "500000" || bal.Available != "2500000" || bal.Closing != "2500000" {
		t.Fatalf("unexpected balance: %+v", bal)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/reports/monthly", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report: %d %s", res.StatusCode, string(data))
	}
	var rep ReportResponse
	_ = json.Unmarshal(data, &rep)
	if rep.Total != "500000" || rep.Count != 2 || len(rep.Categories) != 2 || rep.Categories[0].Category != "Food" || rep.Categories[0].Percent != 80 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/reports?from=2026-02-10&to=2026-02-01", nil, hdr)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("inverted range should 400, got %d", res.StatusCode)
	}
}

func TestAPIKeyAndDevLogin(t *testing.T) {
	srv, cleanup := newTestServer(t, true)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{"owner_id": testOwner}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	_ = json.Unmarshal(data, &login)
	hdr := map[string]string{"Authorization": "Bearer " + login.Token}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/api-keys", map[string]any{"name": "cron"}, hdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var key APIKeyResponse
	_ = json.Unmarshal(data, &key)
	if !strings.HasPrefix(key.Key, "ft_") {
		t.Fatalf("expected plaintext key once, got %+v", key)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": key.Key})
	var me WhoAmIResponse
	_ = json.Unmarshal(data, &me)
	if res.StatusCode != http.StatusOK || me.OwnerID != testOwner || me.Source != "api_key" {
		t.Fatalf("me via api key: %d %+v", res.StatusCode, me)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v1/api-keys/"+key.ID, nil, srv.bearer(t, otherOwner))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("another owner must not revoke the key, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v1/api-keys/"+key.ID, nil, hdr)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke: %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key still works: %d", res.StatusCode)
	}
}

func TestEventsAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()
	hdr := srv.bearer(t, testOwner)
	o := createObligation(t, srv, testOwner, map[string]any{
		"amount": "10", "category": "Cloud", "frequency": "yearly", "due_date": "2026-06-01",
	})
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/obligations/"+o.ID+"/skip", nil, hdr)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/events?limit=1", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	_ = json.Unmarshal(data, &page)
	if len(page.Items) != 1 || page.Items[0].Type != "obligation.skipped" || page.NextCursor == "" {
		t.Fatalf("unexpected events page: %+v", page)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/events?limit=1&cursor="+page.NextCursor, nil, hdr)
	_ = json.Unmarshal(data, &page)
	if res.StatusCode != http.StatusOK || len(page.Items) != 1 || page.Items[0].Type != "obligation.created" {
		t.Fatalf("unexpected second page: %+v", page)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", res.StatusCode)
	}
	if !strings.Contains(string(data), `fintrack_settlements_total{op="skip",result="ok"} 1`) {
		t.Fatalf("skip not counted:\n%s", string(data))
	}
	if !strings.Contains(string(data), `route="/v1/obligations/{id}/skip"`) {
		t.Fatalf("request route label missing")
	}
}

func TestOpenAPIDocumentIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t, false)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d: %s", res.StatusCode, string(data))
	}
	var doc struct {
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
		} `json:"components"`
		Paths map[string]map[string]struct {
			Security  []map[string][]string `json:"security"`
			Responses map[string]any        `json:"responses"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	for _, scheme := range []string{bearerScheme, apiKeyScheme} {
		if _, ok := doc.Components.SecuritySchemes[scheme]; !ok {
			t.Fatalf("missing security scheme %s", scheme)
		}
	}
	health := doc.Paths["/v1/health"]["get"]
	if len(health.Security) != 0 {
		t.Fatalf("health should be public, got %v", health.Security)
	}
	pay := doc.Paths["/v1/obligations/{id}/pay"]["post"]
	if len(pay.Security) != 2 {
		t.Fatalf("pay should accept bearer or api key, got %v", pay.Security)
	}
	if _, ok := pay.Responses["default"]; !ok {
		t.Fatalf("pay is missing the default error response")
	}
	if _, ok := doc.Paths["/v1/auth/dev/login"]; ok {
		t.Fatalf("dev login must not be documented when disabled")
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/docs", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"/v1/openapi.json"`) {
		t.Fatalf("docs page status %d: %s", res.StatusCode, string(data))
	}
}
