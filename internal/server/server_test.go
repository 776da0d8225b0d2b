package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"permitline/internal/config"
	"permitline/internal/domain"
	"permitline/internal/engine"
	"permitline/internal/snapshot"
)

type testServer struct {
	URL    string
	Engine *engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	store, err := snapshot.Open(t.TempDir(), "json")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	e, err := engine.New(store, config.Default().SeedMunicipalities())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     auth,
		Now:      func() time.Time { return now },
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
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			store.Close()
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

func createPermit(t *testing.T, srv *testServer, body map[string]any) domain.Permit {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/permits", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create permit status %d: %s", res.StatusCode, string(data))
	}
	var p domain.Permit
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal permit: %v", err)
	}
	return p
}

func TestPermitLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	p := createPermit(t, srv, map[string]any{
		"project_address": "412 Birchwood Ln",
		"customer_name":   "Dana Ruiz",
		"municipality":    "eagan",
	})
	if p.Status != domain.StatusNotStarted || len(p.StatusHistory) != 1 {
		t.Fatalf("unexpected initial state: %+v", p)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/permits/"+p.ID+"/status", map[string]any{
		"status": "application_submitted",
		"notes":  "dropped off at city hall",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("transition status %d: %s", res.StatusCode, string(data))
	}
	var after domain.Permit
	if err := json.Unmarshal(data, &after); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if after.Status != domain.StatusApplicationSubmitted || len(after.StatusHistory) != 2 {
		t.Fatalf("transition not recorded: %+v", after)
	}
	if after.StatusHistory[1].Notes != "dropped off at city hall" {
		t.Fatalf("notes lost: %+v", after.StatusHistory[1])
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/permits/"+p.ID, map[string]any{
		"permit_number": "BP-2024-0091",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/permits/"+p.ID, nil, nil)
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/permits/"+p.ID, nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found envelope, got %s", string(data))
	}
}

func TestCreatePermitMinimalDraft(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	// An address is the only required field; everything else defaults.
	p := createPermit(t, srv, map[string]any{"project_address": "1 Main St"})
	if p.CustomerName != "" || p.PermitType != "deck" || p.Status != domain.StatusNotStarted {
		t.Fatalf("unexpected defaults: %+v", p)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/permits", map[string]any{
		"customer_name": "Dana Ruiz",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without address, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCreatePermitCarriesFeePaymentDate(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	p := createPermit(t, srv, map[string]any{
		"project_address":  "1 Main St",
		"fee_paid":         true,
		"fee_payment_date": "2024-05-20T00:00:00Z",
	})
	if !p.FeePaid || p.FeePaymentDate == nil || *p.FeePaymentDate != "2024-05-20T00:00:00Z" {
		t.Fatalf("fee payment date lost: %+v", p)
	}
}

func TestInvalidStatusRejected(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	p := createPermit(t, srv, map[string]any{"project_address": "1 Main St"})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/permits/"+p.ID+"/status", map[string]any{
		"status": "abandoned",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d: %s", res.StatusCode, string(data))
	}
}

func TestInspectionCompletionStampsDate(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	p := createPermit(t, srv, map[string]any{"project_address": "1 Main St"})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/permits/"+p.ID+"/inspections", map[string]any{
		"type":   "footing",
		"status": "scheduled",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add inspection status %d: %s", res.StatusCode, string(data))
	}
	var insp domain.Inspection
	if err := json.Unmarshal(data, &insp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/permits/"+p.ID+"/inspections/"+insp.ID, map[string]any{
		"status": "completed",
		"result": "failed",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update inspection status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Inspection
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if updated.CompletedDate == nil || *updated.CompletedDate != "2024-06-01T12:00:00Z" {
		t.Fatalf("completion date not stamped: %+v", updated.CompletedDate)
	}
}

func TestDocumentTypesOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	p := createPermit(t, srv, map[string]any{"project_address": "1 Main St"})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/permits/"+p.ID+"/documents", map[string]any{
		"name": "footing report",
		"type": "inspection_report",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add document status %d: %s", res.StatusCode, string(data))
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Type != "inspection_report" {
		t.Fatalf("unexpected type: %+v", doc)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/permits/"+p.ID+"/documents", map[string]any{
		"name": "plat map",
		"type": "survey",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d: %s", res.StatusCode, string(data))
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	createPermit(t, srv, map[string]any{"project_address": "1 Main St"})
	p := createPermit(t, srv, map[string]any{"project_address": "2 Main St"})
	if _, err := srv.Engine.TransitionStatus(p.ID, domain.StatusPendingReview, ""); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/stats", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	var body StatsResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.TotalPermits != 2 || body.PendingReview != 1 {
		t.Fatalf("unexpected counts: %+v", body)
	}
}

func TestListPermitsWarningBadge(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	p := createPermit(t, srv, map[string]any{
		"project_address": "1 Main St",
		"expiration_date": "2024-06-10T00:00:00Z",
	})

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/permits", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var items []PermitSummary
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].ID != p.ID {
		t.Fatalf("unexpected list: %s", string(data))
	}
	if items[0].Warning != "Expiring soon" {
		t.Fatalf("expected warning badge, got %q", items[0].Warning)
	}
}

func TestCSVExportEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	createPermit(t, srv, map[string]any{
		"project_address": "1 Main St",
		"notes":           "=cmd|'/calc'",
	})

	res, err := srv.Client().Get(srv.URL + "/v0/export/permits.csv")
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export status %d: %s", res.StatusCode, string(data))
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}
	if !strings.Contains(string(data), "'=cmd|'/calc'") {
		t.Fatalf("formula payload not neutralized:\n%s", string(data))
	}
	// The body is a single clean CSV document with nothing trailing it.
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("body is not well-formed csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d records", len(records))
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	secret := "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/permits", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", res.StatusCode, string(data))
	}

	// health stays open
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should bypass auth, got %d", res.StatusCode)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/permits", nil, map[string]string{
		"Authorization": "Bearer " + signed,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRejectionsLogged(t *testing.T) {
	var logged bytes.Buffer
	srv, cleanup := newTestServer(t, AuthConfig{
		JWTSecret: "test-secret",
		Logger:    log.New(&logged, "", 0),
	})
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/permits", nil, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	if !strings.Contains(logged.String(), "rejected token") {
		t.Fatalf("expected rejection in log, got %q", logged.String())
	}
}

func TestMunicipalitiesSeededOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/municipalities", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var items []domain.Municipality
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected seeded municipalities")
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/municipalities", map[string]any{
		"id":   items[0].ID,
		"name": "Duplicate",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate id, got %d: %s", res.StatusCode, string(data))
	}
}
