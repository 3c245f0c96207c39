package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/memory"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/app"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

// ---- fakes ----

type stubStore struct {
	objects map[string]domain.Record
	err     error
	count   int
}

func (s *stubStore) Table() string    { return "objects" }
func (s *stubStore) IDColumn() string { return "id" }

func (s *stubStore) GetObject(_ context.Context, id string) (domain.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.objects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *stubStore) ListObjects(context.Context, domain.ListQuery) ([]domain.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Record
	for _, rec := range s.objects {
		out = append(out, rec)
	}
	return out, nil
}

func (s *stubStore) UpdateObject(ctx context.Context, id string, patch domain.Record) (domain.Record, error) {
	return s.UpdateRecord(ctx, "objects", "id", id, patch)
}

func (s *stubStore) DeleteObject(_ context.Context, id string) (bool, error) {
	if _, ok := s.objects[id]; !ok {
		return false, s.err
	}
	delete(s.objects, id)
	return true, nil
}

func (s *stubStore) GetRecord(context.Context, string, string, string) (domain.Record, error) {
	return nil, domain.ErrNotFound
}

func (s *stubStore) UpdateRecord(_ context.Context, _, _, value string, patch domain.Record) (domain.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.objects[value]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for k, v := range patch {
		rec[k] = v
	}
	return rec, nil
}

func (s *stubStore) CountRecords(context.Context, string, map[string]string) (int, error) {
	return s.count, s.err
}

type stubMarket struct{ err error }

func (m stubMarket) LastOrderInfo(context.Context) (map[string]any, error) {
	return map[string]any{"result": map[string]any{"orderId": 1}}, m.err
}
func (m stubMarket) OrderReport(context.Context) (map[string]any, error) {
	return map[string]any{"result": map[string]any{}}, m.err
}
func (m stubMarket) ImagesReport(context.Context, int, int) (map[string]any, error) {
	return map[string]any{"result": map[string]any{"items": []any{}}}, m.err
}

type upstreamErr struct{ code int }

func (e upstreamErr) Error() string   { return fmt.Sprintf("upstream %d", e.code) }
func (e upstreamErr) StatusCode() int { return e.code }

func newTestServer(t *testing.T, st *stubStore, market domain.Marketplace) *httptest.Server {
	t.Helper()
	v, err := app.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	objects := app.NewObjectService(st, nil, v, 1)
	s := New(Options{CORSOrigins: []string{"https://web.telegram.org"}})
	s.MountHandlers(&Handlers{
		Objects:  objects,
		Cian:     app.NewCianService(market, st, nil, nil, memory.NewCache(), 0),
		Showings: app.NewShowingService(objects, nil, v),
	})
	srv := httptest.NewServer(s.Mux())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func decodeProblem(t *testing.T, resp *http.Response, b []byte) problem {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q, body %s", ct, b)
	}
	var p problem
	if err := json.Unmarshal(b, &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, stubMarket{})
	resp, b := do(t, http.MethodGet, srv.URL+"/healthz", "")
	if resp.StatusCode != 200 || string(b) != "ok" {
		t.Fatalf("healthz: %d %s", resp.StatusCode, b)
	}
}

func TestObjects_GetListSummary(t *testing.T) {
	st := &stubStore{objects: map[string]domain.Record{"7": {"id": "7", "address": "Тверская, 1", "price": 50000}}}
	srv := newTestServer(t, st, stubMarket{})

	resp, b := do(t, http.MethodGet, srv.URL+"/api/objects/7", "")
	if resp.StatusCode != 200 || !strings.Contains(string(b), "Тверская, 1") {
		t.Fatalf("get: %d %s", resp.StatusCode, b)
	}

	resp, b = do(t, http.MethodGet, srv.URL+"/api/objects?q="+url.QueryEscape("Тверская")+"&limit=5", "")
	if resp.StatusCode != 200 {
		t.Fatalf("list: %d %s", resp.StatusCode, b)
	}
	var list struct {
		Items []struct {
			ID      string         `json:"id"`
			Address string         `json:"address"`
			Raw     map[string]any `json:"raw"`
		} `json:"items"`
	}
	if err := json.Unmarshal(b, &list); err != nil || len(list.Items) != 1 || list.Items[0].ID != "7" || list.Items[0].Address != "Тверская, 1" {
		t.Fatalf("list body: %s (%v)", b, err)
	}

	resp, b = do(t, http.MethodGet, srv.URL+"/api/objects/7/summary", "")
	if resp.StatusCode != 200 || !strings.Contains(string(b), `"html"`) {
		t.Fatalf("summary: %d %s", resp.StatusCode, b)
	}

	resp, b = do(t, http.MethodGet, srv.URL+"/api/objects/8", "")
	if resp.StatusCode != 404 {
		t.Fatalf("missing: %d %s", resp.StatusCode, b)
	}
	if p := decodeProblem(t, resp, b); p.Detail != "Объект не найден" {
		t.Fatalf("problem: %+v", p)
	}
}

func TestObjects_LimitValidation(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, stubMarket{})
	for _, q := range []string{"limit=0", "limit=201", "limit=abc"} {
		resp, b := do(t, http.MethodGet, srv.URL+"/api/objects?"+q, "")
		if resp.StatusCode != 400 {
			t.Fatalf("%s: %d %s", q, resp.StatusCode, b)
		}
	}
}

func TestObjects_PatchAndDelete(t *testing.T) {
	st := &stubStore{objects: map[string]domain.Record{"7": {"id": "7", "status": "draft"}}}
	srv := newTestServer(t, st, stubMarket{})

	resp, b := do(t, http.MethodPatch, srv.URL+"/api/objects/7", `{}`)
	if resp.StatusCode != 400 {
		t.Fatalf("empty patch: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, http.MethodPatch, srv.URL+"/api/objects/7", `{"status":"inactive"}`)
	if resp.StatusCode != 200 || !strings.Contains(string(b), `"inactive"`) {
		t.Fatalf("patch: %d %s", resp.StatusCode, b)
	}

	resp, b = do(t, http.MethodDelete, srv.URL+"/api/objects/7?mode=relist", "")
	if resp.StatusCode != 200 || st.objects["7"]["status"] != "active" {
		t.Fatalf("relist: %d %s %v", resp.StatusCode, b, st.objects["7"])
	}
	resp, b = do(t, http.MethodDelete, srv.URL+"/api/objects/7?mode=archive", "")
	if resp.StatusCode != 400 {
		t.Fatalf("bad mode: %d %s", resp.StatusCode, b)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/objects/7", "")
	if resp.StatusCode != 200 {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/objects/7", "")
	if resp.StatusCode != 404 {
		t.Fatalf("second delete: %d", resp.StatusCode)
	}
}

func TestUpstreamErrorsAre502(t *testing.T) {
	srv := newTestServer(t, &stubStore{err: upstreamErr{500}}, stubMarket{err: upstreamErr{503}})
	for _, path := range []string{"/api/objects", "/api/objects/1", "/api/moderation/count", "/api/cian/order-info"} {
		resp, b := do(t, http.MethodGet, srv.URL+path, "")
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("%s: %d %s", path, resp.StatusCode, b)
		}
	}
}

func TestCian_NotConfigured(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, stubMarket{err: fmt.Errorf("cian: %w", domain.ErrNotConfigured)})

	resp, b := do(t, http.MethodGet, srv.URL+"/api/cian/order-info", "")
	if resp.StatusCode != 200 || !strings.Contains(string(b), `"demo":true`) {
		t.Fatalf("order-info: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, http.MethodPost, srv.URL+"/api/cian/status-sync", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status-sync: %d %s", resp.StatusCode, b)
	}
}

func TestCian_ImagesReportParams(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, stubMarket{})
	for _, q := range []string{"page=0", "page_size=0", "page_size=501", "page=x"} {
		resp, b := do(t, http.MethodGet, srv.URL+"/api/cian/images-report?"+q, "")
		if resp.StatusCode != 400 {
			t.Fatalf("%s: %d %s", q, resp.StatusCode, b)
		}
	}
	resp, b := do(t, http.MethodGet, srv.URL+"/api/cian/images-report?page=2&page_size=500", "")
	if resp.StatusCode != 200 || !strings.Contains(string(b), `"demo":false`) {
		t.Fatalf("images: %d %s", resp.StatusCode, b)
	}
}

func TestModerationAndJournal(t *testing.T) {
	srv := newTestServer(t, &stubStore{count: 4}, stubMarket{})
	resp, b := do(t, http.MethodGet, srv.URL+"/api/moderation/count", "")
	if resp.StatusCode != 200 || strings.TrimSpace(string(b)) != `{"count":4}` {
		t.Fatalf("count: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, http.MethodGet, srv.URL+"/api/sync/journal", "")
	if resp.StatusCode != 200 || strings.TrimSpace(string(b)) != `{"items":[]}` {
		t.Fatalf("journal: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, http.MethodGet, srv.URL+"/api/owners/1", "")
	if resp.StatusCode != 404 {
		t.Fatalf("owner: %d %s", resp.StatusCode, b)
	}
	if p := decodeProblem(t, resp, b); p.Detail != "Владелец не найден" {
		t.Fatalf("problem: %+v", p)
	}
}

func TestShowings(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, stubMarket{})
	resp, b := do(t, http.MethodPost, srv.URL+"/api/showings", `{"object_id":"1","schedule":{"date":"2024-06-01"}}`)
	if resp.StatusCode != 200 || !strings.Contains(string(b), `"status":"sent"`) {
		t.Fatalf("showing: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, http.MethodPost, srv.URL+"/api/showings", `{"object_id":"1"}`)
	if resp.StatusCode != 400 {
		t.Fatalf("invalid showing: %d %s", resp.StatusCode, b)
	}
}

func TestPublishCheck(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, stubMarket{})
	resp, b := do(t, http.MethodGet, srv.URL+"/api/publish-check?url="+url.QueryEscape("https://evil.example.com/12345678"), "")
	if resp.StatusCode != 400 {
		t.Fatalf("foreign link: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, http.MethodGet, srv.URL+"/api/publish-check?url="+url.QueryEscape("https://www.avito.ru/moskva/kvartiry/2-k_12345678"), "")
	if resp.StatusCode != 200 || !strings.Contains(string(b), `"found":false`) {
		t.Fatalf("avito link: %d %s", resp.StatusCode, b)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, stubMarket{})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/objects", nil)
	req.Header.Set("Origin", "https://web.telegram.org")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://web.telegram.org" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestWebAppPages(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cabinet.html"), []byte("<h1>cabinet</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "app.js"), []byte("console.log('cabinet')"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Options{})
	s.MountWebApp(dir)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	for path, want := range map[string]int{
		"/":             200,
		"/cabinet.html": 200,
		"/search.html":  404,
		"/secret.txt":   404,

		"/static/scripts/app.js":  200,
		"/static/scripts/none.js": 404,
	} {
		resp, b := do(t, http.MethodGet, srv.URL+path, "")
		if resp.StatusCode != want {
			t.Fatalf("%s: %d %s", path, resp.StatusCode, b)
		}
		if want == 200 && !strings.Contains(string(b), "cabinet") {
			t.Fatalf("%s: body %s", path, b)
		}
	}
}
