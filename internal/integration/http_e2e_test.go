//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/cian"
	httpserver "github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/http_server"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/memory"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/supabase"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/app"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	mysqlrepo "github.com/hapjinhope/happiness-crm-miniapp/internal/storage/mysql"
)

// ---------- fake PostgREST ----------

// postgrest is an in-memory table behind the subset of the PostgREST
// query language the client speaks: eq, ilike, not.is.true, limit.
type postgrest struct {
	mu    sync.Mutex
	order []string
	rows  map[string]map[string]any
}

func newPostgrest(rows ...map[string]any) *postgrest {
	p := &postgrest{rows: map[string]map[string]any{}}
	for _, r := range rows {
		id := fmt.Sprint(r["id"])
		p.order = append(p.order, id)
		p.rows[id] = r
	}
	return p
}

func matchFilter(v any, expr string) bool {
	switch {
	case strings.HasPrefix(expr, "eq."):
		return v != nil && fmt.Sprint(v) == strings.TrimPrefix(expr, "eq.")
	case strings.HasPrefix(expr, "ilike."):
		if v == nil {
			return false
		}
		s := strings.ToLower(fmt.Sprint(v))
		pat := strings.Trim(strings.TrimPrefix(expr, "ilike."), "*")
		for _, part := range strings.Split(strings.ToLower(pat), "%") {
			if !strings.Contains(s, part) {
				return false
			}
		}
		return true
	case expr == "not.is.true":
		return v != true
	}
	return false
}

func (p *postgrest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/rest/v1/objects" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"relation does not exist"}`)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []string
	for _, id := range p.order {
		row := p.rows[id]
		ok := true
		for k, vs := range r.URL.Query() {
			switch k {
			case "select", "limit", "order":
				continue
			}
			if !matchFilter(row[k], vs[0]) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, id)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	var out []map[string]any
	switch r.Method {
	case http.MethodGet:
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			w.Header().Set("Content-Range", fmt.Sprintf("0-0/%d", len(matched)))
		}
		for _, id := range matched {
			out = append(out, p.rows[id])
		}
	case http.MethodPatch:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, id := range matched {
			for k, v := range patch {
				p.rows[id][k] = v
			}
			out = append(out, p.rows[id])
		}
	case http.MethodDelete:
		for _, id := range matched {
			out = append(out, p.rows[id])
			delete(p.rows, id)
		}
		kept := p.order[:0]
		for _, id := range p.order {
			if _, ok := p.rows[id]; ok {
				kept = append(kept, id)
			}
		}
		p.order = kept
	}
	if out == nil {
		out = []map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (p *postgrest) row(id string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows[id]
}

// ---------- fake CIAN ----------

const orderReport = `{"result":{"offers":[
 {"externalId":"A1","offerId":"323550001","status":"Published"},
 {"externalId":"A2","offerId":"323550893","status":"Refused","errors":["Нет фото"]},
 {"externalId":"A3","status":"Something new"},
 {"externalId":"A404","status":"Published"}
]}}`

func newCian(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer cian-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/get-order":
			_, _ = io.WriteString(w, orderReport)
		case "/v1/get-last-order-info":
			_, _ = io.WriteString(w, `{"result":{"orderId":77,"status":"completed"}}`)
		case "/v1/get-images-report":
			_, _ = fmt.Fprintf(w, `{"result":{"page":%s,"items":[]}}`, r.URL.Query().Get("page"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

// ---------- MySQL journal ----------

func migrationsDir() string {
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return dir
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startJournal(t *testing.T) *mysqlrepo.Journal {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=crm"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/crm?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return mysqlrepo.New(db)
}

// ---------- wiring ----------

func seed() *postgrest {
	return newPostgrest(
		map[string]any{"id": "A1", "address": "Москва, Тверская 1", "price": 85000, "status": "draft", "moderator": false},
		map[string]any{"id": "A2", "address": "Москва, Арбат 10", "price": 120000, "status": "active", "moderator": true, "cian_id": "323550893"},
		map[string]any{"id": "A3", "address": "Химки, Ленинградская 5", "price": 40000, "status": "active"},
	)
}

func newAPI(t *testing.T, db *postgrest, journal domain.Journal) string {
	t.Helper()
	rest := httptest.NewServer(db)
	t.Cleanup(rest.Close)
	cianSrv := newCian(t)

	store := supabase.New(rest.URL, "service-key", "objects", "id")
	v, err := app.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	objects := app.NewObjectService(store, journal, v, 2)
	srv := httpserver.New(httpserver.Options{})
	srv.MountHandlers(&httpserver.Handlers{
		Objects:  objects,
		Cian:     app.NewCianService(cian.New(cianSrv.URL, "cian-token", 50), store, journal, nil, memory.NewCache(), 0),
		Showings: app.NewShowingService(objects, nil, v),
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts.URL
}

func call(t *testing.T, method, u, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, u, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, u, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", u, err)
		}
	}
	return res.StatusCode
}

// ---------- the tests ----------

func TestHTTP_EndToEnd_Objects(t *testing.T) {
	db := seed()
	base := newAPI(t, db, nil)

	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if code := call(t, http.MethodGet, base+"/api/objects?q="+url.QueryEscape("тверская"), "", &list); code != 200 {
		t.Fatalf("search status %d", code)
	}
	if len(list.Items) != 1 || list.Items[0].ID != "A1" {
		t.Fatalf("search: %+v", list.Items)
	}

	var rec map[string]any
	if code := call(t, http.MethodPatch, base+"/api/objects/A1", `{"price": 90000}`, &rec); code != 200 {
		t.Fatalf("patch status %d", code)
	}
	if rec["price"] != float64(90000) || db.row("A1")["price"] != float64(90000) {
		t.Fatalf("patch not applied: %v", rec)
	}
	if code := call(t, http.MethodPatch, base+"/api/objects/ZZ", `{"price": 1}`, nil); code != 404 {
		t.Fatalf("patch missing: %d", code)
	}

	var count struct{ Count int }
	call(t, http.MethodGet, base+"/api/moderation/count", "", &count)
	if count.Count != 2 {
		t.Fatalf("moderation count = %d", count.Count)
	}
	if code := call(t, http.MethodPost, base+"/api/objects/A1/approve", "", nil); code != 200 {
		t.Fatalf("approve: %d", code)
	}
	call(t, http.MethodGet, base+"/api/moderation/count", "", &count)
	if count.Count != 1 {
		t.Fatalf("moderation count after approve = %d", count.Count)
	}

	var check struct {
		Found  bool           `json:"found"`
		Object map[string]any `json:"object"`
	}
	link := "https://www.cian.ru/rent/flat/323550893/"
	if code := call(t, http.MethodGet, base+"/api/publish-check?url="+url.QueryEscape(link), "", &check); code != 200 {
		t.Fatalf("publish-check: %d", code)
	}
	if !check.Found || check.Object["id"] != "A2" {
		t.Fatalf("publish-check: %+v", check)
	}

	if code := call(t, http.MethodDelete, base+"/api/objects/A3", "", nil); code != 200 {
		t.Fatalf("delete: %d", code)
	}
	if code := call(t, http.MethodGet, base+"/api/objects/A3", "", nil); code != 404 {
		t.Fatalf("get deleted: %d", code)
	}
}

func TestHTTP_EndToEnd_StatusSyncJournal(t *testing.T) {
	journal := startJournal(t)
	db := seed()
	base := newAPI(t, db, journal)

	var info map[string]any
	if code := call(t, http.MethodGet, base+"/api/cian/order-info", "", &info); code != 200 || info["demo"] != false {
		t.Fatalf("order-info: %d %v", code, info)
	}

	var res app.SyncResult
	if code := call(t, http.MethodPost, base+"/api/cian/status-sync", "", &res); code != 200 {
		t.Fatalf("status-sync: %d", code)
	}
	if res != (app.SyncResult{Updated: 2, Skipped: 1, Missed: 1}) {
		t.Fatalf("sync result: %+v", res)
	}
	if db.row("A1")["status"] != "active" || db.row("A2")["status"] != "rejected" || db.row("A3")["status"] != "active" {
		t.Fatalf("statuses: %v %v %v", db.row("A1"), db.row("A2"), db.row("A3"))
	}

	var journ struct {
		Items []domain.PatchEntry `json:"items"`
	}
	if code := call(t, http.MethodGet, base+"/api/sync/journal?limit=10", "", &journ); code != 200 {
		t.Fatalf("journal: %d", code)
	}
	if len(journ.Items) != 2 {
		t.Fatalf("journal items: %+v", journ.Items)
	}
	if e := journ.Items[0]; e.ObjectID != "A2" || e.Source != "status-sync" || e.Field != "status" || e.Value != "rejected" {
		t.Fatalf("newest journal entry: %+v", e)
	}
}
