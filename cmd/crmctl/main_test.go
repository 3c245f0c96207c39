package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const rows = `[
 {"id":"A1","title":"Квартира на Тверской","cian_url":"https://www.cian.ru/rent/flat/323550893/"},
 {"id":"A2","title":"Студия на Арбате","cian_id":"323550001","cian_url":"https://www.cian.ru/rent/flat/323550001/"}
]`

func fakeStore(t *testing.T) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("id") {
		case "":
			_, _ = io.WriteString(w, rows)
		case "eq.A1":
			_, _ = io.WriteString(w, `[{"id":"A1","title":"Квартира на Тверской"}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	t.Cleanup(ts.Close)

	t.Setenv("SUPABASE_URL", ts.URL)
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("NOTIFY_BOT_TOKEN", "")
	t.Setenv("CIAN_API_TOKEN", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRender(t *testing.T) {
	fakeStore(t)
	out, err := run(t, "render", "A1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Квартира на Тверской") {
		t.Fatalf("unexpected output: %q", out)
	}

	if _, err := run(t, "render", "missing"); err == nil {
		t.Fatal("want error for a missing object")
	}
}

func TestReconcileDryRun(t *testing.T) {
	fakeStore(t)
	out, err := run(t, "reconcile", "--limit", "10")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(out, "A1\t{\"cian_id\":\"323550893\"}\n") {
		t.Fatalf("missing patch line: %q", out)
	}
	if strings.Contains(out, "A2\t") {
		t.Fatalf("complete object listed: %q", out)
	}
	if !strings.HasSuffix(out, "1 of 2 objects need a patch (dry run)\n") {
		t.Fatalf("unexpected summary: %q", out)
	}
}

func TestPublishCheckRejectsForeignDomain(t *testing.T) {
	fakeStore(t)
	if _, err := run(t, "publish-check", "https://example.com/flat/12345678"); err == nil {
		t.Fatal("want error for a foreign domain")
	}
}

func TestMissingConfig(t *testing.T) {
	fakeStore(t)
	t.Setenv("SUPABASE_URL", "")
	_, err := run(t, "render", "A1")
	if err == nil || !strings.Contains(err.Error(), "SUPABASE_URL") {
		t.Fatalf("want missing config error, got %v", err)
	}
}

func TestArgs(t *testing.T) {
	fakeStore(t)
	if _, err := run(t, "render"); err == nil {
		t.Fatal("render without id should fail")
	}
}
