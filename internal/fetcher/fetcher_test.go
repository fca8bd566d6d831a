package fetcher

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := New(Config{
		BotName:    "testbot",
		BotVersion: "0.1",
		BotURL:     "https://example.test/bot",
		From:       "ops@example.test",
		ArchiveDir: t.TempDir(),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestFetchSetsHeadersAndArchives(t *testing.T) {
	var gotUA, gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotFrom = r.Header.Get("From")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	u, _ := url.Parse(srv.URL)
	fr, err := f.Fetch(u)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fr.Status != 200 {
		t.Errorf("Status = %d, want 200", fr.Status)
	}
	if string(fr.Body) != "hello" {
		t.Errorf("Body = %q, want %q", fr.Body, "hello")
	}
	if gotUA != "testbot/0.1 https://example.test/bot" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotFrom != "ops@example.test" {
		t.Errorf("From = %q", gotFrom)
	}
}

func TestFetchDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.Write([]byte("end"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	u, _ := url.Parse(srv.URL + "/start")
	fr, err := f.Fetch(u)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fr.Status != http.StatusFound {
		t.Errorf("Status = %d, want 302 (redirect not followed)", fr.Status)
	}
}

func TestFetchBodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1<<20)
		for i := 0; i < 51; i++ {
			w.Write(buf)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	u, _ := url.Parse(srv.URL)
	_, err := f.Fetch(u)
	if err != ErrBodyTooLarge {
		t.Errorf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestPolitenessFloorEnforced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	u, _ := url.Parse(srv.URL)
	if _, err := f.Fetch(u); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	t1 := time.Now()
	if _, err := f.Fetch(u); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	elapsed := time.Since(t1)
	if elapsed < politenessFloor-10*time.Millisecond {
		t.Errorf("second fetch started only %v after first Fetch call returned, want at least ~%v", elapsed, politenessFloor)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	start := time.Now()
	got, ok := parseRetryAfter("120", start)
	if !ok {
		t.Fatalf("parseRetryAfter(\"120\") failed")
	}
	if got.Sub(start) != 120*time.Second {
		t.Errorf("parseRetryAfter offset = %v, want 120s", got.Sub(start))
	}
}

func TestParseRetryAfterEmpty(t *testing.T) {
	if _, ok := parseRetryAfter("", time.Now()); ok {
		t.Errorf("parseRetryAfter(\"\") = ok, want not ok")
	}
}
