package crawler

import (
	"container/heap"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/thkoch2001/lara/internal/fetcher"
	"github.com/thkoch2001/lara/internal/frontier"
	"github.com/thkoch2001/lara/internal/linkextract"
	"github.com/thkoch2001/lara/internal/model"
	"github.com/thkoch2001/lara/internal/robotscache"
	"github.com/thkoch2001/lara/internal/robotsgate"
	"github.com/thkoch2001/lara/internal/signalhandler"
	"go.uber.org/zap"
)

func TestRunCrawlsDiscoveredLinksToCompletion(t *testing.T) {
	var pages = map[string]string{
		"/": `<a href="/a">a</a><a href="/b">b</a>`,
		"/a": `no further links`,
		"/b": `<a href="/">back to root</a>`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(404)
			return
		}
		if r.URL.Path == "/sitemap.xml" {
			w.WriteHeader(404)
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(404)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	fr := frontier.New()
	f, err := fetcher.New(fetcher.Config{
		BotName:    "testbot",
		BotVersion: "0.1",
		BotURL:     "https://example.test/bot",
		From:       "ops@example.test",
		ArchiveDir: t.TempDir(),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("fetcher.New: %v", err)
	}
	defer f.Close()

	cache := robotscache.New[*robotstxt.RobotsData](zap.NewNop())
	gate := robotsgate.New(cache, f, "testbot", zap.NewNop())
	registry := linkextract.NewRegistry(zap.NewNop())

	loop := New(fr, f, gate, registry, Sinks{}, zap.NewNop())

	root, _ := url.Parse(srv.URL + "/")
	loop.Seed([]*url.URL{root})

	handler := signalhandler.New(zap.NewNop())
	loop.Run(context.Background(), handler)

	if fr.SeenCount() < 3 {
		t.Errorf("SeenCount() = %d, want at least 3 (root, /a, /b)", fr.SeenCount())
	}
	if fr.Len() != 0 {
		t.Errorf("Len() = %d after Run, want 0 (drained)", fr.Len())
	}
}

// TestDrainDueRetriesRedeliversPoppedItem covers SPEC_FULL.md §9(b): a
// UrlItem already popped once by GetItem (and therefore permanently marked
// seen in the frontier's dedup map) must still come back out of GetItem
// once its retry-heap entry becomes eligible. Using PutOutlink here instead
// of Retry would regress to a silent no-op and drop the URL forever.
func TestDrainDueRetriesRedeliversPoppedItem(t *testing.T) {
	fr := frontier.New()
	target, _ := url.Parse("https://example.test/retry-me")
	fr.PutOutlink(model.Outlink{URL: target, Inlink: model.DefaultInlink()})

	item, ok := fr.GetItem()
	if !ok {
		t.Fatalf("GetItem() returned nothing for seeded item")
	}
	if fr.Len() != 0 {
		t.Fatalf("Len() = %d after GetItem, want 0", fr.Len())
	}

	loop := &Loop{frontier: fr, logger: zap.NewNop()}
	heap.Push(&loop.retryHeap, &retryEntry{item: item, eligibleAt: time.Now().Add(-time.Second)})

	loop.drainDueRetries()

	if fr.Len() != 1 {
		t.Fatalf("Len() = %d after drainDueRetries, want 1 (redelivered)", fr.Len())
	}

	redelivered, ok := fr.GetItem()
	if !ok {
		t.Fatalf("GetItem() found nothing after drainDueRetries redelivered it")
	}
	if redelivered.URL.String() != target.String() {
		t.Errorf("redelivered URL = %s, want %s", redelivered.URL, target)
	}
}

// TestDrainDueRetriesLeavesNotYetEligibleEntries confirms entries whose
// eligibleAt is still in the future are left on the heap, not redelivered
// early.
func TestDrainDueRetriesLeavesNotYetEligibleEntries(t *testing.T) {
	fr := frontier.New()
	target, _ := url.Parse("https://example.test/not-yet")
	fr.PutOutlink(model.Outlink{URL: target, Inlink: model.DefaultInlink()})
	item, _ := fr.GetItem()

	loop := &Loop{frontier: fr, logger: zap.NewNop()}
	heap.Push(&loop.retryHeap, &retryEntry{item: item, eligibleAt: time.Now().Add(time.Hour)})

	loop.drainDueRetries()

	if fr.Len() != 0 {
		t.Errorf("Len() = %d, want 0: entry is not yet eligible and should stay on the retry heap", fr.Len())
	}
	if loop.retryHeap.Len() != 1 {
		t.Errorf("retryHeap.Len() = %d, want 1 (entry retained)", loop.retryHeap.Len())
	}
}

// TestRunOneIterationPushesRetryOnUnreachableRobots exercises the §4.G/§4.H
// path that feeds the retry heap in the first place: a robots.txt fetch
// that fails with a 5xx classifies as Unreachable, and Check surfaces that
// as Retrying rather than Allowed/Disallowed.
func TestRunOneIterationPushesRetryOnUnreachableRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fr := frontier.New()
	f, err := fetcher.New(fetcher.Config{
		BotName:    "testbot",
		BotVersion: "0.1",
		BotURL:     "https://example.test/bot",
		From:       "ops@example.test",
		ArchiveDir: t.TempDir(),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("fetcher.New: %v", err)
	}
	defer f.Close()

	cache := robotscache.New[*robotstxt.RobotsData](zap.NewNop())
	gate := robotsgate.New(cache, f, "testbot", zap.NewNop())
	registry := linkextract.NewRegistry(zap.NewNop())
	loop := New(fr, f, gate, registry, Sinks{}, zap.NewNop())

	target, _ := url.Parse(srv.URL + "/page")
	item := &model.UrlItem{URL: target, Inlinks: []model.Inlink{model.DefaultInlink()}}

	loop.runOneIteration(context.Background(), item)

	if loop.retryHeap.Len() != 1 {
		t.Fatalf("retryHeap.Len() = %d after an unreachable robots.txt fetch, want 1", loop.retryHeap.Len())
	}
	if loop.retryHeap[0].item.URL.String() != target.String() {
		t.Errorf("queued retry URL = %s, want %s", loop.retryHeap[0].item.URL, target)
	}
}
