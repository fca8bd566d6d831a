// Package crawler drives the fetch/discovery loop described in §4.H: a
// single-threaded orchestration of the frontier, robots gate, fetcher and
// link extractors, cooperating with the signal handler for graceful
// shutdown.
package crawler

import (
	"container/heap"
	"context"
	"net/url"
	"time"

	"github.com/thkoch2001/lara/internal/contentmirror"
	"github.com/thkoch2001/lara/internal/fetchevents"
	"github.com/thkoch2001/lara/internal/fetcher"
	"github.com/thkoch2001/lara/internal/frontier"
	"github.com/thkoch2001/lara/internal/linkextract"
	"github.com/thkoch2001/lara/internal/model"
	"github.com/thkoch2001/lara/internal/robotsgate"
	"github.com/thkoch2001/lara/internal/signalhandler"
	"github.com/thkoch2001/lara/internal/urlstore"
	"github.com/thkoch2001/lara/internal/urlutil"
	"go.uber.org/zap"
)

// Sinks bundles the optional ambient components described in §4.L–§4.N.
// Any field may be nil, in which case the corresponding best-effort step is
// skipped entirely.
type Sinks struct {
	URLStore  *urlstore.Store
	Mirror    *contentmirror.Mirror
	Publisher *fetchevents.Publisher
}

// Loop is the crawl loop's orchestrator.
type Loop struct {
	frontier  *frontier.Frontier
	fetcher   *fetcher.Fetcher
	gate      *robotsgate.Gate
	extract   *linkextract.Registry
	sinks     Sinks
	logger    *zap.Logger
	retryHeap retryHeap
}

// New constructs a Loop from its already-wired dependencies.
func New(fr *frontier.Frontier, f *fetcher.Fetcher, gate *robotsgate.Gate, extract *linkextract.Registry, sinks Sinks, logger *zap.Logger) *Loop {
	return &Loop{frontier: fr, fetcher: f, gate: gate, extract: extract, sinks: sinks, logger: logger}
}

// Seed enqueues the initial outlinks the crawl starts from.
func (l *Loop) Seed(seeds []*url.URL) {
	for _, u := range seeds {
		l.frontier.PutOutlink(model.Outlink{URL: u, Inlink: model.DefaultInlink()})
	}
}

// Run drains the frontier per §4.H, returning once it is empty or an
// interrupt is observed after an iteration completes.
func (l *Loop) Run(ctx context.Context, handler *signalhandler.Handler) {
	token := handler.Grace()
	defer token.Release()

	for {
		l.drainDueRetries()

		item, ok := l.frontier.GetItem()
		if !ok {
			if l.retryHeap.Len() == 0 {
				return
			}
			clockWaitUntilNextRetry(&l.retryHeap)
			continue
		}

		l.runOneIteration(ctx, item)

		if token.IsInterrupted() {
			l.logger.Info("interrupt observed, stopping after current iteration")
			return
		}
	}
}

func (l *Loop) runOneIteration(ctx context.Context, item *model.UrlItem) {
	result, err := l.gate.Check(item.URL)
	if err != nil {
		l.logger.Warn("robots check failed, skipping url", zap.String("url", item.URL.String()), zap.Error(err))
		return
	}
	if !result.Allowed && !result.Retrying {
		l.logger.Info("url disallowed by robots policy", zap.String("url", item.URL.String()))
		return
	}
	if result.Retrying {
		heap.Push(&l.retryHeap, &retryEntry{item: item, eligibleAt: time.Now().Add(time.Duration(result.Seconds) * time.Second)})
		return
	}

	fr, err := l.fetcher.Fetch(item.URL)
	if err != nil {
		l.logger.Warn("fetch failed", zap.String("url", item.URL.String()), zap.Error(err))
		return
	}

	outlinks := l.extract.Extract(item, fr.Body)

	if urlutil.IsDomainRoot(item.URL) {
		outlinks = append(outlinks, l.domainRootSitemaps(item.URL)...)
	}

	outlinks = l.gate.FilterOutlinks(outlinks)
	l.frontier.PutOutlinks(item, outlinks)

	l.publishBestEffort(ctx, item, fr)
}

// domainRootSitemaps implements the §4.H domain-root step: ask robots for
// declared sitemaps, falling back to the conventional /sitemap.xml path if
// none were declared.
func (l *Loop) domainRootSitemaps(target *url.URL) []model.Outlink {
	sitemaps, err := l.gate.GetSitemaps(target)
	if err != nil {
		l.logger.Warn("failed to read declared sitemaps", zap.String("url", target.String()), zap.Error(err))
		return nil
	}
	if len(sitemaps) > 0 {
		return sitemaps
	}

	fallback, err := urlutil.WithPathOnly(target, "sitemap.xml")
	if err != nil {
		return nil
	}
	return []model.Outlink{{URL: fallback, Inlink: model.Inlink{Context: model.Sitemap}}}
}

func (l *Loop) publishBestEffort(ctx context.Context, item *model.UrlItem, fr model.FetchResult) {
	target := item.URL
	if l.sinks.Publisher != nil {
		ev := fetchevents.FromFetchResult(target.String(), target.Host, item.BestInlink().Context, fr)
		l.sinks.Publisher.PublishBestEffort(ctx, ev)
	}
	if l.sinks.Mirror != nil {
		l.sinks.Mirror.MirrorBestEffort(ctx, contentmirror.FromFetchResult(target.String(), fr))
	}
	if l.sinks.URLStore != nil {
		l.sinks.URLStore.PersistBestEffort(ctx, target)
	}
}

// drainDueRetries moves every retry-heap entry whose eligibility time has
// passed back onto the frontier. It must use Retry, not PutOutlink: the
// item was already popped by GetItem once, so its URL is permanently
// marked seen and PutOutlink would silently no-op instead of
// re-delivering it (§9(b)).
func (l *Loop) drainDueRetries() {
	now := time.Now()
	for l.retryHeap.Len() > 0 && !l.retryHeap[0].eligibleAt.After(now) {
		entry := heap.Pop(&l.retryHeap).(*retryEntry)
		l.frontier.Retry(entry.item)
	}
}

func clockWaitUntilNextRetry(h *retryHeap) {
	if h.Len() == 0 {
		return
	}
	wait := time.Until((*h)[0].eligibleAt)
	if wait > 0 {
		time.Sleep(wait)
	}
}
