// Package frontier implements the crawler's de-duplicating, LIFO queue of
// discovered URLs.
package frontier

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/thkoch2001/lara/internal/model"
)

const (
	bloomCapacity     = 1 << 20
	bloomFalsePosRate = 0.01
)

// entry is the frontier's record for one URL: every inlink recorded for it
// so far.
type entry struct {
	inlinks []model.Inlink
}

// Frontier is the dedup queue described in §4.E. The bloom filter sits in
// front of the exact map as a fast negative check: a miss proves the URL
// unseen without a map probe, a hit always falls through to the map, so the
// filter can never cause a false dedup.
type Frontier struct {
	mu      sync.Mutex
	seen    map[string]*entry
	bloom   *bloom.BloomFilter
	pending []*model.UrlItem
}

// New constructs an empty Frontier.
func New() *Frontier {
	return &Frontier{
		seen:  make(map[string]*entry),
		bloom: bloom.NewWithEstimates(bloomCapacity, bloomFalsePosRate),
	}
}

// PutOutlink enqueues o.URL if unseen, or merges o.Inlink into the already
// recorded inlinks for it if not. It never re-enqueues a URL once dequeued
// by GetItem.
func (f *Frontier) PutOutlink(o model.Outlink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putOutlinkLocked(o)
}

// PutOutlinks folds every outlink in outlinks via PutOutlink. source is
// accepted to mirror the teacher's signature but carries no behavior of its
// own: outlinks already embed their own inlink context.
func (f *Frontier) PutOutlinks(source *model.UrlItem, outlinks []model.Outlink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range outlinks {
		f.putOutlinkLocked(o)
	}
}

func (f *Frontier) putOutlinkLocked(o model.Outlink) {
	key := o.URL.String()

	if f.bloom.TestString(key) {
		if e, ok := f.seen[key]; ok {
			e.inlinks = append(e.inlinks, o.Inlink)
			return
		}
		// Bloom hit but no map entry: a false positive. Fall through to
		// treat this as unseen.
	}

	f.bloom.AddString(key)
	e := &entry{inlinks: []model.Inlink{o.Inlink}}
	f.seen[key] = e
	f.pending = append(f.pending, &model.UrlItem{URL: o.URL, Inlinks: e.inlinks})
}

// GetItem pops the most recently pushed pending UrlItem, if any. The URL
// remains in the dedup set permanently: once seen, it is never re-enqueued.
func (f *Frontier) GetItem() (*model.UrlItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.pending)
	if n == 0 {
		return nil, false
	}

	item := f.pending[n-1]
	f.pending = f.pending[:n-1]

	if e, ok := f.seen[item.URL.String()]; ok {
		item.Inlinks = e.inlinks
	}
	return item, true
}

// Retry re-delivers item to the pending stack, bypassing the seen/bloom
// check entirely. Unlike PutOutlink, this is the one path that re-enqueues
// a URL after it has already been dequeued once: it exists only for the
// crawl loop's delayed-retry heap (§4.G/§9(b)), which holds a UrlItem that
// GetItem already popped and whose entry in seen therefore already exists.
func (f *Frontier) Retry(item *model.UrlItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, item)
}

// Len reports the number of items currently pending (not the total number
// of distinct URLs ever seen).
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// SeenCount reports the exact number of distinct URLs ever enqueued.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// BloomApproxCount reports the bloom filter's own estimate of its element
// count, exposed for the status API's /stats endpoint.
func (f *Frontier) BloomApproxCount() uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bloom.ApproximatedSize()
}
