package crawler

import (
	"time"

	"github.com/thkoch2001/lara/internal/model"
)

// retryEntry is one UrlItem whose robots check returned Retry(seconds):
// it re-enters the frontier once eligibleAt has passed.
type retryEntry struct {
	item       *model.UrlItem
	eligibleAt time.Time
}

// retryHeap is a container/heap min-heap ordered by eligibleAt, resolving
// the "how should Retry(seconds) re-enqueue work" open question with a
// small delayed-eligibility priority queue checked each loop iteration.
type retryHeap []*retryEntry

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return h[i].eligibleAt.Before(h[j].eligibleAt) }
func (h retryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *retryHeap) Push(x interface{}) { *h = append(*h, x.(*retryEntry)) }

func (h *retryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
