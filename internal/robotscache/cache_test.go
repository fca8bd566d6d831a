package robotscache

import (
	"strconv"
	"testing"
	"time"

	"github.com/thkoch2001/lara/internal/clockutil"
	"go.uber.org/zap"
)

func TestGetInsertRoundTrip(t *testing.T) {
	c := New[string](zap.NewNop())
	now := time.Now()
	c.Insert("example.test", OkResult("policy"), now)

	e, ok := c.Get("example.test")
	if !ok {
		t.Fatalf("Get failed to find just-inserted entry")
	}
	if e.AR.Kind != Ok || e.AR.Policy != "policy" {
		t.Errorf("Get returned %+v, want Ok(policy)", e.AR)
	}
}

func TestCacheCapAfterManyInserts(t *testing.T) {
	c := New[string](zap.NewNop())
	now := time.Now()
	// shrinkLocked evicts by comparing real wall-clock elapsed time against
	// e.Updated, not against the now passed to Insert, so a cap test needs
	// entries actually backdated in real time rather than sharing one
	// timestamp: stagger each insert's Updated across the HalfDay horizon
	// the shrink sweep starts at, so some entries are old enough to evict.
	for i := 0; i < 500; i++ {
		backdated := now.Add(-time.Duration(i) * clockutil.HalfDay / 500)
		c.Insert(randomAuthority(i), OkResult("p"), backdated)
	}
	if c.Len() > maxSize {
		t.Errorf("cache size = %d, want <= %d", c.Len(), maxSize)
	}
}

func TestShrinkDropsOldEntriesFirst(t *testing.T) {
	c := New[string](zap.NewNop())
	old := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 15; i++ {
		c.Insert(randomAuthority(i), OkResult("old"), old)
	}
	// The age-based shrink runs only when more than shrinkThreshold entries
	// are held and the last shrink is over TwoDays old; backdate lastShrink
	// so one more insert with a fresh timestamp runs the halving-horizon
	// sweep, which should evict the old entries and keep the fresh one.
	c.lastShrink = time.Now().Add(-3 * clockutil.OneDay)
	c.Insert("fresh.test", OkResult("fresh"), time.Now())

	if _, ok := c.Get("fresh.test"); !ok {
		t.Errorf("fresh entry was evicted, want it kept")
	}
	if _, ok := c.Get(randomAuthority(0)); ok {
		t.Errorf("old entry survived the shrink, want it evicted")
	}
}

func randomAuthority(i int) string {
	return "host-" + strconv.Itoa(i) + ".test"
}
