// Package robotsgate combines the robots cache with the fetcher into the
// policy core described in §4.G: check, get_sitemaps, filter_outlinks.
package robotsgate

import (
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/thkoch2001/lara/internal/clockutil"
	"github.com/thkoch2001/lara/internal/fetcher"
	"github.com/thkoch2001/lara/internal/model"
	"github.com/thkoch2001/lara/internal/robotscache"
	"github.com/thkoch2001/lara/internal/urlutil"
	"go.uber.org/zap"
)

// CheckResult is the closed Allowed|Disallowed|Retry(seconds) variant from
// §4.G.
type CheckResult struct {
	Allowed  bool
	Retrying bool
	Seconds  int
}

var (
	resultAllowed    = CheckResult{Allowed: true}
	resultDisallowed = CheckResult{}
)

func retryResult(seconds int) CheckResult {
	return CheckResult{Retrying: true, Seconds: seconds}
}

// retryAfterUnreachable is the coarse "try tomorrow" window from §4.G: about
// 23h20m, deliberately imprecise rather than an exponential backoff.
const retryAfterUnreachable = 84000

// Gate wraps a robots cache and a fetcher.
type Gate struct {
	cache   *robotscache.Cache[*robotstxt.RobotsData]
	fetcher *fetcher.Fetcher
	botName string
	logger  *zap.Logger
}

// New constructs a Gate. cache and f are owned by the caller and may be
// shared with other components that need the same cache/fetcher pair.
func New(cache *robotscache.Cache[*robotstxt.RobotsData], f *fetcher.Fetcher, botName string, logger *zap.Logger) *Gate {
	return &Gate{cache: cache, fetcher: f, botName: botName, logger: logger}
}

// Check implements §4.G's check operation.
func (g *Gate) Check(target *url.URL) (CheckResult, error) {
	ar, err := g.getOrFetch(target)
	if err != nil {
		return CheckResult{}, err
	}

	switch ar.Kind {
	case robotscache.Unavailable:
		return resultAllowed, nil
	case robotscache.Unreachable:
		return retryResult(retryAfterUnreachable), nil
	default:
		if ar.Policy.TestAgent(target.Path, g.botName) {
			return resultAllowed, nil
		}
		return resultDisallowed, nil
	}
}

// GetSitemaps implements §4.G's get_sitemaps operation.
func (g *Gate) GetSitemaps(target *url.URL) ([]model.Outlink, error) {
	ar, err := g.getOrFetch(target)
	if err != nil {
		return nil, err
	}
	if ar.Kind != robotscache.Ok {
		return nil, nil
	}

	var outlinks []model.Outlink
	for _, raw := range ar.Policy.Sitemaps {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		outlinks = append(outlinks, model.Outlink{URL: u, Inlink: model.Inlink{Context: model.Sitemap}})
	}
	return outlinks, nil
}

// FilterOutlinks implements §4.G's filter_outlinks operation: keeps only
// outlinks whose Check is Allowed; per-URL errors are logged and the
// outlink is dropped.
func (g *Gate) FilterOutlinks(outlinks []model.Outlink) []model.Outlink {
	var kept []model.Outlink
	for _, o := range outlinks {
		result, err := g.Check(o.URL)
		if err != nil {
			g.logger.Warn("error checking robots policy for outlink", zap.String("url", o.URL.String()), zap.Error(err))
			continue
		}
		if result.Allowed {
			kept = append(kept, o)
		}
	}
	return kept
}

// getOrFetch is the policy core from §4.G.
func (g *Gate) getOrFetch(target *url.URL) (robotscache.AccessResult[*robotstxt.RobotsData], error) {
	authority := target.Host

	var carriedFirstTried time.Time
	if entry, ok := g.cache.Get(authority); ok {
		switch entry.AR.Kind {
		case robotscache.Unavailable, robotscache.Ok:
			if !clockutil.Elapsed(entry.Updated, clockutil.OneDay) {
				return entry.AR, nil
			}
		case robotscache.Unreachable:
			if !clockutil.Elapsed(entry.Updated, clockutil.OneDay) {
				return entry.AR, nil
			}
			if clockutil.Elapsed(entry.Updated, 30*clockutil.OneDay) {
				return robotscache.UnavailableResult[*robotstxt.RobotsData](), nil
			}
			carriedFirstTried = entry.AR.FirstTried
		}
	}

	robotsURL, err := urlutil.WithPathOnly(target, "robots.txt")
	if err != nil {
		return robotscache.AccessResult[*robotstxt.RobotsData]{}, err
	}

	fr, err := g.fetcher.Fetch(robotsURL)
	if err != nil {
		return robotscache.AccessResult[*robotstxt.RobotsData]{}, err
	}

	var ar robotscache.AccessResult[*robotstxt.RobotsData]
	switch {
	case fr.Status >= 400 && fr.Status <= 499:
		ar = robotscache.UnavailableResult[*robotstxt.RobotsData]()
	case fr.Status == 200:
		policy, err := robotstxt.FromBytes(fr.Body)
		if err != nil {
			g.logger.Warn("failed to parse robots.txt", zap.String("url", robotsURL.String()), zap.Error(err))
			ar = robotscache.UnavailableResult[*robotstxt.RobotsData]()
			break
		}
		ar = robotscache.OkResult(policy)
	default:
		firstTried := carriedFirstTried
		if firstTried.IsZero() {
			firstTried = fr.Start
		}
		ar = robotscache.UnreachableResult[*robotstxt.RobotsData](firstTried)
	}

	g.cache.Insert(authority, ar, fr.Start)
	return ar, nil
}
