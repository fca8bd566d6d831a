package linkextract

import (
	"bytes"
	"errors"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/thkoch2001/lara/internal/model"
	"github.com/thkoch2001/lara/internal/urlutil"
	"go.uber.org/zap"
)

var (
	errNotHTTP  = errors.New("linkextract: not an http(s) url")
	errSelfLink = errors.New("linkextract: resolves to the base url")
)

// extractHTML implements the §4.F HTML extractor: every anchor with an
// href, resolved against base, restricted to http/https, fragment-stripped,
// dropped if it equals base byte-for-byte.
//
// A host-allowlist filter present in the code this is grounded on restricts
// extraction to a single test host; that is a development harness, not part
// of the design, and is deliberately not carried over here.
func extractHTML(logger *zap.Logger) Extractor {
	return func(body []byte, base *url.URL) []model.Outlink {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			logger.Warn("failed to parse HTML body", zap.String("url", base.String()), zap.Error(err))
			return nil
		}

		var outlinks []model.Outlink
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			resolved, err := resolveHref(href, base)
			if err != nil {
				return
			}

			rel, _ := s.Attr("rel")
			outlinks = append(outlinks, model.Outlink{
				URL:    resolved,
				Inlink: model.Inlink{Rel: rel, Context: model.Other},
			})
		})
		return outlinks
	}
}

func resolveHref(href string, base *url.URL) (*url.URL, error) {
	parsed, err := url.Parse(href)
	if err != nil {
		return nil, err
	}

	resolved := base.ResolveReference(parsed)
	if !urlutil.IsHTTPS(resolved) {
		return nil, errNotHTTP
	}

	resolved = urlutil.ClearFragment(resolved)
	if resolved.String() == base.String() {
		return nil, errSelfLink
	}
	return resolved, nil
}
