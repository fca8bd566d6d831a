// Package linkextract dispatches outlink extraction by the discovering
// inlink's Context: HTML for Other, sitemap XML for Sitemap, a reserved
// no-op for Feed.
package linkextract

import (
	"net/url"

	"github.com/thkoch2001/lara/internal/model"
	"go.uber.org/zap"
)

// Extractor turns a response body into outlinks relative to base.
type Extractor func(body []byte, base *url.URL) []model.Outlink

// Registry dispatches on Context, as described in §4.F: a map keyed by the
// closed Context variant rather than a type hierarchy.
type Registry struct {
	extractors map[model.Context]Extractor
	logger     *zap.Logger
}

// NewRegistry builds the standard dispatch table.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		extractors: map[model.Context]Extractor{
			model.Other:   extractHTML(logger),
			model.Sitemap: extractSitemap(logger),
			model.Feed:    extractFeed,
		},
		logger: logger,
	}
}

// Extract runs the extractor registered for item's best-recorded Context
// against body, resolving relative links against item.URL. Contexts with no
// registered extractor (Img, Style, Script) return no outlinks.
func (r *Registry) Extract(item *model.UrlItem, body []byte) []model.Outlink {
	ctx := item.BestInlink().Context
	fn, ok := r.extractors[ctx]
	if !ok {
		return nil
	}
	return fn(body, item.URL)
}
