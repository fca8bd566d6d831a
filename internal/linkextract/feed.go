package linkextract

import (
	"net/url"

	"github.com/thkoch2001/lara/internal/model"
)

// extractFeed is the reserved Feed extractor from §4.F: feed parsing is not
// yet implemented, so it always reports no outlinks rather than erroring.
func extractFeed(_ []byte, _ *url.URL) []model.Outlink {
	return nil
}
