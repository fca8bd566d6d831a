package linkextract

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"io"
	"net/url"
	"strings"

	"github.com/thkoch2001/lara/internal/model"
	"go.uber.org/zap"
)

// extractSitemap implements the §4.F sitemap extractor: a streaming,
// token-level XML scan for <url> and <sitemap> entries, transparently
// inflating gzip-compressed bodies first.
func extractSitemap(logger *zap.Logger) Extractor {
	return func(body []byte, base *url.URL) []model.Outlink {
		reader, err := maybeGunzip(body)
		if err != nil {
			logger.Warn("failed to inflate gzipped sitemap", zap.String("url", base.String()), zap.Error(err))
			return nil
		}
		return parseSitemapEntries(reader, logger, base)
	}
}

func maybeGunzip(body []byte) (io.Reader, error) {
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		return gr, nil
	}
	return bytes.NewReader(body), nil
}

// sitemapEntry accumulates the child-element text of one <url> or <sitemap>
// element, keyed by local element name. Every child's text is stored, but
// only "loc" is read; the others (lastmod, priority, ...) are kept unused.
type sitemapEntry struct {
	kind     string // "url" or "sitemap"
	children map[string]string
}

func parseSitemapEntries(r io.Reader, logger *zap.Logger, base *url.URL) []model.Outlink {
	dec := xml.NewDecoder(r)

	var outlinks []model.Outlink
	var entry *sitemapEntry
	var currentChild string
	var buf strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("malformed sitemap XML", zap.String("url", base.String()), zap.Error(err))
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "url", "sitemap":
				entry = &sitemapEntry{kind: t.Name.Local, children: map[string]string{}}
			default:
				if entry != nil {
					currentChild = t.Name.Local
					buf.Reset()
				}
			}
		case xml.CharData:
			if entry != nil && currentChild != "" {
				buf.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "url", "sitemap":
				if entry != nil {
					if o, ok := entryToOutlink(entry); ok {
						outlinks = append(outlinks, o)
					}
				}
				entry = nil
				currentChild = ""
			default:
				if entry != nil && currentChild == t.Name.Local {
					entry.children[currentChild] = strings.TrimSpace(buf.String())
					currentChild = ""
				}
			}
		}
	}
	return outlinks
}

func entryToOutlink(e *sitemapEntry) (model.Outlink, bool) {
	loc := strings.TrimSpace(e.children["loc"])
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return model.Outlink{}, false
	}

	ctx := model.Other
	if e.kind == "sitemap" {
		ctx = model.Sitemap
	}
	return model.Outlink{URL: u, Inlink: model.Inlink{Context: ctx}}, true
}
