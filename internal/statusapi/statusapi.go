// Package statusapi exposes a small Gin HTTP surface for operational
// introspection, per §4.O. It never drives crawls: scheduling still only
// happens via seeds and the frontier.
package statusapi

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/thkoch2001/lara/internal/fetcher"
	"github.com/thkoch2001/lara/internal/frontier"
	"github.com/thkoch2001/lara/internal/linkextract"
	"github.com/thkoch2001/lara/internal/model"
	"github.com/thkoch2001/lara/internal/robotsgate"
	"go.uber.org/zap"
)

// Server wires the §4.O endpoints against the crawl loop's shared
// components. /stats reads the frontier's and the WARC writer's counters
// through their locked accessors; /robots runs a Gate check, which may
// fetch robots.txt through the shared Fetcher and update the robots cache.
type Server struct {
	engine *gin.Engine
	logger *zap.Logger
}

// New builds the Gin engine and registers /health, /stats, /robots,
// /sitemap.
func New(fr *frontier.Frontier, f *fetcher.Fetcher, gate *robotsgate.Gate, registry *linkextract.Registry, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/stats", func(c *gin.Context) {
		archive := f.ArchiveStats()
		c.JSON(http.StatusOK, gin.H{
			"frontier_pending":   fr.Len(),
			"frontier_seen":      fr.SeenCount(),
			"bloom_approx_count": fr.BloomApproxCount(),
			"archive_segment":    archive.Segment,
			"archive_records":    archive.TotalRecords,
			"archive_bytes":      archive.TotalBytes,
		})
	})

	engine.GET("/robots", func(c *gin.Context) {
		domain := c.Query("domain")
		if domain == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "domain parameter required"})
			return
		}
		target, err := url.Parse("https://" + domain + "/")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain"})
			return
		}

		result, err := gate.Check(target)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		sitemaps, _ := gate.GetSitemaps(target)
		sitemapURLs := make([]string, len(sitemaps))
		for i, s := range sitemaps {
			sitemapURLs[i] = s.URL.String()
		}

		c.JSON(http.StatusOK, gin.H{
			"allowed":  result.Allowed,
			"retrying": result.Retrying,
			"sitemaps": sitemapURLs,
		})
	})

	engine.GET("/sitemap", func(c *gin.Context) {
		raw := c.Query("url")
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
			return
		}
		target, err := url.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
			return
		}

		resp, err := http.Get(target.String())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer resp.Body.Close()

		body := make([]byte, 0)
		buf := make([]byte, 32*1024)
		for {
			n, readErr := resp.Body.Read(buf)
			body = append(body, buf[:n]...)
			if readErr != nil {
				break
			}
		}

		item := &model.UrlItem{URL: target, Inlinks: []model.Inlink{{Context: model.Sitemap}}}
		outlinks := registry.Extract(item, body)
		locs := make([]string, len(outlinks))
		for i, o := range outlinks {
			locs[i] = o.URL.String()
		}

		c.JSON(http.StatusOK, gin.H{"locs": locs})
	})

	return &Server{engine: engine, logger: logger}
}

// Run blocks serving on addr.
func (s *Server) Run(addr string) error {
	s.logger.Info("status API listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}

// ServeHTTP lets Server be driven directly in tests without binding a port.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}
