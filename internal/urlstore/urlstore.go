// Package urlstore persists discovered URLs into an optional Postgres
// database, per §4.L. The crawl loop treats it as fire-and-forget: every
// write failure is logged, never fatal, and an absent or unreachable
// database just leaves the crawler running off the in-memory frontier.
package urlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thkoch2001/lara/internal/urlutil"
	"go.uber.org/zap"
)

// UrlRow is the on-disk shape of one stored URL, per §3's ambient
// additions.
type UrlRow struct {
	URLID    int64
	DomainID int64
	Path     string
	Query    string
}

// DomainRow is the on-disk shape of one stored authority.
type DomainRow struct {
	DomainID int64
	Name     string
}

// ToURL rebuilds a *url.URL from a UrlRow given its domain's name, mirroring
// the url helpers' with_path_only constructor.
func (r UrlRow) ToURL(domainName string) (*url.URL, error) {
	base, err := url.Parse("https://" + domainName + "/")
	if err != nil {
		return nil, fmt.Errorf("urlstore: invalid domain %q: %w", domainName, err)
	}
	rebuilt, err := urlutil.WithPathOnly(base, strings.TrimPrefix(r.Path, "/"))
	if err != nil {
		return nil, err
	}
	rebuilt.RawQuery = r.Query
	return rebuilt, nil
}

// Store wraps a connection-pooled Postgres client.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to connString. Callers should treat a non-nil error as
// "run without a URL store" rather than fatal, per §4.L.
func New(ctx context.Context, connString string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("urlstore: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("urlstore: pinging database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InsertURLs bulk-inserts urls, one (domain, path, query) tuple per URL,
// and returns how many rows were actually affected. Conflicting rows
// (already-known URLs) are skipped rather than erroring.
func (s *Store) InsertURLs(ctx context.Context, urls []*url.URL) (int64, error) {
	var inserted int64
	for _, u := range urls {
		tag, err := s.pool.Exec(ctx, `
			WITH d AS (
				INSERT INTO domains (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING domain_id
			)
			INSERT INTO urls (domain_id, path, query)
			SELECT domain_id, $2, $3 FROM d
			ON CONFLICT (domain_id, path, query) DO NOTHING
		`, u.Host, u.Path, u.RawQuery)
		if err != nil {
			return inserted, fmt.Errorf("urlstore: inserting %s: %w", u, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// SelectCrawlURLs returns up to 10 URL rows for domain, joined against their
// domain row, excluding any id in excludeIDs.
func (s *Store) SelectCrawlURLs(ctx context.Context, domain string, excludeIDs []int64) ([]UrlRow, DomainRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.url_id, u.domain_id, u.path, u.query, d.name
		FROM urls u
		JOIN domains d ON d.domain_id = u.domain_id
		WHERE d.name = $1 AND NOT (u.url_id = ANY($2))
		ORDER BY u.url_id
		LIMIT 10
	`, domain, excludeIDs)
	if err != nil {
		return nil, DomainRow{}, fmt.Errorf("urlstore: querying crawl urls for %s: %w", domain, err)
	}
	defer rows.Close()

	var urlRows []UrlRow
	var domainRow DomainRow
	for rows.Next() {
		var ur UrlRow
		var name string
		if err := rows.Scan(&ur.URLID, &ur.DomainID, &ur.Path, &ur.Query, &name); err != nil {
			return nil, DomainRow{}, fmt.Errorf("urlstore: scanning row: %w", err)
		}
		domainRow = DomainRow{DomainID: ur.DomainID, Name: name}
		urlRows = append(urlRows, ur)
	}
	return urlRows, domainRow, rows.Err()
}

// PersistBestEffort inserts u and logs (without returning) any failure,
// matching the crawl loop's fire-and-forget use of the store.
func (s *Store) PersistBestEffort(ctx context.Context, u *url.URL) {
	if _, err := s.InsertURLs(ctx, []*url.URL{u}); err != nil {
		s.logger.Warn("failed to persist discovered url", zap.String("url", u.String()), zap.Error(err))
	}
}
