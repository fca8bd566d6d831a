// Package fetcher performs polite, archived HTTP fetches: one GET per call,
// throttled per authority, written to a WARC segment on the way out.
package fetcher

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/thkoch2001/lara/internal/clockutil"
	"github.com/thkoch2001/lara/internal/model"
	"github.com/thkoch2001/lara/internal/warc"
	"go.uber.org/zap"
)

const (
	connectTimeout = 5 * time.Second
	totalTimeout   = 20 * time.Second
	maxBodyBytes   = 50 << 20 // 50 MiB
)

// ErrBodyTooLarge is returned by Fetch when a response body exceeds
// maxBodyBytes.
var ErrBodyTooLarge = errors.New("fetcher: response body exceeds 50 MiB")

// Config configures Fetcher construction.
type Config struct {
	BotName    string
	BotVersion string
	BotURL     string
	From       string
	ArchiveDir string
}

func (c Config) userAgent() string {
	return fmt.Sprintf("%s/%s %s", c.BotName, c.BotVersion, c.BotURL)
}

// Fetcher is a single-host-aware HTTP client: it owns one politeness
// registry and one open WARC segment, neither shared with any other
// Fetcher.
type Fetcher struct {
	client     *http.Client
	warc       *warc.Writer
	politeness *politenessRegistry
	cfg        Config
	logger     *zap.Logger
}

// New builds a Fetcher. archive_dir (Config.ArchiveDir) is scanned for
// existing segments so a restarted crawler resumes numbering rather than
// overwriting (§4.D.ii).
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	w, err := warc.NewWriter(cfg.ArchiveDir, logger)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSClientConfig:     &tls.Config{},
		DisableCompression:  false,
		TLSHandshakeTimeout: connectTimeout,
	}

	client := &http.Client{
		Timeout:   totalTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Fetcher{
		client:     client,
		warc:       w,
		politeness: newPolitenessRegistry(),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Close finalizes the open archive segment, if any. A finalize failure is
// logged as well as returned.
func (f *Fetcher) Close() error {
	if err := f.warc.Close(); err != nil {
		f.logger.Error("failed to finalize archive segment", zap.Error(err))
		return err
	}
	return nil
}

// ArchiveStats exposes the underlying WARC writer's segment/byte counters
// for the status API's /stats endpoint (§4.O).
func (f *Fetcher) ArchiveStats() warc.Stats {
	return f.warc.Stats()
}

// Fetch performs the politeness wait, the GET, and the WARC write described
// in §4.D. Responses of every status, not only 200, are archived. A
// transport failure, a body over 50 MiB, or a failed WARC write returns a
// non-nil error instead of a FetchResult.
func (f *Fetcher) Fetch(target *url.URL) (model.FetchResult, error) {
	state := f.politeness.get(target.Host)
	clockutil.Wait(state.notBefore)

	req, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		return model.FetchResult{}, fmt.Errorf("fetcher: building request for %s: %w", target, err)
	}
	req.Header.Set("User-Agent", f.cfg.userAgent())
	req.Header.Set("From", f.cfg.From)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return model.FetchResult{}, fmt.Errorf("fetcher: fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return model.FetchResult{}, fmt.Errorf("fetcher: reading body of %s: %w", target, err)
	}
	if len(body) > maxBodyBytes {
		return model.FetchResult{}, ErrBodyTooLarge
	}
	duration := time.Since(start)

	fr := model.FetchResult{
		Body:        body,
		Duration:    duration,
		Start:       start,
		Status:      resp.StatusCode,
		HTTPVersion: resp.Proto,
		Headers:     resp.Header,
	}

	f.updatePoliteness(state, resp, start, duration)

	if err := f.warc.WriteResponse(target.String(), fr); err != nil {
		f.logger.Error("failed to write WARC record", zap.String("url", target.String()), zap.Error(err))
		return model.FetchResult{}, fmt.Errorf("fetcher: archiving %s: %w", target, err)
	}

	return fr, nil
}

// updatePoliteness applies the §4.D step-7 rule: 200 folds duration into the
// SMA, 429 honors Retry-After or doubles the outstanding delay, anything
// else is left untouched.
func (f *Fetcher) updatePoliteness(state *politenessState, resp *http.Response, start time.Time, duration time.Duration) {
	switch resp.StatusCode {
	case http.StatusOK:
		state.onSuccess(start, duration)
	case http.StatusTooManyRequests:
		if retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After"), start); ok {
			state.notBefore = retryAfter
			f.logger.Warn("429 response, honoring Retry-After", zap.Time("not_before", retryAfter))
		} else {
			nextDelay := politenessMultiplier * state.average()
			if nextDelay == 0 {
				nextDelay = politenessFloor
			}
			state.notBefore = start.Add(2 * nextDelay)
			f.logger.Warn("429 response without usable Retry-After, doubling delay", zap.Time("not_before", state.notBefore))
		}
	}
}

// parseRetryAfter supports both the delay-seconds and HTTP-date forms of
// the Retry-After header (RFC 9110 §10.2.3).
func parseRetryAfter(value string, start time.Time) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return start.Add(time.Duration(seconds) * time.Second), true
	}
	if when, err := http.ParseTime(value); err == nil {
		return when, true
	}
	return time.Time{}, false
}
