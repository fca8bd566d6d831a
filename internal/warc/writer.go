// Package warc writes WARC-1.1 response records into gzip-wrapped,
// size-rotated segment files, per §6.1 of the crawler's archive format.
package warc

import (
	"compress/gzip"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/thkoch2001/lara/internal/model"
	"go.uber.org/zap"
)

// rotateThreshold is the cumulative uncompressed-bytes-written limit past
// which the current segment is finalized and a new one opened.
const rotateThreshold = 1 << 20 // 1 MiB

var segmentName = regexp.MustCompile(`^archive_(\d{3})\.warc\.gz$`)

// Writer owns at most one open gzip-wrapped WARC segment at a time.
type Writer struct {
	dir     string
	logger  *zap.Logger
	segment int

	file        *os.File
	gz          *gzip.Writer
	writtenSize int64

	mu           sync.Mutex
	totalRecords int64
	totalBytes   int64
}

// Stats is a point-in-time snapshot safe to read from a goroutine other than
// the one calling WriteResponse (the status API's /stats handler, per §4.O).
type Stats struct {
	Segment      int
	TotalRecords int64
	TotalBytes   int64
}

// Stats returns the current segment number and cumulative record/byte
// counts across the writer's lifetime.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{Segment: w.segment, TotalRecords: w.totalRecords, TotalBytes: w.totalBytes}
}

// NewWriter scans dir for existing archive_NNN.warc.gz segments and resumes
// numbering one past the highest found, so a restarted crawler never
// silently overwrites a prior run's archive (§4.D.ii, §9).
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("warc: reading archive dir %q: %w", dir, err)
	}

	next := 0
	for _, e := range entries {
		m := segmentName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}

	return &Writer{dir: dir, logger: logger, segment: next}, nil
}

// WriteResponse appends one WARC response record for targetURI, opening a
// segment if none is open and finalizing it once this write has pushed its
// uncompressed size past the threshold; the next write then opens a new one.
func (w *Writer) WriteResponse(targetURI string, fr model.FetchResult) error {
	record, err := buildRecord(targetURI, fr)
	if err != nil {
		return fmt.Errorf("warc: building record for %s: %w", targetURI, err)
	}

	if w.gz == nil {
		if err := w.openSegment(); err != nil {
			return err
		}
	}

	if _, err := w.gz.Write(record); err != nil {
		return fmt.Errorf("warc: writing record for %s: %w", targetURI, err)
	}
	if err := w.gz.Flush(); err != nil {
		return fmt.Errorf("warc: flushing segment for %s: %w", targetURI, err)
	}

	w.writtenSize += int64(len(record))

	w.mu.Lock()
	w.totalRecords++
	w.totalBytes += int64(len(record))
	w.mu.Unlock()

	if w.writtenSize > rotateThreshold {
		if err := w.finalizeSegment(); err != nil {
			return err
		}
	}
	return nil
}

// Close finalizes any open segment. Safe to call when nothing is open.
func (w *Writer) Close() error {
	if w.gz == nil {
		return nil
	}
	return w.finalizeSegment()
}

func (w *Writer) openSegment() error {
	path := filepath.Join(w.dir, segmentFilename(w.segment))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("warc: opening segment %q: %w", path, err)
	}
	w.file = f
	w.gz = gzip.NewWriter(f)
	w.writtenSize = 0
	return nil
}

func (w *Writer) finalizeSegment() error {
	gz, file := w.gz, w.file
	w.gz, w.file = nil, nil

	w.mu.Lock()
	segment := w.segment
	w.segment++
	w.mu.Unlock()

	closeErr := gz.Close()
	fileErr := file.Close()
	if closeErr != nil {
		return fmt.Errorf("warc: finalizing segment %d: %w", segment, closeErr)
	}
	if fileErr != nil {
		return fmt.Errorf("warc: closing segment %d file: %w", segment, fileErr)
	}
	if w.logger != nil {
		w.logger.Info("archive segment finalized", zap.Int("segment", segment))
	}
	return nil
}

func segmentFilename(n int) string {
	return fmt.Sprintf("archive_%03d.warc.gz", n)
}

// buildRecord serializes the WARC-1.1 response record described in §6.1:
// WARC header block, blank line, HTTP status line + headers + blank line,
// body, and the trailing \r\n\r\n record separator.
func buildRecord(targetURI string, fr model.FetchResult) ([]byte, error) {
	httpBlock := httpHeadBlock(fr)
	contentLength := len(httpBlock) + len(fr.Body)

	warcHead := fmt.Sprintf(
		"WARC/1.1\r\n"+
			"WARC-Type: response\r\n"+
			"Content-Type: application/http; msgtype=response\r\n"+
			"WARC-Record-ID: <urn:uuid:%s>\r\n"+
			"WARC-Target-URI: %s\r\n"+
			"Content-Length: %d\r\n"+
			"WARC-Date: %s\r\n"+
			"\r\n",
		uuid.New().String(),
		targetURI,
		contentLength,
		fr.Start.UTC().Format("2006-01-02T15:04:05Z"),
	)

	out := make([]byte, 0, len(warcHead)+contentLength+4)
	out = append(out, warcHead...)
	out = append(out, httpBlock...)
	out = append(out, fr.Body...)
	out = append(out, "\r\n\r\n"...)
	return out, nil
}

// httpHeadBlock renders the status line and headers of fr as they would
// appear on the wire, including the terminating blank line. Header names
// are sorted for deterministic archive output; RFC 9110 does not attach
// meaning to header order.
func httpHeadBlock(fr model.FetchResult) []byte {
	version := fr.HTTPVersion
	if version == "" {
		version = "HTTP/1.1"
	}

	head := fmt.Sprintf("%s %d %s\r\n", version, fr.Status, http.StatusText(fr.Status))

	names := make([]string, 0, len(fr.Headers))
	for name := range fr.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range fr.Headers[name] {
			head += fmt.Sprintf("%s: %s\r\n", name, value)
		}
	}
	head += "\r\n"
	return []byte(head)
}
