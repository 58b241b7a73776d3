// Package snapshot captures the content of a target at one poll cycle:
// a fingerprint over the raw bytes plus a line-sequence view for diffing.
//
// Fetchers fail soft. A deleted file, a network error, or a non-2xx
// response all collapse to an absent Snapshot — never an error. Retry is
// the poller's job via its next interval tick.
package snapshot

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/hazyhaar/chwatch/target"
)

// Snapshot is the state of a target at a point in time. Present=false
// signals fetch failure; Fingerprint and Lines are only meaningful when
// Present is true.
type Snapshot struct {
	Fingerprint string
	Lines       []string
	Present     bool
	FetchedAt   time.Time
}

// Absent returns an absent Snapshot stamped with the current time.
func Absent() Snapshot {
	return Snapshot{FetchedAt: time.Now()}
}

// SameFingerprint reports whether two snapshots carry an equal fingerprint.
// Two absent snapshots compare equal — nothing changed, nothing to diff.
func (s Snapshot) SameFingerprint(other Snapshot) bool {
	if !s.Present && !other.Present {
		return true
	}
	if s.Present != other.Present {
		return false
	}
	return s.Fingerprint == other.Fingerprint
}

// Fetcher produces a Snapshot for a target. Implementations never return
// an error: all failures degrade to an absent Snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, t target.Target) Snapshot
}

// Fingerprint computes the content hash used for cheap change detection.
// MD5 is deliberate: this detects edits, it is not a security boundary.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// SplitLines splits text into lines without a phantom empty trailing line,
// normalising CRLF and bare CR line endings first.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// FileFetcher reads local files.
type FileFetcher struct {
	logger *slog.Logger
}

// NewFileFetcher creates a FileFetcher.
func NewFileFetcher(logger *slog.Logger) *FileFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileFetcher{logger: logger}
}

// Fetch reads the full file content. Unreadable files (deleted, permission
// denied) yield an absent Snapshot.
func (f *FileFetcher) Fetch(_ context.Context, t target.Target) Snapshot {
	data, err := os.ReadFile(t.Identifier)
	if err != nil {
		f.logger.Warn("snapshot: read file failed", "target", t.Identifier, "error", err)
		return Absent()
	}
	return Snapshot{
		Fingerprint: Fingerprint(data),
		Lines:       SplitLines(string(data)),
		Present:     true,
		FetchedAt:   time.Now(),
	}
}

// URLFetcherConfig tunes the HTTP fetch path.
type URLFetcherConfig struct {
	// Timeout bounds the whole GET. Default: 10s.
	Timeout time.Duration
	// MaxBytes caps the response body read. Default: 10MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
}

func (c *URLFetcherConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "chwatch/1.0"
	}
}

// URLFetcher issues bounded GET requests.
type URLFetcher struct {
	client *http.Client
	config URLFetcherConfig
	logger *slog.Logger
}

// NewURLFetcher creates a URLFetcher with its own timeout-bounded client.
func NewURLFetcher(cfg URLFetcherConfig, logger *slog.Logger) *URLFetcher {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &URLFetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// Fetch GETs the target URL. Transport errors and non-2xx statuses yield
// an absent Snapshot. The fingerprint covers the raw response bytes; the
// line view is charset-decoded per the Content-Type header.
func (f *URLFetcher) Fetch(ctx context.Context, t target.Target) Snapshot {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Identifier, nil)
	if err != nil {
		f.logger.Warn("snapshot: bad url", "target", t.Identifier, "error", err)
		return Absent()
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("snapshot: fetch failed", "target", t.Identifier, "error", err)
		return Absent()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("snapshot: bad status", "target", t.Identifier, "status", resp.StatusCode)
		return Absent()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		f.logger.Warn("snapshot: read body failed", "target", t.Identifier, "error", err)
		return Absent()
	}

	return Snapshot{
		Fingerprint: Fingerprint(body),
		Lines:       SplitLines(decode(body, resp.Header.Get("Content-Type"))),
		Present:     true,
		FetchedAt:   time.Now(),
	}
}

// decode converts response bytes to UTF-8 text using the declared charset.
// Falls back to the raw bytes when the charset is unknown or decoding fails.
func decode(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// ForTarget returns the fetcher matching the target kind.
func ForTarget(t target.Target, file *FileFetcher, url *URLFetcher) Fetcher {
	if t.Kind == target.URL {
		return url
	}
	return file
}
