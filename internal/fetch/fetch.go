// Package fetch keeps local copies of the IMDB dumps up to date.
package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BaseURL is where IMDB publishes its dataset dumps.
const BaseURL = "https://datasets.imdbws.com/"

// Files are the dump archives a build needs.
var Files = []string{
	"title.basics.tsv.gz",
	"title.principals.tsv.gz",
	"name.basics.tsv.gz",
}

const (
	defaultMaxTries = 3
	defaultWait     = 5 * time.Second

	// staleAfter is the fallback freshness window when the server does not
	// expose a Last-Modified header.
	staleAfter = 24 * time.Hour
)

// Client downloads and decompresses the IMDB dumps into a data directory.
type Client struct {
	httpClient *http.Client
	baseURL    string
	dataDir    string
	log        *slog.Logger
	maxTries   uint
	wait       time.Duration
}

// New creates a fetch client writing into dataDir.
func New(dataDir string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		baseURL:    BaseURL,
		dataDir:    dataDir,
		log:        log,
		maxTries:   defaultMaxTries,
		wait:       defaultWait,
	}
}

// Refresh updates every dump that is missing or older than its remote copy.
// It reports whether any file changed. A download that keeps failing is not
// fatal when a previous local copy exists.
func (c *Client) Refresh(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return false, fmt.Errorf("create data dir: %w", err)
	}

	updated := false
	for _, name := range Files {
		path := filepath.Join(c.dataDir, name)
		uri := c.baseURL + name

		if !c.needsUpdate(ctx, path, uri) {
			c.log.Info("dump is up to date", "file", name)
			continue
		}

		if err := c.download(ctx, path, uri); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				c.log.Warn("download failed, keeping existing copy", "file", name, "error", err)
				continue
			}
			return updated, fmt.Errorf("download %s: %w", uri, err)
		}
		if err := decompress(path, strings.TrimSuffix(path, ".gz")); err != nil {
			return updated, fmt.Errorf("decompress %s: %w", path, err)
		}
		c.log.Info("updated dump", "file", name)
		updated = true
	}
	return updated, nil
}

// needsUpdate compares the local file's mtime against the remote
// Last-Modified header, falling back to an age threshold when the header is
// unavailable.
func (c *Client) needsUpdate(ctx context.Context, path, uri string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}

	remote, err := c.lastModified(ctx, uri)
	if err != nil {
		c.log.Warn("could not read Last-Modified header", "uri", uri, "error", err)
		return time.Since(info.ModTime()) >= staleAfter
	}
	if remote.IsZero() {
		return time.Since(info.ModTime()) >= staleAfter
	}
	return remote.After(info.ModTime())
}

// lastModified issues a HEAD request for the remote Last-Modified timestamp,
// retrying transient failures. A zero time means the header was absent.
func (c *Client) lastModified(ctx context.Context, uri string) (time.Time, error) {
	return backoff.Retry(ctx, func() (time.Time, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
		if err != nil {
			return time.Time{}, backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return time.Time{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return time.Time{}, fmt.Errorf("HEAD %s: status %d", uri, resp.StatusCode)
		}
		header := resp.Header.Get("Last-Modified")
		if header == "" {
			return time.Time{}, nil
		}
		t, err := http.ParseTime(header)
		if err != nil {
			return time.Time{}, backoff.Permanent(fmt.Errorf("parse Last-Modified: %w", err))
		}
		return t, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.wait)),
		backoff.WithMaxTries(c.maxTries),
	)
}

// download fetches uri into path, retrying transient failures. The body is
// streamed to a temporary file and renamed into place.
func (c *Client) download(ctx context.Context, path, uri string) error {
	c.log.Info("downloading", "uri", uri, "path", path)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("GET %s: status %d", uri, resp.StatusCode)
		}

		tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		defer os.Remove(tmp.Name())

		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			return struct{}{}, err
		}
		if err := tmp.Close(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.wait)),
		backoff.WithMaxTries(c.maxTries),
	)
	return err
}

// decompress expands a .gz archive next to itself.
func decompress(gzPath, outPath string) error {
	in, err := os.Open(gzPath)
	if err != nil {
		return err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gz.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
