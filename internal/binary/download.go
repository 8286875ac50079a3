package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultTimeout bounds a whole download, body included.
	DefaultTimeout = 10 * time.Minute
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "shadow/1.0"

	chunkSize = 32 * 1024
)

// ProgressFunc receives the download completion percentage (0-100). Calls
// are monotonically non-decreasing and only happen when the server sends a
// Content-Length.
type ProgressFunc func(percent int)

// Downloader streams release assets to local files. It never retries; a
// failed download is reported to the caller as-is.
type Downloader struct {
	client    *http.Client
	userAgent string
	progress  ProgressFunc
}

// NewDownloader creates a downloader using client, or a default client with
// DefaultTimeout when client is nil.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// GitHub release assets redirect to a CDN; allow a few hops.
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	return &Downloader{
		client:    client,
		userAgent: DefaultUserAgent,
	}
}

// WithProgress sets the progress callback and returns d.
func (d *Downloader) WithProgress(fn ProgressFunc) *Downloader {
	d.progress = fn
	return d
}

// Download fetches url into destPath, creating or truncating it. On error a
// partially written file may remain; removing it is the caller's job.
func (d *Downloader) Download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrDownload, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrDownload, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("%w: create dest dir: %w", ErrDownload, err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: create file: %w", ErrDownload, err)
	}

	written, err := d.copy(out, resp.Body, resp.ContentLength)
	if err != nil {
		out.Close()
		return fmt.Errorf("%w: after %d bytes: %w", ErrDownload, written, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close file: %w", ErrDownload, err)
	}
	return nil
}

// copy streams body into out in fixed-size chunks, reporting progress.
func (d *Downloader) copy(out io.Writer, body io.Reader, total int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var received int64
	last := -1

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return received, fmt.Errorf("write: %w", err)
			}
			received += int64(n)
			if d.progress != nil && total > 0 {
				pct := percent(received, total)
				if pct > last {
					d.progress(pct)
					last = pct
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return received, nil
		}
		if readErr != nil {
			return received, fmt.Errorf("read body: %w", readErr)
		}
	}
}

func percent(received, total int64) int {
	if received >= total {
		return 100
	}
	return int(received * 100 / total)
}
