// Package fetch downloads remote assets (narration audio, overlay images)
// into a local working directory before the pipeline touches them.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxAttempts    = 3
	attemptTimeout = 60 * time.Second
)

// AssetKind hints at the expected content so the fetcher can pick a file
// extension when the URL does not reveal one.
type AssetKind string

const (
	KindAudio AssetKind = "audio"
	KindImage AssetKind = "image"
)

type Fetcher struct {
	client    *http.Client
	dir       string
	baseDelay time.Duration
	logger    *zap.Logger
}

// NewFetcher builds a fetcher writing into dir. baseDelay seeds the backoff
// between retries; tests pass a small value.
func NewFetcher(dir string, baseDelay time.Duration, logger *zap.Logger) *Fetcher {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Fetcher{
		client:    &http.Client{},
		dir:       dir,
		baseDelay: baseDelay,
		logger:    logger.Named("fetch"),
	}
}

// Download retrieves rawURL into the working directory under a fresh name
// and returns the local path. Failed attempts retry with exponential
// backoff; a non-2xx status counts as a failure.
func (f *Fetcher) Download(ctx context.Context, rawURL string, kind AssetKind) (string, error) {
	dst := filepath.Join(f.dir, fmt.Sprintf("temp_%s_%s%s", kind, uuid.NewString()[:8], inferExt(rawURL, kind)))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := f.baseDelay * time.Duration(1<<(attempt-2))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := f.fetchOnce(ctx, rawURL, dst); err != nil {
			f.logger.Warn("download attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		return dst, nil
	}

	return "", fmt.Errorf("download failed after %d attempts: %w", maxAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid asset URL: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dst) // drop the partial file so retries start clean
		return fmt.Errorf("failed to write asset: %w", err)
	}
	return out.Close()
}

// inferExt takes the extension from the URL path when present, otherwise
// defaults by kind.
func inferExt(rawURL string, kind AssetKind) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	if kind == KindAudio {
		return ".mp3"
	}
	return ".jpg"
}
