package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Fetcher materializes a job's input audio into scratch space. It
// accepts http/https sources and file URLs or plain paths, the latter
// covering locally staged uploads.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher with the given request timeout in
// seconds.
func NewFetcher(timeoutSec int) *Fetcher {
	if timeoutSec <= 0 {
		timeoutSec = 120
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

// Fetch downloads or copies the source to destPath. A non-success
// status or an empty body is an error; a partial file left by a failed
// transfer is removed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid input url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL, destPath)
	case "file":
		return copyLocal(u.Path, destPath)
	case "":
		return copyLocal(rawURL, destPath)
	default:
		return fmt.Errorf("unsupported input url scheme %q", u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch input: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to fetch input: status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create input file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write input file: %w", err)
	}
	if n == 0 {
		os.Remove(destPath)
		return fmt.Errorf("failed to fetch input: empty body")
	}
	return nil
}

func copyLocal(srcPath, destPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create input file: %w", err)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to copy input file: %w", err)
	}
	if n == 0 {
		os.Remove(destPath)
		return fmt.Errorf("input file is empty: %s", srcPath)
	}
	return nil
}
