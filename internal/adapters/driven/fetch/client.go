// Package fetch downloads feed exports over HTTP, streaming bodies straight
// to disk so a multi-gigabyte feed never touches memory. Some upstream
// services return gzip bytes without a Content-Encoding header; the client
// sniffs the gzip magic number and decompresses transparently, because the
// diff engine only understands plain delimited text.
package fetch

import (
	"bufio"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

// previewLimit bounds how much of a non-200 body is kept for error reports.
const previewLimit = 1000

// Options configure a fetch client.
type Options struct {
	// Timeout bounds one whole request including body streaming.
	// Zero means no client-side timeout; callers can still cancel via ctx.
	Timeout time.Duration

	// InsecureTLS skips certificate verification. Development endpoints
	// routinely serve self-signed certificates.
	InsecureTLS bool

	// RequestsPerSecond throttles outgoing requests across all goroutines
	// sharing this client. Zero disables throttling.
	RequestsPerSecond float64
}

// Client implements driven.FeedFetcher over net/http.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// Ensure Client implements the port.
var _ driven.FeedFetcher = (*Client)(nil)

// NewClient builds a fetch client from options.
func NewClient(opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		limiter: limiter,
	}
}

// Fetch implements driven.FeedFetcher. The body is streamed to destPath.
// A non-200 response is not an error: the result carries the status and a
// body preview and the caller decides how to report it. Only transport
// failures (DNS, connect, timeout) return an error.
func (c *Client) Fetch(ctx context.Context, url, destPath string) (*driven.FetchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	result := &driven.FetchResult{Path: destPath, StatusCode: resp.StatusCode}

	if resp.StatusCode != http.StatusOK {
		preview := make([]byte, previewLimit)
		n, _ := io.ReadFull(resp.Body, preview)
		result.BodyPreview = string(preview[:n])
		return result, nil
	}

	if err := streamToFile(resp.Body, destPath, result); err != nil {
		return nil, err
	}
	return result, nil
}

// streamToFile copies the body to destPath, decompressing on the fly when
// the stream starts with the gzip magic number.
func streamToFile(body io.Reader, destPath string, result *driven.FetchResult) error {
	br := bufio.NewReader(body)

	src := io.Reader(br)
	if head, err := br.Peek(2); err == nil && head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
		result.Gzipped = true
		logger.Debug("decompressing gzip response into %s", destPath)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(destPath)
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", destPath, err)
	}
	return nil
}
