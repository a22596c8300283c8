package driven

import "context"

// FetchResult describes the outcome of one feed download.
type FetchResult struct {
	// Path is the file the body was written to.
	Path string

	// StatusCode is the HTTP status, or 0 when the request never produced
	// a response (timeout, connection failure).
	StatusCode int

	// BodyPreview holds the first bytes of a non-200 response body, for
	// error reporting. Empty on success.
	BodyPreview string

	// Gzipped indicates the body arrived gzip-compressed and was
	// decompressed in place.
	Gzipped bool
}

// FeedFetcher downloads one feed URL to local storage, streaming the body to
// disk so response size never bounds memory. Gzip-compressed bodies are
// decompressed transparently; the diff engine only ever sees plain text.
type FeedFetcher interface {
	Fetch(ctx context.Context, url, destPath string) (*FetchResult, error)
}
