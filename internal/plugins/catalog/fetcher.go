package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Fetcher retrieves a source image for ingestion.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*Source, error)
}

// Source is a fetched and validated source image.
type Source struct {
	Body []byte
	imageInfo
}

// HTTPFetcher downloads source images over http(s).
type HTTPFetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient.
// maxBytes bounds the accepted body size.
func NewHTTPFetcher(client *http.Client, maxBytes int64, userAgent string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, maxBytes: maxBytes, userAgent: userAgent}
}

// Fetch downloads sourceURL and validates that it is a supported image no
// larger than the configured limit.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) (*Source, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid source url %q", ErrMalformedInput, sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrIngestion, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrIngestion, u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetching %s: status %d", ErrIngestion, u.Redacted(), resp.StatusCode)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: source is %d bytes; maximum is %d", ErrIngestion, resp.ContentLength, f.maxBytes)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIngestion, u.Redacted(), err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: source exceeds %d bytes", ErrIngestion, f.maxBytes)
	}

	info, err := inspectImage(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}
	return &Source{Body: body, imageInfo: *info}, nil
}
