package photo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/postdesk/internal/blogapi"
)

// maxFetchBytes 限制单张照片的下载大小
var maxFetchBytes int64 = 32 << 20

// HTTPFetcher re-downloads stored photos from the upload folder URL.
type HTTPFetcher struct {
	client  blogapi.HTTPDoer
	baseURL string
}

// NewHTTPFetcher creates a fetcher rooted at baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// SetHTTPClient swaps the transport.
func (f *HTTPFetcher) SetHTTPClient(client blogapi.HTTPDoer) {
	if client == nil {
		client = http.DefaultClient
	}
	f.client = client
}

// Fetch downloads name and returns it as a file named after the stored photo.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (*blogapi.Picture, error) {
	target := PreviewURL(f.baseURL, name)
	if target == "" {
		return nil, ErrEmptyName
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build photo request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch photo %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch photo %s: %s", name, resp.Status)
	}

	data, err := readLimited(resp.Body, maxFetchBytes)
	if err != nil {
		return nil, fmt.Errorf("read photo %s: %w", name, err)
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &blogapi.Picture{
		Filename:    strings.TrimSpace(name),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// readLimited reads at most limit bytes and reports ErrTooLarge instead of truncating.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
