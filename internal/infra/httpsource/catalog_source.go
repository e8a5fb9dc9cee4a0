package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// CatalogSource downloads the country catalog as JSON. The document is decoded
// generically; validating that it is a code->name object is the loader's job.
type CatalogSource struct {
	client *http.Client
	url    string
}

func NewCatalogSource(client *http.Client, url string) *CatalogSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &CatalogSource{client: client, url: url}
}

func (s *CatalogSource) FetchCatalog(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("get catalog from %s: status %d", s.url, resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return doc, nil
}
