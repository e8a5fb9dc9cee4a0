package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"flag-quiz-service/internal/domain"
)

// maxImageSize caps a single flag download.
const maxImageSize = 4 << 20

// ImageSource downloads flag images from a URL template such as
// "https://example.com/svg/%s.svg"; the code is lower-cased before formatting.
type ImageSource struct {
	client      *http.Client
	urlTemplate string
}

func NewImageSource(client *http.Client, urlTemplate string) *ImageSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &ImageSource{client: client, urlTemplate: urlTemplate}
}

// URL returns the address the flag for code is downloaded from.
func (s *ImageSource) URL(code string) string {
	return fmt.Sprintf(s.urlTemplate, strings.ToLower(code))
}

// FetchImage returns the body and status. Error statuses are reported through
// Status, not err; err is reserved for transport failures.
func (s *ImageSource) FetchImage(ctx context.Context, code string) (domain.ImageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(code), nil)
	if err != nil {
		return domain.ImageResponse{}, fmt.Errorf("build image request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.ImageResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ImageResponse{Status: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return domain.ImageResponse{}, fmt.Errorf("read image body: %w", err)
	}
	return domain.ImageResponse{Status: resp.StatusCode, Body: body}, nil
}
