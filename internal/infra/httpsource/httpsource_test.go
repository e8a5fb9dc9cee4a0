package httpsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flag-quiz-service/internal/app"
	"flag-quiz-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCatalogSourceFeedsLoader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"FR":"France","DE":"Germany","IT":"Italy"}`))
	}))
	defer server.Close()

	loader := app.NewCatalogLoader(NewCatalogSource(server.Client(), server.URL), []string{"DE"})
	catalog, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.Catalog{"FR": "France", "IT": "Italy"}, catalog)
}

func TestCatalogSourceRejectsNonObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["FR","DE"]`))
	}))
	defer server.Close()

	loader := app.NewCatalogLoader(NewCatalogSource(server.Client(), server.URL), nil)
	_, err := loader.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrMalformedCatalog)
}

func TestCatalogSourceStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewCatalogSource(server.Client(), server.URL).FetchCatalog(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrMalformedCatalog))
}

func TestImageSourceLowercasesCode(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path == "/svg/xx.svg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<svg/>"))
	}))
	defer server.Close()

	source := NewImageSource(server.Client(), server.URL+"/svg/%s.svg")

	resp, err := source.FetchImage(context.Background(), "FR")
	require.NoError(t, err)
	require.Equal(t, "/svg/fr.svg", gotPath)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "<svg/>", string(resp.Body))

	resp, err = source.FetchImage(context.Background(), "XX")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.Empty(t, resp.Body)
}
