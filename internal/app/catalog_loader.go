package app

import (
	"context"
	"fmt"

	"flag-quiz-service/internal/domain"
)

// CatalogSource supplies the raw country dataset. The result is expected to be a
// code->name mapping; anything else is rejected by the CatalogLoader.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) (any, error)
}

// CatalogLoader fetches the catalog, validates its shape and drops excluded codes.
type CatalogLoader struct {
	source   CatalogSource
	excluded []string
}

func NewCatalogLoader(source CatalogSource, excluded []string) *CatalogLoader {
	return &CatalogLoader{source: source, excluded: append([]string(nil), excluded...)}
}

// Load returns a freshly filtered catalog. It does not retry.
func (l *CatalogLoader) Load(ctx context.Context) (domain.Catalog, error) {
	raw, err := l.source.FetchCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	catalog, err := toCatalog(raw)
	if err != nil {
		return nil, err
	}

	for _, code := range l.excluded {
		delete(catalog, code)
	}
	return catalog, nil
}

func toCatalog(raw any) (domain.Catalog, error) {
	switch v := raw.(type) {
	case domain.Catalog:
		return v.Clone(), nil
	case map[string]string:
		return domain.Catalog(v).Clone(), nil
	case map[string]any:
		catalog := make(domain.Catalog, len(v))
		for code, name := range v {
			s, ok := name.(string)
			if !ok {
				return nil, fmt.Errorf("%w: name for %q is %T", domain.ErrMalformedCatalog, code, name)
			}
			catalog[code] = s
		}
		return catalog, nil
	default:
		return nil, fmt.Errorf("%w: got %T", domain.ErrMalformedCatalog, raw)
	}
}
