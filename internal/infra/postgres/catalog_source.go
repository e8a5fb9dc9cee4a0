package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogSource reads the country catalog from the countries table.
type CatalogSource struct {
	pool *pgxpool.Pool
}

func NewCatalogSource(pool *pgxpool.Pool) *CatalogSource {
	return &CatalogSource{pool: pool}
}

func (s *CatalogSource) FetchCatalog(ctx context.Context) (any, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name FROM countries`)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	catalog := make(map[string]string)
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		catalog[code] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read countries: %w", err)
	}
	return catalog, nil
}
