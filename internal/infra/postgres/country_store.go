package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// Country is a row of the countries table.
type Country struct {
	bun.BaseModel `bun:"table:countries"`

	Code      string    `bun:"code,pk"`
	Name      string    `bun:"name,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// CountryStore writes the catalog into Postgres.
type CountryStore struct {
	db *bun.DB
}

func NewCountryStore(db *bun.DB) *CountryStore {
	return &CountryStore{db: db}
}

// Upsert inserts or renames every country in catalog and returns how many rows it wrote.
func (s *CountryStore) Upsert(ctx context.Context, catalog map[string]string) (int, error) {
	if len(catalog) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	countries := make([]Country, 0, len(catalog))
	for code, name := range catalog {
		countries = append(countries, Country{Code: code, Name: name, UpdatedAt: now})
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].Code < countries[j].Code })

	res, err := s.db.NewInsert().
		Model(&countries).
		On("CONFLICT (code) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("upsert countries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(countries), nil
	}
	return int(n), nil
}
