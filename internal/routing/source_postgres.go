package routing

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSource reads the routing table from the tenant_numbers table owned
// by the admin application. This core only reads; provisioning writes happen
// elsewhere.
//
// max(updated_at) is the version marker: any row insert/update/deactivation
// bumps it, which invalidates the resolver cache on the next lookup.
type PostgresSource struct {
	DB *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{DB: db}
}

func (s *PostgresSource) Version(ctx context.Context) (string, error) {
	const q = `SELECT COALESCE(MAX(updated_at)::text, '') FROM tenant_numbers`
	var v string
	if err := s.DB.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return "", fmt.Errorf("routing version query: %w", err)
	}
	return v, nil
}

func (s *PostgresSource) Load(ctx context.Context) ([]TenantRouting, error) {
	const q = `SELECT tenant_id, number_id, phone_number, active FROM tenant_numbers`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("routing table query: %w", err)
	}
	defer rows.Close()

	var out []TenantRouting
	for rows.Next() {
		var r TenantRouting
		if err := rows.Scan(&r.TenantID, &r.NumberID, &r.PhoneNumber, &r.Active); err != nil {
			return nil, fmt.Errorf("routing row scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("routing rows: %w", err)
	}
	return out, nil
}
