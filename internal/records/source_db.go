package records

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const queryTimeout = 3 * time.Second

type PostgresSource struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db, types: pgtype.NewMap()}
}

func (s *PostgresSource) Fetch(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		products, err := s.listProducts(ctx)
		if err != nil {
			return err
		}
		users, err := s.listUsers(ctx)
		if err != nil {
			return err
		}
		snap = Snapshot{Products: products, Users: users}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *PostgresSource) listProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category, price, description, images
		FROM products
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0, 64)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Category, &p.Price, &p.Description, s.types.SQLScanner(&p.Images)); err != nil {
			return nil, err
		}
		if p.Images == nil {
			p.Images = []string{}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresSource) listUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name
		FROM users
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0, 64)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
