package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id          BIGSERIAL PRIMARY KEY,
	product_id  BIGINT        NOT NULL,
	quantity    INTEGER       NOT NULL CHECK (quantity > 0),
	total_price NUMERIC(14,2) NOT NULL,
	created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
)`

// OpenPool connects to PostgreSQL and waits for it to accept connections
func OpenPool(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			logger.Info("connected to orders database")
			return pool, nil
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}

// dbtx is the part of *pgxpool.Pool the store uses
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements orders.Repository using PostgreSQL
type PostgresStore struct {
	db dbtx
}

// NewPostgresStore creates a PostgresStore over the pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return newPostgresStore(db)
}

func newPostgresStore(db dbtx) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSchema creates the orders table if it does not exist
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create orders schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAll(ctx context.Context) ([]orders.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, product_id, quantity, total_price::text
		FROM orders
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*orders.Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, product_id, quantity, total_price::text
		FROM orders WHERE id = $1
	`, id)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresStore) Save(ctx context.Context, order *orders.Order) (*orders.Order, error) {
	saved := *order

	if saved.ID == 0 {
		err := s.db.QueryRow(ctx, `
			INSERT INTO orders (product_id, quantity, total_price)
			VALUES ($1, $2, $3::numeric)
			RETURNING id
		`, saved.ProductID, saved.Quantity, saved.TotalPrice.String()).Scan(&saved.ID)
		if err != nil {
			return nil, err
		}
		return &saved, nil
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (id, product_id, quantity, total_price)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO UPDATE
		SET product_id = $2, quantity = $3, total_price = $4::numeric, updated_at = NOW()
	`, saved.ID, saved.ProductID, saved.Quantity, saved.TotalPrice.String())
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o     orders.Order
		total string
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.Quantity, &total); err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total_price %q for order %d: %w", total, o.ID, err)
	}
	o.TotalPrice = price
	return &o, nil
}
