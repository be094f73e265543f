package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const checkViolation = "23514"

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT          NOT NULL,
	price      NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	quantity   INTEGER       NOT NULL CHECK (quantity >= 0),
	created_at TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ   NOT NULL DEFAULT NOW()
)`

// Repository defines the product database operations
type Repository interface {
	FindAll(ctx context.Context) ([]Product, error)
	FindByID(ctx context.Context, id int64) (*Product, error)
	Insert(ctx context.Context, product *Product) (*Product, error)

	// InsertAll inserts every product in one transaction
	InsertAll(ctx context.Context, products []Product) ([]Product, error)

	// Update replaces name, price and quantity; ErrProductNotFound if id is absent
	Update(ctx context.Context, product *Product) (*Product, error)

	Delete(ctx context.Context, id int64) error
}

// OpenDB opens the lib/pq pool and waits for the database to answer
func OpenDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	for i := 0; i < 30; i++ {
		if err := db.PingContext(ctx); err == nil {
			logger.Info("connected to products database")
			return db, nil
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}

// PostgresRepository implements Repository using database/sql and lib/pq
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateSchema creates the products table if needed
func (r *PostgresRepository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create products schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, price, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, quantity
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, product *Product) (*Product, error) {
	saved := *product
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, price, quantity)
		VALUES ($1, $2, $3)
		RETURNING id
	`, saved.Name, saved.Price, saved.Quantity).Scan(&saved.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &saved, nil
}

func (r *PostgresRepository) InsertAll(ctx context.Context, products []Product) ([]Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (name, price, quantity)
		VALUES ($1, $2, $3)
		RETURNING id
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if err := stmt.QueryRowContext(ctx, p.Name, p.Price, p.Quantity).Scan(&p.ID); err != nil {
			return nil, classify(err)
		}
		out = append(out, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, product *Product) (*Product, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, quantity = $4, updated_at = NOW()
		WHERE id = $1
	`, product.ID, product.Name, product.Price, product.Quantity)
	if err != nil {
		return nil, classify(err)
	}

	if err := expectOne(result); err != nil {
		return nil, err
	}
	saved := *product
	return &saved, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func expectOne(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// classify turns check constraint violations into ErrInvalidProduct
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == checkViolation {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, pqErr.Message)
	}
	return err
}
