// Package store is the Postgres persistence gateway for carts, products and
// orders, including the browsing session state each cart carries.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	querier
}

// querier is what both the pool and an open transaction offer.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository is the persistence contract the service layer depends on.
type Repository interface {
	CreateCart(ctx context.Context, sessionID string) (schemas.Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (schemas.Cart, error)
	DeleteCart(ctx context.Context, id uuid.UUID) error
	SaveCartSessionState(ctx context.Context, cartID uuid.UUID, state []byte) error

	GetProduct(ctx context.Context, id uuid.UUID) (schemas.Product, error)
	ProductsByCart(ctx context.Context, cartID uuid.UUID) ([]schemas.Product, error)
	SaveProduct(ctx context.Context, p schemas.Product) (schemas.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	SaveOrder(ctx context.Context, o schemas.Order) (schemas.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (schemas.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	// WithTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Store provides a PostgreSQL implementation of the Repository interface.
type Store struct {
	pool DBPool
	q    querier
	// inTx is set on the copy handed to a WithTx callback.
	inTx bool
	log  *zap.Logger
}

var _ Repository = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		q:    pool,
		log:  logger.Named("store"),
	}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a commit reports ErrTxClosed, which is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true, log: s.log}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// affected turns a zero-row mutation into notFound.
func affected(tag pgconn.CommandTag, notFound error) error {
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
