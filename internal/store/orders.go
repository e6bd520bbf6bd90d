// internal/store/orders.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

const (
	sqlInsertOrder = `
        INSERT INTO orders (id, cart_id, order_type, payment_type, pickup_time)
        VALUES ($1, $2, $3, $4, $5);
    `
	sqlMarkCartOrdered = `
        UPDATE carts SET status = 'ordered', updated_at = now()
        WHERE id = $1;
    `
	sqlGetOrder = `
        SELECT id, cart_id, order_type, payment_type, pickup_time
        FROM orders
        WHERE id = $1;
    `
	sqlDeleteOrder = `DELETE FROM orders WHERE id = $1;`
)

func orderNotFound(id uuid.UUID) error {
	return errs.Newf(errs.NotFound, errs.ReasonNone, "Order %s not found", id)
}

// SaveOrder records a submitted order and marks its cart as ordered, in one
// transaction unless the caller already holds one.
func (s *Store) SaveOrder(ctx context.Context, o schemas.Order) (schemas.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := s.WithTx(ctx, func(r Repository) error {
		tx := r.(*Store)
		if _, err := tx.q.Exec(ctx, sqlInsertOrder, o.ID, o.CartID, o.OrderType, o.PaymentType, o.PickupTime); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		tag, err := tx.q.Exec(ctx, sqlMarkCartOrdered, o.CartID)
		if err != nil {
			return fmt.Errorf("failed to mark cart ordered: %w", err)
		}
		return affected(tag, cartNotFound(o.CartID))
	})
	if err != nil {
		return schemas.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (schemas.Order, error) {
	var o schemas.Order
	err := s.q.QueryRow(ctx, sqlGetOrder, id).Scan(&o.ID, &o.CartID, &o.OrderType, &o.PaymentType, &o.PickupTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, orderNotFound(id)
	}
	if err != nil {
		return o, fmt.Errorf("failed to query order: %w", err)
	}
	return o, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, sqlDeleteOrder, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return affected(tag, orderNotFound(id))
}
