// internal/store/carts.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

const (
	sqlDeactivateCarts = `
        UPDATE carts SET status = 'inactive', updated_at = now()
        WHERE session_id = $1 AND status = 'active';
    `
	sqlInsertCart = `
        INSERT INTO carts (id, session_id, status)
        VALUES ($1, $2, $3);
    `
	sqlGetCart = `
        SELECT id, session_id, status, session_storage
        FROM carts
        WHERE id = $1;
    `
	sqlSaveSessionState = `
        UPDATE carts SET session_storage = $2, updated_at = now()
        WHERE id = $1;
    `
	sqlDeleteCartOrders   = `DELETE FROM orders WHERE cart_id = $1;`
	sqlDeleteCartProducts = `DELETE FROM products WHERE cart_id = $1;`
	sqlDeleteCart         = `DELETE FROM carts WHERE id = $1;`
)

func cartNotFound(id uuid.UUID) error {
	return errs.Newf(errs.NotFound, errs.ReasonNone, "Cart %s not found", id)
}

// CreateCart opens a fresh active cart for sessionID. Any cart the session
// still had active is deactivated first, so a session owns one active cart.
func (s *Store) CreateCart(ctx context.Context, sessionID string) (schemas.Cart, error) {
	cart := schemas.Cart{ID: uuid.New(), SessionID: sessionID, Status: schemas.CartActive}
	err := s.WithTx(ctx, func(r Repository) error {
		tx := r.(*Store)
		tag, err := tx.q.Exec(ctx, sqlDeactivateCarts, sessionID)
		if err != nil {
			return fmt.Errorf("failed to deactivate previous carts: %w", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			s.log.Info("Deactivated previous cart.", zap.String("session_id", sessionID), zap.Int64("carts", n))
		}
		if _, err := tx.q.Exec(ctx, sqlInsertCart, cart.ID, cart.SessionID, string(cart.Status)); err != nil {
			return fmt.Errorf("failed to insert cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return schemas.Cart{}, err
	}
	return cart, nil
}

// GetCart loads a cart. Inactive carts were superseded by a newer cart of the
// same session and are reported as a conflict.
func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (schemas.Cart, error) {
	var (
		cart   schemas.Cart
		status string
		state  []byte
	)
	err := s.q.QueryRow(ctx, sqlGetCart, id).Scan(&cart.ID, &cart.SessionID, &status, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart, cartNotFound(id)
	}
	if err != nil {
		return cart, fmt.Errorf("failed to query cart: %w", err)
	}
	cart.Status = schemas.CartStatus(status)
	if !cart.Status.Valid() {
		return cart, fmt.Errorf("cart %s has unknown status %q", id, status)
	}
	if cart.Status == schemas.CartInactive {
		return cart, errs.New(errs.Conflict, errs.ReasonCartInactive, "Cart is not active")
	}
	if len(state) > 0 {
		cart.SessionState = state
	}
	return cart, nil
}

// DeleteCart removes a cart together with its products and orders.
func (s *Store) DeleteCart(ctx context.Context, id uuid.UUID) error {
	return s.WithTx(ctx, func(r Repository) error {
		tx := r.(*Store)
		for _, stmt := range []string{sqlDeleteCartOrders, sqlDeleteCartProducts} {
			if _, err := tx.q.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete cart contents: %w", err)
			}
		}
		tag, err := tx.q.Exec(ctx, sqlDeleteCart, id)
		if err != nil {
			return fmt.Errorf("failed to delete cart: %w", err)
		}
		return affected(tag, cartNotFound(id))
	})
}

// SaveCartSessionState replaces the cart's browsing session blob.
func (s *Store) SaveCartSessionState(ctx context.Context, cartID uuid.UUID, state []byte) error {
	var blob any
	if len(state) > 0 {
		blob = state
	}
	tag, err := s.q.Exec(ctx, sqlSaveSessionState, cartID, blob)
	if err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return affected(tag, cartNotFound(cartID))
}
