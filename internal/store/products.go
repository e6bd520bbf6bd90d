// internal/store/products.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// Prices travel as text so NUMERIC keeps its exact scale on both sides.
const (
	productColumns = `id, cart_id, product_url, product_variant, quantity, price::text, msrp::text`

	sqlGetProduct = `
        SELECT ` + productColumns + `
        FROM products
        WHERE id = $1;
    `
	sqlProductsByCart = `
        SELECT ` + productColumns + `
        FROM products
        WHERE cart_id = $1
        ORDER BY created_at ASC, id ASC;
    `
	sqlUpsertProduct = `
        INSERT INTO products (id, cart_id, product_url, product_variant, quantity, price, msrp)
        VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)
        ON CONFLICT (id) DO UPDATE SET
            product_variant = EXCLUDED.product_variant,
            quantity = EXCLUDED.quantity,
            price = EXCLUDED.price,
            msrp = EXCLUDED.msrp,
            updated_at = now();
    `
	sqlDeleteProduct = `DELETE FROM products WHERE id = $1;`
)

func productNotFound(id uuid.UUID) error {
	return errs.Newf(errs.NotFound, errs.ReasonProductNotFound, "Product %s not found", id)
}

func scanProduct(row pgx.Row) (schemas.Product, error) {
	var (
		p           schemas.Product
		price, msrp string
	)
	if err := row.Scan(&p.ID, &p.CartID, &p.URL, &p.Variant, &p.Quantity, &price, &msrp); err != nil {
		return p, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return p, fmt.Errorf("product %s has invalid price %q: %w", p.ID, price, err)
	}
	if p.MSRP, err = decimal.NewFromString(msrp); err != nil {
		return p, fmt.Errorf("product %s has invalid msrp %q: %w", p.ID, msrp, err)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (schemas.Product, error) {
	p, err := scanProduct(s.q.QueryRow(ctx, sqlGetProduct, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, productNotFound(id)
	}
	if err != nil {
		return p, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

// ProductsByCart lists a cart's products in the order they were added.
func (s *Store) ProductsByCart(ctx context.Context, cartID uuid.UUID) ([]schemas.Product, error) {
	rows, err := s.q.Query(ctx, sqlProductsByCart, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []schemas.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return products, nil
}

// SaveProduct inserts p, or updates it in place when p.ID already exists. A
// zero ID is assigned a new one.
func (s *Store) SaveProduct(ctx context.Context, p schemas.Product) (schemas.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.q.Exec(ctx, sqlUpsertProduct,
		p.ID, p.CartID, p.URL, p.Variant, p.Quantity, p.Price.String(), p.MSRP.String())
	if err != nil {
		return p, fmt.Errorf("failed to save product: %w", err)
	}
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, sqlDeleteProduct, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return affected(tag, productNotFound(id))
}
