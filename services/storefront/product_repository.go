package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetProduct busca um produto do catálogo
func (s *PostgresStore) GetProduct(ctx context.Context, tx Tx, productID int64) (*Product, error) {
	var product Product
	err := s.q(tx).QueryRow(ctx, `
		SELECT id, name, description, price, picture_url, type, brand, quantity_in_stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.PictureURL,
		&product.Type,
		&product.Brand,
		&product.QuantityInStock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// GetProductsForUpdate trava os produtos em ordem crescente de id (FOR UPDATE)
// Produtos inexistentes simplesmente não aparecem no mapa.
func (s *PostgresStore) GetProductsForUpdate(ctx context.Context, tx Tx, productIDs []int64) (map[int64]*Product, error) {
	rows, err := s.q(tx).Query(ctx, `
		SELECT id, name, description, price, picture_url, type, brand, quantity_in_stock, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get products with lock: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]*Product, len(productIDs))
	for rows.Next() {
		var product Product
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.PictureURL,
			&product.Type,
			&product.Brand,
			&product.QuantityInStock,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[product.ID] = &product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	return products, nil
}

// DecreaseStock diminui o estoque sem checar piso
func (s *PostgresStore) DecreaseStock(ctx context.Context, tx Tx, productID int64, quantity int) error {
	tag, err := s.q(tx).Exec(ctx, `
		UPDATE products
		SET quantity_in_stock = quantity_in_stock - $2,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrease stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
