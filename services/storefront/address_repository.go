package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SaveAddress grava (ou substitui) o endereço salvo do comprador
func (s *PostgresStore) SaveAddress(ctx context.Context, tx Tx, buyerID string, address Address) error {
	_, err := s.q(tx).Exec(ctx, `
		INSERT INTO user_addresses (buyer_id, full_name, address1, address2, city, state, zip, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (buyer_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			address1 = EXCLUDED.address1,
			address2 = EXCLUDED.address2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip,
			country = EXCLUDED.country,
			updated_at = NOW()
	`, buyerID, address.FullName, address.Address1, address.Address2, address.City, address.State, address.Zip, address.Country)
	if err != nil {
		return fmt.Errorf("failed to save address: %w", err)
	}
	return nil
}

// GetAddress busca o endereço salvo do comprador
func (s *PostgresStore) GetAddress(ctx context.Context, tx Tx, buyerID string) (*Address, error) {
	var address Address
	err := s.q(tx).QueryRow(ctx, `
		SELECT full_name, address1, address2, city, state, zip, country
		FROM user_addresses
		WHERE buyer_id = $1
	`, buyerID).Scan(
		&address.FullName,
		&address.Address1,
		&address.Address2,
		&address.City,
		&address.State,
		&address.Zip,
		&address.Country,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &address, nil
}
