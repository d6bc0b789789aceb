package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const selectBasketQuery = `
	SELECT id, buyer_id, COALESCE(payment_intent_id, ''), COALESCE(client_secret, ''), created_at, updated_at
	FROM baskets
	WHERE buyer_id = $1
`

// GetBasket busca o carrinho do comprador junto com os itens e os dados atuais dos produtos
func (s *PostgresStore) GetBasket(ctx context.Context, tx Tx, buyerID string) (*Basket, error) {
	return s.loadBasket(ctx, tx, selectBasketQuery, buyerID)
}

// GetBasketForUpdate obtém o carrinho com lock pessimista (FOR UPDATE)
func (s *PostgresStore) GetBasketForUpdate(ctx context.Context, tx Tx, buyerID string) (*Basket, error) {
	return s.loadBasket(ctx, tx, selectBasketQuery+" FOR UPDATE", buyerID)
}

func (s *PostgresStore) loadBasket(ctx context.Context, tx Tx, query string, buyerID string) (*Basket, error) {
	db := s.q(tx)

	var basket Basket
	err := db.QueryRow(ctx, query, buyerID).Scan(
		&basket.ID,
		&basket.BuyerID,
		&basket.PaymentIntentID,
		&basket.ClientSecret,
		&basket.CreatedAt,
		&basket.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBasketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get basket: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT bi.product_id, p.name, p.price, p.picture_url, p.brand, p.type, bi.quantity
		FROM basket_items bi
		JOIN products p ON p.id = bi.product_id
		WHERE bi.basket_id = $1
		ORDER BY bi.id
	`, basket.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get basket items: %w", err)
	}
	defer rows.Close()

	basket.Items = []BasketItem{}
	for rows.Next() {
		var item BasketItem
		if err := rows.Scan(
			&item.ProductID,
			&item.Name,
			&item.Price,
			&item.PictureURL,
			&item.Brand,
			&item.Type,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan basket item: %w", err)
		}
		basket.Items = append(basket.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read basket items: %w", err)
	}

	return &basket, nil
}

// CreateBasket insere um carrinho vazio; falha com ErrBasketExists se o comprador já tiver um
func (s *PostgresStore) CreateBasket(ctx context.Context, tx Tx, buyerID string) (*Basket, error) {
	basket := Basket{
		ID:      uuid.New().String(),
		BuyerID: buyerID,
		Items:   []BasketItem{},
	}

	err := s.q(tx).QueryRow(ctx, `
		INSERT INTO baskets (id, buyer_id)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, basket.ID, basket.BuyerID).Scan(&basket.CreatedAt, &basket.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, ErrBasketExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create basket: %w", err)
	}

	return &basket, nil
}

// EnsureBasket devolve o id do carrinho do comprador, criando-o se necessário
func (s *PostgresStore) EnsureBasket(ctx context.Context, tx Tx, buyerID string) (string, bool, error) {
	db := s.q(tx)

	var basketID string
	err := db.QueryRow(ctx, `
		INSERT INTO baskets (id, buyer_id)
		VALUES ($1, $2)
		ON CONFLICT (buyer_id) DO NOTHING
		RETURNING id
	`, uuid.New().String(), buyerID).Scan(&basketID)
	if err == nil {
		return basketID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("failed to create basket: %w", err)
	}

	err = db.QueryRow(ctx, `SELECT id FROM baskets WHERE buyer_id = $1`, buyerID).Scan(&basketID)
	if err != nil {
		return "", false, fmt.Errorf("failed to get basket: %w", err)
	}
	return basketID, false, nil
}

// UpsertBasketItem insere o item ou soma a quantidade ao item existente
func (s *PostgresStore) UpsertBasketItem(ctx context.Context, tx Tx, basketID string, productID int64, quantity int) error {
	db := s.q(tx)

	_, err := db.Exec(ctx, `
		INSERT INTO basket_items (basket_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (basket_id, product_id)
		DO UPDATE SET quantity = basket_items.quantity + EXCLUDED.quantity
	`, basketID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert basket item: %w", err)
	}

	return s.touchBasket(ctx, db, basketID)
}

// RemoveBasketItem diminui a quantidade; o item é apagado quando a quantidade chegaria a zero
func (s *PostgresStore) RemoveBasketItem(ctx context.Context, tx Tx, basketID string, productID int64, quantity int) error {
	db := s.q(tx)

	// 1. Remoção total quando a quantidade pedida cobre a existente
	tag, err := db.Exec(ctx, `
		DELETE FROM basket_items
		WHERE basket_id = $1 AND product_id = $2 AND quantity <= $3
	`, basketID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to delete basket item: %w", err)
	}

	// 2. Caso contrário apenas decrementa
	if tag.RowsAffected() == 0 {
		tag, err = db.Exec(ctx, `
			UPDATE basket_items
			SET quantity = quantity - $3
			WHERE basket_id = $1 AND product_id = $2
		`, basketID, productID, quantity)
		if err != nil {
			return fmt.Errorf("failed to decrease basket item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrBasketItemNotFound
		}
	}

	return s.touchBasket(ctx, db, basketID)
}

func (s *PostgresStore) touchBasket(ctx context.Context, db querier, basketID string) error {
	_, err := db.Exec(ctx, `UPDATE baskets SET updated_at = NOW() WHERE id = $1`, basketID)
	if err != nil {
		return fmt.Errorf("failed to touch basket: %w", err)
	}
	return nil
}

// DeleteBasket apaga o carrinho; os itens caem em cascata
func (s *PostgresStore) DeleteBasket(ctx context.Context, tx Tx, basketID string) error {
	tag, err := s.q(tx).Exec(ctx, `DELETE FROM baskets WHERE id = $1`, basketID)
	if err != nil {
		return fmt.Errorf("failed to delete basket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBasketNotFound
	}
	return nil
}

// ReassignBasket transfere o carrinho para outro comprador
func (s *PostgresStore) ReassignBasket(ctx context.Context, tx Tx, basketID string, buyerID string) error {
	tag, err := s.q(tx).Exec(ctx, `
		UPDATE baskets
		SET buyer_id = $2, updated_at = NOW()
		WHERE id = $1
	`, basketID, buyerID)
	if isUniqueViolation(err) {
		return ErrBasketExists
	}
	if err != nil {
		return fmt.Errorf("failed to reassign basket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBasketNotFound
	}
	return nil
}

// SetPaymentIntent grava o intent apenas uma vez; retorna false se outro já foi gravado
func (s *PostgresStore) SetPaymentIntent(ctx context.Context, tx Tx, basketID string, intentID string, clientSecret string) (bool, error) {
	tag, err := s.q(tx).Exec(ctx, `
		UPDATE baskets
		SET payment_intent_id = $2, client_secret = $3, updated_at = NOW()
		WHERE id = $1 AND payment_intent_id IS NULL
	`, basketID, intentID, clientSecret)
	if err != nil {
		return false, fmt.Errorf("failed to set payment intent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
