package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const selectOrderColumns = `
	SELECT id, buyer_id, shipping_address, subtotal, delivery_fee,
	       COALESCE(payment_intent_id, ''), status, order_date, updated_at
	FROM orders
`

// CreateOrder insere o pedido e seus itens
func (s *PostgresStore) CreateOrder(ctx context.Context, tx Tx, order *Order) error {
	db := s.q(tx)

	// 1. Insere o pedido
	var paymentIntentID *string
	if order.PaymentIntentID != "" {
		paymentIntentID = &order.PaymentIntentID
	}
	_, err := db.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, shipping_address, subtotal, delivery_fee, payment_intent_id, status, order_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		order.ID,
		order.BuyerID,
		order.ShippingAddress,
		order.Subtotal,
		order.DeliveryFee,
		paymentIntentID,
		string(order.Status),
		order.OrderDate,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	// 2. Insere os itens em lote
	batch := &pgx.Batch{}
	for _, item := range order.OrderItems {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, product_name, picture_url, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, order.ID, item.ItemOrdered.ProductID, item.ItemOrdered.Name, item.ItemOrdered.PictureURL, item.Price, item.Quantity)
	}

	pgTx, ok := db.(pgx.Tx)
	if !ok {
		return fmt.Errorf("order items must be inserted inside a transaction")
	}
	results := pgTx.SendBatch(ctx, batch)
	for range order.OrderItems {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}

	return nil
}

// GetOrder busca um pedido do comprador; pedidos de outros compradores não são encontrados
func (s *PostgresStore) GetOrder(ctx context.Context, tx Tx, buyerID string, orderID string) (*Order, error) {
	order, err := scanOrder(s.q(tx).QueryRow(ctx, selectOrderColumns+` WHERE id = $1 AND buyer_id = $2`, orderID, buyerID))
	if err != nil {
		return nil, err
	}
	if err := s.loadOrderItems(ctx, tx, []*Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders lista os pedidos do comprador, mais recentes primeiro
func (s *PostgresStore) ListOrders(ctx context.Context, tx Tx, buyerID string) ([]*Order, error) {
	rows, err := s.q(tx).Query(ctx, selectOrderColumns+` WHERE buyer_id = $1 ORDER BY order_date DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	rows.Close()

	if err := s.loadOrderItems(ctx, tx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrderByPaymentIntent localiza o pedido correlacionado a um payment intent
func (s *PostgresStore) GetOrderByPaymentIntent(ctx context.Context, tx Tx, intentID string) (*Order, error) {
	return scanOrder(s.q(tx).QueryRow(ctx, selectOrderColumns+` WHERE payment_intent_id = $1 ORDER BY order_date DESC LIMIT 1`, intentID))
}

// UpdateOrderStatus muda o status apenas se o pedido ainda estiver em `from`
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, tx Tx, orderID string, from OrderStatus, to OrderStatus) (bool, error) {
	tag, err := s.q(tx).Exec(ctx, `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var order Order
	var status string
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.ShippingAddress,
		&order.Subtotal,
		&order.DeliveryFee,
		&order.PaymentIntentID,
		&status,
		&order.OrderDate,
		&order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order.Status = OrderStatus(status)
	order.OrderItems = []OrderItem{}
	return &order, nil
}

func (s *PostgresStore) loadOrderItems(ctx context.Context, tx Tx, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	rows, err := s.q(tx).Query(ctx, `
		SELECT order_id, product_id, product_name, picture_url, price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item OrderItem
		if err := rows.Scan(
			&orderID,
			&item.ItemOrdered.ProductID,
			&item.ItemOrdered.Name,
			&item.ItemOrdered.PictureURL,
			&item.Price,
			&item.Quantity,
		); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.OrderItems = append(order.OrderItems, item)
		}
	}
	return rows.Err()
}
