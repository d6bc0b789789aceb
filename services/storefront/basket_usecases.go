package main

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BasketUseCase contém a lógica de negócio do carrinho
type BasketUseCase struct {
	store  Store
	tracer trace.Tracer
}

// NewBasketUseCase cria uma nova instância de BasketUseCase
func NewBasketUseCase(store Store, tracer trace.Tracer) *BasketUseCase {
	return &BasketUseCase{
		store:  store,
		tracer: tracer,
	}
}

// GetBasket retorna o carrinho do comprador ou ErrBasketNotFound
func (uc *BasketUseCase) GetBasket(ctx context.Context, buyerID string) (*Basket, error) {
	ctx, span := uc.tracer.Start(ctx, "basket.get")
	defer span.End()
	span.SetAttributes(attribute.String("buyer_id", buyerID))

	return uc.store.GetBasket(ctx, nil, buyerID)
}

// CreateBasket cria um carrinho vazio; ErrBasketExists se já houver um
func (uc *BasketUseCase) CreateBasket(ctx context.Context, buyerID string) (*Basket, error) {
	ctx, span := uc.tracer.Start(ctx, "basket.create")
	defer span.End()
	span.SetAttributes(attribute.String("buyer_id", buyerID))

	basket, err := uc.store.CreateBasket(ctx, nil, buyerID)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Basket created: %s for buyer %s", basket.ID, buyerID)
	return basket, nil
}

// AddItem adiciona quantity unidades do produto, criando o carrinho se preciso.
// created indica que o carrinho nasceu nesta chamada.
func (uc *BasketUseCase) AddItem(ctx context.Context, buyerID string, productID int64, quantity int) (*Basket, bool, error) {
	ctx, span := uc.tracer.Start(ctx, "basket.add_item")
	defer span.End()
	span.SetAttributes(
		attribute.String("buyer_id", buyerID),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", quantity),
	)

	if quantity < 1 {
		return nil, false, invalidInput("quantity must be at least 1")
	}

	var basket *Basket
	var created bool
	err := withTx(ctx, uc.store, func(tx Tx) error {
		// 1. Produto precisa existir (estoque não é verificado aqui)
		if _, err := uc.store.GetProduct(ctx, tx, productID); err != nil {
			return err
		}

		// 2. Garante o carrinho
		basketID, isNew, err := uc.store.EnsureBasket(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		created = isNew

		// 3. Insere ou soma a quantidade
		if err := uc.store.UpsertBasketItem(ctx, tx, basketID, productID, quantity); err != nil {
			return err
		}

		basket, err = uc.store.GetBasket(ctx, tx, buyerID)
		return err
	})
	if err != nil {
		log.Printf("❌ Add item failed: buyer=%s product=%d error=%v", buyerID, productID, err)
		return nil, false, err
	}

	log.Printf("✅ Added %d x product %d to basket %s", quantity, productID, basket.ID)
	return basket, created, nil
}

// RemoveItem diminui a quantidade do item; remove a linha quando chega a zero
func (uc *BasketUseCase) RemoveItem(ctx context.Context, buyerID string, productID int64, quantity int) (*Basket, error) {
	ctx, span := uc.tracer.Start(ctx, "basket.remove_item")
	defer span.End()
	span.SetAttributes(
		attribute.String("buyer_id", buyerID),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", quantity),
	)

	if quantity < 1 {
		return nil, invalidInput("quantity must be at least 1")
	}

	var basket *Basket
	err := withTx(ctx, uc.store, func(tx Tx) error {
		current, err := uc.store.GetBasketForUpdate(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		if _, ok := current.Item(productID); !ok {
			return ErrBasketItemNotFound
		}

		if err := uc.store.RemoveBasketItem(ctx, tx, current.ID, productID, quantity); err != nil {
			return err
		}

		basket, err = uc.store.GetBasket(ctx, tx, buyerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("remove item: %w", err)
	}

	log.Printf("✅ Removed %d x product %d from basket %s", quantity, productID, basket.ID)
	return basket, nil
}
