package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CheckoutUseCase orquestra a criação de pedidos a partir do carrinho
type CheckoutUseCase struct {
	store   Store
	pricing PricingPolicy
	metrics *CheckoutMetrics
	tracer  trace.Tracer
}

// NewCheckoutUseCase cria uma nova instância de CheckoutUseCase
func NewCheckoutUseCase(
	store Store,
	pricing PricingPolicy,
	metrics *CheckoutMetrics,
	tracer trace.Tracer,
) *CheckoutUseCase {
	return &CheckoutUseCase{
		store:   store,
		pricing: pricing,
		metrics: metrics,
		tracer:  tracer,
	}
}

// CreateOrderRequest é o corpo de POST /api/orders
type CreateOrderRequest struct {
	ShippingAddress Address `json:"shipping_address" binding:"required"`
	SaveAddress     bool    `json:"save_address"`
}

func commitFailed(step string, err error) error {
	return fmt.Errorf("%s: %w: %w", step, ErrCommitFailed, err)
}

// CreateOrder transforma o carrinho em pedido numa única transação:
// trava o carrinho e os produtos, baixa o estoque, grava o pedido e apaga o carrinho.
func (uc *CheckoutUseCase) CreateOrder(ctx context.Context, buyerID string, req CreateOrderRequest) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "checkout.create_order")
	defer span.End()
	span.SetAttributes(attribute.String("buyer_id", buyerID))

	log.Printf("➡️ [CHECKOUT] Buyer: %s", buyerID)

	if err := req.ShippingAddress.Validate(); err != nil {
		return nil, err
	}

	// 1. Inicia a transação
	tx, err := uc.store.BeginTx(ctx)
	if err != nil {
		return nil, commitFailed("begin transaction", err)
	}
	defer rollback(tx)

	// 2. Trava o carrinho (SELECT FOR UPDATE) para serializar checkouts concorrentes
	basket, err := uc.store.GetBasketForUpdate(ctx, tx, buyerID)
	if errors.Is(err, ErrBasketNotFound) {
		return nil, ErrEmptyBasket
	}
	if err != nil {
		return nil, commitFailed("load basket", err)
	}
	if basket.IsEmpty() {
		return nil, ErrEmptyBasket
	}

	// 3. Trava os produtos em ordem crescente de id
	productIDs := make([]int64, 0, len(basket.Items))
	for _, item := range basket.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	products, err := uc.store.GetProductsForUpdate(ctx, tx, productIDs)
	if err != nil {
		return nil, commitFailed("lock products", err)
	}

	// 4. Snapshot com o preço atual do produto
	items := make([]OrderItem, 0, len(basket.Items))
	for _, basketItem := range basket.Items {
		product, ok := products[basketItem.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d is no longer available: %w", basketItem.ProductID, ErrPreconditionFailed)
		}
		items = append(items, OrderItem{
			ItemOrdered: ProductItemOrdered{
				ProductID:  product.ID,
				Name:       product.Name,
				PictureURL: product.PictureURL,
			},
			Price:    product.Price,
			Quantity: basketItem.Quantity,
		})
	}

	// 5. Baixa o estoque (sem verificação de piso)
	for _, productID := range productIDs {
		item, _ := basket.Item(productID)
		if err := uc.store.DecreaseStock(ctx, tx, productID, item.Quantity); err != nil {
			return nil, commitFailed("decrease stock", err)
		}
	}

	// 6. Grava o pedido pendente com o intent do carrinho
	order := NewOrder(uuid.New().String(), buyerID, items, req.ShippingAddress, basket.PaymentIntentID, uc.pricing)
	if err := uc.store.CreateOrder(ctx, tx, order); err != nil {
		return nil, commitFailed("insert order", err)
	}

	// 7. Endereço salvo, se pedido
	if req.SaveAddress {
		if err := uc.store.SaveAddress(ctx, tx, buyerID, req.ShippingAddress); err != nil {
			return nil, commitFailed("save address", err)
		}
	}

	// 8. Remove o carrinho
	if err := uc.store.DeleteBasket(ctx, tx, basket.ID); err != nil {
		return nil, commitFailed("delete basket", err)
	}

	// 9. Commit
	if err := tx.Commit(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Printf("❌ CHECKOUT FAILED: commit | Buyer=%s | Error=%v", buyerID, err)
		return nil, commitFailed("commit", err)
	}

	uc.metrics.OrderCreated(ctx, order)
	span.SetAttributes(attribute.String("order_id", order.ID))
	log.Printf("✅ Order %s created for buyer %s (subtotal=%d delivery=%d)", order.ID, buyerID, order.Subtotal, order.DeliveryFee)
	return order, nil
}

// GetOrders lista os pedidos do comprador
func (uc *CheckoutUseCase) GetOrders(ctx context.Context, buyerID string) ([]*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "checkout.list_orders")
	defer span.End()

	return uc.store.ListOrders(ctx, nil, buyerID)
}

// GetOrder busca um pedido do comprador
func (uc *CheckoutUseCase) GetOrder(ctx context.Context, buyerID string, orderID string) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "checkout.get_order")
	defer span.End()

	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}
	return uc.store.GetOrder(ctx, nil, buyerID, orderID)
}

// GetSavedAddress retorna o endereço salvo num checkout anterior
func (uc *CheckoutUseCase) GetSavedAddress(ctx context.Context, buyerID string) (*Address, error) {
	ctx, span := uc.tracer.Start(ctx, "checkout.saved_address")
	defer span.End()

	return uc.store.GetAddress(ctx, nil, buyerID)
}
