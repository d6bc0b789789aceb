package main

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PaymentUseCase sincroniza o valor do carrinho com o intent do processador
type PaymentUseCase struct {
	store     Store
	processor PaymentProcessor
	pricing   PricingPolicy
	currency  string
	metrics   *CheckoutMetrics
	tracer    trace.Tracer
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(
	store Store,
	processor PaymentProcessor,
	pricing PricingPolicy,
	currency string,
	metrics *CheckoutMetrics,
	tracer trace.Tracer,
) *PaymentUseCase {
	return &PaymentUseCase{
		store:     store,
		processor: processor,
		pricing:   pricing,
		currency:  currency,
		metrics:   metrics,
		tracer:    tracer,
	}
}

// CreateOrUpdatePaymentIntent reserva o valor atual do carrinho no processador.
// O primeiro intent e o client secret ficam gravados no carrinho para sempre;
// chamadas seguintes só atualizam o valor.
func (uc *PaymentUseCase) CreateOrUpdatePaymentIntent(ctx context.Context, buyerID string) (*Basket, error) {
	ctx, span := uc.tracer.Start(ctx, "payment.reserve")
	defer span.End()
	span.SetAttributes(attribute.String("buyer_id", buyerID))

	// 1. Carrega o carrinho (fora de transação, a chamada externa não pode segurar locks)
	basket, err := uc.store.GetBasket(ctx, nil, buyerID)
	if err != nil {
		return nil, err
	}
	if basket.IsEmpty() {
		return nil, ErrEmptyBasket
	}

	// 2. Mesmo cálculo do checkout
	amount := uc.pricing.ChargeAmount(basket.Lines())
	span.SetAttributes(attribute.Int64("amount", amount))

	// 3. Intent já existe: só atualiza o valor
	if basket.HasPaymentIntent() {
		if _, err := uc.processor.UpdatePaymentIntentAmount(ctx, basket.PaymentIntentID, amount); err != nil {
			span.SetStatus(codes.Error, err.Error())
			log.Printf("❌ Payment intent update failed: intent=%s error=%v", basket.PaymentIntentID, err)
			return nil, err
		}
		uc.metrics.PaymentIntent(ctx, "updated")
		log.Printf("✅ Payment intent %s updated to %d", basket.PaymentIntentID, amount)
		return basket, nil
	}

	// 4. Cria um intent novo
	idempotencyKey := fmt.Sprintf("basket-%s-%d", basket.ID, amount)
	intent, err := uc.processor.CreatePaymentIntent(ctx, idempotencyKey, amount, uc.currency)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Printf("❌ Payment intent creation failed: basket=%s error=%v", basket.ID, err)
		return nil, err
	}

	// 5. Grava num commit separado, apenas se nenhum outro intent foi gravado antes
	stored, err := uc.store.SetPaymentIntent(ctx, nil, basket.ID, intent.ID, intent.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("persist payment intent: %w", err)
	}
	if !stored {
		log.Printf("⚠️ Basket %s already had a payment intent, intent %s left orphaned", basket.ID, intent.ID)
		return uc.store.GetBasket(ctx, nil, buyerID)
	}

	basket.PaymentIntentID = intent.ID
	basket.ClientSecret = intent.ClientSecret
	uc.metrics.PaymentIntent(ctx, "created")
	log.Printf("✅ Payment intent %s created for basket %s (%d %s)", intent.ID, basket.ID, amount, uc.currency)
	return basket, nil
}
