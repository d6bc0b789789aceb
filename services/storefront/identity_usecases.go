package main

import (
	"context"
	"errors"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IdentityUseCase reconcilia o carrinho anônimo com o do usuário no login
type IdentityUseCase struct {
	store  Store
	tracer trace.Tracer
}

// NewIdentityUseCase cria uma nova instância de IdentityUseCase
func NewIdentityUseCase(store Store, tracer trace.Tracer) *IdentityUseCase {
	return &IdentityUseCase{
		store:  store,
		tracer: tracer,
	}
}

// MergeOnLogin faz o carrinho anônimo substituir o carrinho do usuário.
// Os itens do carrinho do usuário são descartados, não somados.
func (uc *IdentityUseCase) MergeOnLogin(ctx context.Context, userName string, anonymousToken string) (*Basket, error) {
	ctx, span := uc.tracer.Start(ctx, "identity.merge_basket")
	defer span.End()
	span.SetAttributes(attribute.String("buyer_id", userName))

	var result *Basket
	err := withTx(ctx, uc.store, func(tx Tx) error {
		// 1. Carrinho do usuário, se houver
		userBasket, err := uc.store.GetBasketForUpdate(ctx, tx, userName)
		if err != nil && !errors.Is(err, ErrBasketNotFound) {
			return err
		}

		// 2. Carrinho anônimo, se houver
		var anonBasket *Basket
		if anonymousToken != "" && anonymousToken != userName {
			anonBasket, err = uc.store.GetBasketForUpdate(ctx, tx, anonymousToken)
			if err != nil && !errors.Is(err, ErrBasketNotFound) {
				return err
			}
		}

		if anonBasket == nil {
			if userBasket == nil {
				return ErrBasketNotFound
			}
			result = userBasket
			return nil
		}

		// 3. O anônimo substitui o do usuário
		if userBasket != nil {
			if err := uc.store.DeleteBasket(ctx, tx, userBasket.ID); err != nil {
				return err
			}
			log.Printf("⚠️ Discarded basket %s of %s (%d items) in favour of anonymous basket %s",
				userBasket.ID, userName, len(userBasket.Items), anonBasket.ID)
		}
		if err := uc.store.ReassignBasket(ctx, tx, anonBasket.ID, userName); err != nil {
			return err
		}

		result, err = uc.store.GetBasket(ctx, tx, userName)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Basket %s now belongs to %s", result.ID, userName)
	return result, nil
}
