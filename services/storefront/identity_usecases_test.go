package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productD = Product{ID: 4, Name: "Purple React Woolen Hat", Price: 1500, QuantityInStock: 10}

func TestIdentityUseCase_AnonymousBasketReplacesUserBasket(t *testing.T) {
	// Arrange
	store := newMemoryStore(productA, productB, productC, productD)
	anonID := store.seedBasket("anon-token",
		memItem{ProductID: productA.ID, Quantity: 1},
		memItem{ProductID: productB.ID, Quantity: 2},
	)
	store.seedBasket("alice",
		memItem{ProductID: productB.ID, Quantity: 1},
		memItem{ProductID: productC.ID, Quantity: 1},
		memItem{ProductID: productD.ID, Quantity: 1},
	)
	uc := NewIdentityUseCase(store, testTracer())

	// Act
	basket, err := uc.MergeOnLogin(context.Background(), "alice", "anon-token")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, anonID, basket.ID)
	assert.Equal(t, "alice", basket.BuyerID)
	require.Len(t, basket.Items, 2, "replace, not merge")
	item, ok := basket.Item(productB.ID)
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)

	assert.False(t, store.hasBasket("anon-token"), "anonymous token no longer resolves")
	persisted, err := store.GetBasket(context.Background(), nil, "alice")
	require.NoError(t, err)
	assert.Len(t, persisted.Items, 2)
}

func TestIdentityUseCase_NoAnonymousBasket(t *testing.T) {
	store := newMemoryStore(productA)
	userID := store.seedBasket("alice", memItem{ProductID: productA.ID, Quantity: 3})
	uc := NewIdentityUseCase(store, testTracer())

	basket, err := uc.MergeOnLogin(context.Background(), "alice", "unknown-token")

	require.NoError(t, err)
	assert.Equal(t, userID, basket.ID)
	assert.Equal(t, 3, basket.Items[0].Quantity)
}

func TestIdentityUseCase_OnlyAnonymousBasket(t *testing.T) {
	store := newMemoryStore(productA)
	store.seedBasket("anon-token", memItem{ProductID: productA.ID, Quantity: 1})
	uc := NewIdentityUseCase(store, testTracer())

	basket, err := uc.MergeOnLogin(context.Background(), "alice", "anon-token")

	require.NoError(t, err)
	assert.Equal(t, "alice", basket.BuyerID)
	assert.False(t, store.hasBasket("anon-token"))
}

func TestIdentityUseCase_NeitherBasket(t *testing.T) {
	uc := NewIdentityUseCase(newMemoryStore(), testTracer())

	_, err := uc.MergeOnLogin(context.Background(), "alice", "")

	assert.ErrorIs(t, err, ErrBasketNotFound)
}
