package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestPaymentProcessor_CreatePaymentIntent(t *testing.T) {
	// Arrange
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc","amount":5000,"currency":"usd","status":"requires_payment_method"}`))
	}))
	defer server.Close()

	processor := NewRestPaymentProcessor(server.URL, "sk_test_key", time.Second)

	// Act
	intent, err := processor.CreatePaymentIntent(context.Background(), "basket-1-5000", 5000, "usd")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/v1/payment_intents", got.URL.Path)
	assert.Equal(t, "Bearer sk_test_key", got.Header.Get("Authorization"))
	assert.Equal(t, "basket-1-5000", got.Header.Get("Idempotency-Key"))
	assert.Equal(t, "5000", got.PostForm.Get("amount"))
	assert.Equal(t, "usd", got.PostForm.Get("currency"))
	assert.Equal(t, []string{"card"}, got.PostForm["payment_method_types[]"])
}

func TestRestPaymentProcessor_UpdatePaymentIntentAmount(t *testing.T) {
	var path, amount, idempotency string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		path, amount, idempotency = r.URL.Path, r.PostForm.Get("amount"), r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","amount":7500}`))
	}))
	defer server.Close()

	processor := NewRestPaymentProcessor(server.URL, "sk_test_key", time.Second)

	intent, err := processor.UpdatePaymentIntentAmount(context.Background(), "pi_123", 7500)

	require.NoError(t, err)
	assert.Equal(t, int64(7500), intent.Amount)
	assert.Equal(t, "/v1/payment_intents/pi_123", path)
	assert.Equal(t, "7500", amount)
	assert.Empty(t, idempotency)
}

func TestRestPaymentProcessor_RejectionDoesNotTripBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount must be at least 50 cents"}}`))
	}))
	defer server.Close()

	processor := NewRestPaymentProcessor(server.URL, "sk_test_key", time.Second)

	for i := 0; i < 7; i++ {
		_, err := processor.CreatePaymentIntent(context.Background(), "k", 1, "usd")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, errProcessorRejected)
		assert.Contains(t, err.Error(), "Amount must be at least 50 cents")
	}
	assert.Equal(t, int32(7), atomic.LoadInt32(&calls), "every rejected call reaches the processor")
}

func TestRestPaymentProcessor_ServerErrorsOpenBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	processor := NewRestPaymentProcessor(server.URL, "sk_test_key", time.Second)

	for i := 0; i < 5; i++ {
		_, err := processor.CreatePaymentIntent(context.Background(), "k", 5000, "usd")
		assert.ErrorIs(t, err, ErrUpstream)
	}

	_, err := processor.CreatePaymentIntent(context.Background(), "k", 5000, "usd")

	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls), "open breaker fails fast")
}

func TestRestPaymentProcessor_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	processor := NewRestPaymentProcessor(url, "sk_test_key", 200*time.Millisecond)

	_, err := processor.CreatePaymentIntent(context.Background(), "k", 5000, "usd")

	assert.ErrorIs(t, err, ErrUpstream)
}

func TestRestPaymentProcessor_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	// Arrange
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc","amount":5000}`))
	}))
	defer server.Close()

	processor := NewRestPaymentProcessor(server.URL, "sk_test_key", time.Second)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	for i := 0; i < 7; i++ {
		_, err := processor.CreatePaymentIntent(cancelled, "k", 5000, "usd")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUpstream)
	}
	intent, err := processor.CreatePaymentIntent(context.Background(), "k", 5000, "usd")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
