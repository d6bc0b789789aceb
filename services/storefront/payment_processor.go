package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
)

// PaymentIntent é a reserva de cobrança criada no processador
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// PaymentProcessor abstrai a API externa de pagamentos
type PaymentProcessor interface {
	CreatePaymentIntent(ctx context.Context, idempotencyKey string, amount int64, currency string) (*PaymentIntent, error)
	UpdatePaymentIntentAmount(ctx context.Context, intentID string, amount int64) (*PaymentIntent, error)
}

// errProcessorRejected marks a 4xx answer: the processor is healthy, the request is not.
var errProcessorRejected = fmt.Errorf("payment processor rejected the request: %w", ErrUpstream)

// errRequestAborted marks a call the buyer gave up on; it says nothing about the processor.
var errRequestAborted = errors.New("payment request aborted by caller")

type processorError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// RestPaymentProcessor fala com o processador via REST (resty) atrás de um circuit breaker
type RestPaymentProcessor struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*PaymentIntent]
}

// NewRestPaymentProcessor cria o cliente do processador
func NewRestPaymentProcessor(baseURL, secretKey string, timeout time.Duration) *RestPaymentProcessor {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(secretKey).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker[*PaymentIntent](gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errProcessorRejected) || errors.Is(err, errRequestAborted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("⚠️ Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &RestPaymentProcessor{
		client:  client,
		breaker: breaker,
	}
}

// CreatePaymentIntent cria um intent novo para o valor informado
func (p *RestPaymentProcessor) CreatePaymentIntent(ctx context.Context, idempotencyKey string, amount int64, currency string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Add("payment_method_types[]", "card")

	return p.call(ctx, "/v1/payment_intents", idempotencyKey, form)
}

// UpdatePaymentIntentAmount altera apenas o valor de um intent existente
func (p *RestPaymentProcessor) UpdatePaymentIntentAmount(ctx context.Context, intentID string, amount int64) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))

	return p.call(ctx, "/v1/payment_intents/"+url.PathEscape(intentID), "", form)
}

func (p *RestPaymentProcessor) call(ctx context.Context, path string, idempotencyKey string, form url.Values) (*PaymentIntent, error) {
	intent, err := p.breaker.Execute(func() (*PaymentIntent, error) {
		var intent PaymentIntent
		var apiErr processorError

		req := p.client.R().
			SetContext(ctx).
			SetFormDataFromValues(form).
			SetResult(&intent).
			SetError(&apiErr)
		if idempotencyKey != "" {
			req.SetHeader("Idempotency-Key", idempotencyKey)
		}

		resp, err := req.Post(path)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errRequestAborted, ctx.Err())
		}
		if err != nil {
			return nil, fmt.Errorf("payment processor unreachable: %w: %w", ErrUpstream, err)
		}
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("payment processor returned %d: %w", resp.StatusCode(), ErrUpstream)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: %d %s", errProcessorRejected, resp.StatusCode(), apiErr.Error.Message)
		}
		return &intent, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("payment processor unavailable: %w: %w", ErrUpstream, err)
	}
	return intent, err
}
