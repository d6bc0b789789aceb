package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WebhookVerifier valida a assinatura `t=<unix>,v1=<hex>` enviada pelo processador
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier cria o verificador; tolerance <= 0 desliga a checagem de idade
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify checks payload against every v1 signature in header.
func (v *WebhookVerifier) Verify(payload []byte, header string) error {
	if len(v.secret) == 0 || header == "" {
		return ErrInvalidSignature
	}

	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(timestamp, 0))
		if age > v.tolerance || age < -v.tolerance {
			return fmt.Errorf("timestamp outside tolerance: %w", ErrInvalidSignature)
		}
	}

	expected := computeSignature(v.secret, timestamp, payload)
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func computeSignature(secret []byte, timestamp int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// WebhookEvent é o envelope do evento enviado pelo processador
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object WebhookObject `json:"object"`
	} `json:"data"`
}

// WebhookObject é o objeto (charge ou payment_intent) referenciado pelo evento
type WebhookObject struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
}

// PaymentIntentID returns the intent the event settles.
func (e WebhookEvent) PaymentIntentID() string {
	if e.Data.Object.Object == "payment_intent" {
		return e.Data.Object.ID
	}
	return e.Data.Object.PaymentIntent
}

func (e WebhookEvent) Succeeded() bool {
	return e.Data.Object.Status == "succeeded"
}

// WebhookUseCase aplica confirmações de pagamento de forma idempotente
type WebhookUseCase struct {
	store    Store
	verifier *WebhookVerifier
	dedup    EventDeduplicator
	metrics  *CheckoutMetrics
	tracer   trace.Tracer
}

// NewWebhookUseCase cria uma nova instância de WebhookUseCase
func NewWebhookUseCase(
	store Store,
	verifier *WebhookVerifier,
	dedup EventDeduplicator,
	metrics *CheckoutMetrics,
	tracer trace.Tracer,
) *WebhookUseCase {
	return &WebhookUseCase{
		store:    store,
		verifier: verifier,
		dedup:    dedup,
		metrics:  metrics,
		tracer:   tracer,
	}
}

// HandleEvent verifica a assinatura antes de ler qualquer estado e então
// move o pedido de Pending para PaymentReceived. Pedido inexistente, status
// diferente de sucesso e reentregas terminam sem erro.
func (uc *WebhookUseCase) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	ctx, span := uc.tracer.Start(ctx, "webhook.handle_event")
	defer span.End()

	// 1. Assinatura
	if err := uc.verifier.Verify(payload, signatureHeader); err != nil {
		log.Printf("❌ [WEBHOOK] Rejected event: %v", err)
		return err
	}

	// 2. Evento
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return invalidInput("malformed webhook payload")
	}
	intentID := event.PaymentIntentID()
	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.String("event_type", event.Type),
		attribute.String("payment_intent_id", intentID),
	)
	log.Printf("↩️ [WEBHOOK] Event %s (%s) for intent %s status=%s", event.ID, event.Type, intentID, event.Data.Object.Status)

	// 3. Reentrega já processada (consultivo; o update condicional continua sendo a garantia)
	if event.ID != "" {
		seen, err := uc.dedup.Seen(ctx, event.ID)
		if err != nil {
			log.Printf("⚠️ [WEBHOOK] De-dup lookup failed for %s: %v", event.ID, err)
		} else if seen {
			uc.metrics.WebhookEvent(ctx, WebhookOutcomeDuplicate)
			log.Printf("ℹ️ [WEBHOOK] Event %s already processed", event.ID)
			return nil
		}
	}

	// 4. Apenas sucesso muda o pedido
	if intentID == "" || !event.Succeeded() {
		uc.metrics.WebhookEvent(ctx, WebhookOutcomeIgnored)
		log.Printf("⚠️ [WEBHOOK] Ignoring event %s with status %q", event.ID, event.Data.Object.Status)
		return nil
	}

	// 5. Pedido pode ainda não existir
	order, err := uc.store.GetOrderByPaymentIntent(ctx, nil, intentID)
	if errors.Is(err, ErrOrderNotFound) {
		uc.metrics.WebhookEvent(ctx, WebhookOutcomeOrderNotFound)
		log.Printf("⚠️ [WEBHOOK] No order for intent %s, acknowledging", intentID)
		return nil
	}
	if err != nil {
		return err
	}

	// 6. Transição condicional Pending -> PaymentReceived
	applied, err := uc.store.UpdateOrderStatus(ctx, nil, order.ID, OrderStatusPending, OrderStatusPaymentReceived)
	if err != nil {
		return err
	}
	if applied {
		uc.metrics.WebhookEvent(ctx, WebhookOutcomeApplied)
		log.Printf("✅ [WEBHOOK] Order %s marked as %s", order.ID, OrderStatusPaymentReceived)
	} else {
		uc.metrics.WebhookEvent(ctx, WebhookOutcomeDuplicate)
		log.Printf("ℹ️ [WEBHOOK] Order %s already %s", order.ID, order.Status)
	}

	if event.ID != "" {
		if err := uc.dedup.MarkProcessed(ctx, event.ID); err != nil {
			log.Printf("⚠️ [WEBHOOK] De-dup mark failed for %s: %v", event.ID, err)
		}
	}
	return nil
}
