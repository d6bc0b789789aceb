package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// httpMetricsSubsystem compõe storefront_api_http_requests_total
const httpMetricsSubsystem = "api"

// ServerMetrics expõe métricas HTTP no formato Prometheus
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	gatherer  prometheus.Gatherer
}

// NewServerMetrics registra as métricas HTTP no registry informado
func NewServerMetrics(service string, registry *prometheus.Registry) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler", "method"})

	registry.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, gatherer: registry}
}

// Middleware conta requisições e latência por rota
func (m *ServerMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route, c.Request.Method).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Handler serve o endpoint /metrics
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Webhook outcomes
const (
	WebhookOutcomeApplied       = "applied"
	WebhookOutcomeDuplicate     = "duplicate"
	WebhookOutcomeIgnored       = "ignored"
	WebhookOutcomeOrderNotFound = "order_not_found"
)

// CheckoutMetrics são as métricas de negócio exportadas via OTLP
type CheckoutMetrics struct {
	ordersCreated  metric.Int64Counter
	orderValue     metric.Int64Histogram
	paymentIntents metric.Int64Counter
	webhookEvents  metric.Int64Counter
}

// NewCheckoutMetrics cria os instrumentos a partir do meter
func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	ordersCreated, err := meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders committed by checkout"))
	if err != nil {
		return nil, err
	}

	orderValue, err := meter.Int64Histogram("storefront.orders.total",
		metric.WithDescription("Order total in minor currency units"),
		metric.WithUnit("{cent}"))
	if err != nil {
		return nil, err
	}

	paymentIntents, err := meter.Int64Counter("storefront.payment_intents",
		metric.WithDescription("Payment intent reservations by action"))
	if err != nil {
		return nil, err
	}

	webhookEvents, err := meter.Int64Counter("storefront.webhook.events",
		metric.WithDescription("Processor webhook events by outcome"))
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{
		ordersCreated:  ordersCreated,
		orderValue:     orderValue,
		paymentIntents: paymentIntents,
		webhookEvents:  webhookEvents,
	}, nil
}

func (m *CheckoutMetrics) OrderCreated(ctx context.Context, order *Order) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
	m.orderValue.Record(ctx, order.Total())
}

func (m *CheckoutMetrics) PaymentIntent(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.paymentIntents.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *CheckoutMetrics) WebhookEvent(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
