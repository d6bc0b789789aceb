package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxWebhookPayload = 64 << 10

// StorefrontHandler contém os handlers HTTP do checkout
type StorefrontHandler struct {
	baskets         *BasketUseCase
	checkout        *CheckoutUseCase
	payments        *PaymentUseCase
	webhooks        *WebhookUseCase
	identity        *IdentityUseCase
	pricing         PricingPolicy
	cookie          buyerCookie
	signatureHeader string
}

// NewStorefrontHandler cria uma nova instância de StorefrontHandler
func NewStorefrontHandler(
	baskets *BasketUseCase,
	checkout *CheckoutUseCase,
	payments *PaymentUseCase,
	webhooks *WebhookUseCase,
	identity *IdentityUseCase,
	cfg Config,
) *StorefrontHandler {
	return &StorefrontHandler{
		baskets:         baskets,
		checkout:        checkout,
		payments:        payments,
		webhooks:        webhooks,
		identity:        identity,
		pricing:         cfg.Pricing,
		cookie:          buyerCookie{name: cfg.BuyerCookieName, ttl: cfg.BuyerCookieTTL},
		signatureHeader: cfg.PaymentSignatureHeader,
	}
}

// NewRouter monta o engine gin com middlewares e rotas
func NewRouter(h *StorefrontHandler, metrics *ServerMetrics, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(
		otelgin.Middleware(cfg.ServiceName),
		gin.Logger(),
		RecoveryMiddleware(),
		metrics.Middleware(),
		IdentityMiddleware(cfg.AuthUserHeader, cfg.BuyerCookieName),
	)

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	api.GET("/basket", h.GetBasket)
	api.POST("/basket", h.AddItemToBasket)
	api.DELETE("/basket", h.RemoveBasketItem)

	// Chamado pelo processador, autenticado pela assinatura
	api.POST("/payment/webhook", h.PaymentWebhook)

	authed := api.Group("", RequireAuth())
	authed.POST("/orders", h.CreateOrder)
	authed.GET("/orders", h.GetOrders)
	authed.GET("/orders/:id", h.GetOrder)
	authed.POST("/payment", h.CreateOrUpdatePaymentIntent)
	authed.POST("/account/merge-basket", h.MergeBasket)
	authed.GET("/account/saved-address", h.GetSavedAddress)

	return r
}

type basketResponse struct {
	ID              string       `json:"id"`
	BuyerID         string       `json:"buyer_id"`
	Items           []BasketItem `json:"items"`
	PaymentIntentID string       `json:"payment_intent_id,omitempty"`
	ClientSecret    string       `json:"client_secret,omitempty"`
	Subtotal        int64        `json:"subtotal"`
	DeliveryFee     int64        `json:"delivery_fee"`
	Total           int64        `json:"total"`
}

func (h *StorefrontHandler) basketResponse(basket *Basket) basketResponse {
	subtotal, deliveryFee := h.pricing.Quote(basket.Lines())
	return basketResponse{
		ID:              basket.ID,
		BuyerID:         basket.BuyerID,
		Items:           basket.Items,
		PaymentIntentID: basket.PaymentIntentID,
		ClientSecret:    basket.ClientSecret,
		Subtotal:        subtotal,
		DeliveryFee:     deliveryFee,
		Total:           subtotal + deliveryFee,
	}
}

type orderResponse struct {
	*Order
	Total int64 `json:"total"`
}

func newOrderResponse(order *Order) orderResponse {
	return orderResponse{Order: order, Total: order.Total()}
}

func respondError(c *gin.Context, err error) {
	status := httpStatusFromError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		trace.SpanFromContext(c.Request.Context()).RecordError(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func basketItemParams(c *gin.Context) (int64, int, error) {
	productID, err := strconv.ParseInt(c.Query("productId"), 10, 64)
	if err != nil {
		return 0, 0, invalidInput("productId must be an integer")
	}
	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil {
		return 0, 0, invalidInput("quantity must be an integer")
	}
	return productID, quantity, nil
}

// HealthCheck é o endpoint de health check
func (h *StorefrontHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetBasket retorna o carrinho do comprador atual
func (h *StorefrontHandler) GetBasket(c *gin.Context) {
	identity := identityFrom(c)
	buyerID, ok := identity.BuyerID()
	if !ok {
		h.cookie.clear(c)
		c.JSON(http.StatusNotFound, gin.H{"error": ErrBasketNotFound.Error()})
		return
	}

	basket, err := h.baskets.GetBasket(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.basketResponse(basket))
}

// AddItemToBasket adiciona um produto; cria o carrinho e o cookie anônimo se necessário
func (h *StorefrontHandler) AddItemToBasket(c *gin.Context) {
	productID, quantity, err := basketItemParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	identity := identityFrom(c)
	buyerID, _ := identity.EnsureBuyerID()
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("buyer_id", buyerID))

	basket, created, err := h.baskets.AddItem(c.Request.Context(), buyerID, productID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	if created && !identity.IsAuthenticated() {
		h.cookie.set(c, buyerID)
	}

	c.JSON(http.StatusCreated, h.basketResponse(basket))
}

// RemoveBasketItem diminui ou remove um item do carrinho
func (h *StorefrontHandler) RemoveBasketItem(c *gin.Context) {
	productID, quantity, err := basketItemParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	buyerID, ok := identityFrom(c).BuyerID()
	if !ok {
		respondError(c, ErrBasketNotFound)
		return
	}

	basket, err := h.baskets.RemoveItem(c.Request.Context(), buyerID, productID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.basketResponse(basket))
}

// CreateOrder finaliza o checkout do carrinho do usuário
func (h *StorefrontHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyerID, _ := identityFrom(c).BuyerID()
	order, err := h.checkout.CreateOrder(c.Request.Context(), buyerID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", "/api/orders/"+order.ID)
	c.JSON(http.StatusCreated, gin.H{"id": order.ID})
}

// GetOrders lista os pedidos do usuário
func (h *StorefrontHandler) GetOrders(c *gin.Context) {
	buyerID, _ := identityFrom(c).BuyerID()
	orders, err := h.checkout.GetOrders(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, newOrderResponse(order))
	}
	c.JSON(http.StatusOK, response)
}

// GetOrder busca um pedido do usuário
func (h *StorefrontHandler) GetOrder(c *gin.Context) {
	buyerID, _ := identityFrom(c).BuyerID()
	order, err := h.checkout.GetOrder(c.Request.Context(), buyerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(order))
}

// CreateOrUpdatePaymentIntent reserva o valor do carrinho no processador
func (h *StorefrontHandler) CreateOrUpdatePaymentIntent(c *gin.Context) {
	buyerID, _ := identityFrom(c).BuyerID()
	basket, err := h.payments.CreateOrUpdatePaymentIntent(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.basketResponse(basket))
}

// PaymentWebhook recebe as confirmações assinadas do processador
func (h *StorefrontHandler) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read payload"})
		return
	}
	if len(payload) > maxWebhookPayload {
		log.Printf("⚠️ Webhook payload above %d bytes rejected", maxWebhookPayload)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	if err := h.webhooks.HandleEvent(c.Request.Context(), payload, c.GetHeader(h.signatureHeader)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// MergeBasket é chamado pelo fluxo de login com o cookie anônimo do cliente
func (h *StorefrontHandler) MergeBasket(c *gin.Context) {
	identity := identityFrom(c)
	basket, err := h.identity.MergeOnLogin(c.Request.Context(), identity.UserName, identity.AnonymousToken)
	h.cookie.clear(c)
	if errors.Is(err, ErrBasketNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.basketResponse(basket))
}

// GetSavedAddress retorna o endereço salvo do usuário
func (h *StorefrontHandler) GetSavedAddress(c *gin.Context) {
	buyerID, _ := identityFrom(c).BuyerID()
	address, err := h.checkout.GetSavedAddress(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, address)
}
