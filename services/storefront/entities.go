package main

import (
	"strings"
	"time"
)

// Product representa um produto do catálogo (preço em centavos, nunca float)
type Product struct {
	ID              int64     `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	Price           int64     `json:"price" db:"price"`
	PictureURL      string    `json:"picture_url" db:"picture_url"`
	Type            string    `json:"type" db:"type"`
	Brand           string    `json:"brand" db:"brand"`
	QuantityInStock int       `json:"quantity_in_stock" db:"quantity_in_stock"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// BasketItem representa uma linha do carrinho, com os dados atuais do produto para exibição
type BasketItem struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	PictureURL string `json:"picture_url"`
	Brand      string `json:"brand"`
	Type       string `json:"type"`
	Quantity   int    `json:"quantity"`
}

// Basket representa o carrinho de um comprador (autenticado ou anônimo)
type Basket struct {
	ID              string       `json:"id"`
	BuyerID         string       `json:"buyer_id"`
	Items           []BasketItem `json:"items"`
	PaymentIntentID string       `json:"payment_intent_id,omitempty"`
	ClientSecret    string       `json:"client_secret,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsEmpty reports whether the basket has no line items.
func (b *Basket) IsEmpty() bool {
	return b == nil || len(b.Items) == 0
}

// Item returns the line for productID, if present.
func (b *Basket) Item(productID int64) (BasketItem, bool) {
	for _, item := range b.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return BasketItem{}, false
}

// Lines returns price/quantity pairs for the pricing policy.
func (b *Basket) Lines() []PricedLine {
	lines := make([]PricedLine, 0, len(b.Items))
	for _, item := range b.Items {
		lines = append(lines, PricedLine{UnitPrice: item.Price, Quantity: item.Quantity})
	}
	return lines
}

// HasPaymentIntent reports whether an intent was already reserved for this basket.
func (b *Basket) HasPaymentIntent() bool {
	return b.PaymentIntentID != ""
}

// Address representa um endereço de entrega
type Address struct {
	FullName string `json:"full_name" binding:"required"`
	Address1 string `json:"address1" binding:"required"`
	Address2 string `json:"address2"`
	City     string `json:"city" binding:"required"`
	State    string `json:"state"`
	Zip      string `json:"zip" binding:"required"`
	Country  string `json:"country" binding:"required"`
}

// Validate checks the fields a courier needs.
func (a Address) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"full_name", a.FullName},
		{"address1", a.Address1},
		{"city", a.City},
		{"zip", a.Zip},
		{"country", a.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalidInput("shipping address: " + r.field + " is required")
		}
	}
	return nil
}

// OrderStatus representa os possíveis status de um pedido
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "Pending"
	OrderStatusPaymentReceived OrderStatus = "PaymentReceived"
	OrderStatusPaymentFailed   OrderStatus = "PaymentFailed"
)

// IsTerminal reports whether no further transition is expected.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaymentReceived || s == OrderStatusPaymentFailed
}

// CanTransitionTo only allows moving out of Pending.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && next.IsTerminal()
}

func (s OrderStatus) String() string {
	return string(s)
}

// ProductItemOrdered é o snapshot imutável do produto no momento da compra
type ProductItemOrdered struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url"`
}

// OrderItem representa uma linha do pedido; não referencia o produto vivo
type OrderItem struct {
	ItemOrdered ProductItemOrdered `json:"item_ordered"`
	Price       int64              `json:"price"`
	Quantity    int                `json:"quantity"`
}

// Order representa um pedido no sistema
type Order struct {
	ID              string      `json:"id"`
	BuyerID         string      `json:"buyer_id"`
	OrderItems      []OrderItem `json:"order_items"`
	ShippingAddress Address     `json:"shipping_address"`
	Subtotal        int64       `json:"subtotal"`
	DeliveryFee     int64       `json:"delivery_fee"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
	Status          OrderStatus `json:"status"`
	OrderDate       time.Time   `json:"order_date"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewOrder cria um pedido pendente a partir de itens já precificados
func NewOrder(id, buyerID string, items []OrderItem, address Address, paymentIntentID string, pricing PricingPolicy) *Order {
	lines := make([]PricedLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, PricedLine{UnitPrice: item.Price, Quantity: item.Quantity})
	}
	subtotal, deliveryFee := pricing.Quote(lines)

	now := time.Now()
	return &Order{
		ID:              id,
		BuyerID:         buyerID,
		OrderItems:      items,
		ShippingAddress: address,
		Subtotal:        subtotal,
		DeliveryFee:     deliveryFee,
		PaymentIntentID: paymentIntentID,
		Status:          OrderStatusPending,
		OrderDate:       now,
		UpdatedAt:       now,
	}
}

// Total is subtotal plus delivery fee.
func (o *Order) Total() int64 {
	return o.Subtotal + o.DeliveryFee
}

// PricedLine is one unit price and the quantity charged for it.
type PricedLine struct {
	UnitPrice int64
	Quantity  int
}

// PricingPolicy calcula subtotal e frete; usado pelo checkout e pela reserva de pagamento
type PricingPolicy struct {
	FreeShippingThreshold int64
	DeliveryFee           int64
}

// DefaultPricingPolicy: free delivery above 100.00, otherwise 5.00.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{FreeShippingThreshold: 10000, DeliveryFee: 500}
}

// Quote returns the subtotal and the delivery fee for the given lines.
// Delivery is free only when the subtotal strictly exceeds the threshold.
func (p PricingPolicy) Quote(lines []PricedLine) (subtotal int64, deliveryFee int64) {
	for _, line := range lines {
		subtotal += line.UnitPrice * int64(line.Quantity)
	}
	if subtotal > p.FreeShippingThreshold {
		return subtotal, 0
	}
	return subtotal, p.DeliveryFee
}

// ChargeAmount is what the processor should reserve for the lines.
func (p PricingPolicy) ChargeAmount(lines []PricedLine) int64 {
	subtotal, deliveryFee := p.Quote(lines)
	return subtotal + deliveryFee
}
