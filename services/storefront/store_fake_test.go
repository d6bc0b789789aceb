package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// memoryStore é um Store em memória: cada transação trabalha numa cópia do
// estado e o Commit troca a cópia pelo estado visível.
type memoryStore struct {
	mu     sync.Mutex
	state  *memState
	failOn map[string]error
}

type memBasket struct {
	ID              string
	BuyerID         string
	PaymentIntentID string
	ClientSecret    string
	Items           []memItem
	CreatedAt       time.Time
}

type memItem struct {
	ProductID int64
	Quantity  int
}

type memState struct {
	products  map[int64]Product
	baskets   map[string]*memBasket
	orders    []*Order
	addresses map[string]Address
}

func (s *memState) clone() *memState {
	c := &memState{
		products:  make(map[int64]Product, len(s.products)),
		baskets:   make(map[string]*memBasket, len(s.baskets)),
		orders:    make([]*Order, 0, len(s.orders)),
		addresses: make(map[string]Address, len(s.addresses)),
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	for buyer, b := range s.baskets {
		copied := *b
		copied.Items = append([]memItem(nil), b.Items...)
		c.baskets[buyer] = &copied
	}
	for _, o := range s.orders {
		copied := *o
		copied.OrderItems = append([]OrderItem(nil), o.OrderItems...)
		c.orders = append(c.orders, &copied)
	}
	for buyer, a := range s.addresses {
		c.addresses[buyer] = a
	}
	return c
}

type memoryTx struct {
	store *memoryStore
	state *memState
	done  bool
}

func (t *memoryTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return nil
	}
	if err := t.store.failOn["Commit"]; err != nil {
		return err
	}
	t.store.state = t.state
	t.done = true
	return nil
}

func (t *memoryTx) Rollback() error {
	t.done = true
	return nil
}

func newMemoryStore(products ...Product) *memoryStore {
	s := &memoryStore{
		state: &memState{
			products:  map[int64]Product{},
			baskets:   map[string]*memBasket{},
			addresses: map[string]Address{},
		},
		failOn: map[string]error{},
	}
	for _, p := range products {
		s.state.products[p.ID] = p
	}
	return s
}

func (s *memoryStore) injectFailure(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[method] = err
}

func (s *memoryStore) st(tx Tx) *memState {
	if tx == nil {
		return s.state
	}
	return tx.(*memoryTx).state
}

func (s *memoryStore) BeginTx(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["BeginTx"]; err != nil {
		return nil, err
	}
	return &memoryTx{store: s, state: s.state.clone()}, nil
}

// helpers de leitura direta do estado confirmado

func (s *memoryStore) product(id int64) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id]
}

func (s *memoryStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *memoryStore) hasBasket(buyerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.baskets[buyerID]
	return ok
}

func (s *memoryStore) view(st *memState, b *memBasket) *Basket {
	basket := &Basket{
		ID:              b.ID,
		BuyerID:         b.BuyerID,
		PaymentIntentID: b.PaymentIntentID,
		ClientSecret:    b.ClientSecret,
		Items:           []BasketItem{},
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.CreatedAt,
	}
	for _, item := range b.Items {
		p, ok := st.products[item.ProductID]
		if !ok {
			continue
		}
		basket.Items = append(basket.Items, BasketItem{
			ProductID:  p.ID,
			Name:       p.Name,
			Price:      p.Price,
			PictureURL: p.PictureURL,
			Brand:      p.Brand,
			Type:       p.Type,
			Quantity:   item.Quantity,
		})
	}
	return basket
}

func (s *memoryStore) basketByID(st *memState, basketID string) *memBasket {
	for _, b := range st.baskets {
		if b.ID == basketID {
			return b
		}
	}
	return nil
}

func (s *memoryStore) GetBasket(ctx context.Context, tx Tx, buyerID string) (*Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["GetBasket"]; err != nil {
		return nil, err
	}
	st := s.st(tx)
	b, ok := st.baskets[buyerID]
	if !ok {
		return nil, ErrBasketNotFound
	}
	return s.view(st, b), nil
}

func (s *memoryStore) GetBasketForUpdate(ctx context.Context, tx Tx, buyerID string) (*Basket, error) {
	return s.GetBasket(ctx, tx, buyerID)
}

func (s *memoryStore) CreateBasket(ctx context.Context, tx Tx, buyerID string) (*Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st(tx)
	if _, ok := st.baskets[buyerID]; ok {
		return nil, ErrBasketExists
	}
	b := &memBasket{ID: uuid.New().String(), BuyerID: buyerID, CreatedAt: time.Now()}
	st.baskets[buyerID] = b
	return s.view(st, b), nil
}

func (s *memoryStore) EnsureBasket(ctx context.Context, tx Tx, buyerID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st(tx)
	if b, ok := st.baskets[buyerID]; ok {
		return b.ID, false, nil
	}
	b := &memBasket{ID: uuid.New().String(), BuyerID: buyerID, CreatedAt: time.Now()}
	st.baskets[buyerID] = b
	return b.ID, true, nil
}

func (s *memoryStore) UpsertBasketItem(ctx context.Context, tx Tx, basketID string, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.basketByID(s.st(tx), basketID)
	if b == nil {
		return ErrBasketNotFound
	}
	for i := range b.Items {
		if b.Items[i].ProductID == productID {
			b.Items[i].Quantity += quantity
			return nil
		}
	}
	b.Items = append(b.Items, memItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (s *memoryStore) RemoveBasketItem(ctx context.Context, tx Tx, basketID string, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.basketByID(s.st(tx), basketID)
	if b == nil {
		return ErrBasketNotFound
	}
	for i := range b.Items {
		if b.Items[i].ProductID != productID {
			continue
		}
		if b.Items[i].Quantity <= quantity {
			b.Items = append(b.Items[:i], b.Items[i+1:]...)
		} else {
			b.Items[i].Quantity -= quantity
		}
		return nil
	}
	return ErrBasketItemNotFound
}

func (s *memoryStore) DeleteBasket(ctx context.Context, tx Tx, basketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["DeleteBasket"]; err != nil {
		return err
	}
	st := s.st(tx)
	b := s.basketByID(st, basketID)
	if b == nil {
		return ErrBasketNotFound
	}
	delete(st.baskets, b.BuyerID)
	return nil
}

func (s *memoryStore) ReassignBasket(ctx context.Context, tx Tx, basketID string, buyerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st(tx)
	b := s.basketByID(st, basketID)
	if b == nil {
		return ErrBasketNotFound
	}
	if other, ok := st.baskets[buyerID]; ok && other.ID != basketID {
		return ErrBasketExists
	}
	delete(st.baskets, b.BuyerID)
	b.BuyerID = buyerID
	st.baskets[buyerID] = b
	return nil
}

func (s *memoryStore) SetPaymentIntent(ctx context.Context, tx Tx, basketID string, intentID string, clientSecret string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.basketByID(s.st(tx), basketID)
	if b == nil || b.PaymentIntentID != "" {
		return false, nil
	}
	b.PaymentIntentID = intentID
	b.ClientSecret = clientSecret
	return true, nil
}

func (s *memoryStore) GetProduct(ctx context.Context, tx Tx, productID int64) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st(tx).products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (s *memoryStore) GetProductsForUpdate(ctx context.Context, tx Tx, productIDs []int64) (map[int64]*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st(tx)
	products := map[int64]*Product{}
	for _, id := range productIDs {
		if p, ok := st.products[id]; ok {
			products[id] = &p
		}
	}
	return products, nil
}

func (s *memoryStore) DecreaseStock(ctx context.Context, tx Tx, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st(tx)
	p, ok := st.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.QuantityInStock -= quantity
	st.products[productID] = p
	return nil
}

func (s *memoryStore) CreateOrder(ctx context.Context, tx Tx, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["CreateOrder"]; err != nil {
		return err
	}
	st := s.st(tx)
	copied := *order
	copied.OrderItems = append([]OrderItem(nil), order.OrderItems...)
	st.orders = append(st.orders, &copied)
	return nil
}

func (s *memoryStore) GetOrder(ctx context.Context, tx Tx, buyerID string, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.st(tx).orders {
		if o.ID == orderID && o.BuyerID == buyerID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *memoryStore) ListOrders(ctx context.Context, tx Tx, buyerID string) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := []*Order{}
	st := s.st(tx)
	for i := len(st.orders) - 1; i >= 0; i-- {
		if st.orders[i].BuyerID == buyerID {
			copied := *st.orders[i]
			orders = append(orders, &copied)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].OrderDate.After(orders[j].OrderDate) })
	return orders, nil
}

func (s *memoryStore) GetOrderByPaymentIntent(ctx context.Context, tx Tx, intentID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.st(tx).orders {
		if o.PaymentIntentID == intentID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *memoryStore) UpdateOrderStatus(ctx context.Context, tx Tx, orderID string, from OrderStatus, to OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.st(tx).orders {
		if o.ID == orderID && o.Status == from {
			o.Status = to
			o.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) SaveAddress(ctx context.Context, tx Tx, buyerID string, address Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st(tx).addresses[buyerID] = address
	return nil
}

func (s *memoryStore) GetAddress(ctx context.Context, tx Tx, buyerID string) (*Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st(tx).addresses[buyerID]
	if !ok {
		return nil, ErrAddressNotFound
	}
	return &a, nil
}

func (s *memoryStore) orderStatus(orderID string) OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.state.orders {
		if o.ID == orderID {
			return o.Status
		}
	}
	return ""
}

var (
	productA = Product{ID: 1, Name: "Angular Speedster Board", Price: 2000, PictureURL: "/images/a.png", Brand: "Angular", Type: "Boards", QuantityInStock: 10}
	productB = Product{ID: 2, Name: "Blue Code Gloves", Price: 500, PictureURL: "/images/b.png", Brand: "VS Code", Type: "Gloves", QuantityInStock: 5}
	productC = Product{ID: 3, Name: "Redis Red Boots", Price: 25000, PictureURL: "/images/c.png", Brand: "Redis", Type: "Boots", QuantityInStock: 1}
)

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func testAddress() Address {
	return Address{
		FullName: "Ada Lovelace",
		Address1: "12 St James's Square",
		City:     "London",
		State:    "LDN",
		Zip:      "SW1Y 4JH",
		Country:  "UK",
	}
}

// seedBasket grava um carrinho confirmado com os itens informados
func (s *memoryStore) seedBasket(buyerID string, items ...memItem) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &memBasket{ID: uuid.New().String(), BuyerID: buyerID, Items: items, CreatedAt: time.Now()}
	s.state.baskets[buyerID] = b
	return b.ID
}
