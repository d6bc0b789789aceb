package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// BasketRepository define as operações de banco de dados do carrinho
type BasketRepository interface {
	GetBasket(ctx context.Context, tx Tx, buyerID string) (*Basket, error)
	GetBasketForUpdate(ctx context.Context, tx Tx, buyerID string) (*Basket, error)
	CreateBasket(ctx context.Context, tx Tx, buyerID string) (*Basket, error)
	EnsureBasket(ctx context.Context, tx Tx, buyerID string) (basketID string, created bool, err error)
	UpsertBasketItem(ctx context.Context, tx Tx, basketID string, productID int64, quantity int) error
	RemoveBasketItem(ctx context.Context, tx Tx, basketID string, productID int64, quantity int) error
	DeleteBasket(ctx context.Context, tx Tx, basketID string) error
	ReassignBasket(ctx context.Context, tx Tx, basketID string, buyerID string) error
	SetPaymentIntent(ctx context.Context, tx Tx, basketID string, intentID string, clientSecret string) (bool, error)
}

// ProductRepository define as operações de estoque
type ProductRepository interface {
	GetProduct(ctx context.Context, tx Tx, productID int64) (*Product, error)
	GetProductsForUpdate(ctx context.Context, tx Tx, productIDs []int64) (map[int64]*Product, error)
	DecreaseStock(ctx context.Context, tx Tx, productID int64, quantity int) error
}

// OrderRepository define as operações de pedidos
type OrderRepository interface {
	CreateOrder(ctx context.Context, tx Tx, order *Order) error
	GetOrder(ctx context.Context, tx Tx, buyerID string, orderID string) (*Order, error)
	ListOrders(ctx context.Context, tx Tx, buyerID string) ([]*Order, error)
	GetOrderByPaymentIntent(ctx context.Context, tx Tx, intentID string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, tx Tx, orderID string, from OrderStatus, to OrderStatus) (bool, error)
}

// AddressRepository guarda o endereço salvo do comprador
type AddressRepository interface {
	SaveAddress(ctx context.Context, tx Tx, buyerID string, address Address) error
	GetAddress(ctx context.Context, tx Tx, buyerID string) (*Address, error)
}

// Store reúne os repositórios que participam da mesma transação
type Store interface {
	BasketRepository
	ProductRepository
	OrderRepository
	AddressRepository
	BeginTx(ctx context.Context) (Tx, error)
}

// PostgresStore implementa Store usando PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore cria uma nova instância de PostgresStore
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// BeginTx inicia uma nova transação
func (s *PostgresStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// q returns the transaction when one is given, the pool otherwise.
func (s *PostgresStore) q(tx Tx) querier {
	if tx == nil {
		return s.db
	}
	return tx.(*PostgresTx).tx
}

// rollback ignores ErrTxClosed so it can always be deferred after Commit.
func rollback(tx Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Printf("⚠️ Rollback failed: %v", err)
	}
}

// withTx runs fn inside a transaction and commits it when fn succeeds.
func withTx(ctx context.Context, store Store, fn func(tx Tx) error) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
