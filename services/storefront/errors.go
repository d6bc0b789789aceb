package main

import (
	"errors"
	"fmt"
	"net/http"
)

// Categorias de erro expostas ao chamador
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUpstream           = errors.New("upstream error")
	ErrCommitFailed       = errors.New("commit failed")
	ErrInvalidInput       = errors.New("invalid input")
)

var (
	ErrBasketNotFound     = fmt.Errorf("basket not found: %w", ErrNotFound)
	ErrProductNotFound    = fmt.Errorf("product not found: %w", ErrNotFound)
	ErrBasketItemNotFound = fmt.Errorf("item not found in basket: %w", ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("order not found: %w", ErrNotFound)
	ErrAddressNotFound    = fmt.Errorf("saved address not found: %w", ErrNotFound)
	ErrBasketExists       = fmt.Errorf("basket already exists: %w", ErrConflict)
	ErrEmptyBasket        = fmt.Errorf("no basket to check out: %w", ErrPreconditionFailed)
	ErrInvalidSignature   = fmt.Errorf("invalid webhook signature: %w", ErrUnauthenticated)
	ErrNoBuyer            = fmt.Errorf("no buyer identity: %w", ErrUnauthenticated)
)

func invalidInput(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidInput)
}

// httpStatusFromError traduz a categoria do erro para o status HTTP
func httpStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPreconditionFailed), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
