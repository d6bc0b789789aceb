package main

import (
	"github.com/google/uuid"
)

// BuyerIdentity carrega as duas fontes possíveis de identidade de um comprador
type BuyerIdentity struct {
	UserName       string
	AnonymousToken string
}

// BuyerID resolves the key a basket is stored under. An authenticated user
// always wins over the anonymous token. ok is false when neither is present.
func (b BuyerIdentity) BuyerID() (string, bool) {
	if b.UserName != "" {
		return b.UserName, true
	}
	if b.AnonymousToken != "" {
		return b.AnonymousToken, true
	}
	return "", false
}

// IsAuthenticated reports whether the buyer came through the auth gateway.
func (b BuyerIdentity) IsAuthenticated() bool {
	return b.UserName != ""
}

// EnsureBuyerID returns the resolved buyer id, minting a new anonymous token
// when there is none. minted reports whether the token is new and has to be
// handed back to the client.
func (b *BuyerIdentity) EnsureBuyerID() (buyerID string, minted bool) {
	if id, ok := b.BuyerID(); ok {
		return id, false
	}
	b.AnonymousToken = newAnonymousToken()
	return b.AnonymousToken, true
}

// uuid v4 is drawn from crypto/rand
func newAnonymousToken() string {
	return uuid.New().String()
}
