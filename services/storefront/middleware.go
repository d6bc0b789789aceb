package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const buyerIdentityKey = "buyer_identity"

// IdentityMiddleware lê o usuário autenticado (header do gateway) e o token anônimo (cookie)
func IdentityMiddleware(userHeader, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := BuyerIdentity{
			UserName: c.GetHeader(userHeader),
		}
		if token, err := c.Cookie(cookieName); err == nil {
			identity.AnonymousToken = token
		}
		c.Set(buyerIdentityKey, identity)
		c.Next()
	}
}

// RequireAuth rejeita requisições sem usuário autenticado
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identityFrom(c).IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) BuyerIdentity {
	if value, ok := c.Get(buyerIdentityKey); ok {
		if identity, ok := value.(BuyerIdentity); ok {
			return identity
		}
	}
	return BuyerIdentity{}
}

// RecoveryMiddleware converte panics em 500 e registra o erro
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("❌ Panic recovered on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// buyerCookie controla o cookie do token anônimo
type buyerCookie struct {
	name string
	ttl  time.Duration
}

func (b buyerCookie) set(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     b.name,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(b.ttl),
		MaxAge:   int(b.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (b buyerCookie) clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     b.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
