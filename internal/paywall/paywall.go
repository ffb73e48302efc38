// Package paywall gates a fixed allow-list of read endpoints behind payment
// proofs. A proof is an HS256 JWT presented in the X-Payment header, minted
// by the payment processor after a charge; the gate only verifies it. With
// no routes configured the middleware passes everything through untouched.
package paywall

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidProof = errors.New("invalid payment proof")

// Price is what one request to a gated route costs.
type Price struct {
	Amount   float64 `json:"price"`
	Currency string  `json:"currency"`
}

// proofClaims is the payload of a payment proof token.
type proofClaims struct {
	Route    string  `json:"route"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	jwt.RegisteredClaims
}

// Gate holds the gated route table and the proof verification secret.
type Gate struct {
	secret []byte
	routes map[string]Price
}

func New(secret string, routes map[string]Price) *Gate {
	return &Gate{secret: []byte(secret), routes: routes}
}

// Enabled reports whether any route is gated.
func (g *Gate) Enabled() bool {
	return len(g.routes) > 0 && len(g.secret) > 0
}

// Routes builds the gated route table from a price-per-route map.
func Routes(prices map[string]float64, currency string) map[string]Price {
	routes := make(map[string]Price, len(prices))
	for route, amount := range prices {
		routes[route] = Price{Amount: amount, Currency: currency}
	}
	return routes
}

// NewProof mints a proof token. The server only verifies proofs; this lives
// here for the payment processor integration and for tests.
func NewProof(secret, route string, amount float64, currency string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := proofClaims{
		Route:    route,
		Amount:   amount,
		Currency: currency,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Middleware enforces payment on gated routes and passes all others through.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		price, gated := g.routes[r.URL.Path]
		if !gated {
			next.ServeHTTP(w, r)
			return
		}
		raw := r.Header.Get("X-Payment")
		if raw == "" {
			denyPayment(w, r.URL.Path, price, "payment required")
			return
		}
		claims, err := g.parse(raw)
		if err != nil {
			denyPayment(w, r.URL.Path, price, "invalid payment proof")
			return
		}
		if claims.Route != r.URL.Path {
			denyPayment(w, r.URL.Path, price, "payment proof is for a different route")
			return
		}
		if claims.Currency != price.Currency || claims.Amount < price.Amount {
			denyPayment(w, r.URL.Path, price, "insufficient payment")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) parse(tokenStr string) (*proofClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &proofClaims{}, func(_ *jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidProof
	}
	if claims, ok := token.Claims.(*proofClaims); ok {
		return claims, nil
	}
	return nil, ErrInvalidProof
}

func denyPayment(w http.ResponseWriter, route string, price Price, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":          false,
		"error":       msg,
		"price":       price.Amount,
		"currency":    price.Currency,
		"description": fmt.Sprintf("access to %s costs %g %s per request", route, price.Amount, price.Currency),
	})
}
