package paywall

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-paywall-secret"

func newGatedHandler(t *testing.T) http.Handler {
	t.Helper()
	gate := New(testSecret, map[string]Price{
		"/v1/world/stats": {Amount: 0.05, Currency: "USD"},
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	return gate.Middleware(next)
}

func get(t *testing.T, h http.Handler, path, proof string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if proof != "" {
		req.Header.Set("X-Payment", proof)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	routes := Routes(map[string]float64{
		"/v1/world/stats":     0.05,
		"/v1/vision/coverage": 0.01,
	}, "USD")
	if len(routes) != 2 {
		t.Fatalf("got %d routes", len(routes))
	}
	if p := routes["/v1/world/stats"]; p.Amount != 0.05 || p.Currency != "USD" {
		t.Errorf("got %+v", p)
	}
	if p := routes["/v1/vision/coverage"]; p.Amount != 0.01 {
		t.Errorf("got %+v", p)
	}
}

func TestUngatedRoutePassesThrough(t *testing.T) {
	h := newGatedHandler(t)
	rec := get(t, h, "/v1/world/cells", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestMissingProofGets402(t *testing.T) {
	h := newGatedHandler(t)
	rec := get(t, h, "/v1/world/stats", "")
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("got status %d", rec.Code)
	}
	var body struct {
		OK          bool    `json:"ok"`
		Error       string  `json:"error"`
		Price       float64 `json:"price"`
		Currency    string  `json:"currency"`
		Description string  `json:"description"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.OK || body.Error == "" {
		t.Errorf("got body %+v", body)
	}
	if body.Price != 0.05 || body.Currency != "USD" || body.Description == "" {
		t.Errorf("quote missing from body: %+v", body)
	}
}

func TestValidProofPasses(t *testing.T) {
	h := newGatedHandler(t)
	proof, err := NewProof(testSecret, "/v1/world/stats", 0.05, "USD", time.Minute)
	if err != nil {
		t.Fatalf("NewProof: %v", err)
	}
	rec := get(t, h, "/v1/world/stats", proof)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestOverpaymentPasses(t *testing.T) {
	h := newGatedHandler(t)
	proof, err := NewProof(testSecret, "/v1/world/stats", 1.00, "USD", time.Minute)
	if err != nil {
		t.Fatalf("NewProof: %v", err)
	}
	if rec := get(t, h, "/v1/world/stats", proof); rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestRejectedProofs(t *testing.T) {
	h := newGatedHandler(t)

	wrongSecret, _ := NewProof("other-secret", "/v1/world/stats", 0.05, "USD", time.Minute)
	wrongRoute, _ := NewProof(testSecret, "/v1/world/cells", 0.05, "USD", time.Minute)
	underpaid, _ := NewProof(testSecret, "/v1/world/stats", 0.01, "USD", time.Minute)
	wrongCurrency, _ := NewProof(testSecret, "/v1/world/stats", 0.05, "EUR", time.Minute)
	expired, _ := NewProof(testSecret, "/v1/world/stats", 0.05, "USD", -time.Minute)

	for name, proof := range map[string]string{
		"garbage":        "not-a-jwt",
		"wrong secret":   wrongSecret,
		"wrong route":    wrongRoute,
		"underpaid":      underpaid,
		"wrong currency": wrongCurrency,
		"expired":        expired,
	} {
		rec := get(t, h, "/v1/world/stats", proof)
		if rec.Code != http.StatusPaymentRequired {
			t.Errorf("%s: got status %d, want 402", name, rec.Code)
		}
	}
}

func TestDisabledGateIsTransparent(t *testing.T) {
	gate := New("", nil)
	if gate.Enabled() {
		t.Fatal("empty gate should be disabled")
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := get(t, gate.Middleware(next), "/v1/world/stats", "")
	if rec.Code != http.StatusTeapot {
		t.Fatalf("got status %d", rec.Code)
	}
}
