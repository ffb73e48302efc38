package server

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store"
)

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// requireNode resolves the caller's bearer token to a registered node.
// On failure it writes a 401 and returns nil.
func (s *FieldServer) requireNode(w http.ResponseWriter, r *http.Request) *model.Node {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil
	}
	node, err := s.store.NodeByToken(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve token")
		return nil
	}
	return node
}

// checkRegistrationSecret verifies the shared registration secret header.
// An empty configured secret leaves registration open.
func (s *FieldServer) checkRegistrationSecret(r *http.Request) bool {
	if s.regSecret == "" {
		return true
	}
	provided := r.Header.Get("X-Registration-Secret")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.regSecret)) == 1
}

// LoggingMiddleware logs the method, path, status, and duration of every
// request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
