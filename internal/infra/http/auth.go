package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// APIKeyHeader — заголовок с ключом доступа к API.
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware пропускает запросы с верным ключом в X-API-Key или
// Authorization: Bearer. Пустой ключ отключает проверку.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	if apiKey == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	expected := sha256.Sum256([]byte(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r)
			if key == "" {
				WriteError(w, r, http.StatusUnauthorized, ErrorResponse{Error: "ключ API отсутствует", Kind: "auth"})
				return
			}
			got := sha256.Sum256([]byte(key))
			if !hmac.Equal(got[:], expected[:]) {
				WriteError(w, r, http.StatusUnauthorized, ErrorResponse{Error: "ключ API недействителен", Kind: "auth"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
