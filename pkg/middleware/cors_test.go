package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func corsRequest(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/checkout/begin", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rr := httptest.NewRecorder()
	CORS(cfg)(okHandler()).ServeHTTP(rr, req)
	return rr
}

func TestCORS_DevMode_Wildcard(t *testing.T) {
	rr := corsRequest(CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"}, http.MethodGet, "https://shop.local")

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_ProdMode_AllowedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, Environment: "production"}
	rr := corsRequest(cfg, http.MethodGet, "https://shop.example.com")

	assert.Equal(t, "https://shop.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
}

func TestCORS_ProdMode_RejectedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, Environment: "production"}
	rr := corsRequest(cfg, http.MethodGet, "https://evil.example.com")

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_WildcardWithCredentials_DoesNotEchoOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true, Environment: "development"}
	rr := corsRequest(cfg, http.MethodGet, "https://evil.example.com")

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_CredentialsOnlyForListedOrigins(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"https://shop.example.com"},
		AllowCredentials: true,
		Environment:      "development",
	}

	rr := corsRequest(cfg, http.MethodGet, "https://shop.example.com")
	assert.Equal(t, "https://shop.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	rr = corsRequest(cfg, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Preflight_Returns204(t *testing.T) {
	rr := corsRequest(DefaultCORSConfig(), http.MethodOptions, "https://shop.local")

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Visitor-ID")
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_Defaults(t *testing.T) {
	rr := corsRequest(CORSConfig{AllowedOrigins: []string{"*"}}, http.MethodGet, "")

	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rr.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_DefaultConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.ExposedHeaders, "Location")
	assert.Equal(t, "development", cfg.Environment)
}
