package apiapp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestAPIKeyMiddlewareAllowsValidKey(t *testing.T) {
	mw := APIKeyMiddleware("secret-key", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/actions/execute", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestAPIKeyMiddlewareRejectsInvalidKey(t *testing.T) {
	mw := APIKeyMiddleware("secret-key", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/actions/execute", nil)
	req.Header.Set("X-API-Key", "bad-key")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called on invalid key")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAPIKeyMiddlewareRejectsMissingKey(t *testing.T) {
	mw := APIKeyMiddleware("secret-key", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/actions/execute", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without a key")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAPIKeyMiddlewareDisabledWhenUnconfigured(t *testing.T) {
	mw := APIKeyMiddleware("", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/actions/execute", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}
