package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthentication(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		apiKey         string
		setupRequest   func(req *http.Request)
		expectedStatus int
	}{
		{
			name:   "No API key configured - allow access",
			apiKey: "",
			setupRequest: func(req *http.Request) {
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "API key set - no auth provided",
			apiKey: "secret123",
			setupRequest: func(req *http.Request) {
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "API key set - wrong auth provided",
			apiKey: "secret123",
			setupRequest: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer wrongsecret")
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "API key set - correct Bearer token",
			apiKey: "secret123",
			setupRequest: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer secret123")
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "API key set - correct X-API-Key header",
			apiKey: "secret123",
			setupRequest: func(req *http.Request) {
				req.Header.Set("X-API-Key", "secret123")
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "API key set - correct query param",
			apiKey: "secret123",
			setupRequest: func(req *http.Request) {
				q := req.URL.Query()
				q.Add("api_key", "secret123")
				req.URL.RawQuery = q.Encode()
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			tt.setupRequest(req)
			w := httptest.NewRecorder()

			middleware := Auth(tt.apiKey)
			handler := middleware(nextHandler)
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string

	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	h := Chain(final, mw("first"), mw("second"))

	req := httptest.NewRequest("GET", "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}
