package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantCode    int
		wantOrigin  string
		wantCredits string
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "http://a.test", method: http.MethodPost, wantCode: http.StatusTeapot, wantOrigin: "http://a.test"},
		{name: "explicit", allowed: []string{"http://a.test"}, origin: "http://a.test", method: http.MethodGet, wantCode: http.StatusTeapot, wantOrigin: "http://a.test", wantCredits: "true"},
		{name: "rejected", allowed: []string{"http://a.test"}, origin: "http://b.test", method: http.MethodGet, wantCode: http.StatusTeapot},
		{name: "no origin", allowed: []string{"*"}, method: http.MethodGet, wantCode: http.StatusTeapot},
		{name: "preflight", allowed: []string{"*"}, origin: "http://a.test", method: http.MethodOptions, wantCode: http.StatusOK, wantOrigin: "http://a.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/chat", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredits, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"*"}, OriginPatterns([]string{"http://a.test", "*"}))
	assert.Equal(t, []string{"a.test:8080", "b.test"}, OriginPatterns([]string{"http://a.test:8080", "b.test"}))
	assert.Empty(t, OriginPatterns(nil))
}
