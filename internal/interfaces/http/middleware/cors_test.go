package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/api/v1/takeoffs", ok)
	r.POST("/api/v1/takeoffs", ok)
	r.OPTIONS("/api/v1/takeoffs", ok)
	r.GET("/api/v1/takeoffs/:id", ok)
	r.GET("/healthz", ok)
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/fail", func(c *gin.Context) { c.String(http.StatusInternalServerError, "fail") })
	return r
}

func serve(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}

	w := serve(newEngine(CORS(cfg)), http.MethodOptions, "/api/v1/takeoffs", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": "POST",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, w.Body.String())
}

func TestCORS_SimpleRequest(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}

	w := serve(newEngine(CORS(cfg)), http.MethodGet, "/api/v1/takeoffs", map[string]string{"Origin": "https://app.example.com"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader)
	assert.Equal(t, []string{"Origin", "Access-Control-Request-Method", "Access-Control-Request-Headers"}, w.Header().Values("Vary"))
}

func TestCORS_Origins(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		creds   bool
		origin  string
		want    string
	}{
		{"disallowed", []string{"https://app.example.com"}, false, "https://evil.test", ""},
		{"case insensitive", []string{"https://APP.example.com"}, false, "https://app.example.com", "https://app.example.com"},
		{"any", []string{"*"}, false, "https://x.test", "*"},
		{"any with credentials echoes origin", []string{"*"}, true, "https://x.test", "https://x.test"},
		{"subdomain", []string{"*.example.com"}, false, "https://ops.example.com", "https://ops.example.com"},
		{"subdomain mismatch", []string{"*.example.com"}, false, "https://example.org", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tc.allowed
			cfg.AllowCredentials = tc.creds

			w := serve(newEngine(CORS(cfg)), http.MethodGet, "/api/v1/takeoffs", map[string]string{"Origin": tc.origin})
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.want, w.Header().Get("Access-Control-Allow-Origin"))
			if tc.creds && tc.want != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestCORS_NoOrigin(t *testing.T) {
	w := serve(newEngine(CORS(DefaultCORSConfig())), http.MethodGet, "/api/v1/takeoffs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

//Personal.AI order the ending
