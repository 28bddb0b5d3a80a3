package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ai-data-analyst/internal/pkg/jwtutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthJWT(t *testing.T) {
	router := gin.New()
	router.GET("/me", AuthJWT("secret"), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", c.GetUint(ContextUserIDKey))
	})

	good, err := jwtutil.GenerateToken("secret", time.Hour, 7, "a@example.com")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	bad, _ := jwtutil.GenerateToken("other", time.Hour, 7, "a@example.com")

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + bad, http.StatusUnauthorized},
		{"valid", "Bearer " + good, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusOK && w.Body.String() != "7" {
				t.Fatalf("user id = %q", w.Body.String())
			}
			if tc.status == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatal("missing WWW-Authenticate header")
			}
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("generated request id = %q", got)
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	router := gin.New()
	router.POST("/ask", func(c *gin.Context) {
		c.Set(ContextUserIDKey, uint(c.GetHeader("X-User")[0]-'0'))
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/ask", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := call("1"); code != http.StatusOK {
			t.Fatalf("call %d status = %d", i, code)
		}
	}
	if code := call("1"); code != http.StatusTooManyRequests {
		t.Fatalf("third call status = %d, want 429", code)
	}
	if code := call("2"); code != http.StatusOK {
		t.Fatalf("other user status = %d", code)
	}

	fixed = fixed.Add(time.Minute)
	if code := call("1"); code != http.StatusOK {
		t.Fatalf("after refill status = %d", code)
	}
}
