package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/collegehub/internal/actorctx"
	"github.com/geocoder89/collegehub/internal/auth"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
}

func (f fakeVerifier) Verify(token string) (*auth.Claims, error) {
	return f.verifyFn(token)
}

type errorBody struct {
	Message string `json:"message"`
	Error   struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v body=%s", err, w.Body.String())
	}
	return body
}

func newAuthRouter(v TokenVerifier) *gin.Engine {
	m := NewAuthMiddleware(v)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		id, _ := actorctx.UserIDFrom(c.Request.Context())
		role, _ := actorctx.RoleFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	r.GET("/admin", m.RequireAuth(), m.RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer   ", ok: false},
		{header: "Basic abc", ok: false},
		{header: "abc", ok: false},
	}

	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	v := fakeVerifier{verifyFn: func(token string) (*auth.Claims, error) {
		if token != "good" {
			return nil, auth.ErrInvalidSignature
		}
		return &auth.Claims{UserID: "u1", Role: "student"}, nil
	}}
	r := newAuthRouter(v)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "no_header", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Token good", wantStatus: http.StatusUnauthorized},
		{name: "bad_token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "ok", header: "Bearer good", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusUnauthorized {
				body := decodeError(t, w)
				if body.Message != "Not authorized" || body.Error.Code != "unauthorized" {
					t.Fatalf("unexpected error body %+v", body)
				}
				if body.Error.RequestID == "" {
					t.Fatal("error body should carry the request id")
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	v := fakeVerifier{verifyFn: func(token string) (*auth.Claims, error) {
		return &auth.Claims{UserID: "u1", Role: token}, nil
	}}
	r := newAuthRouter(v)

	for role, want := range map[string]int{"admin": http.StatusNoContent, "student": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+role)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != want {
			t.Fatalf("role %s: got status %d, want %d", role, w.Code, want)
		}
	}
}

func TestMemoryCounterWindows(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCounter(time.Minute)
	c.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		got, _, _ := c.Hit(context.Background(), "k")
		if got != i {
			t.Fatalf("hit %d: got count %d", i, got)
		}
	}

	now = now.Add(time.Minute)
	got, resetIn, _ := c.Hit(context.Background(), "k")
	if got != 1 || resetIn != time.Minute {
		t.Fatalf("new window: got (%d, %v), want (1, 1m)", got, resetIn)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(NewMemoryCounter(time.Minute), 2, nil)

	r := gin.New()
	r.POST("/login", rl.RateLimiterMiddleware(KeyByRouteAndIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Fatal("429 should carry Retry-After")
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("got codes %v, want [200 200 429]", codes)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("other client got %d, want 200", w.Code)
	}
}

type failingCounter struct{}

func (failingCounter) Hit(context.Context, string) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rl := NewRateLimiter(failingCounter{}, 1, nil)

	r := gin.New()
	r.POST("/login", rl.RateLimiterMiddleware(KeyByRouteAndIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("got %d, want 200 while counter is failing", w.Code)
		}
	}
}

type fakeIncrementer struct {
	keys []string
}

func (f *fakeIncrementer) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	f.keys = append(f.keys, key)
	return int64(len(f.keys)), window, nil
}

func TestRedisCounterPrefixesKeys(t *testing.T) {
	inc := &fakeIncrementer{}
	c := NewRedisCounter(inc, time.Minute, "rl:")

	n, resetIn, err := c.Hit(context.Background(), "login|1.2.3.4")
	if err != nil || n != 1 || resetIn != time.Minute {
		t.Fatalf("got (%d, %v, %v)", n, resetIn, err)
	}
	if inc.keys[0] != "rl:login|1.2.3.4" {
		t.Fatalf("got key %q", inc.keys[0])
	}
}

func TestRequireJSON(t *testing.T) {
	r := gin.New()
	r.Use(RequireJSON())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		method string
		ct     string
		want   int
	}{
		{method: http.MethodPost, ct: "application/json", want: http.StatusOK},
		{method: http.MethodPost, ct: "application/json; charset=utf-8", want: http.StatusOK},
		{method: http.MethodPost, ct: "text/plain", want: http.StatusBadRequest},
		{method: http.MethodPost, ct: "application/jsonp", want: http.StatusBadRequest},
		{method: http.MethodPost, want: http.StatusBadRequest},
		{method: http.MethodGet, want: http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/x", strings.NewReader("{}"))
		if tt.ct != "" {
			req.Header.Set("Content-Type", tt.ct)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Fatalf("%s %q: got %d, want %d", tt.method, tt.ct, w.Code, tt.want)
		}
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:5173"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("got allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin got allow-origin %q", got)
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() != "abc" || w.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("got body %q header %q", w.Body.String(), w.Header().Get("X-Request-Id"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Body.String() == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(true))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("missing security headers: %v", w.Header())
	}
}

func TestCORSWildcardAndPreflightOnlyHeaders(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://any.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://any.example" {
		t.Fatalf("got allow-origin %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "" {
		t.Fatalf("simple request got allow-methods %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Retry-After") {
		t.Fatalf("got expose-headers %q", got)
	}
}

func TestMaxBodyBytesRejectsDeclaredOversize(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":"much too long"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want 413", w.Code)
	}
}

func TestRequireRoleAcceptsAnyListedRole(t *testing.T) {
	r := gin.New()
	m := NewAuthMiddleware(nil)
	r.GET("/x", func(c *gin.Context) {
		c.Request = c.Request.WithContext(actorctx.WithActor(c.Request.Context(), "u1", "student"))
		c.Next()
	}, m.RequireRole("admin", "student"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
}
