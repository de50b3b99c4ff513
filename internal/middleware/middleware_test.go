package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := gin.New()
	r.POST("/checkout", RedisRateLimit(rdb, "checkout", 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		if session != "" {
			req.Header.Set(SessionHeader, session)
		}
		return do(r, req).Code
	}

	assert.Equal(t, http.StatusOK, send("s1"))
	assert.Equal(t, http.StatusOK, send("s1"))
	assert.Equal(t, http.StatusTooManyRequests, send("s1"))
	// 其他会话不受影响
	assert.Equal(t, http.StatusOK, send("s2"))
	assert.Equal(t, http.StatusOK, send(""))
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	r := gin.New()
	r.GET("/x", RedisRateLimit(rdb, "x", 1, time.Second), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

type fakeAuth map[string]*model.AdminUser

func (f fakeAuth) Authenticate(_ context.Context, token string, _ time.Time) (*model.AdminUser, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func TestRequireAdmin(t *testing.T) {
	auth := fakeAuth{"tok": {ID: 7, Email: "admin@example.com"}}
	r := gin.New()
	r.GET("/admin/me", RequireAdmin(auth), func(c *gin.Context) {
		c.String(http.StatusOK, Admin(c).Email)
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/admin/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication_required")

	req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@example.com", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok"})
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/products/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	do(r, httptest.NewRequest(http.MethodGet, "/api/products/1", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/api/products/2", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/products/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "404")))
}
