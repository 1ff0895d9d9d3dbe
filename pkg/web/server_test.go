package web

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/security"
	"github.com/lk2023060901/xdooria-combat/pkg/web/middleware"
)

func newTestServer(t *testing.T, cfg *Config, opts ...Option) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Mode = gin.TestMode
	s, err := NewServer(cfg, logger.NewNoop(), opts...)
	require.NoError(t, err)
	return s
}

func TestServer_StartStop(t *testing.T) {
	s := newTestServer(t, &Config{Addr: "127.0.0.1:0"})
	s.Router().GET("/ping", func(c *gin.Context) { Success(c, "pong") })

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrServerAlreadyStarted)

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", s.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pong")

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrServerNotStarted)
}

func TestServer_RecoveryAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestServer(t, nil, WithRegisterer(reg))
	s.Router().GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	n, err := testutil.GatherAndCount(reg, "http_server_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t, &Config{RateLimit: RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}})
	s.Router().GET("/zones", func(c *gin.Context) { Success(c, nil) })
	s.Router().GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/zones", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code, "skip path")
}

func TestAuth(t *testing.T) {
	jm, err := security.NewJWTManager(&security.JWTConfig{SecretKey: "admin"})
	require.NoError(t, err)

	s := newTestServer(t, nil)
	s.Router().POST("/spawn", middleware.Auth(jm), func(c *gin.Context) {
		claims, ok := middleware.GetClaims(c)
		require.True(t, ok)
		Success(c, claims.Subject)
	})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/spawn", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jm.Issue("ops")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/spawn", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops")
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t, &Config{CORSOrigins: []string{"*"}})
	s.Router().GET("/zones", func(c *gin.Context) { Success(c, nil) })

	req := httptest.NewRequest(http.MethodGet, "/zones", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
