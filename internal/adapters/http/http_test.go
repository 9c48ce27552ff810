package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotebook/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/mocks"
	"github.com/jsamuelsen/quotebook/internal/platform/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func serverConfig(host string, port int) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           host,
		Port:           port,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

func TestServer_ConfiguredAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{host: "0.0.0.0", port: 8080, want: "0.0.0.0:8080"},
		{host: "localhost", port: 3000, want: "localhost:3000"},
		{host: "::1", port: 8080, want: "[::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg := serverConfig(tt.host, tt.port)
			srv := New(cfg, discard())

			assert.Equal(t, tt.want, srv.Addr())
			assert.Same(t, cfg, srv.Config())
			assert.Equal(t, cfg.ReadTimeout, srv.httpServer.ReadHeaderTimeout)
		})
	}
}

func TestServer_ServesUntilShutdown(t *testing.T) {
	srv := New(serverConfig("127.0.0.1", 0), discard())
	srv.Engine().GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	errCh := srv.Start()
	require.NotEqual(t, "127.0.0.1:0", srv.Addr(), "bound port is reported")

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "no error after a clean shutdown: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve loop did not stop")
	}
}

func TestServer_BindFailureIsReported(t *testing.T) {
	first := New(serverConfig("127.0.0.1", 0), discard())
	_ = first.Start()
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	second := New(serverConfig("127.0.0.1", portNum), discard())

	err, ok := <-second.Start()
	require.True(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestLimitBody(t *testing.T) {
	cfg := serverConfig("127.0.0.1", 0)
	cfg.MaxRequestSize = 16
	srv := New(cfg, discard())
	srv.Engine().POST("/quotes", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, strconv.Itoa(len(body)))
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "under limit", body: `{"name":"a"}`, want: http.StatusOK},
		{name: "over limit", body: strings.Repeat("x", 64), want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/quotes", strings.NewReader(tt.body)))

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// TestNewDefaultRouterConfig tests creating a default router configuration.
func TestNewDefaultRouterConfig(t *testing.T) {
	logger := discard()
	cfg := &config.Config{
		App:  config.AppConfig{Name: "test-app", Environment: "test", Version: "1.0.0"},
		Auth: config.AuthConfig{SubjectHeader: "X-User-ID", MaintainerRole: "maintainer"},
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://example.com"}},
	}
	healthHandler := handlers.NewHealthHandler(nil, handlers.BuildInfo{})

	routerCfg := NewDefaultRouterConfig(logger, cfg, healthHandler, nil)

	assert.Equal(t, logger, routerCfg.Logger)
	assert.Equal(t, &cfg.App, routerCfg.AppConfig)
	assert.Equal(t, &cfg.Auth, routerCfg.AuthConfig)
	assert.Equal(t, &cfg.CORS, routerCfg.CORSConfig)
	assert.Equal(t, healthHandler, routerCfg.HealthHandler)
	assert.Equal(t, DefaultRequestTimeout, routerCfg.Timeout)
	assert.Nil(t, routerCfg.QuoteHandler)
}

type routerFixture struct {
	engine *gin.Engine
	repo   *mocks.MockQuoteRepository
	ranker *mocks.MockQuoteRanker
}

func newRouterFixture(t *testing.T, mutate func(*RouterConfig)) *routerFixture {
	t.Helper()

	logger := discard()
	repo := mocks.NewMockQuoteRepository(t)
	ranker := mocks.NewMockQuoteRanker(t)

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Repository: repo,
		Ranker:     ranker,
		Sweeper:    app.NewRetentionSweeper(app.SweeperConfig{Repository: repo, Logger: logger}),
		Logger:     logger,
	})

	cfg := RouterConfig{
		Logger:        logger,
		AuthConfig:    &config.AuthConfig{SubjectHeader: "X-User-ID", RolesHeader: "X-User-Roles", MaintainerRole: "maintainer"},
		CORSConfig:    &config.CORSConfig{},
		AppConfig:     &config.AppConfig{Name: "test-service", Environment: "test", Version: "1.0.0"},
		HealthHandler: handlers.NewHealthHandler(nil, handlers.BuildInfo{}),
		QuoteHandler:  handlers.NewQuoteHandler(service),
		Timeout:       5 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	engine := gin.New()
	SetupRouter(engine, cfg)

	return &routerFixture{engine: engine, repo: repo, ranker: ranker}
}

func (f *routerFixture) do(method, target string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	f.engine.ServeHTTP(w, req)

	return w
}

// TestSetupRouter tests that the full router wires health and quote routes.
func TestSetupRouter(t *testing.T) {
	f := newRouterFixture(t, nil)

	paths := make(map[string]bool)
	for _, route := range f.engine.Routes() {
		paths[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /-/live",
		"GET /-/ready",
		"POST /api/v1/quotes",
		"GET /api/v1/quotes",
		"GET /api/v1/quotes/random",
		"GET /api/v1/quotes/:name",
		"PATCH /api/v1/quotes/:name",
		"DELETE /api/v1/quotes/:name",
		"PUT /api/v1/quotes/:name/media",
		"DELETE /api/v1/quotes/:name/media",
		"PUT /api/v1/quotes/:name/upvote",
		"DELETE /api/v1/quotes/:name/upvote",
		"GET /api/v1/quotes/:name/upvote",
		"POST /api/v1/maintenance/cleanup",
		"POST /api/v1/maintenance/quote-of-the-week",
		"GET /api/v1/leaderboard",
		"POST /api/v1/leaderboard/refresh",
		"GET /api/v1/culprits",
		"GET /api/v1/quote-names",
	} {
		assert.True(t, paths[want], "missing route %s", want)
	}
}

func TestRouterEscapedName(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.repo.On("Get", mock.Anything, "ac/dc").
		Return(domain.Quote{Name: "ac/dc", Content: "loud", Culprit: "bob"}, true, nil)

	w := f.do(http.MethodGet, "/api/v1/quotes/ac%2Fdc", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.QuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ac/dc", resp.Name)
}

func TestRouterRandomBeforeName(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.ranker.On("RandomQuote", mock.Anything, 0).
		Return(domain.Quote{Name: "lucky"}, true, nil)

	w := f.do(http.MethodGet, "/api/v1/quotes/random", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"lucky"`)
}

func TestRouterVoteRequiresIdentity(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodPut, "/api/v1/quotes/coffee/upvote", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.repo.AssertNotCalled(t, "Upvote", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouterVoteWithIdentity(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.repo.On("Upvote", mock.Anything, "42", "coffee").Return(nil)

	w := f.do(http.MethodPut, "/api/v1/quotes/coffee/upvote", map[string]string{"X-User-ID": "42"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"coffee","voted":true}`, w.Body.String())
}

func TestRouterMaintenanceRequiresRole(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodPost, "/api/v1/maintenance/cleanup", map[string]string{"X-User-ID": "42"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.repo.On("DeleteStale", mock.Anything, app.DefaultRetentionMaxAge, 0).Return(int64(0), nil)

	w = f.do(http.MethodPost, "/api/v1/maintenance/cleanup", map[string]string{
		"X-User-ID":    "42",
		"X-User-Roles": "member, maintainer",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":0}`, w.Body.String())
}

func TestRouterMaintenanceOpenWithoutRole(t *testing.T) {
	f := newRouterFixture(t, func(cfg *RouterConfig) {
		cfg.AuthConfig = &config.AuthConfig{SubjectHeader: "X-User-ID"}
	})
	f.repo.On("DeleteStale", mock.Anything, app.DefaultRetentionMaxAge, 0).Return(int64(0), nil)

	w := f.do(http.MethodPost, "/api/v1/maintenance/cleanup", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterCORS(t *testing.T) {
	f := newRouterFixture(t, func(cfg *RouterConfig) {
		cfg.CORSConfig = &config.CORSConfig{AllowedOrigins: []string{"https://quotes.example.com"}}
	})

	w := f.do(http.MethodOptions, "/api/v1/quotes", map[string]string{
		"Origin":                        "https://quotes.example.com",
		"Access-Control-Request-Method": http.MethodGet,
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://quotes.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-user-id")
}

// TestSetupRouterWithoutTimeout tests router setup with zero timeout.
func TestSetupRouterWithoutTimeout(t *testing.T) {
	require.NotPanics(t, func() {
		newRouterFixture(t, func(cfg *RouterConfig) { cfg.Timeout = 0 })
	})
}

// TestSetupRouterWithNilHandlers tests router setup without optional handlers.
func TestSetupRouterWithNilHandlers(t *testing.T) {
	engine := gin.New()
	logger := discard()

	cfg := RouterConfig{
		Logger:    logger,
		AppConfig: &config.AppConfig{Name: "test-service"},
		Timeout:   30 * time.Second,
	}

	require.NotPanics(t, func() {
		SetupRouter(engine, cfg)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
