package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/michaelpento.lv/swapquote/config"
	"github.com/michaelpento.lv/swapquote/quote"
	"github.com/michaelpento.lv/swapquote/types"
	"github.com/michaelpento.lv/swapquote/utils/metrics"
	"github.com/michaelpento.lv/swapquote/utils/testutils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	weth = testutils.MockToken(3, "WETH", 18)
	usdt = testutils.MockToken(4, "USDT", 6)
)

type fakeService struct {
	mu       sync.Mutex
	result   *quote.Result
	err      error
	requests []quote.Request
	deadline bool
}

func (f *fakeService) Quote(ctx context.Context, req quote.Request) (*quote.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	_, f.deadline = ctx.Deadline()
	return f.result, f.err
}

func (f *fakeService) last() quote.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeCatalog map[string]*types.Network

func (c fakeCatalog) NetworkIDs() []string {
	return []string{"eth"}
}

func (c fakeCatalog) Network(id string) (*types.Network, error) {
	n, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, types.ErrUnknownNetwork)
	}
	return n, nil
}

func testCatalog() fakeCatalog {
	return fakeCatalog{"eth": {
		ID:        "eth",
		ChainID:   1,
		BasePairs: []types.Token{weth, usdt},
		Exchanges: []types.Exchange{
			{ID: "uniswap-v2", Name: "Uniswap V2", Family: types.ConstantProduct},
			{ID: "pancakeswap-v2", Name: "PancakeSwap V2", Family: types.ConstantProduct},
		},
		Deployments: map[string]types.ExchangeDeployment{
			"uniswap-v2": {RouterID: 1},
		},
	}}
}

func testResult() *quote.Result {
	minOut := decimal.RequireFromString("9.822222")
	return &quote.Result{
		Network: "eth",
		From:    weth,
		To:      usdt,
		Quote: &types.SwapQuote{
			Input:          decimal.NewFromInt(10),
			SwapFee:        decimal.RequireFromString("0.03"),
			ExchangeFee:    decimal.Zero,
			ExpectedOutput: decimal.RequireFromString("9.87158"),
			MinOutput:      minOut,
			PriceImpact:    decimal.RequireFromString("-0.992"),
			Path:           types.SwapPath{weth, usdt},
			ExchangeID:     "uniswap-v2",
			ExchangeName:   "Uniswap V2",
			Family:         types.ConstantProduct,
		},
		MinOutputAtomic: "9822222",
		MinOutputHex:    "000000000000000000000000000000000000000000000000000000000095e00e",
	}
}

func newTestServer(t *testing.T, service QuoteService, cfg config.ServerConfig) (*Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	server := NewServer(ServerOptions{
		Config:          cfg,
		DefaultSlippage: 50,
		Metrics:         metrics.NewHTTPMetrics("test", reg),
		Gatherer:        reg,
		Logger:          zaptest.NewLogger(t),
	}, service, testCatalog())
	return server, reg
}

func testServerConfig() config.ServerConfig {
	cfg := config.DefaultConfig().Server
	cfg.RateLimit.RequestsPerSecond = 0
	return cfg
}

func get(t *testing.T, h http.Handler, url string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func quoteURL(path string, extra string) string {
	url := fmt.Sprintf("%s?from=%s&to=%s&amount=10", path, weth.Address.Hex(), usdt.Address.Hex())
	if extra != "" {
		url += "&" + extra
	}
	return url
}

func TestQuoteEndpoint(t *testing.T) {
	service := &fakeService{result: testResult()}
	server, _ := newTestServer(t, service, testServerConfig())

	w := get(t, server.Handler(), quoteURL("/api/v1/quote/ETH", "slippage=100"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Network string `json:"network"`
			Quote   struct {
				MinOutput  string `json:"min_output"`
				ExchangeID string `json:"exchange_id"`
			} `json:"quote"`
			MinOutputAtomic string `json:"min_output_atomic"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "eth", body.Data.Network)
	assert.Equal(t, "9.822222", body.Data.Quote.MinOutput)
	assert.Equal(t, "uniswap-v2", body.Data.Quote.ExchangeID)
	assert.Equal(t, "9822222", body.Data.MinOutputAtomic)

	req := service.last()
	assert.Equal(t, "eth", req.NetworkID)
	assert.Equal(t, int64(100), req.SlippageBasisPoints)
	assert.Empty(t, req.Families)
	assert.True(t, service.deadline)
}

func TestFamilyAliases(t *testing.T) {
	service := &fakeService{result: testResult()}
	server, _ := newTestServer(t, service, testServerConfig())

	tests := []struct {
		path string
		want []types.ProtocolFamily
	}{
		{"/route2/eth", []types.ProtocolFamily{types.ConstantProduct}},
		{"/route3/eth", []types.ProtocolFamily{types.ConcentratedLiquidity}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			// the alias wins over an explicit family
			w := get(t, server.Handler(), quoteURL(tt.path, "family=v3,v2"))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.want, service.last().Families)
			assert.Equal(t, int64(50), service.last().SlippageBasisPoints)
		})
	}
}

func TestQuoteEndpointRejectsBadInput(t *testing.T) {
	service := &fakeService{result: testResult()}
	server, _ := newTestServer(t, service, testServerConfig())

	urls := []string{
		"/api/v1/quote/eth?from=" + weth.Address.Hex(),
		quoteURL("/api/v1/quote/eth", "slippage=abc"),
		"/api/v1/quote/eth?from=0x12&to=" + usdt.Address.Hex() + "&amount=1",
		"/api/v1/quote/eth?from=" + weth.Address.Hex() + "&to=" + usdt.Address.Hex() + "&amount=-1",
		quoteURL("/api/v1/quote/eth", "family=stable"),
	}
	for _, url := range urls {
		w := get(t, server.Handler(), url)
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
		assert.False(t, decode(t, w).Success)
	}
	assert.Empty(t, service.requests)
}

func TestQuoteEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no route", errors.Join(types.ErrNoRouteFound, types.ErrNoLiquidity), http.StatusNotFound},
		{"no route among client errors", errors.Join(types.ErrNoRouteFound, types.ErrInvalidArgument), http.StatusNotFound},
		{"unknown network", fmt.Errorf("%q: %w", "moon", types.ErrUnknownNetwork), http.StatusBadRequest},
		{"token lookup", fmt.Errorf("0xdead: %w", types.ErrTokenLookup), http.StatusBadRequest},
		{"rpc failure", errors.New("dial tcp 10.0.0.1:8545: connection refused"), http.StatusInternalServerError},
		{"token read outage", fmt.Errorf("token 0xdead: failed to get name: %w", errors.New(`Post "https://10.0.0.1/key": dial tcp: connection refused`)), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, &fakeService{err: tt.err}, testServerConfig())
			w := get(t, server.Handler(), quoteURL("/api/v1/quote/eth", ""))
			assert.Equal(t, tt.want, w.Code)

			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.NotContains(t, resp.Error, "10.0.0.1")
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	server, _ := newTestServer(t, &fakeService{result: testResult()}, testServerConfig())
	w := get(t, server.Handler(), "/health", RequestIDHeader, "abc-123")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestNetworksEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &fakeService{}, testServerConfig())
	w := get(t, server.Handler(), "/api/v1/networks")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []NetworkView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "eth", body.Data[0].ID)
	assert.Equal(t, uint64(1), body.Data[0].ChainID)
	require.Len(t, body.Data[0].Exchanges, 1)
	assert.Equal(t, "uniswap-v2", body.Data[0].Exchanges[0].ID)
	assert.Len(t, body.Data[0].BasePairs, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &fakeService{result: testResult()}, testServerConfig())
	get(t, server.Handler(), quoteURL("/route2/eth", ""))

	w := get(t, server.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `test_http_requests_total{method="GET",path="/route2/:network",status="200"} 1`), w.Body.String())
}

func TestRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2}
	server, _ := newTestServer(t, &fakeService{result: testResult()}, cfg)

	for i := 0; i < 2; i++ {
		w := get(t, server.Handler(), quoteURL("/api/v1/quote/eth", ""))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := get(t, server.Handler(), quoteURL("/api/v1/quote/eth", ""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health checks are never limited
	assert.Equal(t, http.StatusOK, get(t, server.Handler(), "/health").Code)
}

func TestCORS(t *testing.T) {
	cfg := testServerConfig()
	cfg.AllowedOrigins = []string{"https://app.example.org"}
	server, _ := newTestServer(t, &fakeService{result: testResult()}, cfg)

	w := get(t, server.Handler(), "/health", "Origin", "https://app.example.org")
	assert.Equal(t, "https://app.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(t, server.Handler(), "/health", "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := testServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	server, _ := newTestServer(t, &fakeService{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
