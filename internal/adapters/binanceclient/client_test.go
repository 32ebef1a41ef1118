package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meanReversionBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, Logger: &mockLogger{}})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "logger is required")

	c, err := New(Config{UseTestnet: true, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, baseURLTestnet, c.futuresClient.BaseURL)
	assert.Equal(t, int32(defaultQuantityPrecision), c.quantityPrecision)

	c, err = New(Config{Logger: &mockLogger{}, QuantityPrecision: 1})
	require.NoError(t, err)
	assert.Equal(t, baseURLProduction, c.futuresClient.BaseURL)
	assert.Equal(t, int32(1), c.quantityPrecision)
}

func TestHandleError(t *testing.T) {
	c := newTestClient(t, "")
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", &common.APIError{Code: -1003, Message: "too many"}, ports.ErrRateLimited},
		{"disconnected", &common.APIError{Code: -1001, Message: "disconnected"}, ports.ErrExchangeUnavailable},
		{"recv window", &common.APIError{Code: -1021}, ports.ErrTimeout},
		{"margin", &common.APIError{Code: -2019}, ports.ErrInsufficientFunds},
		{"reduce only", &common.APIError{Code: -2022}, ports.ErrOrderPlacementFailed},
		{"keys", &common.APIError{Code: -2015}, ports.ErrInvalidAPIKeys},
		{"unmapped code", &common.APIError{Code: -9999}, ports.ErrUnknown},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ports.ErrTimeout},
		{"canceled", context.Canceled, ports.ErrContextCanceled},
		{"refused", errors.New("dial tcp: connection refused"), ports.ErrConnectionFailed},
		{"other", errors.New("weird"), ports.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.handleError(ctx, tt.err, "Op")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, c.handleError(ctx, nil, "Op"))
}

func TestTranslateBinanceKline(t *testing.T) {
	k, err := translateBinanceKline(&futures.Kline{
		OpenTime:  1704067200000,
		Open:      "42000.10",
		High:      "42100.00",
		Low:       "41900.5",
		Close:     "42050.25",
		Volume:    "12.345",
		CloseTime: 1704070799999,
	}, "BTCUSDT", "1h")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", k.Symbol)
	assert.Equal(t, "1h", k.Interval)
	assert.True(t, k.Close.Equal(decimal.RequireFromString("42050.25")))
	assert.True(t, k.Low.Equal(decimal.RequireFromString("41900.5")))
	assert.Equal(t, time.UnixMilli(1704067200000), k.OpenTime)
	assert.True(t, k.IsFinal)

	_, err = translateBinanceKline(&futures.Kline{Open: "1", High: "1", Low: "1", Close: "abc", Volume: "1"}, "BTCUSDT", "1h")
	assert.ErrorContains(t, err, "close price")

	_, err = translateBinanceKline(nil, "BTCUSDT", "1h")
	assert.Error(t, err)
}

func TestTranslateOrderResponse(t *testing.T) {
	resp := translateOrderResponse(&futures.CreateOrderResponse{
		OrderID:          7,
		Symbol:           "BTCUSDT",
		ClientOrderID:    "mr-abc",
		AvgPrice:         "42000.5",
		OrigQuantity:     "0.010",
		ExecutedQuantity: "0.010",
		Status:           futures.OrderStatusTypeFilled,
		Side:             futures.SideTypeBuy,
		UpdateTime:       1704067200000,
	})
	require.NotNil(t, resp)
	assert.Equal(t, int64(7), resp.OrderID)
	assert.Equal(t, "mr-abc", resp.ClientOrderID)
	assert.True(t, resp.AvgPrice.Equal(decimal.RequireFromString("42000.5")))
	assert.Equal(t, "FILLED", resp.Status)
	assert.Equal(t, "BUY", resp.Side)

	assert.Nil(t, translateOrderResponse(nil))
}

func TestFormatQuantity(t *testing.T) {
	c := newTestClient(t, "")
	assert.Equal(t, "0.123", c.formatQuantity(decimal.RequireFromString("0.12399")))
	assert.Equal(t, "2.000", c.formatQuantity(decimal.NewFromInt(2)))
	assert.Equal(t, "", c.formatQuantity(decimal.RequireFromString("0.0004")))
	assert.Equal(t, "", c.formatQuantity(decimal.NewFromInt(-1)))
}

func TestPlaceMarketOrder_RejectsDustQuantity(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")
	_, err := c.PlaceMarketOrder(context.Background(), ports.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     "BUY",
		Quantity: decimal.RequireFromString("0.0001"),
	})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestGetKlinesRange(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			[1704067200000,"100.0","101.0","99.0","100.5","10.0",1704070799999,"1005.0",12,"5.0","502.5","0"],
			[1704070800000,"100.5","102.0","100.0","101.5","11.0",1704074399999,"1116.5",15,"6.0","609.0","0"]
		]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	start := time.UnixMilli(1704067200000)
	klines, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1h", start, start.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "a short page ends paging")
	require.Len(t, klines, 2)
	assert.True(t, klines[1].Close.Equal(decimal.RequireFromString("101.5")))
	assert.True(t, klines[0].OpenTime.Before(klines[1].OpenTime))
}

func TestPing(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"code":-1001,"msg":"Internal error; unable to process your request."}`)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Ping(context.Background()))

	healthy.Store(false)
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ports.ErrExchangeUnavailable)
	assert.True(t, ports.IsTransient(err))
}
