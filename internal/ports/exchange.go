package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"meanReversionBot/internal/domain"
)

// OrderRequest is a market order derived from a TradeIntent.
type OrderRequest struct {
	Symbol        string
	Side          domain.OrderSide
	Quantity      decimal.Decimal
	ReduceOnly    bool   // Set on exits so a close can never flip the position
	FeeOption     string // Passed through for venues that support it
	ClientOrderID string
}

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64
	Symbol        string
	ClientOrderID string
	AvgPrice      decimal.Decimal // Average filled price
	OrigQuantity  decimal.Decimal
	ExecutedQty   decimal.Decimal
	Status        string // Order status (e.g., NEW, FILLED)
	Side          string
	Timestamp     time.Time
}

// MarketData supplies the price inputs of a decision cycle.
type MarketData interface {
	// GetKlinesRange returns the candles for symbol/interval between start and end, oldest first.
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error)

	// GetTickerPrice retrieves the last trade price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Wallet answers balance questions needed to resolve sizing hints.
type Wallet interface {
	// GetAccountBalance retrieves the available balance for an asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// GetPositionAmount returns the absolute base-asset amount held in symbol's position.
	// Zero means nothing is held.
	GetPositionAmount(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// OrderExecutor submits orders to the trading venue.
type OrderExecutor interface {
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
}

// ExchangeClient bundles every exchange capability the live bot needs.
type ExchangeClient interface {
	MarketData
	Wallet
	OrderExecutor

	// SetServerTime synchronizes the client's time with the server's time.
	SetServerTime(ctx context.Context) error

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error
}
