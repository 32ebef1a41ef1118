package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// PositionStatus tells whether the strategy currently holds exposure.
type PositionStatus string

const (
	StatusFlat PositionStatus = "flat"
	StatusOpen PositionStatus = "open"
)

// Direction is the directional bias of an open position.
type Direction string

const (
	DirectionNone  Direction = "none"
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Action is what a policy asks the execution side to do this cycle.
type Action string

const (
	ActionNone       Action = "none"
	ActionEnterLong  Action = "enter_long"
	ActionEnterShort Action = "enter_short"
	ActionExit       Action = "exit_position"
)

// Intent maps an action to the coarse buy/sell/hold vocabulary used in logs.
func (a Action) Intent() string {
	switch a {
	case ActionEnterLong:
		return "buy"
	case ActionEnterShort:
		return "sell"
	case ActionExit:
		return "close"
	default:
		return "hold"
	}
}

// PolicyMode selects which position-tracking policy drives decisions.
type PolicyMode string

const (
	// PolicySinglePosition is the two-state out/in moving-average crossover policy.
	PolicySinglePosition PolicyMode = "single-position"
	// PolicyLongShort is the three-state band/stop-loss policy.
	PolicyLongShort PolicyMode = "long-short"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss      CloseReason = "SL"
	CloseReasonTakeProfit    CloseReason = "TP"
	CloseReasonTrendReversal CloseReason = "TREND_REVERSAL"
	CloseReasonEndOfData     CloseReason = "END_OF_DATA" // Backtest ran out of candles with a position open
)
