package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meanReversionBot/config"
	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"
	"meanReversionBot/internal/strategy"
)

// Cycle outcomes reported to the metrics recorder.
const (
	CycleHold    = "hold"
	CycleTraded  = "traded"
	CycleSkipped = "skipped"
	CycleFailed  = "failed"
)

const clientOrderPrefix = "mr"

// CycleResult describes one decision cycle.
type CycleResult struct {
	CycleID   string
	Snapshot  domain.SignalSnapshot
	Intent    domain.TradeIntent
	PrevState domain.PositionState
	State     domain.PositionState
	Quantity  decimal.Decimal
	Order     *ports.OrderResponse // Nil on hold and in dry-run
	DryRun    bool
}

// StrategyService runs decision cycles against the exchange and owns the
// strategy's PositionState.
type StrategyService struct {
	cfg     *config.Config
	logger  ports.Logger
	market  ports.MarketData
	wallet  ports.Wallet
	orders  ports.OrderExecutor
	repo    ports.StateRepository
	policy  ports.Policy
	metrics ports.MetricsRecorder
	now     func() time.Time

	mu       sync.Mutex // Serialises cycles; guards state
	state    domain.PositionState
	restored bool

	// Base amount held by dry-run entries; the exchange never sees them.
	paperHeld decimal.Decimal
}

// NewStrategyService creates a new application service instance.
// recorder may be nil.
func NewStrategyService(
	cfg *config.Config,
	logger ports.Logger,
	market ports.MarketData,
	wallet ports.Wallet,
	orders ports.OrderExecutor,
	repo ports.StateRepository,
	policy ports.Policy,
	recorder ports.MetricsRecorder,
) (*StrategyService, error) {
	if cfg == nil || logger == nil || market == nil || wallet == nil || orders == nil || repo == nil || policy == nil {
		return nil, fmt.Errorf("missing required dependencies for StrategyService")
	}
	if cfg.Symbol == "" || cfg.QuoteAsset == "" {
		return nil, fmt.Errorf("configuration Symbol and QuoteAsset must be set")
	}
	if cfg.LookbackStart <= cfg.LookbackEnd {
		return nil, fmt.Errorf("configuration LookbackStart must exceed LookbackEnd")
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &StrategyService{
		cfg:     cfg,
		logger:  logger,
		market:  market,
		wallet:  wallet,
		orders:  orders,
		repo:    repo,
		policy:  policy,
		metrics: recorder,
		now:     time.Now,
		state:   domain.FlatState(),
	}, nil
}

// State returns a copy of the current PositionState.
func (s *StrategyService) State() domain.PositionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Restore loads the persisted PositionState. Without a stored state the
// strategy starts flat. A stored state that the active policy cannot
// continue from is reported as domain.ErrInvalidState.
func (s *StrategyService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := "Restore"
	state, mode, found, err := s.repo.LoadState(ctx, s.cfg.Symbol)
	if err != nil {
		s.logger.Error(ctx, err, op+": failed to load strategy state", map[string]interface{}{"symbol": s.cfg.Symbol})
		return fmt.Errorf("load strategy state: %w", err)
	}
	if !found {
		s.state = domain.FlatState()
		s.restored = true
		s.logger.Info(ctx, op+": no persisted state, starting flat", map[string]interface{}{"symbol": s.cfg.Symbol})
		return nil
	}

	if err := s.checkRestorable(state, mode); err != nil {
		s.logger.Error(ctx, err, op+": persisted state rejected", map[string]interface{}{
			"symbol": s.cfg.Symbol, "state": state.String(), "mode": mode,
		})
		return err
	}

	s.state = state
	s.restored = true
	s.logger.Info(ctx, op+": strategy state restored", map[string]interface{}{
		"symbol": s.cfg.Symbol, "state": state.String(), "mode": mode,
	})
	s.reconcile(ctx)
	return nil
}

func (s *StrategyService) checkRestorable(state domain.PositionState, mode domain.PolicyMode) error {
	active := s.policy.Mode()
	invalid := &strategy.InvalidStateError{Mode: active, State: state}
	if !state.IsConsistent() {
		return invalid
	}
	if state.IsFlat() {
		return nil
	}
	// An open position can only be managed by the policy that opened it.
	if mode != "" && mode != active {
		return fmt.Errorf("position opened under %s policy: %w", mode, invalid)
	}
	if active == domain.PolicySinglePosition && state.Direction == domain.DirectionShort {
		return invalid
	}
	return nil
}

// reconcile warns when the exchange disagrees with the restored state.
func (s *StrategyService) reconcile(ctx context.Context) {
	if s.cfg.DryRun {
		return
	}
	held, err := s.wallet.GetPositionAmount(ctx, s.cfg.Symbol)
	if err != nil {
		s.logger.Warn(ctx, "Could not reconcile restored state with exchange position", map[string]interface{}{"error": err.Error()})
		return
	}
	if s.state.IsFlat() != held.IsZero() {
		s.logger.Warn(ctx, "Restored state disagrees with exchange position", map[string]interface{}{
			"state": s.state.String(), "positionAmount": held.String(),
		})
	}
}

// RunCycle fetches the lookback window and last price, decides, and executes
// the resulting intent. The in-memory state only advances once the order has
// been accepted (or logged in dry-run).
func (s *StrategyService) RunCycle(ctx context.Context) (CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycleID := uuid.NewString()
	result := CycleResult{CycleID: cycleID, PrevState: s.state, State: s.state, DryRun: s.cfg.DryRun}
	fields := map[string]interface{}{"cycleID": cycleID, "symbol": s.cfg.Symbol}

	if !s.restored {
		err := fmt.Errorf("RunCycle called before Restore: %w", domain.ErrInvalidState)
		s.metrics.ObserveCycle(CycleFailed)
		return result, err
	}

	now := s.now()
	start, end := now.Add(-s.cfg.LookbackStart), now.Add(-s.cfg.LookbackEnd)
	klines, err := s.market.GetKlinesRange(ctx, s.cfg.Symbol, s.cfg.KlineInterval, start, end)
	if err != nil {
		s.metrics.ObserveCycle(CycleFailed)
		return result, fmt.Errorf("fetch price series: %w", err)
	}
	lastPrice, err := s.market.GetTickerPrice(ctx, s.cfg.Symbol)
	if err != nil {
		s.metrics.ObserveCycle(CycleFailed)
		return result, fmt.Errorf("fetch last price: %w", err)
	}

	snap, err := s.policy.ComputeSignal(domain.SeriesFromKlines(klines), lastPrice)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			fields["candles"] = len(klines)
			s.logger.Warn(ctx, "Skipping cycle: "+err.Error(), fields)
			s.metrics.ObserveCycle(CycleSkipped)
		} else {
			s.metrics.ObserveCycle(CycleFailed)
		}
		return result, err
	}
	result.Snapshot = snap
	s.metrics.ObserveSnapshot(snap)

	intent, next, err := s.policy.Decide(snap, s.state)
	if err != nil {
		s.logger.Error(ctx, err, "Policy rejected current state", fields)
		s.metrics.ObserveCycle(CycleFailed)
		return result, err
	}
	result.Intent = intent

	fields["lastPrice"] = snap.LastPrice.String()
	fields["movingAverage"] = snap.MovingAverage.StringFixed(8)
	fields["positionBand"] = snap.PositionBand.StringFixed(8)
	fields["stopLossLevel"] = snap.StopLossLevel.StringFixed(8)
	fields["zone"] = string(snap.Classify())
	fields["state"] = s.state.String()
	fields["intent"] = intent.Action.Intent()

	if intent.Action == domain.ActionNone {
		s.logger.Info(ctx, "Cycle complete: hold", fields)
		s.metrics.ObserveIntent(intent, s.state)
		s.metrics.ObserveCycle(CycleHold)
		return result, nil
	}

	qty, order, err := s.execute(ctx, cycleID, intent)
	if err != nil {
		s.logger.Error(ctx, err, "Cycle failed while executing intent", fields)
		s.metrics.ObserveCycle(CycleFailed)
		return result, err
	}
	result.Quantity = qty
	result.Order = order

	// The exchange already moved; track it in memory even if persisting fails.
	s.state = next
	result.State = next
	s.metrics.ObserveIntent(intent, next)

	fields["action"] = string(intent.Action)
	fields["reason"] = string(intent.Reason)
	fields["quantity"] = qty.String()
	fields["nextState"] = next.String()
	fields["dryRun"] = s.cfg.DryRun

	if err := s.repo.SaveState(ctx, s.cfg.Symbol, s.policy.Mode(), next); err != nil {
		s.logger.Error(ctx, err, "Failed to persist strategy state", fields)
		s.metrics.ObserveCycle(CycleFailed)
		return result, fmt.Errorf("persist strategy state: %w", err)
	}

	s.logger.Info(ctx, "Cycle complete: "+intent.Action.Intent(), fields)
	s.metrics.ObserveCycle(CycleTraded)
	return result, nil
}

// execute resolves the sizing hint and submits the market order.
func (s *StrategyService) execute(ctx context.Context, cycleID string, intent domain.TradeIntent) (decimal.Decimal, *ports.OrderResponse, error) {
	side, ok := intent.Side(s.state.Direction)
	if !ok {
		return decimal.Zero, nil, fmt.Errorf("intent %s has no order side", intent.Action)
	}

	var balance decimal.Decimal
	var err error
	switch intent.Sizing.Basis {
	case domain.SizingFromQuote:
		balance, err = s.wallet.GetAccountBalance(ctx, s.cfg.QuoteAsset)
	case domain.SizingFromBase:
		if s.cfg.DryRun {
			balance = s.paperHeld
		} else {
			balance, err = s.wallet.GetPositionAmount(ctx, s.cfg.Symbol)
		}
	default:
		err = &domain.SizingError{Basis: intent.Sizing.Basis, Reason: "no sizing basis"}
	}
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("resolve %s: %w", intent.Sizing.Basis, err)
	}

	qty, err := intent.Sizing.Amount(balance)
	if err != nil {
		return decimal.Zero, nil, err
	}
	// A dry-run exit of a position restored from an earlier run has nothing
	// simulated to close; the state still has to advance.
	dryExit := s.cfg.DryRun && intent.IsExit()
	if !qty.IsPositive() && !dryExit {
		return decimal.Zero, nil, &domain.SizingError{
			Basis:  intent.Sizing.Basis,
			Reason: fmt.Sprintf("balance %s yields no tradable quantity", balance),
		}
	}

	req := ports.OrderRequest{
		Symbol:        s.cfg.Symbol,
		Side:          side,
		Quantity:      qty,
		ReduceOnly:    intent.IsExit(),
		FeeOption:     s.cfg.FeeOption,
		ClientOrderID: clientOrderID(cycleID),
	}

	if s.cfg.DryRun {
		s.logger.Info(ctx, "Dry run: order not submitted", map[string]interface{}{
			"symbol": req.Symbol, "side": req.Side, "quantity": qty.String(),
			"reduceOnly": req.ReduceOnly, "clientOrderID": req.ClientOrderID,
		})
		if intent.IsEntry() {
			s.paperHeld = qty
		} else {
			s.paperHeld = decimal.Zero
		}
		return qty, nil, nil
	}

	order, err := s.orders.PlaceMarketOrder(ctx, req)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("place %s order: %w", side, err)
	}
	return qty, order, nil
}

func clientOrderID(cycleID string) string {
	return clientOrderPrefix + "-" + strings.ReplaceAll(cycleID, "-", "")
}

type noopRecorder struct{}

func (noopRecorder) ObserveCycle(string)                                    {}
func (noopRecorder) ObserveSnapshot(domain.SignalSnapshot)                  {}
func (noopRecorder) ObserveIntent(domain.TradeIntent, domain.PositionState) {}
