package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meanReversionBot/internal/domain"
)

// Recorder implements ports.MetricsRecorder with prometheus collectors.
type Recorder struct {
	symbol string

	cycles        *prometheus.CounterVec
	intents       *prometheus.CounterVec
	movingAverage *prometheus.GaugeVec
	positionBand  *prometheus.GaugeVec
	stopLossLevel *prometheus.GaugeVec
	lastPrice     *prometheus.GaugeVec
	positionOpen  *prometheus.GaugeVec
}

// NewRecorder creates the collectors for symbol and registers them with reg.
func NewRecorder(reg prometheus.Registerer, symbol string) (*Recorder, error) {
	r := &Recorder{
		symbol: symbol,
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "cycles_total", Help: "Decision cycles by outcome"},
			[]string{"symbol", "result"},
		),
		intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "intents_total", Help: "Trade intents emitted by the policy"},
			[]string{"symbol", "action"},
		),
		movingAverage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "moving_average", Help: "Mean close over the lookback window"},
			[]string{"symbol"},
		),
		positionBand: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "position_band", Help: "Population standard deviation of the lookback window"},
			[]string{"symbol"},
		),
		stopLossLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "stop_loss_level", Help: "Stop-loss distance from the mean"},
			[]string{"symbol"},
		),
		lastPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "last_price", Help: "Last trade price used for the decision"},
			[]string{"symbol"},
		),
		positionOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "position_open", Help: "1 when a position is open in the labelled direction"},
			[]string{"symbol", "direction"},
		),
	}

	for _, c := range []prometheus.Collector{
		r.cycles, r.intents, r.movingAverage, r.positionBand, r.stopLossLevel, r.lastPrice, r.positionOpen,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveCycle counts a finished cycle.
func (r *Recorder) ObserveCycle(result string) {
	r.cycles.WithLabelValues(r.symbol, result).Inc()
}

// ObserveSnapshot publishes the cycle's signal values.
func (r *Recorder) ObserveSnapshot(s domain.SignalSnapshot) {
	r.movingAverage.WithLabelValues(r.symbol).Set(s.MovingAverage.InexactFloat64())
	r.positionBand.WithLabelValues(r.symbol).Set(s.PositionBand.InexactFloat64())
	r.stopLossLevel.WithLabelValues(r.symbol).Set(s.StopLossLevel.InexactFloat64())
	r.lastPrice.WithLabelValues(r.symbol).Set(s.LastPrice.InexactFloat64())
}

// ObserveIntent counts the intent and publishes the resulting position.
func (r *Recorder) ObserveIntent(intent domain.TradeIntent, state domain.PositionState) {
	r.intents.WithLabelValues(r.symbol, string(intent.Action)).Inc()
	for _, dir := range []domain.Direction{domain.DirectionLong, domain.DirectionShort} {
		v := 0.0
		if !state.IsFlat() && state.Direction == dir {
			v = 1
		}
		r.positionOpen.WithLabelValues(r.symbol, string(dir)).Set(v)
	}
}

// NewServer returns an HTTP server exposing g on /metrics.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// Serve runs srv until ctx is done, then shuts it down.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
