package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"meanReversionBot/config"
	"meanReversionBot/internal/adapters/binanceclient"
	"meanReversionBot/internal/adapters/logger"
	"meanReversionBot/internal/utils"
)

const dateLayout = "2006-01-02"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the fetch command. Symbol, interval and credentials come
// from the environment the live bot uses.
func newRootCmd() *cobra.Command {
	var (
		from, to, out string
		days          int
	)

	cmd := &cobra.Command{
		Use:           "fetch_klines",
		Short:         "Download historical candles to CSV",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := window(from, to, days, time.Now().UTC())
			if err != nil {
				return err
			}
			return fetch(cmd.Context(), start, end, out)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD); defaults to --days before --to")
	cmd.Flags().StringVar(&to, "to", "", "Last day, exclusive (YYYY-MM-DD); defaults to now")
	cmd.Flags().IntVar(&days, "days", 90, "Window length when --from is not set")
	cmd.Flags().StringVar(&out, "out", "", "Output file; defaults to data/<symbol>_<interval>_<from>_to_<to>.csv")

	return cmd
}

// window resolves the flag values into a [start, end) range.
func window(from, to string, days int, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		end = t
	}

	var start time.Time
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		start = t
	} else {
		if days <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("--days must be positive, got %d", days)
		}
		start = end.AddDate(0, 0, -days)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start.Format(dateLayout), end.Format(dateLayout))
	}
	return start, end, nil
}

func fetch(ctx context.Context, start, end time.Time, out string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.New(cfg.LogFormat, cfg.LogLevelName)

	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		QuantityPrecision: cfg.QuantityPrecision,
		Logger:            appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Binance client: %w", err)
	}

	appLogger.Info(ctx, "Fetching klines", map[string]interface{}{
		"symbol":   cfg.Symbol,
		"interval": cfg.KlineInterval,
		"start":    start,
		"end":      end,
	})
	klines, err := binanceClient.GetKlinesRange(ctx, cfg.Symbol, cfg.KlineInterval, start, end)
	if err != nil {
		return fmt.Errorf("error fetching klines: %w", err)
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"count": len(klines)})

	if out == "" {
		out = fmt.Sprintf("data/%s_%s_%s_to_%s.csv", cfg.Symbol, cfg.KlineInterval, start.Format("20060102"), end.Format("20060102"))
	}
	if err := utils.WriteKlinesToCSV(klines, out); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": out})
	return nil
}
