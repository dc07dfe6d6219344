package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/engine"
	"github.com/quantfold/tradegate/internal/execution"
	"github.com/quantfold/tradegate/internal/gatescore"
	"github.com/quantfold/tradegate/internal/journal"
	"github.com/quantfold/tradegate/internal/observ"
	"github.com/quantfold/tradegate/internal/perf"
	"github.com/quantfold/tradegate/internal/portfolio"
	"github.com/quantfold/tradegate/internal/risk"
	"github.com/quantfold/tradegate/internal/sizing"
	"github.com/quantfold/tradegate/internal/veto"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume signals and run the full admission pipeline",
	Long: `Read JSONL signals from a file (or stdin with "-") and process each
through vetoes, the confidence gate, risk checks, sizing and routing.

Example:
  tradegate run -f config.yaml --signals signals.jsonl`,
	RunE: runRun,
}

var signalsPath string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&signalsPath, "signals", "-", "JSONL signal source ('-' for stdin)")
}

type signalLine struct {
	Symbol      string             `json:"symbol"`
	Signal      string             `json:"signal"`
	Price       float64            `json:"price"`
	Size        float64            `json:"size"`
	Algo        string             `json:"algo"`
	Regime      string             `json:"regime"`
	ModelScores map[string]float64 `json:"model_scores"`
	EV          float64            `json:"ev"`
	Sentiment   *float64           `json:"sentiment"`
	Headlines   []string           `json:"headlines"`
	VolSigma    float64            `json:"vol_sigma"`
	RangePct    float64            `json:"range_pct"`
	SpreadBps   float64            `json:"spread_bps"`
	FeeBps      float64            `json:"fee_bps"`
	BarTs       int64              `json:"bar_ts"`
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, jnl, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	if jnl != nil {
		defer jnl.Close()
	}

	go func() {
		http.Handle("/metrics", observ.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			observ.Log("metrics_server_failed", map[string]any{"error": err.Error()})
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := os.Stdin
	if signalsPath != "-" {
		f, err := os.Open(signalsPath)
		if err != nil {
			return fmt.Errorf("open signals: %w", err)
		}
		defer f.Close()
		in = f
	}

	signals := make(chan engine.Signal)
	go func() {
		defer close(signals)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			var line signalLine
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				observ.Log("signal_parse_failed", map[string]any{"error": err.Error()})
				continue
			}
			sig := engine.Signal{
				Symbol:      line.Symbol,
				Signal:      line.Signal,
				Price:       line.Price,
				Size:        line.Size,
				Algo:        line.Algo,
				Regime:      line.Regime,
				ModelScores: line.ModelScores,
				EV:          line.EV,
				RangePct:    line.RangePct,
				SpreadBps:   line.SpreadBps,
				FeeBps:      line.FeeBps,
				BarTs:       line.BarTs,
				Market: veto.Context{
					Headlines: line.Headlines,
					VolSigma:  line.VolSigma,
				},
			}
			if line.Sentiment != nil {
				sig.Market.SentimentScore = *line.Sentiment
				sig.Market.HasSentiment = true
			}
			select {
			case signals <- sig:
			case <-ctx.Done():
				return
			}
		}
	}()

	eng.Run(ctx, signals)
	return nil
}

func buildEngine(cfg config.Root) (*engine.Engine, *journal.Journal, error) {
	// Only the paper broker is wired; refuse live rather than silently
	// paper-trading under a live label.
	if cfg.TradingMode == "live" {
		return nil, nil, fmt.Errorf("trading_mode live is not supported: no live broker transport is wired")
	}

	tracker := portfolio.NewTracker(cfg.Risk.Equity)
	store := risk.NewFileStateStore(cfg.Risk.StatePath)
	riskMgr, err := risk.NewManager(cfg.Risk, store, tracker)
	if err != nil {
		return nil, nil, fmt.Errorf("risk manager: %w", err)
	}

	perfTracker := perf.NewTracker()
	var jnl *journal.Journal
	if cfg.Audit.JournalDB != "" {
		jnl, err = journal.Open(cfg.Audit.JournalDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		if outcomes, err := jnl.RecentOutcomes(500); err == nil {
			pnls := make([]float64, 0, len(outcomes))
			for i := len(outcomes) - 1; i >= 0; i-- {
				pnls = append(pnls, outcomes[i].Pnl)
			}
			perfTracker.Seed(pnls)
		}
	}

	broker := execution.NewPaperBroker(0)
	router := execution.NewRouter(broker, cfg.Execution)

	eng := engine.New(cfg, engine.Deps{
		Vetoes: []veto.Layer{
			veto.NewSentimentFilter(cfg.Veto),
			veto.NewBlackSwanGuard(cfg.Veto),
		},
		Gate:         gatescore.New(cfg.Gate, nil),
		Risk:         riskMgr,
		Portfolio:    tracker,
		Perf:         perfTracker,
		Sizer:        sizing.NewKellySizer(cfg.Sizing.KellyCap),
		Orchestrator: execution.NewOrchestrator(router, cfg.Execution),
		Audit:        engine.NewAuditLog(cfg.Audit.Path, cfg.Audit.BackupPath),
		Journal:      jnl,
	})
	return eng, jnl, nil
}
