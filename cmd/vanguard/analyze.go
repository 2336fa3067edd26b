package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/newthinker/vanguard/internal/app"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/feed"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	analyzeSnapshots string
	analyzeTimeout   time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one rotation and analysis cycle and print the consensus",
	Long: `Run a single rotation tick followed by a single analysis tick against the
configured feed, or against a JSON file of market snapshots, and print the
resulting consensus signals.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSnapshots, "snapshots", "", "JSON file with an array of market snapshots")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "overall time limit")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	var opts []app.Option
	if analyzeSnapshots != "" {
		snaps, err := readSnapshots(analyzeSnapshots)
		if err != nil {
			return err
		}
		opts = append(opts, app.WithFeed(feed.NewStatic(snaps...)))
	}

	a, err := app.New(cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	if err := a.RunOnce(ctx); err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}

	e := a.Engine()
	if !e.FeedAvailable() {
		fmt.Println("Market feed unavailable, nothing analyzed.")
		return nil
	}

	tracked := e.GetTrackedInstruments()
	fmt.Printf("Tracked: ")
	for i, t := range tracked {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(t.Symbol)
	}
	fmt.Println()
	fmt.Println()

	signals := e.GetConsensusSignals()
	if len(signals) == 0 {
		fmt.Println("No consensus signals.")
		return nil
	}
	printSignals(signals)

	log.Info("analysis complete",
		zap.Int("tracked", len(tracked)),
		zap.Int("signals", len(signals)),
	)
	return nil
}

func readSnapshots(path string) ([]core.MarketSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	var snaps []core.MarketSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("parsing snapshots: %w", err)
	}
	return snaps, nil
}

func printSignals(signals []core.ConsensusSignal) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tACTION\tCONF\tACC\tENTRY\tSTOP\tTARGET\tRISK\tMODELS\tLLM\t")
	fmt.Fprintln(w, "------\t------\t----\t---\t-----\t----\t------\t----\t------\t---\t")

	for _, s := range signals {
		llm := ""
		if s.AdvisoryEnhanced {
			llm = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%.5f\t%.5f\t%.5f\t%s\t%d\t%s\t\n",
			s.Symbol, s.Action, s.Confidence, s.Accuracy,
			s.EntryPrice, s.StopLoss, s.TakeProfit, s.RiskLevel,
			s.ContributingModels, llm)
	}
	w.Flush()
}
