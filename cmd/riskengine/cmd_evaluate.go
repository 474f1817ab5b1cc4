package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/config"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/engine"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/greeks"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// loadJSONFile decodes a JSON file into dst.
func loadJSONFile(path string, dst interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEvaluateCmd() *cobra.Command {
	var (
		symbol        string
		strategyName  string
		qty           int
		vix           float64
		accountValue  float64
		bpUsage       float64
		margin        float64
		positionsPath string
		snapshotPath  string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Ask whether a new position may be opened, and at what size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			strategy, err := position.ParseStrategyKind(strategyName)
			if err != nil {
				return err
			}

			var open []*position.Position
			if positionsPath != "" {
				if err := loadJSONFile(positionsPath, &open); err != nil {
					return err
				}
			}

			snap := engine.Snapshot{
				Time:         time.Now().UTC(),
				VIX:          vix,
				AccountValue: accountValue,
				BPUsage:      bpUsage,
				Session:      greeks.RegularSession,
				Underlyings:  map[string]greeks.Underlying{},
				MarginPerContract: map[string]float64{
					symbol: margin,
				},
			}
			if snapshotPath != "" {
				if err := loadJSONFile(snapshotPath, &snap); err != nil {
					return err
				}
			}

			eng := engine.New(cfg)
			decision := eng.CanEnter(engine.EntryRequest{
				Symbol:       symbol,
				Strategy:     strategy,
				RequestedQty: qty,
			}, open, snap)
			return printJSON(decision)
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Underlying symbol")
	cmd.Flags().StringVar(&strategyName, "strategy", "strangle", "Strategy kind (strangle|iron_condor|put_credit_spread|naked_put|ratio_spread|covered_call)")
	cmd.Flags().IntVar(&qty, "qty", 1, "Requested contract count")
	cmd.Flags().Float64Var(&vix, "vix", 20, "Current VIX level")
	cmd.Flags().Float64Var(&accountValue, "account", 0, "Account net liquidation value")
	cmd.Flags().Float64Var(&bpUsage, "bp-usage", 0, "Current buying-power usage fraction")
	cmd.Flags().Float64Var(&margin, "margin", 0, "Per-contract margin requirement in dollars")
	cmd.Flags().StringVar(&positionsPath, "positions", "", "JSON file of open positions")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "JSON market snapshot (overrides the flag-built one)")
	cmd.MarkFlagRequired("symbol")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("margin")

	return cmd
}
