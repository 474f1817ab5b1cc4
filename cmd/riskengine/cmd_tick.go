package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/artifacts"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/engine"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

func newTickCmd() *cobra.Command {
	var (
		positionsPath string
		snapshotPath  string
		artifactsDir  string
	)

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one evaluation over the open book and print required actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var open []*position.Position
			if err := loadJSONFile(positionsPath, &open); err != nil {
				return err
			}
			var snap engine.Snapshot
			if err := loadJSONFile(snapshotPath, &snap); err != nil {
				return err
			}
			if snap.Time.IsZero() {
				snap.Time = time.Now().UTC()
			}

			eng := engine.New(cfg)
			result := eng.Tick(open, snap)

			if artifactsDir != "" {
				path, err := artifacts.NewWriter(artifactsDir).WriteTick(result, snap.Time)
				if err != nil {
					return err
				}
				log.Info().Str("path", path).Msg("tick report written")
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&positionsPath, "positions", "", "JSON file of open positions")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "JSON market snapshot")
	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "Directory for YAML tick reports (skipped when empty)")
	cmd.MarkFlagRequired("positions")
	cmd.MarkFlagRequired("snapshot")

	return cmd
}
