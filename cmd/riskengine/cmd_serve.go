package main

import (
	"context"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/artifacts"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/engine"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/marketdata"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/metrics"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/ops"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/store"
)

// baselineQuotes converts the snapshot file's underlyings into the
// provider's quote shape, seeding the in-memory provider the stream
// then keeps current.
func baselineQuotes(snap engine.Snapshot) []marketdata.Quote {
	quotes := make([]marketdata.Quote, 0, len(snap.Underlyings))
	for sym, u := range snap.Underlyings {
		quotes = append(quotes, marketdata.Quote{
			Symbol:        sym,
			Spot:          u.Spot,
			ImpliedVol:    u.ImpliedVol,
			HistoricalVol: u.HistoricalVol,
			Class:         u.Class,
			AsOf:          snap.Time,
		})
	}
	return quotes
}

// tickSymbols is the union of the baseline's symbols and the open
// book's, sorted for stable logs.
func tickSymbols(base engine.Snapshot, open []*position.Position) []string {
	set := make(map[string]struct{}, len(base.Underlyings))
	for sym := range base.Underlyings {
		set[sym] = struct{}{}
	}
	for _, p := range open {
		set[p.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(set))
	for sym := range set {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

func newServeCmd() *cobra.Command {
	var (
		addr          string
		snapshotPath  string
		positionsPath string
		dbDSN         string
		redisAddr     string
		feedURL       string
		interval      time.Duration
		artifactsDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation loop with the ops HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			m := metrics.NewRegistry(reg)
			eng := engine.New(cfg, engine.WithMetrics(m))

			var base engine.Snapshot
			if err := loadJSONFile(snapshotPath, &base); err != nil {
				return err
			}

			// Market data read path: the baseline snapshot seeds an
			// in-memory provider, Redis fronts it as a read-through
			// cache when configured, and realized vol goes through the
			// breaker-guarded wrapper.
			static := marketdata.NewStaticProvider(baselineQuotes(base), base.VIX)
			var quotes marketdata.Provider = static
			var cache *marketdata.Cache
			if redisAddr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
				defer rdb.Close()
				cache = marketdata.NewCache(static, rdb, marketdata.DefaultQuoteTTL)
				quotes = cache
			}
			histvol := marketdata.NewHistVolProvider(static, marketdata.DefaultHistVolConfig())
			source := marketdata.NewSnapshotSource(quotes, histvol, marketdata.DefaultHistVolWindow)

			// Position source: Postgres when a DSN is given, otherwise the
			// JSON file is re-read every tick.
			var listOpen func(context.Context) ([]*position.Position, error)
			if dbDSN != "" {
				db, err := sqlx.Connect("postgres", dbDSN)
				if err != nil {
					return err
				}
				defer db.Close()
				repo := store.NewPositionRepo(db, 5*time.Second)
				listOpen = repo.ListOpen
			} else {
				listOpen = func(context.Context) ([]*position.Position, error) {
					var open []*position.Position
					if err := loadJSONFile(positionsPath, &open); err != nil {
						return nil, err
					}
					return open, nil
				}
			}

			if feedURL != "" {
				stream := marketdata.NewStream(feedURL, cache)
				go func() {
					if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
						log.Error().Err(err).Msg("market data stream stopped")
					}
				}()
				go func() {
					for u := range stream.Updates() {
						static.Apply(u)
					}
				}()
			}

			status := &ops.StatusStore{}
			server := ops.NewServer(ops.ServerConfig{
				Addr:         addr,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
				IdleTimeout:  60 * time.Second,
			}, reg, status)
			go func() {
				if err := server.Run(ctx); err != nil {
					log.Error().Err(err).Msg("ops server stopped")
				}
			}()

			var writer *artifacts.Writer
			if artifactsDir != "" {
				writer = artifacts.NewWriter(artifactsDir)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			log.Info().Dur("interval", interval).Msg("evaluation loop started")

			for {
				select {
				case <-ctx.Done():
					log.Info().Msg("shutting down")
					return nil
				case now := <-ticker.C:
					open, err := listOpen(ctx)
					if err != nil {
						log.Error().Err(err).Msg("loading open positions failed, skipping tick")
						continue
					}
					snap := base
					snap.Time = now.UTC()
					snap.Underlyings = source.Underlyings(ctx, tickSymbols(base, open))
					if vix, err := source.VIX(ctx); err == nil {
						snap.VIX = vix
					}
					result := eng.Tick(open, snap)
					status.Update(result)
					if writer != nil {
						if _, err := writer.WriteTick(result, now.UTC()); err != nil {
							log.Error().Err(err).Msg("tick report write failed")
						}
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Ops HTTP listen address")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Baseline JSON market snapshot")
	cmd.Flags().StringVar(&positionsPath, "positions", "", "JSON open positions (used when --db is empty)")
	cmd.Flags().StringVar(&dbDSN, "db", "", "Postgres DSN for the position store")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for the quote cache")
	cmd.Flags().StringVar(&feedURL, "feed", "", "Websocket market data feed URL")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Evaluation interval")
	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "Directory for YAML tick reports")
	cmd.MarkFlagRequired("snapshot")

	return cmd
}
