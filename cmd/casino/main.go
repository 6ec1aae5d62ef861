// Package main is the entry point for the casino bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"casino-bot/internal/bot"
	"casino-bot/internal/config"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/rank"
	"casino-bot/internal/repository"
	"casino-bot/internal/repository/memory"
	"casino-bot/internal/repository/postgres"
	"casino-bot/internal/rng"
	"casino-bot/internal/service"
)

func main() {
	var (
		configPath string
		cfg        *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           "casino",
		Short:         "Telegram casino bot with coinflip, mines and tower",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			return setupLogging(cfg.Log)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config", "Directory holding config.yaml")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cfg)
		},
	}

	rankCmd := &cobra.Command{
		Use:   "rank [wins]",
		Short: "Print the rank ladder, or the rank for a win count",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRank,
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, rankCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		cancel()
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}

// openStore opens the configured repository backend. Postgres is migrated
// before use.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return store, store.Close, nil
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.NewStore(pool.Pool), pool.Close, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, problems := cfg.Registry()
	for _, p := range problems {
		log.Warn().Err(p).Msg("Game disabled")
	}
	log.Info().
		Int("game_count", registry.Count()).
		Interface("games", registry.Types()).
		Msg("Games registered")

	env := service.NewEnv(store, lock.NewKeyLock(), cfg.Lock.Timeout)
	table := rank.Default()

	ledger := service.NewLedgerService(env)
	ranks := service.NewRankService(env, ledger, table)
	accounts := service.NewAccountService(env, ledger, table, cfg.Player.StartingCoins, cfg.Player.StartingGems)
	games := service.NewGameService(env, ledger, ranks, registry, rng.NewGenerator(nil))
	redeem := service.NewRedeemService(env, ledger)

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:   cfg,
		Accounts: accounts,
		Ledger:   ledger,
		Games:    games,
		Ranks:    ranks,
		Redeem:   redeem,
	})
	if err != nil {
		return err
	}

	go telegramBot.Start()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate needs storage.driver=%s, got %q", config.DriverPostgres, cfg.Storage.Driver)
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	return postgres.Migrate(ctx, pool.Pool)
}

func runRank(cmd *cobra.Command, args []string) error {
	table := rank.Default()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		wins, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || wins < 0 {
			return fmt.Errorf("wins must be a non-negative whole number, got %q", args[0])
		}
		info := table.For(wins)
		fmt.Fprintf(out, "%s %d  wins=%d  progress=%.1f%%  next=%d  missing=%d\n",
			info.Rank, info.Level, info.TotalWins, info.ProgressPercent, info.NextThreshold, info.WinsRequiredForNext)
		return nil
	}

	for _, tier := range table.Tiers() {
		reward := table.RewardFor(tier)
		fmt.Fprintf(out, "%-9s %d  %5d wins  reward %d coins, %d gems\n",
			tier.Rank, tier.Level, tier.RequiredWins, reward.Coins, reward.Gems)
	}
	return nil
}
