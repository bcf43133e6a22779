package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/chefkeenan/Lume/internal/config"
	"github.com/chefkeenan/Lume/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand creates the root command for the lume binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lume",
		Short: "Lume reservation and checkout engine",
		Long: `Lume holds capacity for products and class sessions, keeps a per-owner
selection of cart lines and turns it into immutable orders.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogLevel == "" {
				return nil
			}
			if _, err := logging.ParseLevel(opts.LogLevel); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file (default $LUME_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// bootstrap loads .env and the config, and builds the logger every command
// shares.
func bootstrap(opts *RootOptions) (config.Config, *slog.Logger, error) {
	envPath, envErr := config.LoadEnvFile()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.LogLevel != "" {
		level, err := logging.ParseLevel(opts.LogLevel)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg.LogLevel = level
	}

	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)
	switch {
	case envErr != nil:
		log.Warn("failed to load .env", "err", envErr)
	case envPath != "":
		log.Info("loaded env file", "path", envPath)
	}
	return cfg, log, nil
}

// connect opens the pool and checks the database answers.
func connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}
