package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/cache"
	"github.com/chefkeenan/Lume/internal/clock"
	"github.com/chefkeenan/Lume/internal/config"
	"github.com/chefkeenan/Lume/internal/outbox"
	"github.com/chefkeenan/Lume/internal/storage/postgres"
	"github.com/chefkeenan/Lume/internal/tracing"
	transporthttp "github.com/chefkeenan/Lume/internal/transport/http"
	"github.com/chefkeenan/Lume/migrations"
)

const remainingTTL = 24 * time.Hour

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database, then run the HTTP API and outbox relay",
		Long: `Run the HTTP API.

Migrations are applied on startup. When KAFKA_BROKERS is set, committed
orders are relayed from the outbox to OUTBOX_TOPIC. When REDIS_URL is set,
remaining capacity is published to Redis after every commit.

Example:
  lume serve --config ./lume.yaml
  LOG_LEVEL=debug lume serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	tracing.Setup()

	pool, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	clk := clock.NewSystem()
	tx := postgres.NewTxManager(pool)
	ledger := app.NewCapacityLedger(postgres.NewLedgerRepository(pool))
	reserves := postgres.NewReservationRepository(pool)
	events := postgres.NewOutboxStore(pool)

	reserveOpts := []app.ReservationServiceOption{
		app.WithReservationLogger(log),
		app.WithReservationShipping(cfg.ShippingFee),
	}
	checkoutOpts := []app.CheckoutServiceOption{
		app.WithCheckoutLogger(log),
		app.WithShippingFee(cfg.ShippingFee),
		app.WithEventWriter(events),
	}
	var remaining transporthttp.RemainingReader
	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		counter := cache.NewRemainingCounter(rdb, remainingTTL)
		reserveOpts = append(reserveOpts, app.WithReservationCounters(counter))
		checkoutOpts = append(checkoutOpts, app.WithCheckoutCounters(counter))
		remaining = counter
		log.Info("remaining counters enabled")
	} else {
		log.Warn("REDIS_URL not set, remaining counters disabled")
	}

	handler := transporthttp.NewRouter(transporthttp.Services{
		Reservations: app.NewReservationService(tx, ledger, reserves, clk, reserveOpts...),
		Selection:    app.NewSelectionService(reserves, cfg.ShippingFee),
		Checkout:     app.NewCheckoutService(tx, ledger, reserves, postgres.NewCheckoutRepository(pool), clk, checkoutOpts...),
		History:      app.NewHistoryService(postgres.NewHistoryRepository(pool), clk, cfg.Location),
		Catalog:      app.NewCatalogService(postgres.NewCatalogRepository(pool), clk),
		Remaining:    remaining,
		DB:           pool,
	}, log, cfg.CORSOrigins)

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	relayDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		writer := outbox.NewWriter(cfg.KafkaBrokers)
		defer writer.Close()
		relay := outbox.NewRelay(log, events, outbox.NewDispatcher(log, writer, cfg.OutboxTopic),
			"relay-"+uuid.NewString(), outbox.WithInterval(cfg.RelayInterval))
		go func() {
			defer close(relayDone)
			if err := relay.Run(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox relay stopped", "err", err)
			}
		}()
	} else {
		close(relayDone)
		log.Warn("KAFKA_BROKERS not set, outbox events stay queued")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api listening", "addr", server.Addr)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
		}
		stop()
	case <-stopCtx.Done():
		log.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server shutdown error", "err", err)
	}
	<-relayDone
	log.Info("server stopped")
	return nil
}
