package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
	"github.com/descilabs/desci-ledger/ledger/pkg/metrics"
	"github.com/descilabs/desci-ledger/ledger/pkg/server"
	"github.com/descilabs/desci-ledger/ledger/pkg/store"
	"github.com/descilabs/desci-ledger/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:8080"
	defaultMetricsAddr = "0.0.0.0:0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "Address to listen on for the ledger API")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	ownerFlag := flag.String("owner", "", "Platform owner address (or set LEDGER_OWNER env var)")
	databaseURLFlag := flag.String("database-url", "", "Postgres connection string; empty runs in-memory only (or set DATABASE_URL env var)")
	runMigrationsFlag := flag.Bool("run-migrations", true, "Run database migrations on startup")
	corsOriginsFlag := flag.StringSlice("cors-origins", nil, "Allowed CORS origins for the API")
	requestsPerMinuteFlag := flag.Int("requests-per-minute", 0, "Per-IP request rate limit; 0 disables rate limiting")
	rateBurstFlag := flag.Int("rate-burst", 20, "Per-IP request burst size")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 30*time.Second, "Maximum time to wait for in-flight requests during graceful shutdown")

	flag.Parse()

	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if envOwner := os.Getenv("LEDGER_OWNER"); envOwner != "" && *ownerFlag == "" {
		*ownerFlag = envOwner
	}
	if envDatabaseURL := os.Getenv("DATABASE_URL"); envDatabaseURL != "" && *databaseURLFlag == "" {
		*databaseURLFlag = envDatabaseURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ledger, err := core.New(core.Config{
		Logger: log,
		Owner:  *ownerFlag,
		Notify: eventLogger(log),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	var db *store.Store
	if *databaseURLFlag != "" {
		db, err = store.New(ctx, store.Config{
			Logger:        log,
			DatabaseURL:   *databaseURLFlag,
			RunMigrations: *runMigrationsFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		snap, ok, err := db.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to load ledger snapshot: %w", err)
		}
		if ok {
			if err := ledger.Restore(snap); err != nil {
				return fmt.Errorf("failed to restore ledger snapshot: %w", err)
			}
			log.Info("ledger state restored from snapshot", "experiments", len(snap.Experiments))
		} else {
			log.Info("no ledger snapshot found, starting fresh")
		}
	} else {
		log.Warn("no database configured, ledger state is in-memory only")
	}

	srv, err := server.New(server.Config{
		Logger:            log,
		ListenAddr:        *listenAddrFlag,
		AllowedOrigins:    *corsOriginsFlag,
		ShutdownTimeout:   *shutdownTimeoutFlag,
		RequestsPerMinute: *requestsPerMinuteFlag,
		RateBurst:         *rateBurstFlag,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
		Ledger: ledger,
		Store:  db,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	log.Info("ledger daemon starting", "version", version, "owner", *ownerFlag, "listen_addr", *listenAddrFlag)

	g, ctx := errgroup.WithContext(ctx)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		g.Go(func() error {
			return serveMetrics(ctx, *metricsAddrFlag, log)
		})
	}
	g.Go(func() error {
		return srv.Run(ctx)
	})
	return g.Wait()
}

// serveMetrics runs the prometheus listener until the context is cancelled.
func serveMetrics(ctx context.Context, addr string, log *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start prometheus metrics server listener: %w", err)
	}
	log.Info("prometheus metrics server listening", "address", listener.Addr().String())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux}

	serveErrCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErrCh <- fmt.Errorf("failed to serve prometheus metrics: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serveErrCh:
		return err
	}
}

// eventLogger returns a notification hook that records ledger lifecycle
// events to the structured log.
func eventLogger(log *slog.Logger) func(any) {
	return func(event any) {
		switch e := event.(type) {
		case core.FundingCompleted:
			log.Info("ledger: funding goal reached", "experiment_id", e.ExperimentID, "raised", e.FundingRaised)
		case core.ContributionRefunded:
			log.Info("ledger: contribution refunded", "experiment_id", e.ExperimentID, "contributor", e.Contributor, "amount", e.Amount)
		case core.FundingProcessed:
			log.Info("ledger: funding settled", "experiment_id", e.ExperimentID, "fee", e.Fee, "invested", e.Invested)
		case core.YieldRecorded:
			log.Info("ledger: yield recorded", "amount", e.Amount)
		case core.ProfitDistributed:
			log.Info("ledger: quarterly profits distributed",
				"researcher_amount", e.ResearcherAmount,
				"sponsor_amount", e.SponsorAmount,
				"platform_amount", e.PlatformAmount)
		case core.MilestoneProgressUpdated:
			log.Info("ledger: milestone progress updated", "milestone_id", e.MilestoneID, "progress", e.Progress)
		case core.DatasetCited:
			log.Info("ledger: dataset cited", "experiment_id", e.ExperimentID, "dataset_id", e.DatasetID, "citer", e.Citer)
		default:
			log.Debug("ledger: event", "type", fmt.Sprintf("%T", event))
		}
	}
}
