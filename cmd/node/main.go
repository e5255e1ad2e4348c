package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/params"
	"github.com/uhyunpark/spotdex/pkg/api"
	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/dex"
	"github.com/uhyunpark/spotdex/pkg/storage"
	"github.com/uhyunpark/spotdex/pkg/util"
)

const (
	stateLogInterval = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "verbose", cfg.Node.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Errorw("node_failed", "err", err)
		logger.Sync()
		os.Exit(1)
	}
}

// run serves until ctx is done or the API server fails. Every goroutine that submits
// orders has returned before the trade store and journal are closed.
func run(ctx context.Context, cfg params.Config, sugar *zap.SugaredLogger) error {
	// ---- Storage ----
	store, err := storage.OpenTradeStore(cfg.Node.TradeStoreDir)
	if err != nil {
		return fmt.Errorf("open trade store %q: %w", cfg.Node.TradeStoreDir, err)
	}
	defer store.Close()

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Node.JournalFile != "" {
		fj, err := storage.NewFileJournal(cfg.Node.JournalFile)
		if err != nil {
			return err
		}
		defer fj.Close()
		journal = fj
	}

	// ---- App ----
	app := dex.NewApp(dex.Options{
		QuoteAsset: asset.Symbol(cfg.Exchange.QuoteAsset),
		Store:      store,
		Journal:    journal,
		Logger:     sugar.Named("dex"),
	})
	for _, a := range cfg.Exchange.Assets {
		if err := app.RegisterAsset(asset.Symbol(a.Symbol), a.Custody); err != nil {
			return fmt.Errorf("register %s: %w", a.Symbol, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---- API Server ----
	apiServer := api.NewServer(app, cfg.Node.CORSOrigins, sugar.Named("api"))
	apiErr := make(chan error, 1)
	go func() { apiErr <- apiServer.Start(cfg.Node.APIAddr) }()

	// ---- Order Feeder (optional) ----
	// Enable with: ENABLE_FEEDER=true FEEDER_INTERVAL_MS=100 FEEDER_TRADERS=20
	var workers sync.WaitGroup
	var stateTick <-chan time.Time
	if cfg.Feeder.Enabled {
		feederCfg := dex.DefaultFeederConfig()
		feederCfg.Interval = cfg.Feeder.Interval
		feederCfg.NumTraders = cfg.Feeder.Traders
		feederCfg.BatchSize = cfg.Feeder.Batch

		feeder, err := dex.NewFeeder(app, feederCfg, sugar.Named("feeder"))
		if err != nil {
			shutdownAPI(apiServer, sugar)
			return fmt.Errorf("feeder: %w", err)
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := feeder.Run(ctx); err != nil {
				sugar.Errorw("feeder_exited", "err", err)
			}
		}()
	} else {
		sugar.Info("feeder_disabled")
		// the state hash only settles while nothing submits orders
		ticker := time.NewTicker(stateLogInterval)
		defer ticker.Stop()
		stateTick = ticker.C
	}

	sugar.Infow("node_started",
		"quote", cfg.Exchange.QuoteAsset,
		"assets", app.ListAssets(),
		"api_addr", cfg.Node.APIAddr,
		"trade_store", cfg.Node.TradeStoreDir)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-apiErr:
			if !errors.Is(err, http.ErrServerClosed) {
				runErr = fmt.Errorf("api server: %w", err)
			}
			break loop
		case <-stateTick:
			sugar.Infow("exchange_state", "state_hash", app.StateHash().Hex())
		}
	}

	cancel()
	shutdownAPI(apiServer, sugar)
	workers.Wait()

	sugar.Infow("node_stopped", "state_hash", app.StateHash().Hex())
	return runErr
}

func shutdownAPI(s *api.Server, sugar *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}
}
