// ledgerd wires the ledger core's components together into a single
// process: an on-disk store, the ledger state machine, the block and vote
// processors, the election arena, and a small HTTP surface for health and
// prometheus metrics. No wire protocol, wallet, or RPC façade is
// implemented; this binary exists to exercise the core end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blockproc"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/config"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/election"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/ledger"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/metrics"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/unchecked"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/vote"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/weights"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/kvdb"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to ledgerd.yaml (defaults applied if omitted)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledgerd: load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerd: invalid config:", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledgerd: log level:", err)
		os.Exit(1)
	}
	log, err := logging.NewLogger(&logging.Config{Level: level, Format: cfg.LogFormat, Output: "stdout", TimeFormat: time.RFC3339})
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledgerd: init logger:", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("ledgerd: fatal", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	kv, err := kvdb.NewGoLevelDB("ledger", cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	st := store.New(kv)

	ledgerCfg, err := buildLedgerConfig(cfg)
	if err != nil {
		return fmt.Errorf("build ledger config: %w", err)
	}

	w := weights.New(cfg.BootstrapWeightBlockCount)
	if err := loadBootstrapWeights(st, w, log); err != nil {
		return fmt.Errorf("load bootstrap weights: %w", err)
	}

	l := ledger.New(st, w, ledger.NewCache(), ledgerCfg, func() uint64 { return uint64(time.Now().Unix()) })

	pool := unchecked.New(st, cfg.UncheckedCapacity)
	if err := pool.Rebuild(st.BeginRead(), nil); err != nil {
		return fmt.Errorf("rebuild unchecked pool: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	arena := election.New(w, l, st, log, cfg.ElectionVoteCooldown, cfg.ElectionExpiry, time.Now)
	arena.OnConfirm(func(r election.Result) {
		log.Info("election confirmed",
			logging.Field{Key: "root", Value: r.Root},
			logging.Field{Key: "winner", Value: r.Winner},
			logging.Field{Key: "losers", Value: len(r.Losers)},
		)
	})

	processor := blockproc.New(st, l, pool, arena, m, log)
	voteProcessor := vote.New(arena, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workers errgroup.Group
	workers.Go(func() error { processor.Run(ctx); return nil })
	workers.Go(func() error { voteProcessor.Run(); return nil })
	workers.Go(func() error { sweepExpiredElections(ctx, arena, m, log); return nil })

	httpServer := newHTTPServer(cfg.MetricsAddr, registry, st, arena, pool)
	go func() {
		log.Info("metrics/health listening", logging.Field{Key: "addr", Value: cfg.MetricsAddr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	log.Info("ledgerd started", logging.Field{Key: "data_dir", Value: cfg.DataDir})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", logging.Field{Key: "error", Value: err.Error()})
	}

	// Drain the block and vote processors before cancelling the sweep
	// loop and returning, so no in-flight block or vote is lost mid-write.
	processor.Close()
	voteProcessor.Close()
	cancel()
	_ = workers.Wait()

	log.Info("ledgerd stopped")
	return nil
}

func buildLedgerConfig(cfg *config.Config) (*ledger.Config, error) {
	genesisAccount, err := cfg.ParsedGenesisAccount()
	if err != nil {
		return nil, err
	}
	genesisBalance, err := cfg.ParsedGenesisBalance()
	if err != nil {
		return nil, err
	}
	var epochSigner blocks.Account
	if cfg.EpochSigner != "" {
		epochSigner, err = cfg.ParsedEpochSigner()
		if err != nil {
			return nil, err
		}
	}
	links, err := cfg.ParsedEpochLinks()
	if err != nil {
		return nil, err
	}

	epochs := make([]ledger.EpochLink, 0, len(links))
	for epoch, link := range links {
		epochs = append(epochs, ledger.EpochLink{Link: link, Epoch: epoch})
	}

	thresholds := cfg.WorkThresholds
	workThreshold := func(epoch uint32) uint64 {
		if v, ok := thresholds[epoch]; ok {
			return v
		}
		return thresholds[0]
	}

	return &ledger.Config{
		GenesisAccount:            genesisAccount,
		GenesisBalance:            genesisBalance,
		EpochSigner:               epochSigner,
		Epochs:                    epochs,
		WorkThreshold:             workThreshold,
		BootstrapWeightBlockCount: cfg.BootstrapWeightBlockCount,
	}, nil
}

// loadBootstrapWeights seeds the weight cache from the store's persisted
// representation-seed table and block count, so a restarted node does not
// briefly report zero representative weight while it replays live blocks.
func loadBootstrapWeights(st *store.Store, w *weights.Cache, log *logging.Logger) error {
	r := st.BeginRead()
	seeds, err := st.RepresentationSeeds(r)
	if err != nil {
		return err
	}
	w.LoadSeed(seeds)

	count, err := st.BlockCount(r)
	if err != nil {
		return err
	}
	w.SetBlockCount(count)
	log.Info("bootstrap weights loaded", logging.Field{Key: "representatives", Value: len(seeds)}, logging.Field{Key: "block_count", Value: count})
	return nil
}

func sweepExpiredElections(ctx context.Context, arena *election.Arena, m *metrics.Registry, log *logging.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := arena.ExpireStale()
			if len(expired) > 0 {
				log.Info("elections expired", logging.Field{Key: "count", Value: len(expired)})
			}
			m.SetElectionsActive(arena.Active())
		}
	}
}

func newHTTPServer(addr string, registry *prometheus.Registry, st *store.Store, arena *election.Arena, pool *unchecked.Pool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","elections_active":%d,"unchecked_pool_size":%d}`, arena.Active(), pool.Len())
	})
	return &http.Server{Addr: addr, Handler: mux}
}
