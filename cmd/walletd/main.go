// Command walletd serves balance, nonce, and gas price queries, cross-checked
// across every configured RPC endpoint for the selected chain. It does not
// broadcast transactions.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xkanth/quorum-wallet/internal/audit"
	"github.com/0xkanth/quorum-wallet/internal/cache"
	"github.com/0xkanth/quorum-wallet/internal/events"
	"github.com/0xkanth/quorum-wallet/internal/util"
	"github.com/0xkanth/quorum-wallet/internal/watcher"
	"github.com/0xkanth/quorum-wallet/pkg/config"
	"github.com/0xkanth/quorum-wallet/pkg/walletservice"
)

const serviceName = "quorum-wallet"

func main() {
	logger := util.InitLogger()
	logger.Info().Msg("starting quorum wallet daemon")

	cfg := util.InitConfig(logger, "config.toml")
	util.UpdateLogLevel(cfg, logger)

	chainConfigs, err := config.LoadConfig("config/chains.json")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load chains.json")
	}

	chainName := cfg.String("chain.name")
	selectedChain, err := chainConfigs.GetChain(chainName)
	if err != nil {
		logger.Fatal().Err(err).Str("chain", chainName).Msg("chain not found in chains.json")
	}

	logger.Info().
		Str("chain", selectedChain.Name).
		Int64("chain_id", selectedChain.ChainID).
		Strs("rpc_urls", selectedChain.RPCUrls).
		Uint16("max_parallel", selectedChain.MaxParallel).
		Str("policy", selectedChain.Policy.Kind).
		Msg("loaded chain configuration")

	cacheStore, err := cache.Open(cfg.String("cache.path"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open balance cache")
	}
	defer cacheStore.Close()

	auditLog, err := audit.Open(context.Background(), cfg.String("postgres.dsn"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open audit log")
	}
	defer auditLog.Close()

	publisher, err := events.NewPublisher(
		cfg.String("nats.url"),
		cfg.Duration("nats.max_age"),
		cfg.String("nats.stream_name"),
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create outcome publisher")
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := walletservice.New(ctx, chainName, selectedChain, cacheStore, auditLog, publisher, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize wallet service")
	}
	defer svc.Close()
	logger.Info().Msg("wallet service initialized")

	var w *watcher.Watcher
	if watchAddr := cfg.String("watcher.address"); watchAddr != "" {
		w = watcher.New(*logger, watcher.Config{
			ChainName:    chainName,
			Address:      common.HexToAddress(watchAddr),
			PollInterval: cfg.Duration("watcher.poll_interval"),
		}, func(ctx context.Context, addr common.Address) (string, error) {
			balance, err := svc.BalanceOf(ctx, addr)
			if err != nil {
				return "", err
			}
			return balance.String(), nil
		})
		go w.Run(ctx)
		logger.Info().Str("address", watchAddr).Msg("balance watcher started")
	}

	metricsAddr := cfg.String("metrics.address")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info().Str("address", metricsAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	httpAddr := cfg.String("http.address")
	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: newHandler(svc, w),
	}

	go func() {
		logger.Info().Str("address", httpAddr).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}

// newHandler builds the HTTP mux for balance, nonce and gas price queries
// and health.
func newHandler(svc *walletservice.Service, w *watcher.Watcher) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/balance", func(rw http.ResponseWriter, r *http.Request) {
		addr := r.URL.Query().Get("address")
		if addr == "" {
			http.Error(rw, "missing address parameter", http.StatusBadRequest)
			return
		}

		balance, err := svc.BalanceOf(r.Context(), common.HexToAddress(addr))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(rw, "%s\n", balance.String())
	})

	mux.HandleFunc("/nonce", func(rw http.ResponseWriter, r *http.Request) {
		addr := r.URL.Query().Get("address")
		if addr == "" {
			http.Error(rw, "missing address parameter", http.StatusBadRequest)
			return
		}

		nonce, err := svc.NonceOf(r.Context(), common.HexToAddress(addr))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(rw, "%d\n", nonce)
	})

	mux.HandleFunc("/gasprice", func(rw http.ResponseWriter, r *http.Request) {
		price, err := svc.GasPrice(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(rw, "%s\n", price.String())
	})

	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if w != nil && !w.Healthy() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(rw, "unhealthy\n")
			return
		}
		rw.WriteHeader(http.StatusOK)
		fmt.Fprintf(rw, "healthy\n")
	})

	return mux
}
