// Command auditconsumer reads published query outcomes from NATS
// JetStream and persists them to the audit log.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/0xkanth/quorum-wallet/internal/audit"
	"github.com/0xkanth/quorum-wallet/internal/metrics"
	"github.com/0xkanth/quorum-wallet/internal/util"
	"github.com/0xkanth/quorum-wallet/pkg/models"
)

func main() {
	logger := util.InitLogger()
	logger.Info().Msg("starting audit consumer")

	cfg := util.InitConfig(logger, "config.toml")
	util.UpdateLogLevel(cfg, logger)

	auditLog, err := audit.Open(context.Background(), cfg.String("postgres.dsn"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open audit log")
	}
	defer auditLog.Close()
	logger.Info().Msg("connected to audit database")

	nc, err := nats.Connect(cfg.String("nats.url"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer nc.Close()
	logger.Info().Str("url", cfg.String("nats.url")).Msg("connected to nats")

	js, err := jetstream.New(nc)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jetstream context")
	}

	streamName := cfg.String("nats.stream_name")
	consumerName := cfg.String("nats.consumer_name")

	consumer, err := js.CreateOrUpdateConsumer(context.Background(), streamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    3,
		AckWait:       30 * time.Second,
		FilterSubject: "WALLET.>",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create consumer")
	}
	logger.Info().
		Str("stream", streamName).
		Str("consumer", consumerName).
		Msg("created consumer")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	consCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := processMessage(ctx, auditLog, msg, *logger); err != nil {
			logger.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process outcome")
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start consuming")
	}
	defer consCtx.Stop()

	logger.Info().Msg("audit consumer started, waiting for messages")

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}

// processMessage decodes one published outcome and appends it to the audit
// log.
func processMessage(ctx context.Context, auditLog *audit.Log, msg jetstream.Msg, logger zerolog.Logger) error {
	var outcome models.QueryOutcome
	if err := json.Unmarshal(msg.Data(), &outcome); err != nil {
		return fmt.Errorf("failed to unmarshal outcome: %w", err)
	}

	if md, err := msg.Metadata(); err == nil {
		metrics.AuditConsumerLag.Set(float64(md.NumPending))
	}

	logger.Debug().
		Str("chain", outcome.Chain).
		Str("kind", outcome.Kind).
		Str("class", outcome.Class).
		Msg("processing outcome")

	if err := auditLog.Record(ctx, outcome); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	return nil
}
