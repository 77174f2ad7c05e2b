// Package events publishes quorum query outcomes to NATS JetStream, so
// downstream consumers (the audit log, alerting) see them without polling
// the wallet daemon.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/0xkanth/quorum-wallet/pkg/models"
)

const (
	streamName           = "WALLET"
	streamSubjectPattern = "WALLET.>"
	streamCreateTimeout  = 10 * time.Second
)

// Publisher publishes models.QueryOutcome values to NATS JetStream with
// deduplication.
type Publisher struct {
	js     jetstream.JetStream
	nc     *nats.Conn
	logger *zerolog.Logger
	prefix string
}

// NewPublisher connects to natsURL and ensures the WALLET stream exists.
func NewPublisher(natsURL string, retention time.Duration, subjectPrefix string, logger *zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("quorum-wallet"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamCreateTimeout)
	defer cancel()

	duplicateWindow := 5 * time.Minute
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{streamSubjectPattern},
		MaxAge:     retention,
		Storage:    jetstream.FileStorage,
		Duplicates: duplicateWindow,
		Retention:  jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: create stream: %w", err)
	}

	logger.Info().
		Str("stream", streamName).
		Str("subjects", streamSubjectPattern).
		Dur("max_age", retention).
		Dur("duplicate_window", duplicateWindow).
		Msg("outcome publisher initialized")

	return &Publisher{js: js, nc: nc, logger: logger, prefix: subjectPrefix}, nil
}

// Publish sends a terminal query outcome to NATS, deduplicated on
// chain+kind+address+observed-at.
func (p *Publisher) Publish(ctx context.Context, outcome models.QueryOutcome) error {
	subject := fmt.Sprintf("%s.%s.%s", p.prefix, outcome.Chain, outcome.Kind)

	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("events: marshal outcome: %w", err)
	}

	msgID := fmt.Sprintf("%s-%s-%s-%d", outcome.Chain, outcome.Kind, outcome.Address, outcome.ObservedAt.UnixNano())

	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("subject", subject).
			Str("msg_id", msgID).
			Msg("failed to publish outcome")
		return fmt.Errorf("events: publish to NATS: %w", err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("class", outcome.Class).
		Msg("outcome published")

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info().Msg("outcome publisher closed")
	}
}

// Healthy reports whether the NATS connection is currently up.
func (p *Publisher) Healthy() bool {
	return p.nc != nil && p.nc.IsConnected()
}
