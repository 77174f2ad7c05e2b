// Package walletservice cross-checks a chain's configured RPC endpoints
// through the quorum coordinator to answer balance, nonce, and gas price
// queries, and records the outcome of every check.
package walletservice

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/0xkanth/quorum-wallet/internal/cache"
	"github.com/0xkanth/quorum-wallet/internal/metrics"
	"github.com/0xkanth/quorum-wallet/internal/quorum"
	"github.com/0xkanth/quorum-wallet/internal/rpcendpoint"
	"github.com/0xkanth/quorum-wallet/pkg/config"
	"github.com/0xkanth/quorum-wallet/pkg/models"
)

// canonicalBigInt is the comparable stand-in for *big.Int that
// internal/quorum.ConsistencyPolicy's tally can key on. *big.Int values are
// never equal by ==, so they cannot serve as quorum's R type parameter
// directly.
type canonicalBigInt string

func canonicalizeBigInt(v *big.Int) canonicalBigInt {
	return canonicalBigInt(v.String())
}

func (c canonicalBigInt) BigInt() *big.Int {
	n := new(big.Int)
	n.SetString(string(c), 10)
	return n
}

func averageCanonicalBigInt(results []canonicalBigInt) canonicalBigInt {
	sum := new(big.Int)
	for _, r := range results {
		sum.Add(sum, r.BigInt())
	}
	sum.Div(sum, big.NewInt(int64(len(results))))
	return canonicalizeBigInt(sum)
}

// endpoint is the per-endpoint capability Service needs: the method router
// surface plus lifecycle. *rpcendpoint.Client satisfies it; tests satisfy
// it with fakes that never touch the network.
type endpoint interface {
	rpcendpoint.Endpoint
	Close()
}

// recorder is the audit-log capability Service needs: persisting one
// terminal outcome. *audit.Log satisfies it; tests satisfy it with a fake
// that counts calls instead of requiring a live Postgres connection.
type recorder interface {
	Record(ctx context.Context, outcome models.QueryOutcome) error
}

// outcomePublisher is the event-publisher capability Service needs.
// *events.Publisher satisfies it; tests satisfy it with a fake instead of
// requiring a live NATS connection.
type outcomePublisher interface {
	Publish(ctx context.Context, outcome models.QueryOutcome) error
}

// Service answers balance, nonce, and gas price queries for one configured
// chain, cross-checking every configured RPC endpoint through the quorum
// coordinator before returning a result.
type Service struct {
	chainName string
	chain     *config.ChainConfig
	endpoints []endpoint

	balances  *quorum.Client[common.Address, canonicalBigInt, *rpcendpoint.RecoverableError]
	nonces    *quorum.Client[common.Address, uint64, *rpcendpoint.RecoverableError]
	gasPrices *quorum.Client[struct{}, canonicalBigInt, *rpcendpoint.RecoverableError]

	cache     *cache.Store
	auditLog  recorder
	publisher outcomePublisher
	logger    zerolog.Logger
}

// New dials every RPC URL in chain.RPCUrls and builds the quorum clients
// used to cross-check them.
func New(ctx context.Context, chainName string, chain *config.ChainConfig, cacheStore *cache.Store, auditLog recorder, publisher outcomePublisher, logger zerolog.Logger) (*Service, error) {
	endpoints := make([]endpoint, 0, len(chain.RPCUrls))
	for _, url := range chain.RPCUrls {
		ep, err := rpcendpoint.Dial(ctx, url, chainName, chain.ChainID, logger)
		if err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("skipping unreachable endpoint at startup")
			continue
		}
		endpoints = append(endpoints, ep)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("walletservice: no reachable RPC endpoints for chain %s", chainName)
	}

	return newService(chainName, chain, endpoints, cacheStore, auditLog, publisher, logger)
}

func newService(chainName string, chain *config.ChainConfig, endpoints []endpoint, cacheStore *cache.Store, auditLog recorder, publisher outcomePublisher, logger zerolog.Logger) (*Service, error) {
	balances, err := quorum.NewClient[common.Address, canonicalBigInt, *rpcendpoint.RecoverableError]()
	if err != nil {
		return nil, fmt.Errorf("walletservice: balance client: %w", err)
	}

	nonces, err := quorum.NewClient[common.Address, uint64, *rpcendpoint.RecoverableError]()
	if err != nil {
		return nil, fmt.Errorf("walletservice: nonce client: %w", err)
	}

	gasPrices, err := quorum.NewClient[struct{}, canonicalBigInt, *rpcendpoint.RecoverableError]()
	if err != nil {
		return nil, fmt.Errorf("walletservice: gas price client: %w", err)
	}

	return &Service{
		chainName: chainName,
		chain:     chain,
		endpoints: endpoints,
		balances:  balances,
		nonces:    nonces,
		gasPrices: gasPrices,
		cache:     cacheStore,
		auditLog:  auditLog,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Close disconnects every underlying endpoint.
func (s *Service) Close() {
	for _, ep := range s.endpoints {
		ep.Close()
	}
}

func (s *Service) balancePolicy() (quorum.ConsistencyPolicy[canonicalBigInt], error) {
	return buildPolicy(s.chain.Policy, averageCanonicalBigInt)
}

func (s *Service) noncePolicy() (quorum.ConsistencyPolicy[uint64], error) {
	return buildPolicy(s.chain.Policy, averageUint64)
}

func (s *Service) gasPricePolicy() (quorum.ConsistencyPolicy[canonicalBigInt], error) {
	return buildPolicy(s.chain.Policy, averageCanonicalBigInt)
}

func averageUint64(results []uint64) uint64 {
	var sum uint64
	for _, r := range results {
		sum += r
	}
	return sum / uint64(len(results))
}

func buildPolicy[R comparable](pc config.PolicyConfig, agg func([]R) R) (quorum.ConsistencyPolicy[R], error) {
	switch pc.Kind {
	case "count":
		return quorum.Count[R](pc.Count), nil
	case "average":
		return quorum.Average[R](pc.M, agg), nil
	default:
		return quorum.ConsistencyPolicy[R]{}, fmt.Errorf("walletservice: unknown policy kind %q", pc.Kind)
	}
}

func (s *Service) settingsFor(policy quorum.ConsistencyPolicy[canonicalBigInt]) quorum.Settings[canonicalBigInt] {
	return quorum.Settings[canonicalBigInt]{
		MaxParallel:             s.chain.MaxParallel,
		Policy:                  policy,
		Retries:                 s.chain.Retries,
		RetriesForInconsistency: s.chain.RetriesForInconsistency,
		Logger:                  &s.logger,
	}
}

func (s *Service) nonceSettingsFor(policy quorum.ConsistencyPolicy[uint64]) quorum.Settings[uint64] {
	return quorum.Settings[uint64]{
		MaxParallel:             s.chain.MaxParallel,
		Policy:                  policy,
		Retries:                 s.chain.Retries,
		RetriesForInconsistency: s.chain.RetriesForInconsistency,
		Logger:                  &s.logger,
	}
}

// retryCounts accumulates the retry rounds spent by one Query call, fed by
// quorum.Settings.OnRetry, so recordOutcome can both populate
// QueryOutcome.Retries/InconsistencyRetries and drive metrics.RetriesTotal.
type retryCounts struct {
	retries              uint16
	inconsistencyRetries uint16
}

func (rc *retryCounts) hook(chainName, kind string) func(class string) {
	return func(class string) {
		metrics.RetriesTotal.WithLabelValues(chainName, kind, class).Inc()
		if class == "inconsistency" {
			rc.inconsistencyRetries++
		} else {
			rc.retries++
		}
	}
}

// instrument wires rc's hook into settings.OnRetry, returning the settings
// to pass to Query.
func instrument[R comparable](settings quorum.Settings[R], rc *retryCounts, chainName, kind string) quorum.Settings[R] {
	settings.OnRetry = rc.hook(chainName, kind)
	return settings
}

// BalanceOf cross-checks every endpoint's reported balance for addr and
// returns the agreed-upon value in wei.
func (s *Service) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	metrics.QueriesTotal.WithLabelValues(s.chainName, "balance").Inc()

	policy, err := s.balancePolicy()
	if err != nil {
		return nil, err
	}

	funcs := make([]quorum.ServerFunc[common.Address, canonicalBigInt], 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		router := rpcendpoint.NewMethodRouter(ep)
		balanceFn := router.Balance()
		funcs = append(funcs, func(ctx context.Context, addr common.Address) (canonicalBigInt, error) {
			wei, err := balanceFn(ctx, addr)
			if err != nil {
				return "", err
			}
			return canonicalizeBigInt(wei), nil
		})
	}

	var rc retryCounts
	settings := instrument(s.settingsFor(policy), &rc, s.chainName, "balance")

	value, queryErr := s.balances.Query(ctx, settings, addr, funcs)
	s.recordOutcome(ctx, "balance", addr.Hex(), s.chain.Policy.Kind, func() string {
		if queryErr != nil {
			return ""
		}
		return string(value)
	}(), queryErr, rc)

	if queryErr != nil {
		return nil, queryErr
	}

	balance := value.BigInt()

	if s.cache != nil {
		_ = s.cache.Put(ctx, models.CacheEntry{
			Chain:   s.chainName,
			Address: addr.Hex(),
			Kind:    "balance",
			Value:   balance.String(),
		})
	}
	metrics.WatcherBalance.WithLabelValues(s.chainName, addr.Hex()).Set(weiToEther(balance))

	return balance, nil
}

// NonceOf cross-checks every endpoint's reported pending nonce for addr.
func (s *Service) NonceOf(ctx context.Context, addr common.Address) (uint64, error) {
	metrics.QueriesTotal.WithLabelValues(s.chainName, "nonce").Inc()

	policy, err := s.noncePolicy()
	if err != nil {
		return 0, err
	}

	funcs := make([]quorum.ServerFunc[common.Address, uint64], 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		router := rpcendpoint.NewMethodRouter(ep)
		funcs = append(funcs, quorum.ServerFunc[common.Address, uint64](router.Nonce()))
	}

	var rc retryCounts
	settings := instrument(s.nonceSettingsFor(policy), &rc, s.chainName, "nonce")

	value, queryErr := s.nonces.Query(ctx, settings, addr, funcs)
	s.recordOutcome(ctx, "nonce", addr.Hex(), s.chain.Policy.Kind, fmt.Sprintf("%d", value), queryErr, rc)

	if queryErr != nil {
		return 0, queryErr
	}
	return value, nil
}

// GasPrice cross-checks every endpoint's suggested gas price. There is no
// address to key on, so it queries with the zero-value struct{} argument
// quorum.ServerFunc expects, and caches/publishes under an empty address.
func (s *Service) GasPrice(ctx context.Context) (*big.Int, error) {
	metrics.QueriesTotal.WithLabelValues(s.chainName, "gas_price").Inc()

	policy, err := s.gasPricePolicy()
	if err != nil {
		return nil, err
	}

	funcs := make([]quorum.ServerFunc[struct{}, canonicalBigInt], 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		router := rpcendpoint.NewMethodRouter(ep)
		gasFn := router.GasPrice()
		funcs = append(funcs, func(ctx context.Context, _ struct{}) (canonicalBigInt, error) {
			price, err := gasFn(ctx, common.Address{})
			if err != nil {
				return "", err
			}
			return canonicalizeBigInt(price), nil
		})
	}

	var rc retryCounts
	settings := instrument(s.settingsFor(policy), &rc, s.chainName, "gas_price")

	value, queryErr := s.gasPrices.Query(ctx, settings, struct{}{}, funcs)
	s.recordOutcome(ctx, "gas_price", "", s.chain.Policy.Kind, func() string {
		if queryErr != nil {
			return ""
		}
		return string(value)
	}(), queryErr, rc)

	if queryErr != nil {
		return nil, queryErr
	}

	price := value.BigInt()

	if s.cache != nil {
		_ = s.cache.Put(ctx, models.CacheEntry{
			Chain: s.chainName,
			Kind:  "gas_price",
			Value: price.String(),
		})
	}

	return price, nil
}

// recordOutcome classifies queryErr (if any) into an outcome class, then
// writes it to the cache's sibling stores: the audit log and the outcome
// publisher.
func (s *Service) recordOutcome(ctx context.Context, kind, address, policyKind, value string, queryErr error, rc retryCounts) {
	outcome := models.QueryOutcome{
		Chain:                s.chainName,
		Kind:                 kind,
		Address:              address,
		Policy:               policyKind,
		Value:                value,
		Retries:              rc.retries,
		InconsistencyRetries: rc.inconsistencyRetries,
		ObservedAt:           time.Now(),
	}

	switch {
	case queryErr == nil && policyKind == "average":
		outcome.Class = "averaged"
	case queryErr == nil:
		outcome.Class = "consistent"
	default:
		outcome.Class, outcome.Cause = classify(queryErr)
	}

	metrics.QueryOutcomesTotal.WithLabelValues(s.chainName, kind, outcome.Class).Inc()

	if s.auditLog != nil {
		if err := s.auditLog.Record(ctx, outcome); err != nil {
			s.logger.Error().Err(err).Msg("failed to record audit outcome")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, outcome); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish outcome")
		}
	}
}

func classify(err error) (class, cause string) {
	switch {
	case quorumErrorIs[*quorum.NoneAvailableError](err):
		return "none_available", err.Error()
	case quorumErrorIs[*quorum.NotEnoughAvailableError](err):
		return "not_enough_available", err.Error()
	case quorumErrorIs[*quorum.InconsistentError](err):
		return "inconsistent", err.Error()
	case quorumErrorIs[*quorum.ConfigurationError](err):
		return "configuration_error", err.Error()
	default:
		return "fatal", err.Error()
	}
}

func quorumErrorIs[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func weiToEther(wei *big.Int) float64 {
	f := new(big.Float).SetInt(wei)
	ether := new(big.Float).Quo(f, big.NewFloat(1e18))
	v, _ := ether.Float64()
	return v
}
