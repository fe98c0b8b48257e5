// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fundgov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/fundgov/clock"
	"github.com/blinklabs-io/fundgov/database"
	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/oracle"
)

type Config struct {
	promRegistry          prometheus.Registerer
	logger                *slog.Logger
	clock                 clock.Clock
	balances              oracle.BalanceOracle
	stakes                oracle.StakeOracle
	winnerPolicy          election.WinnerPolicy
	dataDir               string
	metadataPlugin        string
	quorumThreshold       uint64
	votingPeriod          uint64
	electionPreparePeriod uint64
	electionVotingPeriod  uint64
	shutdownTimeout       time.Duration
	governor              common.Address
	electionAuthority     common.Address
	executor              common.Address
	journal               bool
	tracing               bool
	tracingStdout         bool
}

func (s *Service) configValidate() error {
	if s.config.governor == (common.Address{}) {
		return errors.New("no governor defined")
	}
	if s.config.quorumThreshold == 0 {
		return errors.New("quorum threshold must be at least 1")
	}
	if s.config.balances == nil {
		return errors.New("no balance oracle defined")
	}
	switch s.config.metadataPlugin {
	case "", database.MetadataPluginMemory, database.MetadataPluginSqlite:
	default:
		return fmt.Errorf("unknown metadata plugin: %s", s.config.metadataPlugin)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the service config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new fundgov config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		quorumThreshold: 1,
		votingPeriod:    governance.DefaultVotingPeriod,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithClock specifies the time source used for voting windows. This defaults to the wall clock in seconds
func WithClock(clk clock.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clk
	}
}

// WithBalanceOracle specifies the source of token balances. It also pays out withdrawals from the treasury
func WithBalanceOracle(balances oracle.BalanceOracle) ConfigOptionFunc {
	return func(c *Config) {
		c.balances = balances
	}
}

// WithStakeOracle specifies the source of staked balances. Without one only freely held tokens count toward voting weight
func WithStakeOracle(stakes oracle.StakeOracle) ConfigOptionFunc {
	return func(c *Config) {
		c.stakes = stakes
	}
}

// WithGovernor specifies the identity allowed to create withdrawal proposals
func WithGovernor(governor common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.governor = governor
	}
}

// WithExecutor specifies the identity allowed to execute proposals. This defaults to the governor
func WithExecutor(executor common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.executor = executor
	}
}

// WithElectionAuthority specifies the identity that runs elections. This defaults to the governor
func WithElectionAuthority(authority common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.electionAuthority = authority
	}
}

// WithQuorumThreshold specifies the minimum number of distinct voters for a proposal to pass. This defaults to 1
func WithQuorumThreshold(threshold uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.quorumThreshold = threshold
	}
}

// WithVotingPeriod specifies how long proposals accept votes, in clock units
func WithVotingPeriod(period uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.votingPeriod = period
	}
}

// WithElectionPreparePeriod specifies how long candidates may be added to a new election round
func WithElectionPreparePeriod(period uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.electionPreparePeriod = period
	}
}

// WithElectionVotingPeriod specifies how long an election round accepts votes
func WithElectionVotingPeriod(period uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.electionVotingPeriod = period
	}
}

// WithWinnerPolicy specifies how the winner of an election round is chosen. By default rounds are recorded without a winner
func WithWinnerPolicy(policy election.WinnerPolicy) ConfigOptionFunc {
	return func(c *Config) {
		c.winnerPolicy = policy
	}
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithJournal specifies whether every governance event is written to the event journal
func WithJournal(journal bool) ConfigOptionFunc {
	return func(c *Config) {
		c.journal = journal
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector at localhost:4318.
// This can be configured using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to be enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies how long Stop waits for tracing exporters to flush. This defaults to 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
