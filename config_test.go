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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/internal/test/testutil"
	"github.com/blinklabs-io/fundgov/ledger"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, uint64(1), cfg.quorumThreshold)
	assert.Equal(t, governance.DefaultVotingPeriod, cfg.votingPeriod)
	assert.False(t, cfg.journal)
	assert.Empty(t, cfg.dataDir)
}

func TestConfigOptions(t *testing.T) {
	l := ledger.New(ledger.LedgerConfig{})
	cfg := NewConfig(
		WithGovernor(testutil.Address(1)),
		WithExecutor(testutil.Address(2)),
		WithElectionAuthority(testutil.Address(3)),
		WithQuorumThreshold(5),
		WithVotingPeriod(100),
		WithElectionPreparePeriod(10),
		WithElectionVotingPeriod(20),
		WithBalanceOracle(l),
		WithStakeOracle(l),
		WithWinnerPolicy(election.UniqueMaxWeight),
		WithDatabasePath("/tmp/fundgov"),
		WithMetadataPlugin("memory"),
		WithJournal(true),
		WithTracing(true),
		WithTracingStdout(true),
		WithShutdownTimeout(time.Second),
	)
	assert.Equal(t, testutil.Address(1), cfg.governor)
	assert.Equal(t, testutil.Address(2), cfg.executor)
	assert.Equal(t, testutil.Address(3), cfg.electionAuthority)
	assert.Equal(t, uint64(5), cfg.quorumThreshold)
	assert.Equal(t, uint64(100), cfg.votingPeriod)
	assert.Equal(t, uint64(10), cfg.electionPreparePeriod)
	assert.Equal(t, uint64(20), cfg.electionVotingPeriod)
	assert.Same(t, l, cfg.balances)
	assert.Same(t, l, cfg.stakes)
	assert.NotNil(t, cfg.winnerPolicy)
	assert.Equal(t, "/tmp/fundgov", cfg.dataDir)
	assert.Equal(t, "memory", cfg.metadataPlugin)
	assert.True(t, cfg.journal)
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
	assert.Equal(t, time.Second, cfg.shutdownTimeout)
}

func TestConfigValidate(t *testing.T) {
	l := ledger.New(ledger.LedgerConfig{})
	tests := []struct {
		name    string
		opts    []ConfigOptionFunc
		wantErr string
	}{
		{
			name:    "no governor",
			opts:    []ConfigOptionFunc{WithBalanceOracle(l)},
			wantErr: "no governor defined",
		},
		{
			name: "zero quorum",
			opts: []ConfigOptionFunc{
				WithGovernor(testutil.Address(1)),
				WithBalanceOracle(l),
				WithQuorumThreshold(0),
			},
			wantErr: "quorum threshold must be at least 1",
		},
		{
			name:    "no balance oracle",
			opts:    []ConfigOptionFunc{WithGovernor(testutil.Address(1))},
			wantErr: "no balance oracle defined",
		},
		{
			name: "unknown plugin",
			opts: []ConfigOptionFunc{
				WithGovernor(testutil.Address(1)),
				WithBalanceOracle(l),
				WithMetadataPlugin("postgres"),
			},
			wantErr: "unknown metadata plugin: postgres",
		},
		{
			name: "valid",
			opts: []ConfigOptionFunc{
				WithGovernor(testutil.Address(1)),
				WithBalanceOracle(l),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(NewConfig(tt.opts...))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
