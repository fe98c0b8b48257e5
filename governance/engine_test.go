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

package governance_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/fundgov/clock"
	"github.com/blinklabs-io/fundgov/event"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/internal/test/testutil"
	"github.com/blinklabs-io/fundgov/ledger"
	"github.com/blinklabs-io/fundgov/oracle"
)

const startTime = 1_000_000

var (
	governor   = testutil.Address(0xa0)
	treasury   = testutil.Address(0xee)
	withdrawTo = testutil.Address(0xb0)
	outsider   = testutil.Address(0xcc)
)

type fixture struct {
	ctx      context.Context
	clock    *clock.Manual
	ledger   *ledger.Ledger
	store    *governance.MemoryStore
	registry *prometheus.Registry
	engine   *governance.Engine
}

func newFixture(t *testing.T, opts ...func(*governance.EngineConfig)) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		clock:    clock.NewManual(startTime),
		ledger:   ledger.New(ledger.LedgerConfig{Treasury: treasury}),
		store:    governance.NewMemoryStore(),
		registry: prometheus.NewRegistry(),
	}
	cfg := governance.EngineConfig{
		Logger:          testutil.Logger(t),
		PromRegistry:    f.registry,
		Clock:           f.clock,
		Balances:        f.ledger,
		Stakes:          f.ledger,
		Store:           f.store,
		Governor:        governor,
		QuorumThreshold: 3,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	engine, err := governance.NewEngine(cfg)
	require.NoError(t, err)
	f.engine = engine
	require.NoError(t, f.ledger.Mint(treasury, ledger.Tokens(5000)))
	return f
}

func (f *fixture) voters(t *testing.T, n int, tokens uint64) []common.Address {
	t.Helper()
	ret := make([]common.Address, 0, n)
	for i := range n {
		voter := testutil.Address(byte(i + 1))
		require.NoError(t, f.ledger.Mint(voter, ledger.Tokens(tokens)))
		ret = append(ret, voter)
	}
	return ret
}

func (f *fixture) propose(t *testing.T) uint64 {
	t.Helper()
	receipt, err := f.engine.Propose(
		f.ctx,
		governor,
		withdrawTo,
		ledger.Tokens(1000),
		common.HexToHash("0x1234"),
	)
	require.NoError(t, err)
	return receipt.ProposalID
}

func (f *fixture) vote(t *testing.T, id uint64, forVoters, againstVoters []common.Address) {
	t.Helper()
	for _, v := range forVoters {
		_, err := f.engine.VoteFor(f.ctx, v, id)
		require.NoError(t, err)
	}
	for _, v := range againstVoters {
		_, err := f.engine.VoteAgainst(f.ctx, v, id)
		require.NoError(t, err)
	}
}

func (f *fixture) endVoting() {
	f.clock.Advance(governance.DefaultVotingPeriod)
}

func balance(t *testing.T, f *fixture, who common.Address) *uint256.Int {
	t.Helper()
	bal, err := f.ledger.BalanceOf(f.ctx, who)
	require.NoError(t, err)
	return bal
}

func TestProposeRequiresGovernor(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Propose(f.ctx, outsider, withdrawTo, ledger.Tokens(1), common.Hash{})
	require.ErrorIs(t, err, governance.ErrUnauthorized)
	assert.EqualError(t, err, "Caller is not the governor")
	count, err := f.engine.ProposalCount(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProposeCreatesProposal(t *testing.T) {
	f := newFixture(t)
	receipt, err := f.engine.Propose(
		f.ctx,
		governor,
		withdrawTo,
		ledger.Tokens(1000),
		common.HexToHash("0xabcd"),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.ProposalID)
	require.Len(t, receipt.Events, 1)
	created := testutil.RequirePayload[event.NewWithdrawProposalEvent](
		t,
		receipt.Events[0],
		event.NewWithdrawProposalEventType,
	)
	assert.Equal(t, uint64(1), created.ID)
	assert.Equal(t, governor, created.Creator)
	assert.Equal(t, uint64(startTime), created.Start)
	assert.Equal(t, governance.DefaultVotingPeriod, created.Duration)
	assert.Equal(t, withdrawTo, created.WithdrawAddress)
	assert.Equal(t, ledger.Tokens(1000), created.WithdrawAmount)

	second := f.propose(t)
	assert.Equal(t, uint64(2), second)
	count, err := f.engine.ProposalCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	detail, err := f.engine.Detail(f.ctx, 1)
	require.NoError(t, err)
	assert.True(t, detail.IsOpening)
	assert.False(t, detail.IsPassed)
	assert.Equal(t, common.HexToHash("0xabcd"), detail.Proposal.Hash)
	assert.Equal(t, governance.Stats{}, detail.Stats)
	assert.Equal(t, governor, f.engine.Governor())
	assert.Equal(t, governor, f.engine.Executor())
}

func TestExecutePassed(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 5, 10000)
	id := f.propose(t)
	f.vote(t, id, voters[:3], voters[3:])

	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, governance.Stats{For: 60, Against: 40, Quorum: 5}, stats)

	f.endVoting()
	receipt, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	finished := testutil.RequirePayload[event.WithdrawProposalFinishedEvent](
		t,
		receipt.Events[0],
		event.WithdrawProposalFinishedEventType,
	)
	assert.Equal(t, event.WithdrawProposalFinishedEvent{
		ID:      id,
		For:     60,
		Against: 40,
		Quorum:  5,
		Passed:  true,
	}, finished)

	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, detail.IsPassed)
	assert.False(t, detail.IsOpening)
	assert.Equal(t, governance.StatusPassed, detail.Proposal.Status)
	assert.Equal(t, ledger.Tokens(1000), balance(t, f, withdrawTo))
	assert.Equal(t, ledger.Tokens(4000), balance(t, f, treasury))
}

func TestExecuteRejectedBelowHalf(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 5, 10000)
	id := f.propose(t)
	f.vote(t, id, voters[:2], voters[2:])
	f.endVoting()

	receipt, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	finished := testutil.RequirePayload[event.WithdrawProposalFinishedEvent](
		t,
		receipt.Events[0],
		event.WithdrawProposalFinishedEventType,
	)
	assert.Equal(t, uint64(40), finished.For)
	assert.Equal(t, uint64(60), finished.Against)
	assert.Equal(t, uint64(5), finished.Quorum)
	assert.False(t, finished.Passed)

	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.False(t, detail.IsPassed)
	assert.False(t, detail.IsOpening)
	assert.Equal(t, governance.StatusRejected, detail.Proposal.Status)
	assert.True(t, balance(t, f, withdrawTo).IsZero())
}

func TestExecuteRejectedWithoutQuorum(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 2, 10000)
	id := f.propose(t)
	f.vote(t, id, voters, nil)
	f.endVoting()

	_, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), detail.Stats.For)
	assert.Equal(t, uint64(2), detail.Stats.Quorum)
	assert.False(t, detail.IsPassed)
	assert.True(t, balance(t, f, withdrawTo).IsZero())
}

func TestExecuteWithoutVotes(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t)
	f.endVoting()
	receipt, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	finished := testutil.RequirePayload[event.WithdrawProposalFinishedEvent](
		t,
		receipt.Events[0],
		event.WithdrawProposalFinishedEventType,
	)
	assert.Zero(t, finished.For)
	assert.Zero(t, finished.Against)
	assert.False(t, finished.Passed)
}

func TestExactlyHalfPasses(t *testing.T) {
	f := newFixture(t, func(cfg *governance.EngineConfig) {
		cfg.QuorumThreshold = 2
	})
	voters := f.voters(t, 2, 10000)
	id := f.propose(t)
	f.vote(t, id, voters[:1], voters[1:])
	f.endVoting()
	_, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, governance.Stats{For: 50, Against: 50, Quorum: 2}, detail.Stats)
	assert.True(t, detail.IsPassed)
}

func TestStatsFloorPercentages(t *testing.T) {
	f := newFixture(t)
	small := testutil.Address(1)
	large := testutil.Address(2)
	require.NoError(t, f.ledger.Mint(small, ledger.Tokens(1000)))
	require.NoError(t, f.ledger.Mint(large, ledger.Tokens(9000)))
	id := f.propose(t)
	f.vote(t, id, []common.Address{small}, []common.Address{large})
	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, governance.Stats{For: 10, Against: 90, Quorum: 2}, stats)

	third := testutil.Address(3)
	require.NoError(t, f.ledger.Mint(third, ledger.Tokens(20000)))
	f.vote(t, id, []common.Address{third}, nil)
	stats, err = f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	// 21000 of 30000
	assert.Equal(t, governance.Stats{For: 70, Against: 30, Quorum: 3}, stats)
}

func TestVoteNoBalance(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t)
	_, err := f.engine.VoteFor(f.ctx, outsider, id)
	require.ErrorIs(t, err, governance.ErrNoBalance)
	assert.EqualError(t, err, "No balance left to vote")
	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Zero(t, stats.Quorum)
}

func TestVoteUnknownProposal(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 1, 10)
	f.propose(t)
	_, err := f.engine.VoteFor(f.ctx, voters[0], 2)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
	_, err = f.engine.Stats(f.ctx, 2)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
	_, err = f.engine.Execute(f.ctx, governor, 2)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
}

func TestVoteTimeWindow(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 3, 10)
	id := f.propose(t)

	f.clock.Set(startTime - 1)
	_, err := f.engine.VoteFor(f.ctx, voters[0], id)
	require.ErrorIs(t, err, governance.ErrNotStarted)
	assert.EqualError(t, err, "The proposal has not started yet")

	f.clock.Set(startTime)
	_, err = f.engine.VoteFor(f.ctx, voters[0], id)
	require.NoError(t, err)

	f.clock.Set(startTime + governance.DefaultVotingPeriod - 1)
	_, err = f.engine.VoteFor(f.ctx, voters[1], id)
	require.NoError(t, err)

	f.clock.Set(startTime + governance.DefaultVotingPeriod)
	_, err = f.engine.VoteFor(f.ctx, voters[2], id)
	require.ErrorIs(t, err, governance.ErrVotingEnded)

	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Quorum)
}

func TestExecuteNotEnded(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t)
	f.clock.Set(startTime + governance.DefaultVotingPeriod - 1)
	_, err := f.engine.Execute(f.ctx, governor, id)
	require.ErrorIs(t, err, governance.ErrNotEnded)
	assert.EqualError(t, err, "The proposal has not ended (yet)")
	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, detail.IsOpening)
}

func TestExecuteUnauthorized(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t)
	f.endVoting()
	_, err := f.engine.Execute(f.ctx, outsider, id)
	require.ErrorIs(t, err, governance.ErrUnauthorized)
}

func TestExecutorRole(t *testing.T) {
	executor := testutil.Address(0xd0)
	f := newFixture(t, func(cfg *governance.EngineConfig) {
		cfg.Executor = executor
	})
	id := f.propose(t)
	f.endVoting()
	_, err := f.engine.Execute(f.ctx, governor, id)
	require.ErrorIs(t, err, governance.ErrUnauthorized)
	_, err = f.engine.Execute(f.ctx, executor, id)
	require.NoError(t, err)
}

func TestExecuteTwice(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 3, 10000)
	id := f.propose(t)
	f.vote(t, id, voters, nil)
	f.endVoting()
	_, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tokens(1000), balance(t, f, withdrawTo))

	receipt, err := f.engine.Execute(f.ctx, governor, id)
	require.ErrorIs(t, err, governance.ErrAlreadyClosed)
	assert.Empty(t, receipt.Events)
	assert.Equal(t, ledger.Tokens(1000), balance(t, f, withdrawTo))
	assert.Equal(t, ledger.Tokens(4000), balance(t, f, treasury))
}

func TestRevoteMovesWeight(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 2, 100)
	id := f.propose(t)
	f.vote(t, id, voters, nil)
	for range 3 {
		_, err := f.engine.VoteAgainst(f.ctx, voters[0], id)
		require.NoError(t, err)
	}
	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, governance.Stats{For: 50, Against: 50, Quorum: 2}, stats)

	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tokens(100), detail.Proposal.ForWeight)
	assert.Equal(t, ledger.Tokens(100), detail.Proposal.AgainstWeight)

	ballot, ok, err := f.engine.Ballot(f.ctx, id, voters[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, governance.Against, ballot.Choice)
	_, ok, err = f.engine.Ballot(f.ctx, id, outsider)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevoteUsesCurrentWeight(t *testing.T) {
	f := newFixture(t)
	voter := f.voters(t, 1, 100)[0]
	id := f.propose(t)
	f.vote(t, id, []common.Address{voter}, nil)
	require.NoError(t, f.ledger.Mint(voter, ledger.Tokens(50)))
	f.vote(t, id, []common.Address{voter}, nil)
	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tokens(150), detail.Proposal.ForWeight)
	assert.Equal(t, uint64(1), detail.Stats.Quorum)
}

func TestVoteWeightIncludesStake(t *testing.T) {
	f := newFixture(t)
	voter := f.voters(t, 1, 100)[0]
	require.NoError(t, f.ledger.Stake(voter, ledger.Tokens(40)))
	id := f.propose(t)
	receipt, err := f.engine.VoteFor(f.ctx, voter, id)
	require.NoError(t, err)
	vote := testutil.RequirePayload[event.VoteEvent](t, receipt.Events[0], event.VoteEventType)
	assert.Equal(t, id, vote.ID)
	assert.Equal(t, voter, vote.Voter)
	assert.True(t, vote.Vote)
	assert.Equal(t, ledger.Tokens(100), vote.Weight)

	parts := f.ledger.Participations()
	require.Len(t, parts, 1)
	assert.Equal(t, oracle.VoteNotice{
		Kind:    oracle.VoteKindProposal,
		Subject: id,
		Choice:  uint64(governance.For),
	}, parts[0].Notice)
	assert.True(t, f.ledger.Locked(voter))
}

func TestStakeOnlyVoter(t *testing.T) {
	f := newFixture(t)
	voter := f.voters(t, 1, 100)[0]
	require.NoError(t, f.ledger.Stake(voter, ledger.Tokens(100)))
	id := f.propose(t)
	_, err := f.engine.VoteAgainst(f.ctx, voter, id)
	require.NoError(t, err)
}

func TestStakeNotificationFailureKeepsVote(t *testing.T) {
	f := newFixture(t)
	voter := f.voters(t, 1, 100)[0]
	f.ledger.InjectFault(ledger.OpNotify, errors.New("staking unavailable"))
	id := f.propose(t)
	_, err := f.engine.VoteFor(f.ctx, voter, id)
	require.NoError(t, err)
	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Quorum)
}

func TestVoteOracleFailure(t *testing.T) {
	f := newFixture(t)
	voter := f.voters(t, 1, 100)[0]
	id := f.propose(t)
	f.ledger.InjectFault(ledger.OpStakedBalanceOf, errors.New("unreachable"))
	_, err := f.engine.VoteFor(f.ctx, voter, id)
	require.ErrorIs(t, err, oracle.ErrOracleFailure)
	require.NotErrorIs(t, err, governance.ErrNoBalance)
	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Zero(t, stats.Quorum)
	assert.Empty(t, f.ledger.Participations())
}

type failingStore struct {
	*governance.MemoryStore
	failBallots bool
	failPassed  bool
}

func (s *failingStore) Save(ctx context.Context, p governance.Proposal) error {
	if s.failPassed && p.Status == governance.StatusPassed {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, p)
}

func (s *failingStore) SaveBallot(
	ctx context.Context,
	p governance.Proposal,
	b governance.Ballot,
) error {
	if s.failBallots {
		return errors.New("disk full")
	}
	return s.MemoryStore.SaveBallot(ctx, p, b)
}

func TestVoteStoreFailureLeavesTallyUntouched(t *testing.T) {
	store := &failingStore{MemoryStore: governance.NewMemoryStore()}
	f := newFixture(t, func(cfg *governance.EngineConfig) {
		cfg.Store = store
	})
	voters := f.voters(t, 2, 100)
	id := f.propose(t)
	f.vote(t, id, voters[:1], nil)

	store.failBallots = true
	_, err := f.engine.VoteFor(f.ctx, voters[1], id)
	require.Error(t, err)
	_, err = f.engine.VoteAgainst(f.ctx, voters[0], id)
	require.Error(t, err)

	stats, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, governance.Stats{For: 100, Against: 0, Quorum: 1}, stats)
	assert.Len(t, f.ledger.Participations(), 1)
}

func TestTransferFailureAndRetry(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 3, 10000)
	_, err := f.engine.Propose(f.ctx, governor, withdrawTo, ledger.Tokens(6000), common.Hash{})
	require.NoError(t, err)
	f.vote(t, 1, voters, nil)
	f.endVoting()

	receipt, err := f.engine.Execute(f.ctx, governor, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, oracle.ErrOracleFailure)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	var terr governance.TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, uint64(1), terr.ProposalID())
	assert.Equal(t, withdrawTo, terr.To())
	require.Len(t, receipt.Events, 1)
	failed := testutil.RequirePayload[event.WithdrawTransferFailedEvent](
		t,
		receipt.Events[0],
		event.WithdrawTransferFailedEventType,
	)
	assert.Equal(t, ledger.Tokens(6000), failed.WithdrawAmount)

	detail, err := f.engine.Detail(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusTransferFailed, detail.Proposal.Status)
	assert.False(t, detail.IsPassed)
	assert.False(t, detail.IsOpening)
	assert.NotEmpty(t, detail.Proposal.TransferError)

	_, err = f.engine.Execute(f.ctx, governor, 1)
	require.ErrorIs(t, err, governance.ErrAlreadyClosed)
	_, err = f.engine.RetryTransfer(f.ctx, outsider, 1)
	require.ErrorIs(t, err, governance.ErrUnauthorized)

	require.NoError(t, f.ledger.Mint(treasury, ledger.Tokens(1000)))
	receipt, err = f.engine.RetryTransfer(f.ctx, governor, 1)
	require.NoError(t, err)
	finished := testutil.RequirePayload[event.WithdrawProposalFinishedEvent](
		t,
		receipt.Events[0],
		event.WithdrawProposalFinishedEventType,
	)
	assert.True(t, finished.Passed)
	assert.Equal(t, uint64(100), finished.For)
	assert.Equal(t, ledger.Tokens(6000), balance(t, f, withdrawTo))

	detail, err = f.engine.Detail(f.ctx, 1)
	require.NoError(t, err)
	assert.True(t, detail.IsPassed)
	assert.Empty(t, detail.Proposal.TransferError)

	_, err = f.engine.RetryTransfer(f.ctx, governor, 1)
	require.ErrorIs(t, err, governance.ErrTransferNotFailed)
}

func TestLoadMarksPendingTransferUnknown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Create(f.ctx, governance.Proposal{
		ID:              7,
		Creator:         governor,
		Start:           startTime,
		Duration:        governance.DefaultVotingPeriod,
		WithdrawAddress: withdrawTo,
		WithdrawAmount:  ledger.Tokens(10),
		ForWeight:       uint256.NewInt(0),
		AgainstWeight:   uint256.NewInt(0),
		Status:          governance.StatusTransferPending,
	}))
	require.NoError(t, f.engine.Load(f.ctx))

	detail, err := f.engine.Detail(f.ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusTransferUnknown, detail.Proposal.Status)
	assert.Equal(t, governance.ErrTransferAborted.Error(), detail.Proposal.TransferError)
	assert.False(t, detail.IsPassed)
	assert.False(t, detail.IsOpening)
	stored, err := f.store.Get(f.ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusTransferUnknown, stored.Status)

	_, err = f.engine.RetryTransfer(f.ctx, governor, 7)
	require.ErrorIs(t, err, governance.ErrTransferUnknown)
	assert.True(t, balance(t, f, withdrawTo).IsZero())
	_, err = f.engine.ReconcileTransfer(f.ctx, outsider, 7, false)
	require.ErrorIs(t, err, governance.ErrUnauthorized)

	receipt, err := f.engine.ReconcileTransfer(f.ctx, governor, 7, false)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	testutil.RequirePayload[event.WithdrawTransferFailedEvent](
		t,
		receipt.Events[0],
		event.WithdrawTransferFailedEventType,
	)
	_, err = f.engine.ReconcileTransfer(f.ctx, governor, 7, true)
	require.ErrorIs(t, err, governance.ErrNotUnknown)

	_, err = f.engine.RetryTransfer(f.ctx, governor, 7)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tokens(10), balance(t, f, withdrawTo))
}

func TestPaidWithdrawalNotRecorded(t *testing.T) {
	store := &failingStore{MemoryStore: governance.NewMemoryStore(), failPassed: true}
	f := newFixture(t, func(cfg *governance.EngineConfig) {
		cfg.Store = store
	})
	voters := f.voters(t, 3, 10000)
	id := f.propose(t)
	f.vote(t, id, voters, nil)
	f.endVoting()

	receipt, err := f.engine.Execute(f.ctx, governor, id)
	require.ErrorIs(t, err, governance.ErrPaidNotRecorded)
	assert.Empty(t, receipt.Events)
	assert.Equal(t, ledger.Tokens(1000), balance(t, f, withdrawTo))
	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusTransferUnknown, detail.Proposal.Status)
	_, err = f.engine.RetryTransfer(f.ctx, governor, id)
	require.ErrorIs(t, err, governance.ErrTransferUnknown)

	restarted, err := governance.NewEngine(governance.EngineConfig{
		Clock:           f.clock,
		Balances:        f.ledger,
		Stakes:          f.ledger,
		Store:           store,
		Governor:        governor,
		QuorumThreshold: 3,
	})
	require.NoError(t, err)
	require.NoError(t, restarted.Load(f.ctx))
	_, err = restarted.RetryTransfer(f.ctx, governor, id)
	require.ErrorIs(t, err, governance.ErrTransferUnknown)
	assert.Equal(t, ledger.Tokens(1000), balance(t, f, withdrawTo))

	store.failPassed = false
	receipt, err = restarted.ReconcileTransfer(f.ctx, governor, id, true)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	finished := testutil.RequirePayload[event.WithdrawProposalFinishedEvent](
		t,
		receipt.Events[0],
		event.WithdrawProposalFinishedEventType,
	)
	assert.True(t, finished.Passed)
	assert.Equal(t, uint64(3), finished.Quorum)
	detail, err = restarted.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, detail.IsPassed)
	assert.Equal(t, ledger.Tokens(1000), balance(t, f, withdrawTo))
}

// statusRecorder reads the stored status of a proposal while the bus delivers
// its finished event
type statusRecorder struct {
	store    governance.ProposalStore
	statuses []governance.Status
}

func (r *statusRecorder) Deliver(evt event.Event) error {
	p, err := r.store.Get(
		context.Background(),
		evt.Data.(event.WithdrawProposalFinishedEvent).ID,
	)
	if err != nil {
		return err
	}
	r.statuses = append(r.statuses, p.Status)
	return nil
}

func (r *statusRecorder) Close() {}

func TestPaidEventFollowsSave(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	store := governance.NewMemoryStore()
	f := newFixture(t, func(cfg *governance.EngineConfig) {
		cfg.Store = store
		cfg.EventBus = bus
	})
	recorder := &statusRecorder{store: store}
	bus.RegisterSubscriber(event.WithdrawProposalFinishedEventType, recorder)
	voters := f.voters(t, 3, 10000)
	id := f.propose(t)
	f.vote(t, id, voters, nil)
	f.endVoting()
	_, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	assert.Equal(t, []governance.Status{governance.StatusPassed}, recorder.statuses)
}

func TestEventsPublishedOnBus(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	f := newFixture(t, func(cfg *governance.EngineConfig) {
		cfg.EventBus = bus
	})
	_, createdCh := bus.Subscribe(event.NewWithdrawProposalEventType)
	_, voteCh := bus.Subscribe(event.VoteEventType)
	voter := f.voters(t, 1, 1)[0]
	id := f.propose(t)
	f.vote(t, id, nil, []common.Address{voter})

	evt := testutil.RequireReceive(t, createdCh, time.Second, "created event")
	assert.Equal(t, id, evt.Data.(event.NewWithdrawProposalEvent).ID)
	evt = testutil.RequireReceive(t, voteCh, time.Second, "vote event")
	assert.False(t, evt.Data.(event.VoteEvent).Vote)
}

func TestLoadRebuildsFromStore(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 3, 10)
	id := f.propose(t)
	f.vote(t, id, voters[:2], voters[2:])
	f.vote(t, id, nil, voters[:1])
	before, err := f.engine.Stats(f.ctx, id)
	require.NoError(t, err)

	restarted, err := governance.NewEngine(governance.EngineConfig{
		Clock:           f.clock,
		Balances:        f.ledger,
		Stakes:          f.ledger,
		Store:           f.store,
		Governor:        governor,
		QuorumThreshold: 3,
	})
	require.NoError(t, err)
	require.NoError(t, restarted.Load(f.ctx))
	after, err := restarted.Stats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, governance.Stats{For: 33, Against: 67, Quorum: 3}, after)

	lazy, err := governance.NewEngine(governance.EngineConfig{
		Clock:           f.clock,
		Balances:        f.ledger,
		Store:           f.store,
		Governor:        governor,
		QuorumThreshold: 3,
	})
	require.NoError(t, err)
	detail, err := lazy.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, detail.Stats)
	list, err := lazy.Proposals(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestConcurrentVotes(t *testing.T) {
	f := newFixture(t)
	const numVoters = 40
	voters := make([]common.Address, 0, numVoters)
	for i := range numVoters {
		voter := common.BigToAddress(uint256.NewInt(uint64(1000 + i)).ToBig())
		require.NoError(t, f.ledger.Mint(voter, uint256.NewInt(10)))
		voters = append(voters, voter)
	}
	id := f.propose(t)
	var wg sync.WaitGroup
	for i, voter := range voters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			choice := governance.For
			if i%4 == 0 {
				choice = governance.Against
			}
			// vote twice to race re-votes against first votes
			_, err := f.engine.Vote(f.ctx, voter, id, governance.Against)
			assert.NoError(t, err)
			_, err = f.engine.Vote(f.ctx, voter, id, choice)
			assert.NoError(t, err)
			_, err = f.engine.Stats(f.ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	detail, err := f.engine.Detail(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(numVoters), detail.Stats.Quorum)
	assert.Equal(t, uint64(300), detail.Proposal.ForWeight.Uint64())
	assert.Equal(t, uint64(100), detail.Proposal.AgainstWeight.Uint64())
	assert.Equal(t, governance.Stats{For: 75, Against: 25, Quorum: numVoters}, detail.Stats)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	voters := f.voters(t, 3, 10)
	id := f.propose(t)
	f.vote(t, id, voters[:2], voters[2:])
	f.endVoting()
	_, err := f.engine.Execute(f.ctx, governor, id)
	require.NoError(t, err)
	expected := `
# HELP fundgov_open_proposals proposals still accepting votes or awaiting execution
# TYPE fundgov_open_proposals gauge
fundgov_open_proposals 0
# HELP fundgov_proposals_executed_total total proposals executed, by result
# TYPE fundgov_proposals_executed_total counter
fundgov_proposals_executed_total{result="passed"} 1
# HELP fundgov_votes_total total proposal votes admitted, by choice
# TYPE fundgov_votes_total counter
fundgov_votes_total{choice="against"} 1
fundgov_votes_total{choice="for"} 2
`
	require.NoError(t, promtestutil.GatherAndCompare(
		f.registry,
		strings.NewReader(expected),
		"fundgov_open_proposals",
		"fundgov_proposals_executed_total",
		"fundgov_votes_total",
	))
}

func TestNewEngineValidation(t *testing.T) {
	l := ledger.New(ledger.LedgerConfig{})
	_, err := governance.NewEngine(governance.EngineConfig{
		Balances:        l,
		QuorumThreshold: 1,
	})
	require.ErrorIs(t, err, governance.ErrInvalidConfig)
	_, err = governance.NewEngine(governance.EngineConfig{
		Balances: l,
		Governor: governor,
	})
	require.ErrorIs(t, err, governance.ErrInvalidConfig)
	_, err = governance.NewEngine(governance.EngineConfig{
		Governor:        governor,
		QuorumThreshold: 1,
	})
	require.ErrorIs(t, err, governance.ErrInvalidConfig)
}
