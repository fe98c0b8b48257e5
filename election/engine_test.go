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

package election_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/blinklabs-io/fundgov/clock"
	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/event"
	"github.com/blinklabs-io/fundgov/internal/test/testutil"
	"github.com/blinklabs-io/fundgov/ledger"
	"github.com/blinklabs-io/fundgov/oracle"
)

const (
	startTime     = 500
	preparePeriod = 100
	votingPeriod  = 200
)

var (
	authority = testutil.Address(0xa1)
	outsider  = testutil.Address(0xcc)
)

type fixture struct {
	ctx    context.Context
	clock  *clock.Manual
	ledger *ledger.Ledger
	store  *election.MemoryStore
	engine *election.Engine
}

func newFixture(t *testing.T, policy election.WinnerPolicy) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		clock:  clock.NewManual(startTime),
		ledger: ledger.New(ledger.LedgerConfig{}),
		store:  election.NewMemoryStore(),
	}
	engine, err := election.NewEngine(election.EngineConfig{
		Logger:        testutil.Logger(t),
		PromRegistry:  prometheus.NewRegistry(),
		Clock:         f.clock,
		Balances:      f.ledger,
		Stakes:        f.ledger,
		Store:         f.store,
		Policy:        policy,
		Authority:     authority,
		PreparePeriod: preparePeriod,
		VotingPeriod:  votingPeriod,
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *fixture) candidate(t *testing.T, id uint64) {
	t.Helper()
	_, err := f.engine.AddCandidate(f.ctx, authority, election.Candidate{
		ID:         id,
		Address:    testutil.Address(byte(0x40 + id)),
		Name:       "candidate",
		LectureURL: "https://example.org/lecture",
	})
	require.NoError(t, err)
}

func (f *fixture) voter(t *testing.T, n byte, amount uint64) common.Address {
	t.Helper()
	v := testutil.Address(n)
	require.NoError(t, f.ledger.Mint(v, uint256.NewInt(amount)))
	return v
}

func TestPhases(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, election.PhaseNotStarted, f.engine.Phase())
	_, ok := f.engine.Round()
	assert.False(t, ok)

	receipt, err := f.engine.StartElection(f.ctx, authority)
	require.NoError(t, err)
	started := testutil.RequirePayload[event.ElectionStartedEvent](
		t,
		receipt.Events[0],
		event.ElectionStartedEventType,
	)
	assert.Equal(t, event.ElectionStartedEvent{
		Round:      1,
		Start:      startTime,
		VotingFrom: startTime + preparePeriod,
		VotingTo:   startTime + preparePeriod + votingPeriod,
	}, started)

	assert.Equal(t, election.PhasePreparing, f.engine.Phase())
	f.clock.Set(startTime + preparePeriod - 1)
	assert.Equal(t, election.PhasePreparing, f.engine.Phase())
	f.clock.Set(startTime + preparePeriod)
	assert.Equal(t, election.PhaseVoting, f.engine.Phase())
	f.clock.Set(startTime + preparePeriod + votingPeriod)
	assert.Equal(t, election.PhaseEnded, f.engine.Phase())
	assert.Equal(t, "ended", f.engine.Phase().String())
}

func TestStartElectionAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.StartElection(f.ctx, outsider)
	require.ErrorIs(t, err, election.ErrUnauthorized)
	_, err = f.engine.StartElection(f.ctx, authority)
	require.NoError(t, err)
	_, err = f.engine.StartElection(f.ctx, authority)
	require.ErrorIs(t, err, election.ErrElectionInProgress)
}

func TestAddCandidate(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.AddCandidate(f.ctx, authority, election.Candidate{ID: 1})
	require.ErrorIs(t, err, election.ErrNoElection)

	_, err = f.engine.StartElection(f.ctx, authority)
	require.NoError(t, err)
	_, err = f.engine.AddCandidate(f.ctx, outsider, election.Candidate{ID: 1})
	require.ErrorIs(t, err, election.ErrUnauthorized)

	receipt, err := f.engine.AddCandidate(f.ctx, authority, election.Candidate{
		ID:         7,
		Address:    testutil.Address(0x77),
		Name:       "Alice",
		LectureURL: "https://example.org/alice",
	})
	require.NoError(t, err)
	added := testutil.RequirePayload[event.CandidateAddedEvent](
		t,
		receipt.Events[0],
		event.CandidateAddedEventType,
	)
	assert.Equal(t, uint64(7), added.ID)
	assert.Equal(t, "Alice", added.Name)

	_, err = f.engine.AddCandidate(f.ctx, authority, election.Candidate{ID: 7, Name: "Bob"})
	require.ErrorIs(t, err, election.ErrDuplicateCandidate)
	assert.Contains(t, err.Error(), "This candidate id is used")
	f.candidate(t, 2)

	candidates := f.engine.Candidates()
	require.Len(t, candidates, 2)
	assert.Equal(t, uint64(2), candidates[0].ID)
	assert.Equal(t, uint64(7), candidates[1].ID)
	assert.Equal(t, "Alice", candidates[1].Name)
	assert.Equal(t, uint64(1), candidates[1].Round)

	f.clock.Set(startTime + preparePeriod)
	_, err = f.engine.AddCandidate(f.ctx, authority, election.Candidate{ID: 3})
	require.ErrorIs(t, err, election.ErrNotPreparing)
}

func TestVoteInElection(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.voter(t, 1, 30)
	_, err := f.engine.VoteInElection(f.ctx, alice, 1)
	require.ErrorIs(t, err, election.ErrNoElection)

	_, err = f.engine.StartElection(f.ctx, authority)
	require.NoError(t, err)
	f.candidate(t, 1)
	f.candidate(t, 2)
	_, err = f.engine.VoteInElection(f.ctx, alice, 1)
	require.ErrorIs(t, err, election.ErrNotVoting)

	f.clock.Set(startTime + preparePeriod)
	_, err = f.engine.VoteInElection(f.ctx, alice, 9)
	require.ErrorIs(t, err, election.ErrCandidateNotFound)
	_, err = f.engine.VoteInElection(f.ctx, outsider, 1)
	require.ErrorIs(t, err, election.ErrNoBalance)

	require.NoError(t, f.ledger.Stake(alice, uint256.NewInt(10)))
	receipt, err := f.engine.VoteInElection(f.ctx, alice, 1)
	require.NoError(t, err)
	vote := testutil.RequirePayload[event.ElectionVoteEvent](
		t,
		receipt.Events[0],
		event.ElectionVoteEventType,
	)
	assert.Equal(t, uint64(30), vote.Weight.Uint64())
	assert.Equal(t, uint64(1), vote.CandidateID)

	parts := f.ledger.Participations()
	require.Len(t, parts, 1)
	assert.Equal(t, oracle.VoteNotice{
		Kind:    oracle.VoteKindElection,
		Subject: 1,
		Choice:  1,
	}, parts[0].Notice)

	// a second vote moves the weight to the new candidate
	_, err = f.engine.VoteInElection(f.ctx, alice, 2)
	require.NoError(t, err)
	results := f.engine.Results()
	require.Len(t, results, 2)
	assert.True(t, results[0].Weight.IsZero())
	assert.Zero(t, results[0].Voters)
	assert.Equal(t, uint64(30), results[1].Weight.Uint64())
	assert.Equal(t, uint64(1), results[1].Voters)

	f.clock.Set(startTime + preparePeriod + votingPeriod)
	_, err = f.engine.VoteInElection(f.ctx, alice, 2)
	require.ErrorIs(t, err, election.ErrNotVoting)
}

func TestVoteInElectionOracleFailure(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.voter(t, 1, 30)
	_, err := f.engine.StartElection(f.ctx, authority)
	require.NoError(t, err)
	f.candidate(t, 1)
	f.clock.Set(startTime + preparePeriod)
	f.ledger.InjectFault(ledger.OpBalanceOf, errors.New("offline"))
	_, err = f.engine.VoteInElection(f.ctx, alice, 1)
	require.ErrorIs(t, err, oracle.ErrOracleFailure)
	assert.True(t, f.engine.Results()[0].Weight.IsZero())
}

func TestExecuteElection(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.ExecuteElection(f.ctx, authority)
	require.ErrorIs(t, err, election.ErrNoElection)

	_, err = f.engine.StartElection(f.ctx, authority)
	require.NoError(t, err)
	f.candidate(t, 1)
	f.clock.Set(startTime + preparePeriod)
	_, err = f.engine.VoteInElection(f.ctx, f.voter(t, 1, 5), 1)
	require.NoError(t, err)

	_, err = f.engine.ExecuteElection(f.ctx, authority)
	require.ErrorIs(t, err, election.ErrVotingNotEnded)
	f.clock.Set(startTime + preparePeriod + votingPeriod)
	_, err = f.engine.ExecuteElection(f.ctx, outsider)
	require.ErrorIs(t, err, election.ErrUnauthorized)

	receipt, err := f.engine.ExecuteElection(f.ctx, authority)
	require.NoError(t, err)
	finished := testutil.RequirePayload[event.ElectionFinishedEvent](
		t,
		receipt.Events[0],
		event.ElectionFinishedEventType,
	)
	// no policy is configured, so no winner is recorded
	assert.Equal(t, event.ElectionFinishedEvent{Round: 1, Voters: 1}, finished)
	r, ok := f.engine.Round()
	require.True(t, ok)
	assert.True(t, r.Executed)
	assert.False(t, r.HasWinner)

	_, err = f.engine.ExecuteElection(f.ctx, authority)
	require.ErrorIs(t, err, election.ErrAlreadyExecuted)
}

func TestPeriodicRounds(t *testing.T) {
	f := newFixture(t, election.UniqueMaxWeight)
	for round := uint64(1); round <= 3; round++ {
		receipt, err := f.engine.StartElection(f.ctx, authority)
		require.NoError(t, err)
		assert.Equal(t, round, receipt.Round)
		assert.Empty(t, f.engine.Candidates())
		f.candidate(t, 1)
		f.candidate(t, 2)
		f.clock.Advance(preparePeriod)
		_, err = f.engine.VoteInElection(f.ctx, f.voter(t, byte(round), 10), round%2+1)
		require.NoError(t, err)
		f.clock.Advance(votingPeriod)
		receipt, err = f.engine.ExecuteElection(f.ctx, authority)
		require.NoError(t, err)
		finished := testutil.RequirePayload[event.ElectionFinishedEvent](
			t,
			receipt.Events[0],
			event.ElectionFinishedEventType,
		)
		assert.True(t, finished.HasWinner)
		assert.Equal(t, round%2+1, finished.Winner)
	}
}

func TestUniqueMaxWeight(t *testing.T) {
	res := func(id, weight uint64) election.Result {
		return election.Result{CandidateID: id, Weight: uint256.NewInt(weight)}
	}
	winner, ok := election.UniqueMaxWeight.Winner([]election.Result{res(1, 5), res(2, 9), res(3, 1)})
	assert.True(t, ok)
	assert.Equal(t, uint64(2), winner)

	_, ok = election.UniqueMaxWeight.Winner([]election.Result{res(1, 9), res(2, 9), res(3, 1)})
	assert.False(t, ok)

	_, ok = election.UniqueMaxWeight.Winner([]election.Result{res(1, 0)})
	assert.False(t, ok)

	winner, ok = election.UniqueMaxWeight.Winner([]election.Result{res(1, 4), res(2, 4), res(3, 7)})
	assert.True(t, ok)
	assert.Equal(t, uint64(3), winner)
}

func TestPolicyByName(t *testing.T) {
	p, err := election.PolicyByName("")
	require.NoError(t, err)
	assert.Nil(t, p)
	p, err = election.PolicyByName("unique-max-weight")
	require.NoError(t, err)
	assert.NotNil(t, p)
	_, err = election.PolicyByName("coin-flip")
	require.ErrorIs(t, err, election.ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.StartElection(f.ctx, authority)
	require.NoError(t, err)
	f.candidate(t, 4)
	f.clock.Set(startTime + preparePeriod)
	_, err = f.engine.VoteInElection(f.ctx, f.voter(t, 1, 12), 4)
	require.NoError(t, err)

	restarted, err := election.NewEngine(election.EngineConfig{
		Clock:         f.clock,
		Balances:      f.ledger,
		Store:         f.store,
		Authority:     authority,
		PreparePeriod: preparePeriod,
		VotingPeriod:  votingPeriod,
	})
	require.NoError(t, err)
	require.NoError(t, restarted.Load(f.ctx))
	assert.Equal(t, election.PhaseVoting, restarted.Phase())
	assert.Equal(t, f.engine.Candidates(), restarted.Candidates())
	results := restarted.Results()
	require.Len(t, results, 1)
	assert.Equal(t, uint64(12), results[0].Weight.Uint64())
}

func TestNewEngineValidation(t *testing.T) {
	_, err := election.NewEngine(election.EngineConfig{Balances: ledger.New(ledger.LedgerConfig{})})
	require.ErrorIs(t, err, election.ErrInvalidConfig)
	_, err = election.NewEngine(election.EngineConfig{Authority: authority})
	require.ErrorIs(t, err, election.ErrInvalidConfig)
}

func TestOperationSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() {
		require.NoError(t, provider.Shutdown(context.Background()))
	}()
	ctx := context.Background()
	clk := clock.NewManual(startTime)
	l := ledger.New(ledger.LedgerConfig{})
	engine, err := election.NewEngine(election.EngineConfig{
		TracerProvider: provider,
		Clock:          clk,
		Balances:       l,
		Stakes:         l,
		Authority:      authority,
		PreparePeriod:  preparePeriod,
		VotingPeriod:   votingPeriod,
	})
	require.NoError(t, err)

	_, err = engine.StartElection(ctx, authority)
	require.NoError(t, err)
	_, err = engine.AddCandidate(ctx, outsider, election.Candidate{ID: 1})
	require.ErrorIs(t, err, election.ErrUnauthorized)
	_, err = engine.VoteInElection(ctx, outsider, 1)
	require.ErrorIs(t, err, election.ErrNotVoting)
	clk.Set(startTime + preparePeriod + votingPeriod)
	_, err = engine.ExecuteElection(ctx, authority)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{
		"election.StartElection",
		"election.AddCandidate",
		"election.VoteInElection",
		"election.ExecuteElection",
	}, names)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, election.ErrUnauthorized.Error(), spans[1].Status().Description)
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
