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

// Package election runs periodic weighted elections over registered
// candidates. Each round moves from preparing, when the election authority
// registers candidates, to voting and then to ended, after which the round
// is executed once and the next round may start.
package election

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/fundgov/clock"
	"github.com/blinklabs-io/fundgov/event"
	"github.com/blinklabs-io/fundgov/oracle"
	"github.com/blinklabs-io/fundgov/tally"
)

const tracerName = "github.com/blinklabs-io/fundgov/election"

type EngineConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
	EventBus       *event.EventBus
	Clock          clock.Clock
	Balances       oracle.BalanceOracle
	Stakes         oracle.StakeOracle
	Store          Store
	// Policy decides the winner of a round. With no policy rounds are
	// recorded without a winner
	Policy    WinnerPolicy
	Authority common.Address
	// Executor may execute rounds. It defaults to Authority
	Executor      common.Address
	PreparePeriod uint64
	VotingPeriod  uint64
}

type Engine struct {
	config     EngineConfig
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    electionMetrics
	round      *Round
	candidates map[uint64]Candidate
	tally      *tally.Tally[uint64]
	mu         sync.RWMutex
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Wall{}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Executor == (common.Address{}) {
		cfg.Executor = cfg.Authority
	}
	if cfg.PreparePeriod == 0 {
		cfg.PreparePeriod = DefaultPreparePeriod
	}
	if cfg.VotingPeriod == 0 {
		cfg.VotingPeriod = DefaultVotingPeriod
	}
	if cfg.Authority == (common.Address{}) {
		return nil, fmt.Errorf("%w: election authority must be set", ErrInvalidConfig)
	}
	if cfg.Balances == nil {
		return nil, fmt.Errorf("%w: balance oracle must be set", ErrInvalidConfig)
	}
	e := &Engine{
		config:     cfg,
		logger:     cfg.Logger.With("component", "election"),
		tracer:     cfg.TracerProvider.Tracer(tracerName),
		candidates: make(map[uint64]Candidate),
		tally:      tally.New[uint64](),
	}
	e.metrics.init(cfg.PromRegistry)
	return e, nil
}

// Load restores the latest round, its candidates and its tally from the
// store
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok, err := e.config.Store.LatestRound(ctx)
	if err != nil {
		return fmt.Errorf("load latest round: %w", err)
	}
	if !ok {
		return nil
	}
	candidates, err := e.config.Store.Candidates(ctx, r.Number)
	if err != nil {
		return fmt.Errorf("load candidates of round %d: %w", r.Number, err)
	}
	ballots, err := e.config.Store.Ballots(ctx, r.Number)
	if err != nil {
		return fmt.Errorf("load ballots of round %d: %w", r.Number, err)
	}
	t := tally.New[uint64]()
	for _, b := range ballots {
		if _, err := t.Cast(b.Voter, b.CandidateID, b.Weight); err != nil {
			return fmt.Errorf("rebuild tally of round %d: %w", r.Number, err)
		}
	}
	e.round = &r
	e.tally = t
	e.candidates = make(map[uint64]Candidate, len(candidates))
	for _, c := range candidates {
		e.candidates[c.ID] = c
	}
	e.metrics.round.Set(float64(r.Number))
	e.metrics.candidates.Set(float64(len(candidates)))
	return nil
}

// Authority returns the identity allowed to start rounds and add candidates
func (e *Engine) Authority() common.Address {
	return e.config.Authority
}

// Phase returns the phase of the current round
func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phaseLocked(e.config.Clock.Now())
}

func (e *Engine) phaseLocked(now uint64) Phase {
	if e.round == nil {
		return PhaseNotStarted
	}
	return e.round.PhaseAt(now)
}

// Round returns the current round, if any round has been started
func (e *Engine) Round() (Round, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.round == nil {
		return Round{}, false
	}
	return *e.round, true
}

// Candidates returns the candidates of the current round ordered by ID
func (e *Engine) Candidates() []Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ret := make([]Candidate, 0, len(e.candidates))
	for _, c := range e.candidates {
		ret = append(ret, c)
	}
	sortCandidates(ret)
	return ret
}

// Results returns the support of every candidate of the current round,
// ordered by candidate ID
func (e *Engine) Results() []Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resultsLocked()
}

func (e *Engine) resultsLocked() []Result {
	voters := make(map[uint64]uint64)
	for _, entry := range e.tally.Snapshot() {
		voters[entry.Ballot.Choice]++
	}
	ids := make([]uint64, 0, len(e.candidates))
	for id := range e.candidates {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ret := make([]Result, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, Result{
			CandidateID: id,
			Weight:      e.tally.Weight(id),
			Voters:      voters[id],
		})
	}
	return ret
}

// StartElection opens a new round in the preparing phase. The previous
// round, if any, must have been executed
func (e *Engine) StartElection(
	ctx context.Context,
	caller common.Address,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(ctx, "election.StartElection")
	defer func() { endSpan(span, err) }()
	if caller != e.config.Authority {
		return Receipt{}, ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	number := uint64(1)
	if e.round != nil {
		if !e.round.Executed {
			return Receipt{}, ErrElectionInProgress
		}
		number = e.round.Number + 1
	}
	r := Round{
		Number:        number,
		Start:         e.config.Clock.Now(),
		PreparePeriod: e.config.PreparePeriod,
		VotingPeriod:  e.config.VotingPeriod,
	}
	if err := e.config.Store.SaveRound(ctx, r); err != nil {
		return Receipt{}, fmt.Errorf("store round %d: %w", number, err)
	}
	e.round = &r
	e.candidates = make(map[uint64]Candidate)
	e.tally = tally.New[uint64]()
	e.metrics.round.Set(float64(number))
	e.metrics.candidates.Set(0)
	e.logger.Info(
		"election started",
		"round", number,
		"voting_start", r.VotingStart(),
		"voting_end", r.VotingEnd(),
	)
	receipt := Receipt{Round: number}
	e.emit(&receipt, event.ElectionStartedEventType, event.ElectionStartedEvent{
		Round:      number,
		Start:      r.Start,
		VotingFrom: r.VotingStart(),
		VotingTo:   r.VotingEnd(),
	})
	return receipt, nil
}

// AddCandidate registers a candidate in the current round while it is
// preparing. Candidate IDs are chosen by the caller and must be unique
// within the round
func (e *Engine) AddCandidate(
	ctx context.Context,
	caller common.Address,
	c Candidate,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(
		ctx,
		"election.AddCandidate",
		trace.WithAttributes(attribute.Int64("candidate.id", int64(c.ID))), //nolint:gosec
	)
	defer func() { endSpan(span, err) }()
	if caller != e.config.Authority {
		return Receipt{}, ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return Receipt{}, ErrNoElection
	}
	if e.phaseLocked(e.config.Clock.Now()) != PhasePreparing {
		return Receipt{}, ErrNotPreparing
	}
	if _, ok := e.candidates[c.ID]; ok {
		return Receipt{}, fmt.Errorf("candidate %d: %w", c.ID, ErrDuplicateCandidate)
	}
	c.Round = e.round.Number
	if err := e.config.Store.AddCandidate(ctx, c); err != nil {
		return Receipt{}, fmt.Errorf("store candidate %d: %w", c.ID, err)
	}
	e.candidates[c.ID] = c
	e.metrics.candidates.Set(float64(len(e.candidates)))
	e.logger.Debug(
		"candidate added",
		"round", c.Round,
		"id", c.ID,
		"address", c.Address.Hex(),
		"name", c.Name,
	)
	receipt := Receipt{Round: c.Round}
	e.emit(&receipt, event.CandidateAddedEventType, event.CandidateAddedEvent{
		Round:      c.Round,
		ID:         c.ID,
		Address:    c.Address,
		Name:       c.Name,
		LectureURL: c.LectureURL,
	})
	return receipt, nil
}

// VoteInElection casts or replaces the caller's ballot for a candidate of
// the current round. Weighting works as for proposal votes
func (e *Engine) VoteInElection(
	ctx context.Context,
	caller common.Address,
	candidateID uint64,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(
		ctx,
		"election.VoteInElection",
		trace.WithAttributes(
			attribute.Int64("candidate.id", int64(candidateID)), //nolint:gosec
			attribute.String("voter", caller.Hex()),
		),
	)
	defer func() { endSpan(span, err) }()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return Receipt{}, ErrNoElection
	}
	if e.phaseLocked(e.config.Clock.Now()) != PhaseVoting {
		return Receipt{}, ErrNotVoting
	}
	if _, ok := e.candidates[candidateID]; !ok {
		return Receipt{}, fmt.Errorf("candidate %d: %w", candidateID, ErrCandidateNotFound)
	}
	weight, err := oracle.Weigh(ctx, e.config.Balances, e.config.Stakes, caller)
	if err != nil {
		return Receipt{}, err
	}
	if weight.IsZero() {
		return Receipt{}, ErrNoBalance
	}
	round := e.round.Number
	res, err := e.tally.Cast(caller, candidateID, weight)
	if err != nil {
		return Receipt{}, fmt.Errorf("round %d: %w", round, err)
	}
	ballot := Ballot{
		Round:       round,
		Voter:       caller,
		CandidateID: candidateID,
		Weight:      weight,
	}
	if err := e.config.Store.SaveBallot(ctx, ballot); err != nil {
		e.tally.Undo(caller, res)
		return Receipt{}, fmt.Errorf("store ballot in round %d: %w", round, err)
	}
	if e.config.Stakes != nil {
		notice := oracle.VoteNotice{
			Kind:    oracle.VoteKindElection,
			Subject: round,
			Choice:  candidateID,
		}
		if err := e.config.Stakes.NotifyGovernanceVote(ctx, caller, notice); err != nil {
			e.logger.Warn(
				"stake oracle vote notification failed",
				"voter", caller.Hex(),
				"round", round,
				"error", err,
			)
		}
	}
	e.metrics.votes.Inc()
	e.logger.Debug(
		"election vote admitted",
		"round", round,
		"voter", caller.Hex(),
		"candidate", candidateID,
		"weight", weight.Dec(),
		"revote", !res.First,
	)
	receipt := Receipt{Round: round}
	e.emit(&receipt, event.ElectionVoteEventType, event.ElectionVoteEvent{
		Round:       round,
		CandidateID: candidateID,
		Voter:       caller,
		Weight:      cloneInt(weight),
	})
	return receipt, nil
}

// ExecuteElection records the outcome of the current round once its voting
// window has closed. A round can only be executed once
func (e *Engine) ExecuteElection(
	ctx context.Context,
	caller common.Address,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(ctx, "election.ExecuteElection")
	defer func() { endSpan(span, err) }()
	if caller != e.config.Executor {
		return Receipt{}, ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return Receipt{}, ErrNoElection
	}
	if e.round.Executed {
		return Receipt{}, ErrAlreadyExecuted
	}
	if e.phaseLocked(e.config.Clock.Now()) != PhaseEnded {
		return Receipt{}, ErrVotingNotEnded
	}
	executed := *e.round
	executed.Executed = true
	if e.config.Policy != nil {
		executed.Winner, executed.HasWinner = e.config.Policy.Winner(e.resultsLocked())
	}
	if err := e.config.Store.SaveRound(ctx, executed); err != nil {
		return Receipt{}, fmt.Errorf("store round %d: %w", executed.Number, err)
	}
	e.round = &executed
	e.logger.Info(
		"election executed",
		"round", executed.Number,
		"voters", e.tally.Voters(),
		"has_winner", executed.HasWinner,
		"winner", executed.Winner,
	)
	receipt := Receipt{Round: executed.Number}
	e.emit(&receipt, event.ElectionFinishedEventType, event.ElectionFinishedEvent{
		Round:     executed.Number,
		Winner:    executed.Winner,
		HasWinner: executed.HasWinner,
		Voters:    e.tally.Voters(),
	})
	return receipt, nil
}

func (e *Engine) emit(receipt *Receipt, eventType event.EventType, data any) {
	evt := event.NewEvent(eventType, data)
	receipt.Events = append(receipt.Events, evt)
	if e.config.EventBus != nil {
		e.config.EventBus.Publish(eventType, evt)
	}
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
