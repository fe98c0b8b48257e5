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

// Package governance implements the withdrawal proposal lifecycle: the
// governor proposes a treasury withdrawal, token holders vote on it with
// their combined balance and stake during a fixed window, and the executor
// closes it afterward, paying out the withdrawal when it passed.
package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

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

const (
	tracerName = "github.com/blinklabs-io/fundgov/governance"

	paidSaveAttempts = 3
	paidSaveBackoff  = 100 * time.Millisecond
)

type EngineConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
	// EventBus is optional. Events are always returned in the Receipt and
	// are also published here when it is set
	EventBus *event.EventBus
	Clock    clock.Clock
	Balances oracle.BalanceOracle
	Stakes   oracle.StakeOracle
	Store    ProposalStore
	Governor common.Address
	// Executor may execute proposals and retry failed withdrawals. It
	// defaults to Governor
	Executor        common.Address
	QuorumThreshold uint64
	VotingPeriod    uint64
}

type Engine struct {
	config    EngineConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   engineMetrics
	proposals map[uint64]*proposalState
	mu        sync.RWMutex
}

type proposalState struct {
	tally    *tally.Tally[Choice]
	proposal Proposal
	mu       sync.RWMutex
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
		cfg.Executor = cfg.Governor
	}
	if cfg.VotingPeriod == 0 {
		cfg.VotingPeriod = DefaultVotingPeriod
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		config:    cfg,
		logger:    cfg.Logger.With("component", "governance"),
		tracer:    cfg.TracerProvider.Tracer(tracerName),
		proposals: make(map[uint64]*proposalState),
	}
	e.metrics.init(cfg.PromRegistry)
	return e, nil
}

func (c EngineConfig) validate() error {
	if c.Governor == (common.Address{}) {
		return fmt.Errorf("%w: governor must be set", ErrInvalidConfig)
	}
	if c.QuorumThreshold < 1 {
		return fmt.Errorf("%w: quorum threshold must be at least 1", ErrInvalidConfig)
	}
	if c.Balances == nil {
		return fmt.Errorf("%w: balance oracle must be set", ErrInvalidConfig)
	}
	return nil
}

// Governor returns the identity allowed to create proposals
func (e *Engine) Governor() common.Address {
	return e.config.Governor
}

// Executor returns the identity allowed to execute proposals
func (e *Engine) Executor() common.Address {
	return e.config.Executor
}

func (e *Engine) QuorumThreshold() uint64 {
	return e.config.QuorumThreshold
}

// Load reads every stored proposal and rebuilds its tally from the stored
// ballots. Proposals not loaded up front are loaded on first access
func (e *Engine) Load(ctx context.Context) error {
	proposals, err := e.config.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("list proposals: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var open int
	for _, p := range proposals {
		st, err := e.restore(ctx, p)
		if err != nil {
			return err
		}
		e.proposals[p.ID] = st
		if p.IsOpening() {
			open++
		}
	}
	e.metrics.openProposals.Set(float64(open))
	e.logger.Debug("loaded proposals", "count", len(proposals), "open", open)
	return nil
}

func (e *Engine) restore(ctx context.Context, p Proposal) (*proposalState, error) {
	ballots, err := e.config.Store.Ballots(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load ballots for proposal %d: %w", p.ID, err)
	}
	t := tally.New[Choice]()
	for _, b := range ballots {
		if _, err := t.Cast(b.Voter, b.Choice, b.Weight); err != nil {
			return nil, fmt.Errorf("rebuild tally for proposal %d: %w", p.ID, err)
		}
	}
	p.ForWeight = t.Weight(For)
	p.AgainstWeight = t.Weight(Against)
	p.Quorum = t.Voters()
	if p.Status == StatusTransferPending {
		p.Status = StatusTransferUnknown
		p.TransferError = ErrTransferAborted.Error()
		if err := e.config.Store.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("store aborted transfer for proposal %d: %w", p.ID, err)
		}
		e.logger.Warn("withdrawal outcome unknown, needs reconciling", "id", p.ID)
	}
	return &proposalState{proposal: p, tally: t}, nil
}

func (e *Engine) state(ctx context.Context, id uint64) (*proposalState, error) {
	e.mu.RLock()
	st, ok := e.proposals[id]
	e.mu.RUnlock()
	if ok {
		return st, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.proposals[id]; ok {
		return st, nil
	}
	p, err := e.config.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProposalNotFound) {
			return nil, fmt.Errorf("proposal %d: %w", id, ErrProposalNotFound)
		}
		return nil, fmt.Errorf("get proposal %d: %w", id, err)
	}
	st, err = e.restore(ctx, p)
	if err != nil {
		return nil, err
	}
	e.proposals[id] = st
	return st, nil
}

// Propose creates a withdrawal proposal whose voting window starts now.
// Only the governor may propose
func (e *Engine) Propose(
	ctx context.Context,
	caller common.Address,
	withdrawAddress common.Address,
	withdrawAmount *uint256.Int,
	hash common.Hash,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(ctx, "governance.Propose")
	defer func() { endSpan(span, err) }()
	if caller != e.config.Governor {
		return Receipt{}, ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.config.Store.NextID(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("allocate proposal id: %w", err)
	}
	p := Proposal{
		ID:              id,
		Creator:         caller,
		Hash:            hash,
		Start:           e.config.Clock.Now(),
		Duration:        e.config.VotingPeriod,
		WithdrawAddress: withdrawAddress,
		WithdrawAmount:  cloneInt(withdrawAmount),
		ForWeight:       new(uint256.Int),
		AgainstWeight:   new(uint256.Int),
		Status:          StatusOpening,
	}
	if err := e.config.Store.Create(ctx, p); err != nil {
		return Receipt{}, fmt.Errorf("store proposal %d: %w", id, err)
	}
	e.proposals[id] = &proposalState{proposal: p, tally: tally.New[Choice]()}
	span.SetAttributes(attribute.Int64("proposal.id", int64(id))) //nolint:gosec
	e.metrics.proposalsCreated.Inc()
	e.metrics.openProposals.Inc()
	e.logger.Info(
		"proposal created",
		"id", id,
		"withdraw_address", withdrawAddress.Hex(),
		"withdraw_amount", p.WithdrawAmount.Dec(),
		"start", p.Start,
		"duration", p.Duration,
	)
	receipt := Receipt{ProposalID: id}
	e.emit(&receipt, event.NewWithdrawProposalEventType, event.NewWithdrawProposalEvent{
		ID:              id,
		Creator:         caller,
		Start:           p.Start,
		Duration:        p.Duration,
		WithdrawAddress: withdrawAddress,
		WithdrawAmount:  cloneInt(p.WithdrawAmount),
	})
	return receipt, nil
}

func (e *Engine) VoteFor(
	ctx context.Context,
	caller common.Address,
	id uint64,
) (Receipt, error) {
	return e.Vote(ctx, caller, id, For)
}

func (e *Engine) VoteAgainst(
	ctx context.Context,
	caller common.Address,
	id uint64,
) (Receipt, error) {
	return e.Vote(ctx, caller, id, Against)
}

// Vote casts or replaces the caller's ballot. The weight is the caller's
// balance plus stake at the time of the call. A voter who votes again has
// their previous weight removed and is not counted toward quorum twice
func (e *Engine) Vote(
	ctx context.Context,
	caller common.Address,
	id uint64,
	choice Choice,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(
		ctx,
		"governance.Vote",
		trace.WithAttributes(
			attribute.Int64("proposal.id", int64(id)), //nolint:gosec
			attribute.String("choice", choice.String()),
		),
	)
	defer func() { endSpan(span, err) }()
	st, err := e.state(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	now := e.config.Clock.Now()
	switch {
	case !st.proposal.IsOpening():
		return Receipt{}, ErrAlreadyClosed
	case now < st.proposal.Start:
		return Receipt{}, ErrNotStarted
	case now >= st.proposal.End():
		return Receipt{}, ErrVotingEnded
	}
	weight, err := oracle.Weigh(ctx, e.config.Balances, e.config.Stakes, caller)
	if err != nil {
		return Receipt{}, err
	}
	if weight.IsZero() {
		return Receipt{}, ErrNoBalance
	}
	res, err := st.tally.Cast(caller, choice, weight)
	if err != nil {
		return Receipt{}, fmt.Errorf("proposal %d: %w", id, err)
	}
	updated := st.proposal.clone()
	updated.ForWeight = st.tally.Weight(For)
	updated.AgainstWeight = st.tally.Weight(Against)
	updated.Quorum = st.tally.Voters()
	ballot := Ballot{
		ProposalID: id,
		Voter:      caller,
		Choice:     choice,
		Weight:     weight,
	}
	if err := e.config.Store.SaveBallot(ctx, updated, ballot); err != nil {
		st.tally.Undo(caller, res)
		return Receipt{}, fmt.Errorf("store ballot on proposal %d: %w", id, err)
	}
	st.proposal = updated
	e.notifyStake(ctx, caller, oracle.VoteNotice{
		Kind:    oracle.VoteKindProposal,
		Subject: id,
		Choice:  uint64(choice),
	})
	e.metrics.votes.WithLabelValues(choice.String()).Inc()
	e.logger.Debug(
		"vote admitted",
		"id", id,
		"voter", caller.Hex(),
		"choice", choice.String(),
		"weight", weight.Dec(),
		"revote", !res.First,
	)
	receipt := Receipt{ProposalID: id}
	e.emit(&receipt, event.VoteEventType, event.VoteEvent{
		ID:     id,
		Voter:  caller,
		Vote:   choice == For,
		Weight: cloneInt(weight),
	})
	return receipt, nil
}

func (e *Engine) notifyStake(
	ctx context.Context,
	voter common.Address,
	notice oracle.VoteNotice,
) {
	if e.config.Stakes == nil {
		return
	}
	if err := e.config.Stakes.NotifyGovernanceVote(ctx, voter, notice); err != nil {
		// The vote stands; the stake oracle is responsible for its own retries
		e.logger.Warn(
			"stake oracle vote notification failed",
			"voter", voter.Hex(),
			"kind", notice.Kind.String(),
			"subject", notice.Subject,
			"error", err,
		)
	}
}

// Stats returns the for/against percentages and the quorum count
func (e *Engine) Stats(ctx context.Context, id uint64) (Stats, error) {
	st, err := e.state(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.stats(), nil
}

func (st *proposalState) stats() Stats {
	forPct, againstPct := tally.Percentages(
		st.tally.Weight(For),
		st.tally.Weight(Against),
	)
	return Stats{
		For:     forPct,
		Against: againstPct,
		Quorum:  st.tally.Voters(),
	}
}

func (st *proposalState) detail() Detail {
	return Detail{
		Proposal:  st.proposal.clone(),
		Stats:     st.stats(),
		IsOpening: st.proposal.IsOpening(),
		IsPassed:  st.proposal.IsPassed(),
	}
}

func (e *Engine) Detail(ctx context.Context, id uint64) (Detail, error) {
	st, err := e.state(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.detail(), nil
}

// Ballot returns a voter's current ballot on a proposal
func (e *Engine) Ballot(
	ctx context.Context,
	id uint64,
	voter common.Address,
) (Ballot, bool, error) {
	st, err := e.state(ctx, id)
	if err != nil {
		return Ballot{}, false, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	b, ok := st.tally.Ballot(voter)
	if !ok {
		return Ballot{}, false, nil
	}
	return Ballot{
		ProposalID: id,
		Voter:      voter,
		Choice:     b.Choice,
		Weight:     b.Weight,
	}, true, nil
}

func (e *Engine) ProposalCount(ctx context.Context) (uint64, error) {
	return e.config.Store.Count(ctx)
}

// Proposals returns the detail of every proposal, ordered by ID
func (e *Engine) Proposals(ctx context.Context) ([]Detail, error) {
	stored, err := e.config.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	ret := make([]Detail, 0, len(stored))
	for _, p := range stored {
		d, err := e.Detail(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		ret = append(ret, d)
	}
	return ret, nil
}

// Execute closes a proposal once its voting window has ended. A proposal
// passes when at least half of the weight voted for it and the number of
// distinct voters meets the quorum threshold. The decision is stored before
// a passed proposal's withdrawal is paid; a failed payment leaves the
// proposal in StatusTransferFailed and returns a TransferError along with
// the receipt
func (e *Engine) Execute(
	ctx context.Context,
	caller common.Address,
	id uint64,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(
		ctx,
		"governance.Execute",
		trace.WithAttributes(attribute.Int64("proposal.id", int64(id))), //nolint:gosec
	)
	defer func() { endSpan(span, err) }()
	if caller != e.config.Executor {
		return Receipt{}, ErrUnauthorized
	}
	st, err := e.state(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	now := e.config.Clock.Now()
	if now < st.proposal.End() {
		return Receipt{}, ErrNotEnded
	}
	if !st.proposal.IsOpening() {
		return Receipt{}, ErrAlreadyClosed
	}
	stats := st.stats()
	passed := stats.For >= 50 && stats.Quorum >= e.config.QuorumThreshold
	decided := st.proposal.clone()
	decided.ExecutedAt = now
	decided.Status = StatusRejected
	if passed {
		decided.Status = StatusTransferPending
	}
	if err := e.config.Store.Save(ctx, decided); err != nil {
		return Receipt{}, fmt.Errorf("store decision for proposal %d: %w", id, err)
	}
	st.proposal = decided
	e.metrics.openProposals.Dec()
	e.logger.Info(
		"proposal decided",
		"id", id,
		"for", stats.For,
		"against", stats.Against,
		"quorum", stats.Quorum,
		"passed", passed,
	)
	receipt := Receipt{ProposalID: id}
	if !passed {
		e.metrics.proposalsExecuted.WithLabelValues("rejected").Inc()
		e.emitFinished(&receipt, id, stats, false)
		return receipt, nil
	}
	err = e.payout(ctx, st, stats, &receipt)
	return receipt, err
}

// RetryTransfer attempts the withdrawal of a proposal in
// StatusTransferFailed again
func (e *Engine) RetryTransfer(
	ctx context.Context,
	caller common.Address,
	id uint64,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(
		ctx,
		"governance.RetryTransfer",
		trace.WithAttributes(attribute.Int64("proposal.id", int64(id))), //nolint:gosec
	)
	defer func() { endSpan(span, err) }()
	if caller != e.config.Executor {
		return Receipt{}, ErrUnauthorized
	}
	st, err := e.state(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.proposal.Status == StatusTransferUnknown {
		return Receipt{}, fmt.Errorf("proposal %d: %w", id, ErrTransferUnknown)
	}
	if st.proposal.Status != StatusTransferFailed {
		return Receipt{}, fmt.Errorf(
			"proposal %d is %s: %w",
			id,
			st.proposal.Status,
			ErrTransferNotFailed,
		)
	}
	pending := st.proposal.clone()
	pending.Status = StatusTransferPending
	pending.TransferError = ""
	if err := e.config.Store.Save(ctx, pending); err != nil {
		return Receipt{}, fmt.Errorf("store retry for proposal %d: %w", id, err)
	}
	st.proposal = pending
	receipt := Receipt{ProposalID: id}
	err = e.payout(ctx, st, st.stats(), &receipt)
	return receipt, err
}

// payout moves the withdrawal of a proposal in StatusTransferPending and
// records the outcome. The caller holds st.mu
func (e *Engine) payout(
	ctx context.Context,
	st *proposalState,
	stats Stats,
	receipt *Receipt,
) error {
	p := st.proposal
	transferErr := e.config.Balances.Transfer(ctx, p.WithdrawAddress, p.WithdrawAmount)
	if transferErr != nil {
		terr := NewTransferError(
			p.ID,
			p.WithdrawAddress,
			oracle.NewOracleError("transfer", p.WithdrawAddress, transferErr),
		)
		failed := p.clone()
		failed.Status = StatusTransferFailed
		failed.TransferError = transferErr.Error()
		st.proposal = failed
		e.metrics.transferFailures.Inc()
		e.logger.Error(
			"withdrawal transfer failed",
			"id", p.ID,
			"to", p.WithdrawAddress.Hex(),
			"amount", p.WithdrawAmount.Dec(),
			"error", transferErr,
		)
		if err := e.config.Store.Save(ctx, failed); err != nil {
			return errors.Join(
				terr,
				fmt.Errorf("store failed transfer for proposal %d: %w", p.ID, err),
			)
		}
		e.emit(receipt, event.WithdrawTransferFailedEventType, event.WithdrawTransferFailedEvent{
			ID:              p.ID,
			WithdrawAddress: p.WithdrawAddress,
			WithdrawAmount:  cloneInt(p.WithdrawAmount),
			Reason:          transferErr.Error(),
		})
		return terr
	}
	e.metrics.proposalsExecuted.WithLabelValues("passed").Inc()
	e.logger.Info(
		"withdrawal paid",
		"id", p.ID,
		"to", p.WithdrawAddress.Hex(),
		"amount", p.WithdrawAmount.Dec(),
	)
	paid := p.clone()
	paid.Status = StatusPassed
	if err := e.savePaid(ctx, paid); err != nil {
		unknown := p.clone()
		unknown.Status = StatusTransferUnknown
		unknown.TransferError = ErrPaidNotRecorded.Error()
		st.proposal = unknown
		e.logger.Error(
			"withdrawal paid but not recorded, reconcile as paid",
			"id", p.ID,
			"error", err,
		)
		return fmt.Errorf("proposal %d: %w: %w", p.ID, ErrPaidNotRecorded, err)
	}
	st.proposal = paid
	e.emitFinished(receipt, p.ID, stats, true)
	return nil
}

// savePaid stores a paid proposal, retrying with a growing delay since the
// transfer can not be undone
func (e *Engine) savePaid(ctx context.Context, paid Proposal) error {
	var err error
	for attempt := range paidSaveAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(time.Duration(attempt) * paidSaveBackoff):
			}
		}
		if err = e.config.Store.Save(ctx, paid); err == nil {
			return nil
		}
		e.logger.Warn(
			"failed to store paid withdrawal",
			"id", paid.ID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return fmt.Errorf("store paid withdrawal for proposal %d: %w", paid.ID, err)
}

// ReconcileTransfer settles a proposal in StatusTransferUnknown once the
// executor has checked whether the withdrawal reached its recipient. A paid
// withdrawal moves the proposal to StatusPassed, otherwise it moves to
// StatusTransferFailed and can be retried
func (e *Engine) ReconcileTransfer(
	ctx context.Context,
	caller common.Address,
	id uint64,
	paid bool,
) (_ Receipt, err error) {
	ctx, span := e.tracer.Start(
		ctx,
		"governance.ReconcileTransfer",
		trace.WithAttributes(
			attribute.Int64("proposal.id", int64(id)), //nolint:gosec
			attribute.Bool("paid", paid),
		),
	)
	defer func() { endSpan(span, err) }()
	if caller != e.config.Executor {
		return Receipt{}, ErrUnauthorized
	}
	st, err := e.state(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.proposal.Status != StatusTransferUnknown {
		return Receipt{}, fmt.Errorf(
			"proposal %d is %s: %w",
			id,
			st.proposal.Status,
			ErrNotUnknown,
		)
	}
	settled := st.proposal.clone()
	settled.TransferError = ""
	settled.Status = StatusPassed
	if !paid {
		settled.Status = StatusTransferFailed
		settled.TransferError = ErrTransferAborted.Error()
	}
	if err := e.config.Store.Save(ctx, settled); err != nil {
		return Receipt{}, fmt.Errorf("store reconciled proposal %d: %w", id, err)
	}
	st.proposal = settled
	e.logger.Info("withdrawal reconciled", "id", id, "paid", paid)
	receipt := Receipt{ProposalID: id}
	if paid {
		e.emitFinished(&receipt, id, st.stats(), true)
		return receipt, nil
	}
	e.emit(&receipt, event.WithdrawTransferFailedEventType, event.WithdrawTransferFailedEvent{
		ID:              id,
		WithdrawAddress: settled.WithdrawAddress,
		WithdrawAmount:  cloneInt(settled.WithdrawAmount),
		Reason:          settled.TransferError,
	})
	return receipt, nil
}

func (e *Engine) emitFinished(receipt *Receipt, id uint64, stats Stats, passed bool) {
	e.emit(receipt, event.WithdrawProposalFinishedEventType, event.WithdrawProposalFinishedEvent{
		ID:      id,
		For:     stats.For,
		Against: stats.Against,
		Quorum:  stats.Quorum,
		Passed:  passed,
	})
}

func (e *Engine) emit(receipt *Receipt, eventType event.EventType, data any) {
	evt := event.NewEvent(eventType, data)
	receipt.Events = append(receipt.Events, evt)
	if e.config.EventBus != nil {
		e.config.EventBus.Publish(eventType, evt)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
