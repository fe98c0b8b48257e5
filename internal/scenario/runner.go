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

package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/blinklabs-io/fundgov"
	"github.com/blinklabs-io/fundgov/clock"
	"github.com/blinklabs-io/fundgov/database"
	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/event"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/ledger"
)

// StepError reports the step at which a scenario stopped
type StepError struct {
	Err    error
	Action string
	Index  int
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e StepError) Unwrap() error {
	return e.Err
}

var ErrExpectation = errors.New("expectation not met")

type StepResult struct {
	Action string
	// Error is the message of an expected error
	Error  string
	Events []event.Event
	Index  int
}

type AccountBalance struct {
	Name    string
	Balance *uint256.Int
	Staked  *uint256.Int
	Address common.Address
}

// Report describes a scenario run. It is filled in as far as the run got
// when a step fails
type Report struct {
	Name            string
	Steps           []StepResult
	Proposals       []governance.Detail
	ElectionRound   *election.Round
	ElectionResults []election.Result
	Balances        []AccountBalance
}

// Events returns every event emitted by the run, in order
func (r *Report) Events() []event.Event {
	return lo.FlatMap(r.Steps, func(s StepResult, _ int) []event.Event {
		return s.Events
	})
}

type Runner struct {
	logger          *slog.Logger
	promRegistry    prometheus.Registerer
	dataDir         string
	metadataPlugin  string
	shutdownTimeout time.Duration
	journal         bool
	tracing         bool
	tracingStdout   bool
}

type RunnerOptionFunc func(*Runner)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) RunnerOptionFunc {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) RunnerOptionFunc {
	return func(r *Runner) {
		r.promRegistry = registry
	}
}

// WithDataDir stores the run on disk instead of in memory
func WithDataDir(dataDir string) RunnerOptionFunc {
	return func(r *Runner) {
		r.dataDir = dataDir
	}
}

// WithMetadataPlugin specifies the metadata storage plugin. This defaults to memory
func WithMetadataPlugin(plugin string) RunnerOptionFunc {
	return func(r *Runner) {
		r.metadataPlugin = plugin
	}
}

// WithJournal enables the event journal
func WithJournal(journal bool) RunnerOptionFunc {
	return func(r *Runner) {
		r.journal = journal
	}
}

// WithTracing enables OpenTelemetry tracing for the run
func WithTracing(tracing, stdout bool) RunnerOptionFunc {
	return func(r *Runner) {
		r.tracing = tracing
		r.tracingStdout = stdout
	}
}

// WithShutdownTimeout bounds how long the run waits for exporters to flush
func WithShutdownTimeout(timeout time.Duration) RunnerOptionFunc {
	return func(r *Runner) {
		r.shutdownTimeout = timeout
	}
}

func NewRunner(opts ...RunnerOptionFunc) *Runner {
	r := &Runner{
		metadataPlugin: database.MetadataPluginMemory,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return r
}

// run holds the state of one scenario execution
type run struct {
	sc      *Scenario
	ledger  *ledger.Ledger
	clock   *clock.Manual
	service *fundgov.Service
}

// Run executes every step in order. A step that fails without a matching
// expectError stops the run with a StepError
func (r *Runner) Run(ctx context.Context, sc *Scenario) (_ *Report, err error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	policy, err := election.PolicyByName(sc.WinnerPolicy)
	if err != nil {
		return nil, err
	}
	rn := &run{
		sc: sc,
		ledger: ledger.New(ledger.LedgerConfig{
			Logger:   r.logger,
			Treasury: sc.treasury(),
		}),
		clock: clock.NewManual(sc.ClockStart),
	}
	quorum := sc.QuorumThreshold
	if quorum == 0 {
		quorum = 1
	}
	opts := []fundgov.ConfigOptionFunc{
		fundgov.WithLogger(r.logger),
		fundgov.WithPrometheusRegistry(r.promRegistry),
		fundgov.WithClock(rn.clock),
		fundgov.WithBalanceOracle(rn.ledger),
		fundgov.WithStakeOracle(rn.ledger),
		fundgov.WithGovernor(common.HexToAddress(sc.Governor)),
		fundgov.WithElectionAuthority(sc.authority()),
		fundgov.WithQuorumThreshold(quorum),
		fundgov.WithElectionPreparePeriod(sc.ElectionPreparePeriod),
		fundgov.WithElectionVotingPeriod(sc.ElectionVotingPeriod),
		fundgov.WithWinnerPolicy(policy),
		fundgov.WithDatabasePath(r.dataDir),
		fundgov.WithMetadataPlugin(r.metadataPlugin),
		fundgov.WithJournal(r.journal),
		fundgov.WithTracing(r.tracing),
		fundgov.WithTracingStdout(r.tracingStdout),
		fundgov.WithShutdownTimeout(r.shutdownTimeout),
	}
	if sc.VotingPeriod > 0 {
		opts = append(opts, fundgov.WithVotingPeriod(sc.VotingPeriod))
	}
	if sc.Executor != "" {
		opts = append(opts, fundgov.WithExecutor(common.HexToAddress(sc.Executor)))
	}
	svc, err := fundgov.New(fundgov.NewConfig(opts...))
	if err != nil {
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		return nil, errors.Join(err, svc.Stop())
	}
	defer func() {
		err = errors.Join(err, svc.Stop())
	}()
	rn.service = svc
	report := &Report{Name: sc.Name}
	for i, step := range sc.Steps {
		result, stepErr := rn.step(ctx, step)
		result.Index = i + 1
		result.Action = step.Action
		if stepErr = checkError(step, stepErr); stepErr != nil {
			r.logger.Debug(
				"scenario step failed",
				"component", "scenario",
				"step", i+1,
				"action", step.Action,
				"error", stepErr,
			)
			_ = rn.summarize(ctx, report)
			return report, StepError{Index: i + 1, Action: step.Action, Err: stepErr}
		}
		report.Steps = append(report.Steps, result)
	}
	if err := rn.summarize(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// checkError compares the outcome of a step with its expectError
func checkError(step Step, err error) error {
	if step.ExpectError == "" {
		return err
	}
	if err == nil {
		return fmt.Errorf("%w: expected error %s", ErrExpectation, step.ExpectError)
	}
	if !errorsByName[step.ExpectError](err) {
		return fmt.Errorf(
			"%w: expected error %s, got: %w",
			ErrExpectation,
			step.ExpectError,
			err,
		)
	}
	return nil
}

func (rn *run) step(ctx context.Context, step Step) (StepResult, error) {
	var result StepResult
	gov := rn.service.Governance()
	elec := rn.service.Election()
	amount := ledger.Tokens(step.Amount)
	var events []event.Event
	var err error
	switch step.Action {
	case ActionMint:
		err = rn.ledger.Mint(rn.must(step.Account), amount)
	case ActionStake:
		err = rn.ledger.Stake(rn.must(step.Account), amount)
	case ActionUnstake:
		err = rn.ledger.Unstake(rn.must(step.Account), amount)
	case ActionFund:
		err = rn.ledger.Mint(rn.ledger.Treasury(), amount)
	case ActionFault:
		var fault error
		if step.Message != "" {
			fault = errors.New(step.Message)
		}
		rn.ledger.InjectFault(step.Op, fault)
	case ActionAdvance:
		rn.clock.Advance(step.By)
	case ActionPropose:
		var receipt governance.Receipt
		receipt, err = gov.Propose(
			ctx,
			rn.caller(step, AccountGovernor),
			rn.must(step.To),
			amount,
			common.Hash{},
		)
		events = receipt.Events
	case ActionVoteFor, ActionVoteAgainst:
		choice := governance.For
		if step.Action == ActionVoteAgainst {
			choice = governance.Against
		}
		var receipt governance.Receipt
		receipt, err = gov.Vote(ctx, rn.must(step.Caller), step.Proposal, choice)
		events = receipt.Events
	case ActionExecute:
		var receipt governance.Receipt
		receipt, err = gov.Execute(ctx, rn.caller(step, AccountGovernor), step.Proposal)
		events = receipt.Events
	case ActionRetryTransfer:
		var receipt governance.Receipt
		receipt, err = gov.RetryTransfer(ctx, rn.caller(step, AccountGovernor), step.Proposal)
		events = receipt.Events
	case ActionReconcile:
		var receipt governance.Receipt
		receipt, err = gov.ReconcileTransfer(
			ctx,
			rn.caller(step, AccountGovernor),
			step.Proposal,
			step.Paid,
		)
		events = receipt.Events
	case ActionStats:
		err = rn.checkStats(ctx, step)
	case ActionBalance:
		err = rn.checkBalance(ctx, step)
	case ActionStartElection:
		var receipt election.Receipt
		receipt, err = elec.StartElection(ctx, rn.caller(step, AccountAuthority))
		events = receipt.Events
	case ActionAddCandidate:
		c := step.Candidate
		var receipt election.Receipt
		receipt, err = elec.AddCandidate(ctx, rn.caller(step, AccountAuthority), election.Candidate{
			ID:         c.ID,
			Address:    rn.must(c.Address),
			Name:       c.Name,
			LectureURL: c.LectureURL,
		})
		events = receipt.Events
	case ActionVoteInElection:
		var receipt election.Receipt
		receipt, err = elec.VoteInElection(ctx, rn.must(step.Caller), step.Choice)
		events = receipt.Events
	case ActionExecuteElection:
		var receipt election.Receipt
		receipt, err = elec.ExecuteElection(ctx, rn.caller(step, AccountAuthority))
		events = receipt.Events
	default:
		err = fmt.Errorf("%w: unknown action %q", ErrInvalidScenario, step.Action)
	}
	result.Events = events
	if err != nil && step.ExpectError != "" {
		result.Error = err.Error()
	}
	return result, err
}

// must resolves a reference that Validate has already checked
func (rn *run) must(ref string) common.Address {
	addr, _ := rn.sc.resolve(ref)
	return addr
}

func (rn *run) caller(step Step, fallback string) common.Address {
	if step.Caller == "" {
		return rn.must(fallback)
	}
	return rn.must(step.Caller)
}

func (rn *run) checkStats(ctx context.Context, step Step) error {
	detail, err := rn.service.Governance().Detail(ctx, step.Proposal)
	if err != nil {
		return err
	}
	exp := step.Expect
	if exp == nil {
		return nil
	}
	var mismatches []error
	check := func(name string, want *uint64, got uint64) {
		if want != nil && *want != got {
			mismatches = append(mismatches, fmt.Errorf("%s: want %d, got %d", name, *want, got))
		}
	}
	check("for", exp.For, detail.Stats.For)
	check("against", exp.Against, detail.Stats.Against)
	check("quorum", exp.Quorum, detail.Stats.Quorum)
	if exp.Passed != nil && *exp.Passed != detail.IsPassed {
		mismatches = append(mismatches, fmt.Errorf("passed: want %t, got %t", *exp.Passed, detail.IsPassed))
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%w: %w", ErrExpectation, errors.Join(mismatches...))
	}
	return nil
}

func (rn *run) checkBalance(ctx context.Context, step Step) error {
	balance, err := rn.ledger.BalanceOf(ctx, rn.must(step.Account))
	if err != nil {
		return err
	}
	want := ledger.Tokens(*step.Expect.Tokens)
	if !balance.Eq(want) {
		return fmt.Errorf(
			"%w: balance of %s: want %s, got %s",
			ErrExpectation,
			step.Account,
			want.Dec(),
			balance.Dec(),
		)
	}
	return nil
}

// summarize records the final state of the proposals, the election and the
// named accounts
func (rn *run) summarize(ctx context.Context, report *Report) error {
	proposals, err := rn.service.Governance().Proposals(ctx)
	if err != nil {
		return err
	}
	report.Proposals = proposals
	if round, ok := rn.service.Election().Round(); ok {
		report.ElectionRound = &round
		report.ElectionResults = rn.service.Election().Results()
	}
	names := lo.Keys(rn.sc.Accounts)
	slices.Sort(names)
	names = append(names, AccountTreasury)
	report.Balances = make([]AccountBalance, 0, len(names))
	for _, name := range names {
		addr := rn.must(name)
		balance, err := rn.ledger.BalanceOf(ctx, addr)
		if err != nil {
			return err
		}
		staked, err := rn.ledger.StakedBalanceOf(ctx, addr)
		if err != nil {
			return err
		}
		report.Balances = append(report.Balances, AccountBalance{
			Name:    name,
			Address: addr,
			Balance: balance,
			Staked:  staked,
		})
	}
	return nil
}
