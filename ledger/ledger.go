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

// Package ledger is an in-memory token and staking ledger. It implements
// both oracle interfaces and is used by the scenario runner, the CLI and
// tests in place of the real token and staking contracts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/fundgov/oracle"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStake   = errors.New("insufficient staked balance")
	ErrStakeLocked         = errors.New(
		"staked balance is locked by an open governance vote",
	)
	ErrZeroAmount = errors.New("amount must be greater than zero")
)

// Operation names accepted by InjectFault
const (
	OpBalanceOf       = "balanceOf"
	OpStakedBalanceOf = "stakedBalanceOf"
	OpTransfer        = "transfer"
	OpNotify          = "notifyGovernanceVote"
)

// Decimals is the number of decimal places of one whole token
const Decimals = 18

// Tokens returns n whole tokens in base units
func Tokens(n uint64) *uint256.Int {
	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}

// Participation records one governance vote notification
type Participation struct {
	Voter  common.Address
	Notice oracle.VoteNotice
}

type lockKey struct {
	kind    oracle.VoteKind
	subject uint64
}

type LedgerConfig struct {
	Logger   *slog.Logger
	Treasury common.Address
}

type Ledger struct {
	logger         *slog.Logger
	balances       map[common.Address]*uint256.Int
	staked         map[common.Address]*uint256.Int
	locks          map[common.Address]map[lockKey]struct{}
	faults         map[string]error
	participations []Participation
	treasury       common.Address
	mu             sync.RWMutex
}

func New(cfg LedgerConfig) *Ledger {
	l := &Ledger{
		logger:   cfg.Logger,
		treasury: cfg.Treasury,
		balances: make(map[common.Address]*uint256.Int),
		staked:   make(map[common.Address]*uint256.Int),
		locks:    make(map[common.Address]map[lockKey]struct{}),
		faults:   make(map[string]error),
	}
	if l.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return l
}

// Treasury returns the account that funds withdrawals
func (l *Ledger) Treasury() common.Address {
	return l.treasury
}

// Mint credits newly created tokens to an account
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, overflow := new(uint256.Int).AddOverflow(l.balanceLocked(to), amount)
	if overflow {
		return fmt.Errorf("mint to %s overflows balance", to.Hex())
	}
	l.balances[to] = bal
	return nil
}

// Stake moves tokens from the free balance of an account to its stake
func (l *Ledger) Stake(who common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(who)
	if bal.Lt(amount) {
		return fmt.Errorf(
			"stake %s for %s: %w",
			amount.Dec(),
			who.Hex(),
			ErrInsufficientBalance,
		)
	}
	l.balances[who] = new(uint256.Int).Sub(bal, amount)
	l.staked[who] = new(uint256.Int).Add(l.stakedLocked(who), amount)
	return nil
}

// Unstake moves tokens back to the free balance. Stake that backs a vote on
// a governance item which has not been released yet cannot be withdrawn
func (l *Ledger) Unstake(who common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.locks[who]) > 0 {
		return fmt.Errorf("unstake for %s: %w", who.Hex(), ErrStakeLocked)
	}
	staked := l.stakedLocked(who)
	if staked.Lt(amount) {
		return fmt.Errorf(
			"unstake %s for %s: %w",
			amount.Dec(),
			who.Hex(),
			ErrInsufficientStake,
		)
	}
	l.staked[who] = new(uint256.Int).Sub(staked, amount)
	l.balances[who] = new(uint256.Int).Add(l.balanceLocked(who), amount)
	return nil
}

// BalanceOf implements oracle.BalanceOracle
func (l *Ledger) BalanceOf(
	_ context.Context,
	identity common.Address,
) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.faults[OpBalanceOf]; err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(l.balanceLocked(identity)), nil
}

// Transfer implements oracle.BalanceOracle. Funds are paid out of the treasury
func (l *Ledger) Transfer(
	_ context.Context,
	to common.Address,
	amount *uint256.Int,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.faults[OpTransfer]; err != nil {
		return err
	}
	if amount == nil {
		return ErrZeroAmount
	}
	treasuryBal := l.balanceLocked(l.treasury)
	if treasuryBal.Lt(amount) {
		return fmt.Errorf(
			"treasury holds %s, withdrawal needs %s: %w",
			treasuryBal.Dec(),
			amount.Dec(),
			ErrInsufficientBalance,
		)
	}
	l.balances[l.treasury] = new(uint256.Int).Sub(treasuryBal, amount)
	l.balances[to] = new(uint256.Int).Add(l.balanceLocked(to), amount)
	l.logger.Debug(
		"treasury transfer",
		"component", "ledger",
		"to", to.Hex(),
		"amount", amount.Dec(),
	)
	return nil
}

// StakedBalanceOf implements oracle.StakeOracle
func (l *Ledger) StakedBalanceOf(
	_ context.Context,
	identity common.Address,
) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.faults[OpStakedBalanceOf]; err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(l.stakedLocked(identity)), nil
}

// NotifyGovernanceVote implements oracle.StakeOracle. The voter's stake is
// locked until Release is called for the same governance item
func (l *Ledger) NotifyGovernanceVote(
	_ context.Context,
	identity common.Address,
	notice oracle.VoteNotice,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.faults[OpNotify]; err != nil {
		return err
	}
	l.participations = append(
		l.participations,
		Participation{Voter: identity, Notice: notice},
	)
	if l.stakedLocked(identity).IsZero() {
		return nil
	}
	if _, ok := l.locks[identity]; !ok {
		l.locks[identity] = make(map[lockKey]struct{})
	}
	key := lockKey{kind: notice.Kind, subject: notice.Subject}
	l.locks[identity][key] = struct{}{}
	return nil
}

// Release drops the stake locks held for a finished governance item
func (l *Ledger) Release(kind oracle.VoteKind, subject uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := lockKey{kind: kind, subject: subject}
	for who, keys := range l.locks {
		delete(keys, key)
		if len(keys) == 0 {
			delete(l.locks, who)
		}
	}
}

// Locked reports whether an account's stake is locked by any vote
func (l *Ledger) Locked(who common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.locks[who]) > 0
}

// Participations returns a copy of all vote notifications received so far
func (l *Ledger) Participations() []Participation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.participations)
}

// Accounts returns every account the ledger has credited, sorted
func (l *Ledger) Accounts() []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := maps.Clone(l.balances)
	maps.Copy(seen, l.staked)
	ret := slices.Collect(maps.Keys(seen))
	slices.SortFunc(ret, func(a, b common.Address) int {
		return a.Cmp(b)
	})
	return ret
}

// InjectFault makes every subsequent call of the named operation fail with
// err. Passing a nil error clears the fault
func (l *Ledger) InjectFault(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.faults, op)
		return
	}
	l.faults[op] = err
}

func (l *Ledger) balanceLocked(who common.Address) *uint256.Int {
	if bal, ok := l.balances[who]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (l *Ledger) stakedLocked(who common.Address) *uint256.Int {
	if bal, ok := l.staked[who]; ok {
		return bal
	}
	return new(uint256.Int)
}
