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

// Package oracle defines the external collaborators that supply voting
// weight and move treasury funds.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrOracleFailure is matched by every error returned from an oracle
	// call made on behalf of the engines
	ErrOracleFailure  = errors.New("oracle failure")
	ErrNilBalance     = errors.New("oracle returned no balance")
	ErrWeightOverflow = errors.New("combined voting weight overflows")
)

// VoteKind identifies what a governance vote notification refers to
type VoteKind uint8

const (
	VoteKindProposal VoteKind = iota
	VoteKindElection
)

func (k VoteKind) String() string {
	switch k {
	case VoteKindProposal:
		return "proposal"
	case VoteKindElection:
		return "election"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// VoteNotice is delivered to the stake oracle whenever a voter casts a
// weighted vote. Subject is the proposal ID or the election round, Choice is
// 1/0 for a proposal vote (for/against) or the candidate ID for an election
type VoteNotice struct {
	Kind    VoteKind
	Subject uint64
	Choice  uint64
}

// BalanceOracle reports freely-held balances and pays out treasury funds
type BalanceOracle interface {
	BalanceOf(ctx context.Context, identity common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// StakeOracle reports staked balances and is told about governance votes
type StakeOracle interface {
	StakedBalanceOf(ctx context.Context, identity common.Address) (*uint256.Int, error)
	NotifyGovernanceVote(ctx context.Context, identity common.Address, notice VoteNotice) error
}

// OracleError wraps a failed oracle call. It matches ErrOracleFailure with
// errors.Is as well as the underlying cause
type OracleError struct {
	op       string
	identity common.Address
	err      error
}

func NewOracleError(
	op string,
	identity common.Address,
	err error,
) OracleError {
	return OracleError{
		op:       op,
		identity: identity,
		err:      err,
	}
}

func (e OracleError) Op() string {
	return e.op
}

func (e OracleError) Identity() common.Address {
	return e.identity
}

func (e OracleError) Error() string {
	return fmt.Sprintf(
		"%s: %s for %s: %v",
		ErrOracleFailure,
		e.op,
		e.identity.Hex(),
		e.err,
	)
}

func (e OracleError) Unwrap() []error {
	return []error{ErrOracleFailure, e.err}
}

// Weigh returns the combined voting weight of an identity: its free balance
// plus its staked balance, both read at call time
func Weigh(
	ctx context.Context,
	balances BalanceOracle,
	stakes StakeOracle,
	identity common.Address,
) (*uint256.Int, error) {
	balance, err := balances.BalanceOf(ctx, identity)
	if err != nil {
		return nil, NewOracleError("balanceOf", identity, err)
	}
	if balance == nil {
		return nil, NewOracleError("balanceOf", identity, ErrNilBalance)
	}
	staked := new(uint256.Int)
	if stakes != nil {
		staked, err = stakes.StakedBalanceOf(ctx, identity)
		if err != nil {
			return nil, NewOracleError("stakedBalanceOf", identity, err)
		}
		if staked == nil {
			return nil, NewOracleError("stakedBalanceOf", identity, ErrNilBalance)
		}
	}
	weight, overflow := new(uint256.Int).AddOverflow(balance, staked)
	if overflow {
		return nil, NewOracleError("weigh", identity, ErrWeightOverflow)
	}
	return weight, nil
}
