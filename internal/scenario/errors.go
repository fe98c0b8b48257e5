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
	"errors"
	"slices"

	"github.com/samber/lo"

	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/ledger"
	"github.com/blinklabs-io/fundgov/oracle"
)

type errorMatcher func(error) bool

// errorsByName maps the names accepted by expectError to the errors they
// stand for. Names shared by proposals and elections match either
var errorsByName = map[string]errorMatcher{
	"Unauthorized":        is(governance.ErrUnauthorized, election.ErrUnauthorized),
	"NotStarted":          is(governance.ErrNotStarted),
	"VotingEnded":         is(governance.ErrVotingEnded),
	"NoBalance":           is(governance.ErrNoBalance, election.ErrNoBalance),
	"NotEnded":            is(governance.ErrNotEnded, election.ErrVotingNotEnded),
	"AlreadyClosed":       is(governance.ErrAlreadyClosed),
	"ProposalNotFound":    is(governance.ErrProposalNotFound),
	"TransferNotFailed":   is(governance.ErrTransferNotFailed),
	"TransferFailed":      isTransferError,
	"TransferUnknown":     is(governance.ErrTransferUnknown),
	"NotUnknown":          is(governance.ErrNotUnknown),
	"PaidNotRecorded":     is(governance.ErrPaidNotRecorded),
	"OracleFailure":       is(oracle.ErrOracleFailure),
	"ElectionInProgress":  is(election.ErrElectionInProgress),
	"NotPreparing":        is(election.ErrNotPreparing),
	"NotVoting":           is(election.ErrNotVoting),
	"DuplicateCandidate":  is(election.ErrDuplicateCandidate),
	"CandidateNotFound":   is(election.ErrCandidateNotFound),
	"AlreadyExecuted":     is(election.ErrAlreadyExecuted),
	"NoElection":          is(election.ErrNoElection),
	"InsufficientBalance": is(ledger.ErrInsufficientBalance),
	"InsufficientStake":   is(ledger.ErrInsufficientStake),
	"StakeLocked":         is(ledger.ErrStakeLocked),
	"ZeroAmount":          is(ledger.ErrZeroAmount),
}

func is(targets ...error) errorMatcher {
	return func(err error) bool {
		return lo.SomeBy(targets, func(target error) bool {
			return errors.Is(err, target)
		})
	}
}

func isTransferError(err error) bool {
	var terr governance.TransferError
	return errors.As(err, &terr)
}

// ErrorNames returns the names accepted by expectError, sorted
func ErrorNames() []string {
	names := lo.Keys(errorsByName)
	slices.Sort(names)
	return names
}
