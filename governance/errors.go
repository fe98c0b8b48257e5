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

package governance

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// The capitalized messages are the reasons reported to callers
//
//nolint:staticcheck
var (
	ErrUnauthorized      = errors.New("Caller is not the governor")
	ErrNotStarted        = errors.New("The proposal has not started yet")
	ErrVotingEnded       = errors.New("The proposal is ended")
	ErrNoBalance         = errors.New("No balance left to vote")
	ErrNotEnded          = errors.New("The proposal has not ended (yet)")
	ErrAlreadyClosed     = errors.New("The proposal is already closed")
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrTransferNotFailed = errors.New("proposal has no failed withdrawal to retry")
	ErrInvalidConfig     = errors.New("invalid governance configuration")
	ErrTransferAborted   = errors.New("withdrawal interrupted before its outcome was recorded")
	ErrTransferUnknown   = errors.New("withdrawal outcome is unknown and must be reconciled")
	ErrNotUnknown        = errors.New("proposal has no withdrawal to reconcile")
	ErrPaidNotRecorded   = errors.New("withdrawal was paid but could not be recorded")
)

// TransferError is returned by Execute and RetryTransfer when the proposal
// passed but its withdrawal could not be paid. The proposal is left in
// StatusTransferFailed
type TransferError struct {
	err        error
	proposalID uint64
	to         common.Address
}

func NewTransferError(
	proposalID uint64,
	to common.Address,
	err error,
) TransferError {
	return TransferError{
		proposalID: proposalID,
		to:         to,
		err:        err,
	}
}

func (e TransferError) ProposalID() uint64 {
	return e.proposalID
}

func (e TransferError) To() common.Address {
	return e.to
}

func (e TransferError) Error() string {
	return fmt.Sprintf(
		"withdrawal for proposal %d to %s failed: %v",
		e.proposalID,
		e.to.Hex(),
		e.err,
	)
}

func (e TransferError) Unwrap() error {
	return e.err
}
