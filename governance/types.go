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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/fundgov/event"
)

// DefaultVotingPeriod is the voting window length used when none is
// configured
const DefaultVotingPeriod uint64 = 17280

// Choice is the side a ballot is cast for
type Choice uint8

const (
	Against Choice = iota
	For
)

func (c Choice) String() string {
	if c == For {
		return "for"
	}
	return "against"
}

// Status is the lifecycle state of a proposal
type Status uint8

const (
	StatusOpening Status = iota
	StatusRejected
	// StatusTransferPending means the proposal passed and is closed but the
	// withdrawal has not been confirmed yet
	StatusTransferPending
	StatusTransferFailed
	StatusPassed
	// StatusTransferUnknown means the withdrawal may or may not have been
	// paid. Only ReconcileTransfer moves a proposal out of it
	StatusTransferUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOpening:
		return "opening"
	case StatusRejected:
		return "rejected"
	case StatusTransferPending:
		return "transfer-pending"
	case StatusTransferFailed:
		return "transfer-failed"
	case StatusPassed:
		return "passed"
	case StatusTransferUnknown:
		return "transfer-unknown"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Proposal is a treasury withdrawal request and its accumulated votes
type Proposal struct {
	ID              uint64
	Creator         common.Address
	Hash            common.Hash
	Start           uint64
	Duration        uint64
	WithdrawAddress common.Address
	WithdrawAmount  *uint256.Int
	ForWeight       *uint256.Int
	AgainstWeight   *uint256.Int
	Quorum          uint64
	Status          Status
	ExecutedAt      uint64
	TransferError   string
}

// End returns the first instant at which the proposal no longer accepts
// votes
func (p Proposal) End() uint64 {
	return p.Start + p.Duration
}

func (p Proposal) IsOpening() bool {
	return p.Status == StatusOpening
}

// IsPassed is true only once the withdrawal has been paid out
func (p Proposal) IsPassed() bool {
	return p.Status == StatusPassed
}

func (p Proposal) clone() Proposal {
	ret := p
	ret.WithdrawAmount = cloneInt(p.WithdrawAmount)
	ret.ForWeight = cloneInt(p.ForWeight)
	ret.AgainstWeight = cloneInt(p.AgainstWeight)
	return ret
}

// Ballot is the current vote of one voter on one proposal
type Ballot struct {
	ProposalID uint64
	Voter      common.Address
	Choice     Choice
	Weight     *uint256.Int
}

// Stats are the percentages and quorum count derived from a proposal's
// tally at query time
type Stats struct {
	For     uint64
	Against uint64
	Quorum  uint64
}

// Detail is a read-only view of a proposal
type Detail struct {
	Proposal  Proposal
	Stats     Stats
	IsOpening bool
	IsPassed  bool
}

// Receipt is returned by every mutating operation. Events holds the events
// the operation emitted, in order
type Receipt struct {
	ProposalID uint64
	Events     []event.Event
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
