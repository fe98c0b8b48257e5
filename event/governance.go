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

package event

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	NewWithdrawProposalEventType      = EventType("governance.proposal.created")
	VoteEventType                     = EventType("governance.proposal.vote")
	WithdrawProposalFinishedEventType = EventType("governance.proposal.finished")
	WithdrawTransferFailedEventType   = EventType("governance.proposal.transfer_failed")
	ElectionStartedEventType          = EventType("election.started")
	CandidateAddedEventType           = EventType("election.candidate.added")
	ElectionVoteEventType             = EventType("election.vote")
	ElectionFinishedEventType         = EventType("election.finished")
)

// NewWithdrawProposalEvent is emitted when the governor creates a proposal
type NewWithdrawProposalEvent struct {
	ID              uint64
	Creator         common.Address
	Start           uint64
	Duration        uint64
	WithdrawAddress common.Address
	WithdrawAmount  *uint256.Int
}

// VoteEvent is emitted for every admitted proposal vote, including re-votes
type VoteEvent struct {
	ID     uint64
	Voter  common.Address
	Vote   bool
	Weight *uint256.Int
}

// WithdrawProposalFinishedEvent is emitted once per proposal when it is
// executed. For and Against are percentages
type WithdrawProposalFinishedEvent struct {
	ID      uint64
	For     uint64
	Against uint64
	Quorum  uint64
	Passed  bool
}

// WithdrawTransferFailedEvent is emitted when a passed proposal could not pay
// out its withdrawal
type WithdrawTransferFailedEvent struct {
	ID              uint64
	WithdrawAddress common.Address
	WithdrawAmount  *uint256.Int
	Reason          string
}

type ElectionStartedEvent struct {
	Round      uint64
	Start      uint64
	VotingFrom uint64
	VotingTo   uint64
}

type CandidateAddedEvent struct {
	Round      uint64
	ID         uint64
	Address    common.Address
	Name       string
	LectureURL string
}

type ElectionVoteEvent struct {
	Round       uint64
	CandidateID uint64
	Voter       common.Address
	Weight      *uint256.Int
}

// ElectionFinishedEvent is emitted when a round is executed. Winner is only
// meaningful when HasWinner is set
type ElectionFinishedEvent struct {
	Round     uint64
	Winner    uint64
	HasWinner bool
	Voters    uint64
}

// GovernanceEventTypes lists every event type emitted by the engines
func GovernanceEventTypes() []EventType {
	return []EventType{
		NewWithdrawProposalEventType,
		VoteEventType,
		WithdrawProposalFinishedEventType,
		WithdrawTransferFailedEventType,
		ElectionStartedEventType,
		CandidateAddedEventType,
		ElectionVoteEventType,
		ElectionFinishedEventType,
	}
}

// NewPayload returns a pointer to an empty payload for the event type, for
// use when decoding stored events. It returns nil for unknown types
func NewPayload(eventType EventType) any {
	switch eventType {
	case NewWithdrawProposalEventType:
		return &NewWithdrawProposalEvent{}
	case VoteEventType:
		return &VoteEvent{}
	case WithdrawProposalFinishedEventType:
		return &WithdrawProposalFinishedEvent{}
	case WithdrawTransferFailedEventType:
		return &WithdrawTransferFailedEvent{}
	case ElectionStartedEventType:
		return &ElectionStartedEvent{}
	case CandidateAddedEventType:
		return &CandidateAddedEvent{}
	case ElectionVoteEventType:
		return &ElectionVoteEvent{}
	case ElectionFinishedEventType:
		return &ElectionFinishedEvent{}
	default:
		return nil
	}
}
