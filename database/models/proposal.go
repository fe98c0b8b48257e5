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

package models

import (
	"github.com/blinklabs-io/fundgov/database/types"
)

// Proposal is a withdrawal proposal with its running totals
type Proposal struct {
	ID              uint64        `gorm:"primaryKey;autoIncrement:false"`
	Creator         types.Address `gorm:"size:20;not null"`
	Hash            []byte        `gorm:"size:32"`
	Start           types.Uint64  `gorm:"not null"`
	Duration        types.Uint64  `gorm:"not null"`
	WithdrawAddress types.Address `gorm:"size:20;not null"`
	WithdrawAmount  types.Uint256 `gorm:"not null"`
	ForWeight       types.Uint256 `gorm:"not null"`
	AgainstWeight   types.Uint256 `gorm:"not null"`
	Quorum          uint64        `gorm:"not null"`
	Status          uint8         `gorm:"index;not null"`
	ExecutedAt      types.Uint64
	TransferError   string
}

func (Proposal) TableName() string {
	return "proposal"
}

// Ballot is the current vote of one voter on one proposal. Re-votes update
// the row in place so the primary key keeps first-vote order
type Ballot struct {
	ID         uint          `gorm:"primarykey"`
	ProposalID uint64        `gorm:"uniqueIndex:idx_ballot_proposal_voter,priority:1;not null"`
	Voter      types.Address `gorm:"uniqueIndex:idx_ballot_proposal_voter,priority:2;size:20;not null"`
	Choice     uint8         `gorm:"not null"`
	Weight     types.Uint256 `gorm:"not null"`
}

func (Ballot) TableName() string {
	return "ballot"
}
