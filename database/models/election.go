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

type ElectionRound struct {
	Number        uint64       `gorm:"primaryKey;autoIncrement:false"`
	Start         types.Uint64 `gorm:"not null"`
	PreparePeriod types.Uint64 `gorm:"not null"`
	VotingPeriod  types.Uint64 `gorm:"not null"`
	Executed      bool         `gorm:"not null"`
	HasWinner     bool         `gorm:"not null"`
	Winner        types.Uint64
}

func (ElectionRound) TableName() string {
	return "election_round"
}

type Candidate struct {
	ID          uint          `gorm:"primarykey"`
	Round       uint64        `gorm:"uniqueIndex:idx_candidate_round_id,priority:1;not null"`
	CandidateID uint64        `gorm:"uniqueIndex:idx_candidate_round_id,priority:2;not null"`
	Address     types.Address `gorm:"size:20;not null"`
	Name        string        `gorm:"size:255"`
	LectureURL  string        `gorm:"size:2048"`
}

func (Candidate) TableName() string {
	return "candidate"
}

type ElectionBallot struct {
	ID          uint          `gorm:"primarykey"`
	Round       uint64        `gorm:"uniqueIndex:idx_election_ballot_round_voter,priority:1;not null"`
	Voter       types.Address `gorm:"uniqueIndex:idx_election_ballot_round_voter,priority:2;size:20;not null"`
	CandidateID uint64        `gorm:"not null"`
	Weight      types.Uint256 `gorm:"not null"`
}

func (ElectionBallot) TableName() string {
	return "election_ballot"
}
