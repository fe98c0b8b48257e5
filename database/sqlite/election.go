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

package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/fundgov/database/models"
	"github.com/blinklabs-io/fundgov/database/types"
	"github.com/blinklabs-io/fundgov/election"
)

// ElectionStore implements election.Store
type ElectionStore struct {
	store *Store
}

var _ election.Store = (*ElectionStore)(nil)

func (e *ElectionStore) SaveRound(ctx context.Context, r election.Round) error {
	tmpItem := models.ElectionRound{
		Number:        r.Number,
		Start:         types.Uint64(r.Start),
		PreparePeriod: types.Uint64(r.PreparePeriod),
		VotingPeriod:  types.Uint64(r.VotingPeriod),
		Executed:      r.Executed,
		HasWinner:     r.HasWinner,
		Winner:        types.Uint64(r.Winner),
	}
	result := e.store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "number"}},
		UpdateAll: true,
	}).Create(&tmpItem)
	return result.Error
}

func (e *ElectionStore) LatestRound(ctx context.Context) (election.Round, bool, error) {
	var tmpItem models.ElectionRound
	result := e.store.db.WithContext(ctx).Order("number DESC").First(&tmpItem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return election.Round{}, false, nil
		}
		return election.Round{}, false, result.Error
	}
	return election.Round{
		Number:        tmpItem.Number,
		Start:         uint64(tmpItem.Start),
		PreparePeriod: uint64(tmpItem.PreparePeriod),
		VotingPeriod:  uint64(tmpItem.VotingPeriod),
		Executed:      tmpItem.Executed,
		HasWinner:     tmpItem.HasWinner,
		Winner:        uint64(tmpItem.Winner),
	}, true, nil
}

func (e *ElectionStore) AddCandidate(ctx context.Context, c election.Candidate) error {
	return e.store.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var count int64
		result := txn.Model(&models.Candidate{}).
			Where("round = ? AND candidate_id = ?", c.Round, c.ID).
			Count(&count)
		if result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return fmt.Errorf("candidate %d: %w", c.ID, election.ErrDuplicateCandidate)
		}
		tmpItem := models.Candidate{
			Round:       c.Round,
			CandidateID: c.ID,
			Address:     types.Address(c.Address),
			Name:        c.Name,
			LectureURL:  c.LectureURL,
		}
		return txn.Create(&tmpItem).Error
	})
}

func (e *ElectionStore) Candidates(ctx context.Context, round uint64) ([]election.Candidate, error) {
	var tmpItems []models.Candidate
	result := e.store.db.WithContext(ctx).
		Where("round = ?", round).
		Order("candidate_id").
		Find(&tmpItems)
	if result.Error != nil {
		return nil, result.Error
	}
	ret := make([]election.Candidate, 0, len(tmpItems))
	for _, item := range tmpItems {
		ret = append(ret, election.Candidate{
			Round:      item.Round,
			ID:         item.CandidateID,
			Address:    common.Address(item.Address),
			Name:       item.Name,
			LectureURL: item.LectureURL,
		})
	}
	return ret, nil
}

func (e *ElectionStore) SaveBallot(ctx context.Context, b election.Ballot) error {
	tmpItem := models.ElectionBallot{
		Round:       b.Round,
		Voter:       types.Address(b.Voter),
		CandidateID: b.CandidateID,
		Weight:      types.NewUint256(b.Weight),
	}
	result := e.store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "round"},
			{Name: "voter"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"candidate_id", "weight"}),
	}).Create(&tmpItem)
	return result.Error
}

func (e *ElectionStore) Ballots(ctx context.Context, round uint64) ([]election.Ballot, error) {
	var tmpItems []models.ElectionBallot
	result := e.store.db.WithContext(ctx).
		Where("round = ?", round).
		Order("id").
		Find(&tmpItems)
	if result.Error != nil {
		return nil, result.Error
	}
	ret := make([]election.Ballot, 0, len(tmpItems))
	for _, item := range tmpItems {
		ret = append(ret, election.Ballot{
			Round:       item.Round,
			Voter:       common.Address(item.Voter),
			CandidateID: item.CandidateID,
			Weight:      item.Weight.Int(),
		})
	}
	return ret, nil
}
