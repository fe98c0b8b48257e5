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
	"github.com/blinklabs-io/fundgov/governance"
)

// ProposalStore implements governance.ProposalStore
type ProposalStore struct {
	store *Store
}

var _ governance.ProposalStore = (*ProposalStore)(nil)

func (p *ProposalStore) NextID(ctx context.Context) (uint64, error) {
	var maxID uint64
	result := p.store.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID)
	if result.Error != nil {
		return 0, result.Error
	}
	return maxID + 1, nil
}

func (p *ProposalStore) Create(ctx context.Context, proposal governance.Proposal) error {
	tmpItem := proposalToModel(proposal)
	if result := p.store.db.WithContext(ctx).Create(&tmpItem); result.Error != nil {
		return result.Error
	}
	return nil
}

func (p *ProposalStore) Get(ctx context.Context, id uint64) (governance.Proposal, error) {
	var tmpItem models.Proposal
	result := p.store.db.WithContext(ctx).First(&tmpItem, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return governance.Proposal{}, fmt.Errorf(
				"proposal %d: %w",
				id,
				governance.ErrProposalNotFound,
			)
		}
		return governance.Proposal{}, result.Error
	}
	return proposalFromModel(tmpItem), nil
}

func (p *ProposalStore) Save(ctx context.Context, proposal governance.Proposal) error {
	return saveProposal(p.store.db.WithContext(ctx), proposal)
}

// SaveBallot writes the proposal totals and the voter's ballot in one
// transaction
func (p *ProposalStore) SaveBallot(
	ctx context.Context,
	proposal governance.Proposal,
	ballot governance.Ballot,
) error {
	return p.store.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := saveProposal(txn, proposal); err != nil {
			return err
		}
		tmpItem := models.Ballot{
			ProposalID: ballot.ProposalID,
			Voter:      types.Address(ballot.Voter),
			Choice:     uint8(ballot.Choice),
			Weight:     types.NewUint256(ballot.Weight),
		}
		result := txn.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "proposal_id"},
				{Name: "voter"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"choice", "weight"}),
		}).Create(&tmpItem)
		return result.Error
	})
}

func saveProposal(db *gorm.DB, proposal governance.Proposal) error {
	tmpItem := proposalToModel(proposal)
	result := db.Model(&models.Proposal{}).
		Where("id = ?", proposal.ID).
		Select("*").
		Updates(&tmpItem)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("proposal %d: %w", proposal.ID, governance.ErrProposalNotFound)
	}
	return nil
}

// Ballots returns the ballots of a proposal in first-vote order
func (p *ProposalStore) Ballots(ctx context.Context, id uint64) ([]governance.Ballot, error) {
	var tmpItems []models.Ballot
	result := p.store.db.WithContext(ctx).
		Where("proposal_id = ?", id).
		Order("id").
		Find(&tmpItems)
	if result.Error != nil {
		return nil, result.Error
	}
	ret := make([]governance.Ballot, 0, len(tmpItems))
	for _, item := range tmpItems {
		ret = append(ret, governance.Ballot{
			ProposalID: item.ProposalID,
			Voter:      common.Address(item.Voter),
			Choice:     governance.Choice(item.Choice),
			Weight:     item.Weight.Int(),
		})
	}
	return ret, nil
}

func (p *ProposalStore) List(ctx context.Context) ([]governance.Proposal, error) {
	var tmpItems []models.Proposal
	if result := p.store.db.WithContext(ctx).Order("id").Find(&tmpItems); result.Error != nil {
		return nil, result.Error
	}
	ret := make([]governance.Proposal, 0, len(tmpItems))
	for _, item := range tmpItems {
		ret = append(ret, proposalFromModel(item))
	}
	return ret, nil
}

func (p *ProposalStore) Count(ctx context.Context) (uint64, error) {
	var count int64
	result := p.store.db.WithContext(ctx).Model(&models.Proposal{}).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return uint64(count), nil //nolint:gosec
}

func proposalToModel(p governance.Proposal) models.Proposal {
	return models.Proposal{
		ID:              p.ID,
		Creator:         types.Address(p.Creator),
		Hash:            p.Hash.Bytes(),
		Start:           types.Uint64(p.Start),
		Duration:        types.Uint64(p.Duration),
		WithdrawAddress: types.Address(p.WithdrawAddress),
		WithdrawAmount:  types.NewUint256(p.WithdrawAmount),
		ForWeight:       types.NewUint256(p.ForWeight),
		AgainstWeight:   types.NewUint256(p.AgainstWeight),
		Quorum:          p.Quorum,
		Status:          uint8(p.Status),
		ExecutedAt:      types.Uint64(p.ExecutedAt),
		TransferError:   p.TransferError,
	}
}

func proposalFromModel(m models.Proposal) governance.Proposal {
	return governance.Proposal{
		ID:              m.ID,
		Creator:         common.Address(m.Creator),
		Hash:            common.BytesToHash(m.Hash),
		Start:           uint64(m.Start),
		Duration:        uint64(m.Duration),
		WithdrawAddress: common.Address(m.WithdrawAddress),
		WithdrawAmount:  m.WithdrawAmount.Int(),
		ForWeight:       m.ForWeight.Int(),
		AgainstWeight:   m.AgainstWeight.Int(),
		Quorum:          m.Quorum,
		Status:          governance.Status(m.Status),
		ExecutedAt:      uint64(m.ExecutedAt),
		TransferError:   m.TransferError,
	}
}
