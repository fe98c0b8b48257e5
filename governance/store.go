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
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ProposalStore persists proposals and ballots. Implementations must make
// SaveBallot atomic: the proposal totals and the ballot are written together
// or not at all
type ProposalStore interface {
	NextID(ctx context.Context) (uint64, error)
	Create(ctx context.Context, p Proposal) error
	Get(ctx context.Context, id uint64) (Proposal, error)
	Save(ctx context.Context, p Proposal) error
	SaveBallot(ctx context.Context, p Proposal, b Ballot) error
	Ballots(ctx context.Context, id uint64) ([]Ballot, error)
	List(ctx context.Context) ([]Proposal, error)
	Count(ctx context.Context) (uint64, error)
}

// MemoryStore is a ProposalStore that keeps everything in process memory
type MemoryStore struct {
	proposals map[uint64]Proposal
	ballots   map[uint64][]Ballot
	lastID    uint64
	mu        sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[uint64]Proposal),
		ballots:   make(map[uint64][]Ballot),
	}
}

func (s *MemoryStore) NextID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

func (s *MemoryStore) Create(_ context.Context, p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; ok {
		return fmt.Errorf("proposal %d already exists", p.ID)
	}
	s.proposals[p.ID] = p.clone()
	s.lastID = max(s.lastID, p.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uint64) (Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return Proposal{}, fmt.Errorf("proposal %d: %w", id, ErrProposalNotFound)
	}
	return p.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(p)
}

func (s *MemoryStore) SaveBallot(_ context.Context, p Proposal, b Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(p); err != nil {
		return err
	}
	b.Weight = cloneInt(b.Weight)
	ballots := s.ballots[p.ID]
	idx := slices.IndexFunc(ballots, func(existing Ballot) bool {
		return existing.Voter == b.Voter
	})
	if idx >= 0 {
		ballots[idx] = b
	} else {
		s.ballots[p.ID] = append(ballots, b)
	}
	return nil
}

func (s *MemoryStore) saveLocked(p Proposal) error {
	if _, ok := s.proposals[p.ID]; !ok {
		return fmt.Errorf("proposal %d: %w", p.ID, ErrProposalNotFound)
	}
	s.proposals[p.ID] = p.clone()
	return nil
}

// Ballots returns the ballots of a proposal in the order voters first voted
func (s *MemoryStore) Ballots(_ context.Context, id uint64) ([]Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.proposals[id]; !ok {
		return nil, fmt.Errorf("proposal %d: %w", id, ErrProposalNotFound)
	}
	ret := make([]Ballot, 0, len(s.ballots[id]))
	for _, b := range s.ballots[id] {
		b.Weight = cloneInt(b.Weight)
		ret = append(ret, b)
	}
	return ret, nil
}

// List returns all proposals ordered by ID
func (s *MemoryStore) List(_ context.Context) ([]Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]Proposal, 0, len(s.proposals))
	for _, id := range slices.Sorted(maps.Keys(s.proposals)) {
		ret = append(ret, s.proposals[id].clone())
	}
	return ret, nil
}

func (s *MemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.proposals)), nil
}
