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

package election

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Store persists election rounds, candidates and ballots
type Store interface {
	SaveRound(ctx context.Context, r Round) error
	LatestRound(ctx context.Context) (Round, bool, error)
	// AddCandidate fails with ErrDuplicateCandidate when the round already
	// has a candidate with the same ID
	AddCandidate(ctx context.Context, c Candidate) error
	Candidates(ctx context.Context, round uint64) ([]Candidate, error)
	SaveBallot(ctx context.Context, b Ballot) error
	Ballots(ctx context.Context, round uint64) ([]Ballot, error)
}

type MemoryStore struct {
	rounds     []Round
	candidates map[uint64][]Candidate
	ballots    map[uint64][]Ballot
	mu         sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[uint64][]Candidate),
		ballots:    make(map[uint64][]Ballot),
	}
}

func (s *MemoryStore) SaveRound(_ context.Context, r Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.rounds, func(existing Round) bool {
		return existing.Number == r.Number
	})
	if idx >= 0 {
		s.rounds[idx] = r
		return nil
	}
	if n := len(s.rounds); n > 0 && s.rounds[n-1].Number >= r.Number {
		return fmt.Errorf("round %d is older than round %d", r.Number, s.rounds[n-1].Number)
	}
	s.rounds = append(s.rounds, r)
	return nil
}

func (s *MemoryStore) LatestRound(_ context.Context) (Round, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rounds) == 0 {
		return Round{}, false, nil
	}
	return s.rounds[len(s.rounds)-1], true, nil
}

func (s *MemoryStore) AddCandidate(_ context.Context, c Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.candidates[c.Round] {
		if existing.ID == c.ID {
			return fmt.Errorf("candidate %d: %w", c.ID, ErrDuplicateCandidate)
		}
	}
	s.candidates[c.Round] = append(s.candidates[c.Round], c)
	return nil
}

func (s *MemoryStore) Candidates(_ context.Context, round uint64) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := slices.Clone(s.candidates[round])
	sortCandidates(ret)
	return ret, nil
}

func (s *MemoryStore) SaveBallot(_ context.Context, b Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Weight = cloneInt(b.Weight)
	ballots := s.ballots[b.Round]
	idx := slices.IndexFunc(ballots, func(existing Ballot) bool {
		return existing.Voter == b.Voter
	})
	if idx >= 0 {
		ballots[idx] = b
		return nil
	}
	s.ballots[b.Round] = append(ballots, b)
	return nil
}

func (s *MemoryStore) Ballots(_ context.Context, round uint64) ([]Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]Ballot, 0, len(s.ballots[round]))
	for _, b := range s.ballots[round] {
		b.Weight = cloneInt(b.Weight)
		ret = append(ret, b)
	}
	return ret, nil
}
