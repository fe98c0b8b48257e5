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

// Package tally accumulates weighted, one-ballot-per-voter votes.
//
// A Tally is not safe for concurrent use; the engines guard each tally with
// the lock of the item being voted on.
package tally

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrWeightOverflow = errors.New("tally weight overflows")

// Ballot is the current vote of a single voter
type Ballot[C comparable] struct {
	Choice C
	Weight *uint256.Int
}

// CastResult describes how a Cast changed the tally. Previous is set when
// the voter replaced an earlier ballot
type CastResult[C comparable] struct {
	Previous *Ballot[C]
	First    bool
}

// Entry is a voter and their ballot, as returned by Snapshot
type Entry[C comparable] struct {
	Voter  common.Address
	Ballot Ballot[C]
}

type Tally[C comparable] struct {
	weights map[C]*uint256.Int
	ballots map[common.Address]Ballot[C]
	order   []common.Address
	total   uint256.Int
}

func New[C comparable]() *Tally[C] {
	return &Tally[C]{
		weights: make(map[C]*uint256.Int),
		ballots: make(map[common.Address]Ballot[C]),
	}
}

// Cast records a ballot. A voter that already voted has their old weight
// removed from the old choice before the new weight is added, and is still
// counted once
func (t *Tally[C]) Cast(
	voter common.Address,
	choice C,
	weight *uint256.Int,
) (CastResult[C], error) {
	if weight == nil {
		weight = new(uint256.Int)
	}
	var ret CastResult[C]
	total := new(uint256.Int).Set(&t.total)
	prev, voted := t.ballots[voter]
	if voted {
		total.Sub(total, prev.Weight)
	}
	if _, overflow := total.AddOverflow(total, weight); overflow {
		return ret, ErrWeightOverflow
	}
	if voted {
		p := prev
		ret.Previous = &p
		old := t.weights[prev.Choice]
		t.weights[prev.Choice] = new(uint256.Int).Sub(old, prev.Weight)
	} else {
		ret.First = true
		t.order = append(t.order, voter)
	}
	t.weights[choice] = new(uint256.Int).Add(t.weightOf(choice), weight)
	t.ballots[voter] = Ballot[C]{
		Choice: choice,
		Weight: new(uint256.Int).Set(weight),
	}
	t.total.Set(total)
	return ret, nil
}

// Undo reverses the Cast that returned res. No other Cast may have been
// applied to the tally in between
func (t *Tally[C]) Undo(voter common.Address, res CastResult[C]) {
	cur, ok := t.ballots[voter]
	if !ok {
		return
	}
	t.weights[cur.Choice] = new(uint256.Int).Sub(t.weightOf(cur.Choice), cur.Weight)
	t.total.Sub(&t.total, cur.Weight)
	if res.Previous == nil {
		delete(t.ballots, voter)
		if n := len(t.order); n > 0 && t.order[n-1] == voter {
			t.order = t.order[:n-1]
		}
		return
	}
	prev := *res.Previous
	t.weights[prev.Choice] = new(uint256.Int).Add(t.weightOf(prev.Choice), prev.Weight)
	t.total.Add(&t.total, prev.Weight)
	t.ballots[voter] = prev
}

// Weight returns the accumulated weight of a choice
func (t *Tally[C]) Weight(choice C) *uint256.Int {
	return new(uint256.Int).Set(t.weightOf(choice))
}

// Total returns the accumulated weight across all choices
func (t *Tally[C]) Total() *uint256.Int {
	return new(uint256.Int).Set(&t.total)
}

// Voters returns the number of distinct voters
func (t *Tally[C]) Voters() uint64 {
	return uint64(len(t.order))
}

// Ballot returns the current ballot of a voter
func (t *Tally[C]) Ballot(voter common.Address) (Ballot[C], bool) {
	b, ok := t.ballots[voter]
	if !ok {
		return b, false
	}
	b.Weight = new(uint256.Int).Set(b.Weight)
	return b, true
}

// Snapshot returns all ballots in the order voters first voted
func (t *Tally[C]) Snapshot() []Entry[C] {
	ret := make([]Entry[C], 0, len(t.order))
	for _, voter := range t.order {
		b, _ := t.Ballot(voter)
		ret = append(ret, Entry[C]{Voter: voter, Ballot: b})
	}
	return ret
}

// Choices returns every choice that has received a ballot at some point,
// in no particular order
func (t *Tally[C]) Choices() []C {
	ret := make([]C, 0, len(t.weights))
	for c := range t.weights {
		ret = append(ret, c)
	}
	return ret
}

// Voted reports whether voter has a ballot in the tally
func (t *Tally[C]) Voted(voter common.Address) bool {
	_, ok := t.ballots[voter]
	return ok
}

func (t *Tally[C]) weightOf(choice C) *uint256.Int {
	if w, ok := t.weights[choice]; ok {
		return w
	}
	return new(uint256.Int)
}

// Percentages splits 100 between two weights. The first share is
// floor(100*a/(a+b)) and the second is the remainder, so the pair always
// sums to 100. Two zero weights yield (0, 0)
func Percentages(a, b *uint256.Int) (uint64, uint64) {
	x := new(uint256.Int).Set(a)
	y := new(uint256.Int).Set(b)
	total, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		// Halving both sides keeps the ratio to within one unit
		x.Rsh(x, 1)
		y.Rsh(y, 1)
		total.Add(x, y)
	}
	if total.IsZero() {
		return 0, 0
	}
	pct, _ := new(uint256.Int).MulDivOverflow(x, uint256.NewInt(100), total)
	first := pct.Uint64()
	return first, 100 - first
}
