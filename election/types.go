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
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/fundgov/event"
)

const (
	DefaultPreparePeriod uint64 = 17280
	DefaultVotingPeriod  uint64 = 17280
)

// The capitalized messages are the reasons reported to callers
//
//nolint:staticcheck
var (
	ErrUnauthorized       = errors.New("Caller is not the election authority")
	ErrElectionInProgress = errors.New("The current election has not been executed")
	ErrNotPreparing       = errors.New("The election is not accepting candidates")
	ErrNotVoting          = errors.New("The election is not open for voting")
	ErrVotingNotEnded     = errors.New("The election has not ended (yet)")
	ErrDuplicateCandidate = errors.New("This candidate id is used")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrAlreadyExecuted    = errors.New("The election has already been executed")
	ErrNoBalance          = errors.New("No balance left to vote")
	ErrNoElection         = errors.New("no election has been started")
	ErrInvalidConfig      = errors.New("invalid election configuration")
)

type Phase uint8

const (
	PhaseNotStarted Phase = iota
	PhasePreparing
	PhaseVoting
	// PhaseEnded is reached when the voting window closes. Round.Executed
	// tells whether the result has been recorded yet
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhasePreparing:
		return "preparing"
	case PhaseVoting:
		return "voting"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// Round is one election. Its phase follows from the schedule and the
// current time
type Round struct {
	Number        uint64
	Start         uint64
	PreparePeriod uint64
	VotingPeriod  uint64
	Executed      bool
	HasWinner     bool
	Winner        uint64
}

func (r Round) VotingStart() uint64 {
	return r.Start + r.PreparePeriod
}

func (r Round) VotingEnd() uint64 {
	return r.VotingStart() + r.VotingPeriod
}

func (r Round) PhaseAt(now uint64) Phase {
	switch {
	case now < r.VotingStart():
		return PhasePreparing
	case now < r.VotingEnd():
		return PhaseVoting
	default:
		return PhaseEnded
	}
}

// Candidate is registered during the preparing phase of a round and never
// changes afterward
type Candidate struct {
	Round      uint64
	ID         uint64
	Address    common.Address
	Name       string
	LectureURL string
}

// Ballot is the current vote of one voter in one round
type Ballot struct {
	Round       uint64
	Voter       common.Address
	CandidateID uint64
	Weight      *uint256.Int
}

// Result is the accumulated support of one candidate
type Result struct {
	CandidateID uint64
	Weight      *uint256.Int
	Voters      uint64
}

// WinnerPolicy decides the outcome of a round from its results, which are
// ordered by candidate ID. Returning false records the round without a
// winner
type WinnerPolicy interface {
	Winner(results []Result) (uint64, bool)
}

type WinnerPolicyFunc func(results []Result) (uint64, bool)

func (f WinnerPolicyFunc) Winner(results []Result) (uint64, bool) {
	return f(results)
}

// UniqueMaxWeight elects the candidate with strictly the most weight. A tie
// for the most weight, or a round without votes, has no winner
var UniqueMaxWeight WinnerPolicy = WinnerPolicyFunc(func(results []Result) (uint64, bool) {
	var best *Result
	tied := false
	for i := range results {
		r := &results[i]
		if r.Weight == nil || r.Weight.IsZero() {
			continue
		}
		switch {
		case best == nil || r.Weight.Gt(best.Weight):
			best = r
			tied = false
		case r.Weight.Eq(best.Weight):
			tied = true
		}
	}
	if best == nil || tied {
		return 0, false
	}
	return best.CandidateID, true
})

// PolicyByName returns a named policy. The empty name and "none" return nil
func PolicyByName(name string) (WinnerPolicy, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "unique-max-weight":
		return UniqueMaxWeight, nil
	default:
		return nil, fmt.Errorf("%w: unknown winner policy %q", ErrInvalidConfig, name)
	}
}

// Receipt is returned by every mutating operation
type Receipt struct {
	Round  uint64
	Events []event.Event
}

func sortCandidates(c []Candidate) {
	slices.SortFunc(c, func(a, b Candidate) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
