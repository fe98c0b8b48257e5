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

// Package scenario runs scripted governance sessions described in YAML
// against an in-process service
package scenario

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	ActionMint            = "mint"
	ActionStake           = "stake"
	ActionUnstake         = "unstake"
	ActionFund            = "fund"
	ActionFault           = "fault"
	ActionPropose         = "propose"
	ActionVoteFor         = "voteFor"
	ActionVoteAgainst     = "voteAgainst"
	ActionAdvance         = "advance"
	ActionExecute         = "execute"
	ActionRetryTransfer   = "retryTransfer"
	ActionReconcile       = "reconcileTransfer"
	ActionStats           = "stats"
	ActionBalance         = "balance"
	ActionStartElection   = "startElection"
	ActionAddCandidate    = "addCandidate"
	ActionVoteInElection  = "voteInElection"
	ActionExecuteElection = "executeElection"
)

// well-known account names
const (
	AccountGovernor  = "governor"
	AccountAuthority = "authority"
	AccountTreasury  = "treasury"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a named sequence of steps. Accounts maps names used by the
// steps to hex addresses; a step may also use a hex address directly
type Scenario struct {
	Name                  string            `yaml:"name"`
	Governor              string            `yaml:"governor"`
	ElectionAuthority     string            `yaml:"electionAuthority"`
	Executor              string            `yaml:"executor"`
	Treasury              string            `yaml:"treasury"`
	WinnerPolicy          string            `yaml:"winnerPolicy"`
	Accounts              map[string]string `yaml:"accounts"`
	Steps                 []Step            `yaml:"steps"`
	ClockStart            uint64            `yaml:"clockStart"`
	QuorumThreshold       uint64            `yaml:"quorumThreshold"`
	VotingPeriod          uint64            `yaml:"votingPeriod"`
	ElectionPreparePeriod uint64            `yaml:"electionPreparePeriod"`
	ElectionVotingPeriod  uint64            `yaml:"electionVotingPeriod"`
}

// Step is one action. Amounts are whole tokens
type Step struct {
	Expect      *Expectation   `yaml:"expect,omitempty"`
	Candidate   *CandidateSpec `yaml:"candidate,omitempty"`
	Action      string         `yaml:"action"`
	Caller      string         `yaml:"caller,omitempty"`
	Account     string         `yaml:"account,omitempty"`
	To          string         `yaml:"to,omitempty"`
	Op          string         `yaml:"op,omitempty"`
	Message     string         `yaml:"message,omitempty"`
	ExpectError string         `yaml:"expectError,omitempty"`
	Amount      uint64         `yaml:"amount,omitempty"`
	Proposal    uint64         `yaml:"proposal,omitempty"`
	By          uint64         `yaml:"by,omitempty"`
	Choice      uint64         `yaml:"choice,omitempty"`
	// Paid settles a reconcileTransfer step
	Paid bool `yaml:"paid,omitempty"`
}

type CandidateSpec struct {
	ID         uint64 `yaml:"id"`
	Address    string `yaml:"address"`
	Name       string `yaml:"name"`
	LectureURL string `yaml:"lectureURL"`
}

// Expectation is checked by the stats and balance steps
type Expectation struct {
	For     *uint64 `yaml:"for,omitempty"`
	Against *uint64 `yaml:"against,omitempty"`
	Quorum  *uint64 `yaml:"quorum,omitempty"`
	Passed  *bool   `yaml:"passed,omitempty"`
	Tokens  *uint64 `yaml:"tokens,omitempty"`
}

// Load reads and validates a scenario file
func Load(path string) (*Scenario, error) {
	return LoadWithBase(path, Scenario{})
}

// LoadWithBase reads a scenario file over the settings in base, so that
// values missing from the file keep the base values
func LoadWithBase(path string, base Scenario) (*Scenario, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading scenario file: %w", err)
	}
	return ParseWithBase(buf, base)
}

// Parse decodes and validates a scenario
func Parse(buf []byte) (*Scenario, error) {
	return ParseWithBase(buf, Scenario{})
}

func ParseWithBase(buf []byte, base Scenario) (*Scenario, error) {
	sc := base
	sc.Accounts = maps.Clone(base.Accounts)
	sc.Steps = nil
	if err := yaml.Unmarshal(buf, &sc); err != nil {
		return nil, fmt.Errorf("error parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Scenario) Validate() error {
	if !common.IsHexAddress(s.Governor) {
		return fmt.Errorf("%w: governor must be a hex address", ErrInvalidScenario)
	}
	for _, addr := range []string{s.ElectionAuthority, s.Executor, s.Treasury} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: invalid address %q", ErrInvalidScenario, addr)
		}
	}
	for name, addr := range s.Accounts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: account %s: invalid address %q", ErrInvalidScenario, name, addr)
		}
	}
	for i, step := range s.Steps {
		if err := s.validateStep(step); err != nil {
			return fmt.Errorf("%w: step %d (%s): %w", ErrInvalidScenario, i+1, step.Action, err)
		}
	}
	return nil
}

func (s *Scenario) validateStep(step Step) error {
	if step.ExpectError != "" {
		if _, ok := errorsByName[step.ExpectError]; !ok {
			return fmt.Errorf("unknown error name %q", step.ExpectError)
		}
	}
	switch step.Action {
	case ActionMint, ActionStake, ActionUnstake:
		if step.Account == "" {
			return errors.New("account is required")
		}
	case ActionFund, ActionExecuteElection, ActionStartElection, ActionAdvance:
	case ActionFault:
		if step.Op == "" {
			return errors.New("op is required")
		}
	case ActionPropose:
		if step.To == "" {
			return errors.New("to is required")
		}
	case ActionVoteFor, ActionVoteAgainst, ActionVoteInElection:
		if step.Caller == "" {
			return errors.New("caller is required")
		}
	case ActionExecute, ActionRetryTransfer, ActionReconcile, ActionStats:
		if step.Proposal == 0 {
			return errors.New("proposal is required")
		}
	case ActionBalance:
		if step.Account == "" || step.Expect == nil || step.Expect.Tokens == nil {
			return errors.New("account and expect.tokens are required")
		}
	case ActionAddCandidate:
		if step.Candidate == nil {
			return errors.New("candidate is required")
		}
		if !common.IsHexAddress(step.Candidate.Address) {
			if _, ok := s.Accounts[step.Candidate.Address]; !ok {
				return fmt.Errorf("invalid candidate address %q", step.Candidate.Address)
			}
		}
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	for _, ref := range []string{step.Caller, step.Account, step.To} {
		if ref == "" {
			continue
		}
		if _, err := s.resolve(ref); err != nil {
			return err
		}
	}
	return nil
}

// resolve turns an account name or hex address into an address
func (s *Scenario) resolve(ref string) (common.Address, error) {
	switch strings.ToLower(ref) {
	case AccountGovernor:
		return common.HexToAddress(s.Governor), nil
	case AccountAuthority:
		return s.authority(), nil
	case AccountTreasury:
		return s.treasury(), nil
	}
	if addr, ok := s.Accounts[ref]; ok {
		return common.HexToAddress(addr), nil
	}
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	return common.Address{}, fmt.Errorf("unknown account %q", ref)
}

func (s *Scenario) authority() common.Address {
	if s.ElectionAuthority != "" {
		return common.HexToAddress(s.ElectionAuthority)
	}
	return common.HexToAddress(s.Governor)
}

// the treasury defaults to a fixed address that no scenario account is
// likely to use
func (s *Scenario) treasury() common.Address {
	if s.Treasury != "" {
		return common.HexToAddress(s.Treasury)
	}
	return common.HexToAddress("0x7ea5000000000000000000000000000000000000")
}
