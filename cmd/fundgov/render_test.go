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

package main

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/fundgov/event"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/internal/config"
	"github.com/blinklabs-io/fundgov/internal/test/testutil"
	"github.com/blinklabs-io/fundgov/ledger"
)

func TestFormatTokens(t *testing.T) {
	half := new(uint256.Int).Div(ledger.Tokens(1), uint256.NewInt(2))
	testDefs := []struct {
		value    *uint256.Int
		expected string
	}{
		{value: nil, expected: "0"},
		{value: uint256.NewInt(0), expected: "0"},
		{value: ledger.Tokens(60), expected: "60"},
		{value: new(uint256.Int).Add(ledger.Tokens(3), half), expected: "3.5"},
		{value: uint256.NewInt(1), expected: "0.000000000000000001"},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.expected, formatTokens(testDef.value))
	}
}

func TestDescribeEvent(t *testing.T) {
	voter := testutil.Address(1)
	evt := event.NewEvent(event.VoteEventType, event.VoteEvent{
		ID:     2,
		Voter:  voter,
		Vote:   true,
		Weight: ledger.Tokens(40),
	})
	assert.Equal(
		t,
		"proposal 2: "+voter.Hex()+" votes for with 40",
		describeEvent(evt),
	)
	finished := event.NewEvent(
		event.ElectionFinishedEventType,
		event.ElectionFinishedEvent{Round: 1, Voters: 3},
	)
	assert.Equal(t, "round 1: no winner, 3 voters", describeEvent(finished))
}

func TestStoredDetail(t *testing.T) {
	p := governance.Proposal{
		ID:              1,
		WithdrawAddress: testutil.Address(9),
		WithdrawAmount:  ledger.Tokens(100),
		ForWeight:       ledger.Tokens(60),
		AgainstWeight:   ledger.Tokens(40),
		Quorum:          5,
		Status:          governance.StatusPassed,
	}
	d := storedDetail(p)
	assert.Equal(t, governance.Stats{For: 60, Against: 40, Quorum: 5}, d.Stats)
	assert.True(t, d.IsPassed)
	assert.False(t, d.IsOpening)

	var buf bytes.Buffer
	renderProposals(&buf, []governance.Detail{d})
	assert.Contains(t, buf.String(), "60%")
	assert.Contains(t, buf.String(), p.WithdrawAddress.Hex())
}

func TestScenarioBase(t *testing.T) {
	cfg := config.Defaults()
	cfg.Clock = config.ClockManual
	cfg.ClockStart = 1000
	cfg.QuorumThreshold = 3
	base := scenarioBase(cfg)
	assert.Equal(t, uint64(1000), base.ClockStart)
	assert.Equal(t, uint64(3), base.QuorumThreshold)

	cfg.Clock = config.ClockWall
	cfg.ClockStart = 0
	require.NotZero(t, scenarioBase(cfg).ClockStart)
}
