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
	"fmt"
	"io"
	"strings"

	"github.com/holiman/uint256"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"

	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/event"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/internal/scenario"
	"github.com/blinklabs-io/fundgov/ledger"
	"github.com/blinklabs-io/fundgov/tally"
)

func newTable(w io.Writer, title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(header)
	return t
}

// formatTokens renders a base-unit amount as whole tokens
func formatTokens(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	frac := new(uint256.Int)
	whole, _ := new(uint256.Int).DivMod(v, ledger.Tokens(1), frac)
	if frac.IsZero() {
		return whole.Dec()
	}
	digits := frac.Dec()
	digits = strings.Repeat("0", ledger.Decimals-len(digits)) + digits
	return whole.Dec() + "." + strings.TrimRight(digits, "0")
}

func renderProposals(w io.Writer, details []governance.Detail) {
	t := newTable(w, "Proposals", table.Row{
		"ID", "Status", "Recipient", "Amount", "For", "Against", "Quorum", "Ends",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	for _, d := range details {
		t.AppendRow(table.Row{
			d.Proposal.ID,
			d.Proposal.Status.String(),
			d.Proposal.WithdrawAddress.Hex(),
			formatTokens(d.Proposal.WithdrawAmount),
			fmt.Sprintf("%d%%", d.Stats.For),
			fmt.Sprintf("%d%%", d.Stats.Against),
			d.Stats.Quorum,
			d.Proposal.End(),
		})
	}
	t.Render()
}

func renderBallots(w io.Writer, ballots []governance.Ballot) {
	t := newTable(w, "Ballots", table.Row{"Voter", "Choice", "Weight"})
	for _, b := range ballots {
		t.AppendRow(table.Row{b.Voter.Hex(), b.Choice.String(), formatTokens(b.Weight)})
	}
	t.Render()
}

func renderElection(w io.Writer, round election.Round, results []election.Result) {
	winner := "none"
	if round.HasWinner {
		winner = fmt.Sprintf("%d", round.Winner)
	}
	t := newTable(
		w,
		fmt.Sprintf("Election round %d (winner: %s)", round.Number, winner),
		table.Row{"Candidate", "Weight", "Voters"},
	)
	for _, r := range results {
		t.AppendRow(table.Row{r.CandidateID, formatTokens(r.Weight), r.Voters})
	}
	t.Render()
}

func renderBalances(w io.Writer, balances []scenario.AccountBalance) {
	t := newTable(w, "Balances", table.Row{"Account", "Address", "Balance", "Staked"})
	for _, b := range balances {
		t.AppendRow(table.Row{b.Name, b.Address.Hex(), formatTokens(b.Balance), formatTokens(b.Staked)})
	}
	t.Render()
}

func renderSteps(w io.Writer, steps []scenario.StepResult) {
	t := newTable(w, "Steps", table.Row{"#", "Action", "Outcome", "Events"})
	for _, s := range steps {
		outcome := "ok"
		if s.Error != "" {
			outcome = "expected error: " + s.Error
		}
		t.AppendRow(table.Row{
			s.Index,
			s.Action,
			outcome,
			strings.Join(lo.Map(s.Events, func(e event.Event, _ int) string {
				return string(e.Type)
			}), "\n"),
		})
	}
	t.Render()
}

// describeEvent summarizes an event payload on one line
func describeEvent(evt event.Event) string {
	switch data := evt.Data.(type) {
	case event.NewWithdrawProposalEvent:
		return fmt.Sprintf(
			"proposal %d: withdraw %s to %s",
			data.ID,
			formatTokens(data.WithdrawAmount),
			data.WithdrawAddress.Hex(),
		)
	case event.VoteEvent:
		choice := governance.Against
		if data.Vote {
			choice = governance.For
		}
		return fmt.Sprintf(
			"proposal %d: %s votes %s with %s",
			data.ID,
			data.Voter.Hex(),
			choice,
			formatTokens(data.Weight),
		)
	case event.WithdrawProposalFinishedEvent:
		return fmt.Sprintf(
			"proposal %d: for %d%% against %d%% quorum %d passed %t",
			data.ID,
			data.For,
			data.Against,
			data.Quorum,
			data.Passed,
		)
	case event.WithdrawTransferFailedEvent:
		return fmt.Sprintf("proposal %d: transfer failed: %s", data.ID, data.Reason)
	case event.ElectionStartedEvent:
		return fmt.Sprintf(
			"round %d: voting from %d to %d",
			data.Round,
			data.VotingFrom,
			data.VotingTo,
		)
	case event.CandidateAddedEvent:
		return fmt.Sprintf("round %d: candidate %d %q", data.Round, data.ID, data.Name)
	case event.ElectionVoteEvent:
		return fmt.Sprintf(
			"round %d: %s votes for candidate %d with %s",
			data.Round,
			data.Voter.Hex(),
			data.CandidateID,
			formatTokens(data.Weight),
		)
	case event.ElectionFinishedEvent:
		if !data.HasWinner {
			return fmt.Sprintf("round %d: no winner, %d voters", data.Round, data.Voters)
		}
		return fmt.Sprintf(
			"round %d: candidate %d wins, %d voters",
			data.Round,
			data.Winner,
			data.Voters,
		)
	default:
		return fmt.Sprintf("%v", evt.Data)
	}
}

// percentages recomputes the vote split from stored totals
func percentages(p governance.Proposal) (uint64, uint64) {
	return tally.Percentages(p.ForWeight, p.AgainstWeight)
}
