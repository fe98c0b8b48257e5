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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/fundgov/internal/config"
	"github.com/blinklabs-io/fundgov/internal/scenario"
)

func runCommand() *cobra.Command {
	var persist bool
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a governance scenario and print a report",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			if err := runScenario(cmd, cfg, logger, args[0], persist); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().
		BoolVar(&persist, "persist", false, "keep the run in the configured database instead of in memory")
	return cmd
}

// scenarioBase carries config settings into scenarios that leave them unset
func scenarioBase(cfg *config.Config) scenario.Scenario {
	base := scenario.Scenario{
		Governor:              cfg.Governor,
		ElectionAuthority:     cfg.ElectionAuthority,
		Executor:              cfg.Executor,
		WinnerPolicy:          cfg.WinnerPolicy,
		QuorumThreshold:       cfg.QuorumThreshold,
		VotingPeriod:          cfg.VotingPeriod,
		ElectionPreparePeriod: cfg.ElectionPreparePeriod,
		ElectionVotingPeriod:  cfg.ElectionVotingPeriod,
		ClockStart:            cfg.ClockStart,
	}
	if cfg.Clock == config.ClockWall && base.ClockStart == 0 {
		base.ClockStart = uint64(time.Now().Unix()) //nolint:gosec
	}
	return base
}

func runScenario(
	cmd *cobra.Command,
	cfg *config.Config,
	logger *slog.Logger,
	path string,
	persist bool,
) error {
	sc, err := scenario.LoadWithBase(path, scenarioBase(cfg))
	if err != nil {
		return err
	}
	opts := []scenario.RunnerOptionFunc{
		scenario.WithLogger(logger),
		scenario.WithTracing(cfg.Tracing, cfg.TracingStdout),
		scenario.WithShutdownTimeout(cfg.ShutdownTimeoutDuration()),
	}
	if persist {
		opts = append(
			opts,
			scenario.WithDataDir(cfg.DatabasePath),
			scenario.WithMetadataPlugin(cfg.MetadataPlugin),
			scenario.WithJournal(cfg.Journal),
		)
	}
	report, runErr := scenario.NewRunner(opts...).Run(cmd.Context(), sc)
	if report == nil {
		return runErr
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scenario: %s\n", report.Name)
	renderSteps(w, report.Steps)
	if len(report.Proposals) > 0 {
		renderProposals(w, report.Proposals)
	}
	if report.ElectionRound != nil {
		renderElection(w, *report.ElectionRound, report.ElectionResults)
	}
	renderBalances(w, report.Balances)
	var stepErr scenario.StepError
	if errors.As(runErr, &stepErr) {
		fmt.Fprintf(w, "FAILED at step %d (%s): %v\n", stepErr.Index, stepErr.Action, stepErr.Err)
	}
	return runErr
}
