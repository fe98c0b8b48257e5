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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/fundgov/database"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/internal/config"
)

func openDatabase(cfg *config.Config, logger *slog.Logger, journal bool) (*database.Database, error) {
	if cfg.MetadataPlugin == database.MetadataPluginMemory {
		return nil, errors.New("the memory metadata plugin keeps nothing to inspect")
	}
	return database.New(database.Config{
		Logger:         logger,
		DataDir:        cfg.DatabasePath,
		MetadataPlugin: cfg.MetadataPlugin,
		Journal:        journal,
	})
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored proposals",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			db, err := openDatabase(cfg, logger, false)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			defer db.Close()
			proposals, err := db.Proposals().List(cmd.Context())
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1) //nolint:gocritic
			}
			details := make([]governance.Detail, 0, len(proposals))
			for _, p := range proposals {
				details = append(details, storedDetail(p))
			}
			renderProposals(cmd.OutOrStdout(), details)
		},
	}
}

func storedDetail(p governance.Proposal) governance.Detail {
	forPct, againstPct := percentages(p)
	return governance.Detail{
		Proposal: p,
		Stats: governance.Stats{
			For:     forPct,
			Against: againstPct,
			Quorum:  p.Quorum,
		},
		IsOpening: p.IsOpening(),
		IsPassed:  p.IsPassed(),
	}
}

func showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <proposal-id>",
		Short: "Show a stored proposal and its ballots",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			if err := showProposal(cmd, cfg, logger, args[0]); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
}

func showProposal(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, arg string) error {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid proposal id %q: %w", arg, err)
	}
	db, err := openDatabase(cfg, logger, false)
	if err != nil {
		return err
	}
	defer db.Close()
	p, err := db.Proposals().Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	ballots, err := db.Proposals().Ballots(cmd.Context(), id)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	renderProposals(w, []governance.Detail{storedDetail(p)})
	if p.TransferError != "" {
		fmt.Fprintf(w, "Transfer error: %s\n", p.TransferError)
	}
	renderBallots(w, ballots)
	return nil
}
