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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/fundgov/database/journal"
)

func journalCommand() *cobra.Command {
	var from uint64
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the event journal",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			db, err := openDatabase(cfg, logger, true)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			defer db.Close()
			t := newTable(cmd.OutOrStdout(), "Journal", table.Row{"Seq", "Time", "Type", "Event"})
			err = db.Journal().Iterate(from, func(rec journal.Record) error {
				evt, err := rec.Event()
				if err != nil {
					if errors.Is(err, journal.ErrUnknownEvent) {
						t.AppendRow(table.Row{rec.Seq, "", rec.Type, "unknown event"})
						return nil
					}
					return fmt.Errorf("record %d: %w", rec.Seq, err)
				}
				t.AppendRow(table.Row{
					rec.Seq,
					evt.Timestamp.UTC().Format(time.RFC3339),
					rec.Type,
					describeEvent(evt),
				})
				return nil
			})
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1) //nolint:gocritic
			}
			t.Render()
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "first sequence number to print")
	return cmd
}
