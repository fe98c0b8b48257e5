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

// Package database opens the stores behind the governance and election
// engines
package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/fundgov/database/journal"
	"github.com/blinklabs-io/fundgov/database/sqlite"
	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/governance"
)

const (
	MetadataPluginMemory = "memory"
	MetadataPluginSqlite = "sqlite"

	DefaultMetadataPlugin = MetadataPluginSqlite
)

var ErrUnknownPlugin = errors.New("unknown metadata plugin")

type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	DataDir        string
	MetadataPlugin string
	Journal        bool
	Tracing        bool
}

type Database struct {
	logger    *slog.Logger
	sqlite    *sqlite.Store
	journal   *journal.Journal
	proposals governance.ProposalStore
	elections election.Store
	plugin    string
	dataDir   string
}

// New opens the metadata store selected by the config and, when enabled,
// the event journal. An empty data directory keeps everything in memory
func New(cfg Config) (*Database, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.MetadataPlugin == "" {
		cfg.MetadataPlugin = DefaultMetadataPlugin
	}
	d := &Database{
		logger:  cfg.Logger,
		plugin:  cfg.MetadataPlugin,
		dataDir: cfg.DataDir,
	}
	switch cfg.MetadataPlugin {
	case MetadataPluginMemory:
		d.proposals = governance.NewMemoryStore()
		d.elections = election.NewMemoryStore()
	case MetadataPluginSqlite:
		store, err := sqlite.New(
			sqlite.WithLogger(cfg.Logger),
			sqlite.WithDataDir(cfg.DataDir),
			sqlite.WithTracing(cfg.Tracing),
		)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, err
		}
		d.sqlite = store
		d.proposals = store.Proposals()
		d.elections = store.Elections()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, cfg.MetadataPlugin)
	}
	if cfg.Journal {
		j, err := journal.New(
			journal.WithLogger(cfg.Logger),
			journal.WithPromRegistry(cfg.PromRegistry),
			journal.WithDataDir(cfg.DataDir),
		)
		if err != nil {
			return nil, errors.Join(err, d.Close())
		}
		d.journal = j
	}
	d.logger.Debug(
		"opened database",
		"component", "database",
		"metadata", d.plugin,
		"journal", cfg.Journal,
		"data_dir", d.dataDir,
	)
	return d, nil
}

// Proposals returns the proposal store
func (d *Database) Proposals() governance.ProposalStore {
	return d.proposals
}

// Elections returns the election store
func (d *Database) Elections() election.Store {
	return d.elections
}

// Journal returns the event journal, or nil when it is disabled
func (d *Database) Journal() *journal.Journal {
	return d.journal
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

func (d *Database) MetadataPlugin() string {
	return d.plugin
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.sqlite != nil {
		err = errors.Join(err, d.sqlite.Close())
	}
	if d.journal != nil {
		err = errors.Join(err, d.journal.Close())
	}
	return err
}
