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

// Package sqlite stores proposals and elections in SQLite through gorm
package sqlite

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/blinklabs-io/fundgov/database/models"
)

const databaseFile = "fundgov.sqlite"

// in-memory databases are named so that separate stores in one process
// do not share tables
var memoryDbCounter atomic.Uint64

// Store is a SQLite-backed store. Proposals and Elections return views that
// implement the governance and election store interfaces
type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	dataDir string
	tracing bool
}

// New opens the database, creating the data directory when needed, and
// migrates the schema. An empty data directory selects an in-memory database
func New(opts ...SqliteOptionFunc) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "database")
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	var dsn string
	if s.dataDir == "" {
		dsn = fmt.Sprintf(
			"file:fundgov-%d?mode=memory&cache=shared&_pragma=busy_timeout(5000)",
			memoryDbCounter.Add(1),
		)
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
			filepath.Join(s.dataDir, databaseFile),
		)
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s.db = db
	if s.dataDir == "" {
		sqlDb, err := db.DB()
		if err != nil {
			return nil, err
		}
		// the in-memory database lives as long as its one connection
		sqlDb.SetMaxOpenConns(1)
	}
	if err := s.init(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Store) init() error {
	if s.tracing {
		if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return fmt.Errorf("configure gorm tracing: %w", err)
		}
	}
	for _, model := range models.MigrateModels {
		s.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

// DB returns the underlying gorm handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) Close() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func (s *Store) Proposals() *ProposalStore {
	return &ProposalStore{store: s}
}

func (s *Store) Elections() *ElectionStore {
	return &ElectionStore{store: s}
}
