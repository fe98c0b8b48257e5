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

// Package fundgov wires the governance and election engines to their
// storage, event bus and journal
package fundgov

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blinklabs-io/fundgov/database"
	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/event"
	"github.com/blinklabs-io/fundgov/governance"
	"github.com/blinklabs-io/fundgov/oracle"
)

const defaultShutdownTimeout = 30 * time.Second

// StakeReleaser is implemented by stake oracles that lock stake while a
// vote is open. The service releases the locks once a proposal or election
// round is finished
type StakeReleaser interface {
	Release(kind oracle.VoteKind, subject uint64)
}

type Service struct {
	eventBus      *event.EventBus
	db            *database.Database
	governance    *governance.Engine
	election      *election.Engine
	shutdownFuncs []func(context.Context) error
	config        Config
	mu            sync.Mutex
	started       bool
	stopped       bool
}

func New(cfg Config) (*Service, error) {
	s := &Service{
		config: cfg,
	}
	if err := s.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// Start opens storage, builds the engines and restores their state
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("service already started")
	}
	s.started = true
	// Configure tracing
	if s.config.tracing {
		if err := s.setupTracing(ctx); err != nil {
			return err
		}
	}
	s.eventBus = event.NewEventBus(s.config.promRegistry, s.config.logger)
	db, err := database.New(database.Config{
		Logger:         s.config.logger,
		PromRegistry:   s.config.promRegistry,
		DataDir:        s.config.dataDir,
		MetadataPlugin: s.config.metadataPlugin,
		Journal:        s.config.journal,
		Tracing:        s.config.tracing,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	if j := db.Journal(); j != nil {
		j.Subscribe(s.eventBus)
	}
	gov, err := governance.NewEngine(governance.EngineConfig{
		Logger:          s.config.logger,
		PromRegistry:    s.config.promRegistry,
		EventBus:        s.eventBus,
		Clock:           s.config.clock,
		Balances:        s.config.balances,
		Stakes:          s.config.stakes,
		Store:           db.Proposals(),
		Governor:        s.config.governor,
		Executor:        s.config.executor,
		QuorumThreshold: s.config.quorumThreshold,
		VotingPeriod:    s.config.votingPeriod,
	})
	if err != nil {
		return fmt.Errorf("failed to create governance engine: %w", err)
	}
	if err := gov.Load(ctx); err != nil {
		return fmt.Errorf("failed to load proposals: %w", err)
	}
	s.governance = gov
	authority := s.config.electionAuthority
	if authority == (common.Address{}) {
		authority = s.config.governor
	}
	elec, err := election.NewEngine(election.EngineConfig{
		Logger:        s.config.logger,
		PromRegistry:  s.config.promRegistry,
		EventBus:      s.eventBus,
		Clock:         s.config.clock,
		Balances:      s.config.balances,
		Stakes:        s.config.stakes,
		Store:         db.Elections(),
		Policy:        s.config.winnerPolicy,
		Authority:     authority,
		PreparePeriod: s.config.electionPreparePeriod,
		VotingPeriod:  s.config.electionVotingPeriod,
	})
	if err != nil {
		return fmt.Errorf("failed to create election engine: %w", err)
	}
	if err := elec.Load(ctx); err != nil {
		return fmt.Errorf("failed to load election: %w", err)
	}
	s.election = elec
	if releaser, ok := s.config.stakes.(StakeReleaser); ok {
		s.subscribeReleases(releaser)
	}
	s.config.logger.Info(
		"governance service started",
		"component", "fundgov",
		"governor", s.config.governor.Hex(),
		"election_authority", authority.Hex(),
		"quorum_threshold", s.config.quorumThreshold,
	)
	return nil
}

func (s *Service) subscribeReleases(releaser StakeReleaser) {
	sub := &releaseSubscriber{releaser: releaser}
	for _, eventType := range []event.EventType{
		event.WithdrawProposalFinishedEventType,
		event.WithdrawTransferFailedEventType,
		event.ElectionFinishedEventType,
	} {
		s.eventBus.RegisterSubscriber(eventType, sub)
	}
}

// releaseSubscriber drops stake locks for finished governance items
type releaseSubscriber struct {
	releaser StakeReleaser
}

func (r *releaseSubscriber) Deliver(evt event.Event) error {
	switch data := evt.Data.(type) {
	case event.WithdrawProposalFinishedEvent:
		r.releaser.Release(oracle.VoteKindProposal, data.ID)
	case event.WithdrawTransferFailedEvent:
		r.releaser.Release(oracle.VoteKindProposal, data.ID)
	case event.ElectionFinishedEvent:
		r.releaser.Release(oracle.VoteKindElection, data.Round)
	}
	return nil
}

func (r *releaseSubscriber) Close() {}

// Stop shuts down the event bus, flushes tracing and closes storage. It is
// safe to call more than once
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	shutdownTimeout := defaultShutdownTimeout
	if s.config.shutdownTimeout > 0 {
		shutdownTimeout = s.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var err error
	if s.eventBus != nil {
		s.eventBus.Stop()
	}
	for _, fn := range s.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	s.shutdownFuncs = nil
	if s.db != nil {
		if dbErr := s.db.Close(); dbErr != nil {
			err = errors.Join(err, fmt.Errorf("database shutdown: %w", dbErr))
		}
	}
	s.config.logger.Debug("shutdown complete", "component", "fundgov")
	return err
}

// Governance returns the proposal engine. It is nil until Start succeeds
func (s *Service) Governance() *governance.Engine {
	return s.governance
}

// Election returns the election engine. It is nil until Start succeeds
func (s *Service) Election() *election.Engine {
	return s.election
}

func (s *Service) EventBus() *event.EventBus {
	return s.eventBus
}

func (s *Service) Database() *database.Database {
	return s.db
}
