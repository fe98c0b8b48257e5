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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/fundgov/database"
	"github.com/blinklabs-io/fundgov/election"
	"github.com/blinklabs-io/fundgov/governance"
)

type ctxKey string

const configContextKey ctxKey = "fundgov.config"

const (
	DefaultShutdownTimeout = "30s"

	ClockWall   = "wall"
	ClockManual = "manual"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config *Config `yaml:"config,omitempty"`
}

type Config struct {
	Governor              string `yaml:"governor"                                     split_words:"true"`
	ElectionAuthority     string `yaml:"electionAuthority"                            split_words:"true"`
	Executor              string `yaml:"executor"                                     split_words:"true"`
	DatabasePath          string `yaml:"databasePath"                                 split_words:"true"`
	MetadataPlugin        string `yaml:"metadataPlugin"        envconfig:"DATABASE_METADATA_PLUGIN"`
	Clock                 string `yaml:"clock"`
	WinnerPolicy          string `yaml:"winnerPolicy"                                 split_words:"true"`
	ShutdownTimeout       string `yaml:"shutdownTimeout"                              split_words:"true"`
	QuorumThreshold       uint64 `yaml:"quorumThreshold"                              split_words:"true"`
	VotingPeriod          uint64 `yaml:"votingPeriod"                                 split_words:"true"`
	ElectionPreparePeriod uint64 `yaml:"electionPreparePeriod"                        split_words:"true"`
	ElectionVotingPeriod  uint64 `yaml:"electionVotingPeriod"                         split_words:"true"`
	// ClockStart is the initial reading of a manual clock
	ClockStart    uint64 `yaml:"clockStart"    split_words:"true"`
	Journal       bool   `yaml:"journal"`
	Tracing       bool   `yaml:"tracing"`
	TracingStdout bool   `yaml:"tracingStdout" split_words:"true"`
}

// Defaults returns a config holding the default value of every setting
func Defaults() *Config {
	return &Config{
		DatabasePath:          ".fundgov",
		MetadataPlugin:        database.DefaultMetadataPlugin,
		Clock:                 ClockWall,
		ShutdownTimeout:       DefaultShutdownTimeout,
		QuorumThreshold:       1,
		VotingPeriod:          governance.DefaultVotingPeriod,
		ElectionPreparePeriod: election.DefaultPreparePeriod,
		ElectionVotingPeriod:  election.DefaultVotingPeriod,
	}
}

var globalConfig = Defaults()

// LoadConfig builds the config from the defaults, the config file and then
// the environment. Without an explicit file it looks for
// ~/.fundgov/fundgov.yaml and then /etc/fundgov/fundgov.yaml
func LoadConfig(configFile string) (*Config, error) {
	cfg := Defaults()
	if configFile == "" {
		// Check for config file in this path: ~/.fundgov/fundgov.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".fundgov", "fundgov.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		// Try to check for /etc/fundgov/fundgov.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/fundgov/fundgov.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		var tempCfg tempConfig
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		if tempCfg.Config != nil {
			// Overlay config values onto existing defaults
			configBytes, err := yaml.Marshal(tempCfg.Config)
			if err != nil {
				return nil, fmt.Errorf("error re-marshalling config: %w", err)
			}
			if err := yaml.Unmarshal(configBytes, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("fundgov", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks identities, plugin names and durations. An empty governor
// is allowed here since scenario files may bring their own
func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"governor":          c.Governor,
		"electionAuthority": c.ElectionAuthority,
		"executor":          c.Executor,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s address: %q", name, addr)
		}
	}
	switch c.MetadataPlugin {
	case database.MetadataPluginMemory, database.MetadataPluginSqlite:
	default:
		return fmt.Errorf(
			"invalid metadataPlugin: %q (must be 'memory' or 'sqlite')",
			c.MetadataPlugin,
		)
	}
	switch c.Clock {
	case ClockWall, ClockManual:
	default:
		return fmt.Errorf(
			"invalid clock: %q (must be 'wall' or 'manual')",
			c.Clock,
		)
	}
	if c.QuorumThreshold == 0 {
		return errors.New("invalid quorumThreshold: must be at least 1")
	}
	if _, err := election.PolicyByName(c.WinnerPolicy); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdownTimeout: %w", err)
	}
	return nil
}

func (c *Config) GovernorAddress() common.Address {
	return common.HexToAddress(c.Governor)
}

func (c *Config) ElectionAuthorityAddress() common.Address {
	return common.HexToAddress(c.ElectionAuthority)
}

func (c *Config) ExecutorAddress() common.Address {
	return common.HexToAddress(c.Executor)
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout, falling back
// to the default for a value that does not parse
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}
