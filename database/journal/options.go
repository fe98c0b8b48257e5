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

package journal

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type JournalOptionFunc func(*Journal)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) JournalOptionFunc {
	return func(j *Journal) {
		j.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) JournalOptionFunc {
	return func(j *Journal) {
		j.promRegistry = registry
	}
}

// WithDataDir specifies the data directory to use for storage. The journal
// is kept in memory when it is empty
func WithDataDir(dataDir string) JournalOptionFunc {
	return func(j *Journal) {
		j.dataDir = dataDir
	}
}

// WithGc specifies whether value log garbage collection is enabled
func WithGc(enabled bool) JournalOptionFunc {
	return func(j *Journal) {
		j.gcEnabled = enabled
	}
}
