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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type journalMetrics struct {
	records      *prometheus.CounterVec
	appendErrors prometheus.Counter
	lastSequence prometheus.Gauge
}

func (m *journalMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.records = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundgov_journal_records_total",
			Help: "number of events written to the journal",
		},
		[]string{"type"},
	)
	m.appendErrors = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "fundgov_journal_append_errors_total",
			Help: "number of events that could not be written to the journal",
		},
	)
	m.lastSequence = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "fundgov_journal_sequence",
			Help: "sequence number of the last journal record",
		},
	)
}
