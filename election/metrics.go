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

package election

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type electionMetrics struct {
	votes      prometheus.Counter
	candidates prometheus.Gauge
	round      prometheus.Gauge
}

func (m *electionMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.votes = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fundgov_election_votes_total",
		Help: "total election votes admitted",
	})
	m.candidates = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "fundgov_candidates",
		Help: "candidates registered in the current election round",
	})
	m.round = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "fundgov_election_round",
		Help: "number of the current election round",
	})
}
