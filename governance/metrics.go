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

package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	proposalsCreated  prometheus.Counter
	votes             *prometheus.CounterVec
	proposalsExecuted *prometheus.CounterVec
	transferFailures  prometheus.Counter
	openProposals     prometheus.Gauge
}

func (m *engineMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.proposalsCreated = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fundgov_proposals_created_total",
		Help: "total withdrawal proposals created",
	})
	m.votes = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundgov_votes_total",
			Help: "total proposal votes admitted, by choice",
		},
		[]string{"choice"},
	)
	m.proposalsExecuted = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundgov_proposals_executed_total",
			Help: "total proposals executed, by result",
		},
		[]string{"result"},
	)
	m.transferFailures = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fundgov_transfer_failures_total",
		Help: "total withdrawal transfers that failed",
	})
	m.openProposals = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "fundgov_open_proposals",
		Help: "proposals still accepting votes or awaiting execution",
	})
}
