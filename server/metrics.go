// Copyright 2025 RelayCore
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

package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycore_requests_total",
			Help: "Total HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relaycore_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		},
	)
	dispatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycore_dispatch_items_total",
			Help: "Batch dispatch item outcomes by channel",
		},
		[]string{"channel", "status"},
	)
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycore_jobs_submitted_total",
			Help: "AI jobs submitted by type",
		},
		[]string{"type"},
	)
	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaycore_rate_limited_total",
			Help: "Requests rejected by the per-organization rate limiter",
		},
	)
)

// metricsOnce ensures metrics are registered only once
var metricsOnce sync.Once

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(requestsTotal)
		prometheus.MustRegister(requestDuration)
		prometheus.MustRegister(dispatchItemsTotal)
		prometheus.MustRegister(jobsSubmittedTotal)
		prometheus.MustRegister(rateLimitedTotal)
	})
}
