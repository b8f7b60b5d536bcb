// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirrors of the durable counters. The durable store is the
// source of truth across restarts; these exist for scraping and
// alerting without hitting storage.
var (
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formwarden_checks_total",
			Help: "Total number of submission evaluations by result",
		},
		[]string{"result"}, // spam, clean
	)

	ValidatorSpamTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formwarden_validator_spam_total",
			Help: "Total number of spam verdicts per validator",
		},
		[]string{"validator"},
	)

	EvaluateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "formwarden_evaluate_duration_seconds",
			Help:    "Duration of full pipeline evaluations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	BehaviorAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formwarden_behavior_api_requests_total",
			Help: "Total number of external behavior API calls by outcome",
		},
		[]string{"outcome"}, // human, spam, error, open
	)

	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formwarden_tokens_issued_total",
			Help: "Total number of anti-replay tokens issued",
		},
	)
)
