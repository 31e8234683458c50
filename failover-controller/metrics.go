package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rds_failover_invocations_total",
		Help: "Total number of failover check invocations by outcome",
	}, []string{"outcome"})

	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rds_failover_state_transitions_total",
		Help: "Total number of failover state machine transitions",
	}, []string{"from", "to"})

	statusQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rds_failover_status_query_duration_seconds",
		Help:    "Duration of database status queries in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	}, []string{"region"})

	promotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rds_failover_promotions_total",
		Help: "Total number of replica promotion calls by result",
	}, []string{"result"})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rds_failover_alerts_total",
		Help: "Total number of operator alerts by delivery result",
	}, []string{"result"})
)
