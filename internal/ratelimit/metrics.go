package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	decisionAllowed = "allowed"
	decisionDenied  = "denied"
	decisionError   = "error"
)

var rateLimitDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bastion_ratelimit_decisions_total",
		Help: "Total number of rate limit decisions by policy and outcome",
	},
	[]string{"policy", "decision"},
)
