package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gateActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_gated_actions_total",
		Help: "Actions passed through the login gate, by kind and result.",
	},
	[]string{"kind", "result"},
)
