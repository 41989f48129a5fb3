package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wizardsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_wizards_opened_total",
			Help: "Checkout wizards opened, by source.",
		},
		[]string{"source"},
	)

	wizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_transitions_total",
			Help: "Wizard transition attempts, by event and result.",
		},
		[]string{"event", "result"},
	)

	orchestrationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_orchestration_total",
			Help: "Order and payment protocol outcomes, by stage and result.",
		},
		[]string{"stage", "result"},
	)

	orchestrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_checkout_orchestration_duration_seconds",
			Help:    "Duration of the order and payment protocol.",
			Buckets: prometheus.DefBuckets,
		},
	)

	verificationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_verification_total",
			Help: "Post-payment verifications, by the tier that answered.",
		},
		[]string{"source"},
	)
)
