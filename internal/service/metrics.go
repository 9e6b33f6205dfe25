package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transaction_transitions_total",
		Help: "Committed payment transaction status changes",
	}, []string{"category", "status"})

	fulfillmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_fulfillment_failures_total",
		Help: "Verify calls rolled back because fulfillment failed",
	}, []string{"category"})

	withdrawalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_withdrawal_transitions_total",
		Help: "Committed withdrawal request status changes",
	}, []string{"status"})

	giftEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_gift_events_total",
		Help: "Committed gift sends and redemptions",
	}, []string{"event", "payment"})
)
