// Package metrics exports the Prometheus series the admin HTTP surface
// serves at /api/v1/metrics: kitchen counts, pending pizzas, order outcomes,
// heartbeat age, and recovered panics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KitchensActive tracks the number of live kitchen processes.
	KitchensActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plazza_kitchens_active",
		Help: "Current number of alive kitchen processes",
	})

	// PendingPizzas tracks total pending pizzas across all kitchens.
	PendingPizzas = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plazza_pending_pizzas",
		Help: "Current number of pending pizzas across all kitchens",
	})

	// OrdersTotal counts orders distributed, by outcome.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plazza_orders_total",
		Help: "Total orders distributed by outcome",
	}, []string{"outcome"})

	// PizzasCompletedTotal counts pizza completions reported by kitchens.
	PizzasCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plazza_pizzas_completed_total",
		Help: "Total pizzas reported completed by kitchens",
	})

	// KitchensCreatedTotal counts kitchen spawns.
	KitchensCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plazza_kitchens_created_total",
		Help: "Total kitchen processes spawned",
	})

	// KitchensReapedTotal counts kitchen reaps by reason.
	KitchensReapedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plazza_kitchens_reaped_total",
		Help: "Total kitchens reaped, by reason",
	}, []string{"reason"})

	// HeartbeatAgeSeconds tracks, per kitchen_id, the age of each tracked
	// kitchen's last heartbeat, the earliest warning sign of an
	// unresponsive kitchen before its 10s timeout elapses.
	HeartbeatAgeSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "plazza_kitchen_heartbeat_age_seconds",
		Help: "Seconds since each tracked kitchen's last heartbeat",
	}, []string{"kitchen_id"})

	// PanicsRecoveredTotal counts panics recovered by the admin HTTP
	// recovery middleware.
	PanicsRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plazza_panics_recovered_total",
		Help: "Total number of recovered panics",
	})
)
