// Package metrics содержит prometheus-метрики жизненного цикла задач и бронирований.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksCreated — количество созданных задач.
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeslice_tasks_created_total",
		Help: "Number of tasks created.",
	})

	// ApplicationsSubmitted — количество поданных откликов.
	ApplicationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeslice_applications_submitted_total",
		Help: "Number of applications submitted.",
	})

	// AcceptCascades — количество выполненных каскадов принятия отклика.
	AcceptCascades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeslice_accept_cascades_total",
		Help: "Number of completed application accept cascades.",
	})

	// BookingTransitions — переходы статусов бронирований по целевому статусу.
	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeslice_booking_transitions_total",
		Help: "Booking status transitions by target status.",
	}, []string{"to"})

	// CreditsTransferred — суммарный объём переведённых кредитов.
	CreditsTransferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeslice_credits_transferred_total",
		Help: "Total credits moved by completion transfers.",
	})
)
