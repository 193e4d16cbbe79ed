package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts successful session transitions by action
	// (time_in, time_out, approve, reject).
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itrack_attendance_transitions_total",
		Help: "Attendance session transitions applied.",
	}, []string{"action"})

	// Conflicts counts transitions refused because of session state.
	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itrack_attendance_conflicts_total",
		Help: "Attendance transitions refused with a state conflict.",
	}, []string{"action"})

	// UploadAttempts counts photo provider attempts by outcome
	// (ok, error, rejected, open).
	UploadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itrack_photo_upload_attempts_total",
		Help: "Photo upload attempts per provider.",
	}, []string{"provider", "outcome"})

	// Migration counts records seen by the id migration by outcome.
	Migration = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itrack_attendance_migration_records_total",
		Help: "Records processed by the attendance id migration.",
	}, []string{"outcome"})

	// Verifications counts photo verification jobs by outcome.
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itrack_photo_verifications_total",
		Help: "Photo verification jobs processed by the worker.",
	}, []string{"outcome"})
)
