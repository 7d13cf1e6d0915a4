// Package metrics exposes Prometheus counters for the backup and
// notification pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportsTotal counts import operations by final status
	// (SUCCESS, WARNING, ERROR, INFO).
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markly_imports_total",
		Help: "Import operations by final status.",
	}, []string{"status"})

	// ImportedRowsTotal counts rows written by imports, per entity.
	ImportedRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markly_imported_rows_total",
		Help: "Rows inserted by import operations.",
	}, []string{"entity"})

	// SkippedRowsTotal counts rows excluded from imports, per entity.
	SkippedRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markly_skipped_rows_total",
		Help: "Rows skipped by import operations.",
	}, []string{"entity"})

	// ExportsTotal counts export operations by format and outcome.
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markly_exports_total",
		Help: "Export operations by format and outcome.",
	}, []string{"format", "outcome"})

	// AbsenceNotificationsTotal counts outbound absence alerts by outcome.
	AbsenceNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markly_absence_notifications_total",
		Help: "Outbound absence notifications by outcome.",
	}, []string{"outcome"})
)
