package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aquaa/markly/internal/metrics"
	"github.com/aquaa/markly/internal/notify"
	"github.com/aquaa/markly/internal/store"
)

// Format selects the export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// Exporter reads the whole dataset and feeds it to the chosen codec.
// Export never partially succeeds: any failure yields an error and no
// document.
type Exporter struct {
	store    *store.Store
	notifier *notify.Notifier
	log      *slog.Logger
}

func NewExporter(st *store.Store, notifier *notify.Notifier) *Exporter {
	return &Exporter{
		store:    st,
		notifier: notifier,
		log:      slog.Default().With("component", "exporter"),
	}
}

// Export serializes every student and attendance record. Students are
// read in name order and attendance in (date, student) order, matching
// the document's declared ordering.
func (e *Exporter) Export(ctx context.Context, format Format) ([]byte, error) {
	students, err := e.store.ListStudents(ctx)
	if err != nil {
		return nil, e.fail(ctx, format, fmt.Errorf("read students: %w", err))
	}
	records, err := e.store.ListAttendance(ctx)
	if err != nil {
		return nil, e.fail(ctx, format, fmt.Errorf("read attendance: %w", err))
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = EncodeJSON(students, records)
	case FormatXLSX:
		data, err = EncodeWorkbook(students, records)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, e.fail(ctx, format, err)
	}

	metrics.ExportsTotal.WithLabelValues(string(format), "ok").Inc()
	e.notifier.Record(ctx, "Data Export Report",
		fmt.Sprintf("Exported %d students and %d attendance records (%s).", len(students), len(records), format),
		notify.SeveritySuccess)
	e.log.Info("export finished", "format", format, "students", len(students), "attendance", len(records))
	return data, nil
}

func (e *Exporter) fail(ctx context.Context, format Format, err error) error {
	metrics.ExportsTotal.WithLabelValues(string(format), "error").Inc()
	e.notifier.Record(ctx, "Data Export Failed", err.Error(), notify.SeverityError)
	e.log.Error("export failed", "format", format, "err", err)
	return err
}
