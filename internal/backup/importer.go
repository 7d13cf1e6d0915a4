package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/aquaa/markly/internal/metrics"
	"github.com/aquaa/markly/internal/model"
	"github.com/aquaa/markly/internal/notify"
	"github.com/aquaa/markly/internal/store"
)

// Status classifies the outcome of an import operation.
type Status string

const (
	StatusSuccess Status = notify.SeveritySuccess
	StatusWarning Status = notify.SeverityWarning
	StatusError   Status = notify.SeverityError
	StatusInfo    Status = notify.SeverityInfo
)

// ImportResult reports what one import operation did: how many rows
// landed, which were excluded and why, and the fatal error if the
// operation as a whole failed.
type ImportResult struct {
	OperationID        string   `json:"operation_id"`
	ImportedStudents   int      `json:"imported_students"`
	ImportedAttendance int      `json:"imported_attendance"`
	SkippedStudents    []string `json:"skipped_students"`
	SkippedAttendance  []string `json:"skipped_attendance"`
	ErrorMessage       string   `json:"error_message,omitempty"`
}

// Status derives the summary classification: a fatal failure wins, then
// any skip downgrades to WARNING, then at least one imported row is
// SUCCESS, and an empty no-op import is INFO.
func (r *ImportResult) Status() Status {
	switch {
	case r.ErrorMessage != "":
		return StatusError
	case len(r.SkippedStudents) > 0 || len(r.SkippedAttendance) > 0:
		return StatusWarning
	case r.ImportedStudents > 0 || r.ImportedAttendance > 0:
		return StatusSuccess
	default:
		return StatusInfo
	}
}

func (r *ImportResult) summary() string {
	switch r.Status() {
	case StatusError:
		return "Import failed: " + r.ErrorMessage
	case StatusWarning:
		return fmt.Sprintf("Import completed with warnings. Students imported: %d, attendance imported: %d. Skipped students: %d, skipped attendance: %d.",
			r.ImportedStudents, r.ImportedAttendance, len(r.SkippedStudents), len(r.SkippedAttendance))
	case StatusSuccess:
		return fmt.Sprintf("Data import successful. Students imported: %d, attendance imported: %d.",
			r.ImportedStudents, r.ImportedAttendance)
	default:
		return "Data import completed, but no records were imported."
	}
}

// restoreStep declares one table in the load order together with the
// parent it depends on. Wipes run in reverse order (children first),
// loads in forward order (parents first); the dependency field makes the
// ordering checkable instead of a convention.
type restoreStep struct {
	Table     string
	DependsOn string
}

// restoreOrder is the load order of the replace operation.
var restoreOrder = []restoreStep{
	{Table: store.TableStudents},
	{Table: store.TableAttendance, DependsOn: store.TableStudents},
}

// sequenceResets lists every table whose identity counter restarts on
// restore. Notifications keep their rows (they are an audit log) but
// their numbering starts over with the rest of the store.
var sequenceResets = []string{store.TableStudents, store.TableAttendance, store.TableNotifications}

func init() {
	// A child listed before its parent would orphan rows on load.
	seen := map[string]bool{}
	for _, step := range restoreOrder {
		if step.DependsOn != "" && !seen[step.DependsOn] {
			panic("backup: restore order lists " + step.Table + " before its parent " + step.DependsOn)
		}
		seen[step.Table] = true
	}
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// Importer performs the full-database replace. It assumes exclusive
// access to the store for the duration of one call; callers serialize
// import requests.
type Importer struct {
	store    *store.Store
	notifier *notify.Notifier
	log      *slog.Logger
}

func NewImporter(st *store.Store, notifier *notify.Notifier) *Importer {
	return &Importer{
		store:    st,
		notifier: notifier,
		log:      slog.Default().With("component", "importer"),
	}
}

// ImportJSON decodes a consolidated JSON document and runs the replace.
// A document that cannot be parsed at all is fatal.
func (im *Importer) ImportJSON(ctx context.Context, data []byte) (*ImportResult, error) {
	doc, err := DecodeJSON(data)
	if err != nil {
		return im.fatal(ctx, err)
	}
	return im.Run(ctx, doc)
}

// ImportWorkbook decodes a two-sheet workbook and runs the replace.
func (im *Importer) ImportWorkbook(ctx context.Context, r io.Reader) (*ImportResult, error) {
	doc, err := DecodeWorkbook(r)
	if err != nil {
		return im.fatal(ctx, err)
	}
	return im.Run(ctx, doc)
}

func (im *Importer) fatal(ctx context.Context, err error) (*ImportResult, error) {
	res := newResult()
	res.ErrorMessage = err.Error()
	im.finish(ctx, res)
	return res, err
}

func newResult() *ImportResult {
	return &ImportResult{
		OperationID:       uuid.NewString(),
		SkippedStudents:   []string{},
		SkippedAttendance: []string{},
	}
}

// Run replaces the store's contents with the decoded document as one
// atomic unit. Students load before attendance so the old-to-new ID map
// is complete when attendance rows are re-keyed; per-row failures are
// recorded and skipped, and only transaction-level faults abort.
func (im *Importer) Run(ctx context.Context, doc *Document) (*ImportResult, error) {
	res := newResult()
	log := im.log.With("operation_id", res.OperationID)
	log.Info("import starting",
		"students", len(doc.Students), "attendance", len(doc.Attendance), "version", doc.Version)

	// The wipe and reload transiently violate referential integrity, so
	// enforcement goes off for the duration. SQLite ignores the pragma
	// inside a transaction, which is why it brackets the transaction
	// instead of living in it.
	if err := im.store.SetForeignKeys(ctx, false); err != nil {
		res.ErrorMessage = fmt.Sprintf("disable integrity enforcement: %v", err)
		im.finish(ctx, res)
		return res, err
	}

	txErr := im.store.WithTx(ctx, func(tx *store.Tx) error {
		// Children before parents on the way down.
		for i := len(restoreOrder) - 1; i >= 0; i-- {
			if err := tx.DeleteAll(ctx, restoreOrder[i].Table); err != nil {
				return fmt.Errorf("clear %s: %w", restoreOrder[i].Table, err)
			}
		}
		for _, table := range sequenceResets {
			if err := tx.ResetSequence(ctx, table); err != nil {
				return fmt.Errorf("reset sequence for %s: %w", table, err)
			}
		}

		idMap := im.loadStudents(ctx, tx, doc.Students, res)
		im.loadAttendance(ctx, tx, doc.Attendance, idMap, res)
		return nil
	})

	// Enforcement comes back on regardless of how the transaction ended.
	// Failing to restore it leaves the store unprotected, which is a hard
	// failure of the whole operation, not a footnote.
	fkErr := im.store.SetForeignKeys(context.WithoutCancel(ctx), true)

	if txErr != nil {
		res.ErrorMessage = "import transaction failed: " + txErr.Error()
		// The rollback already restored the pre-import state; counts in
		// the result describe work that was undone.
		res.ImportedStudents = 0
		res.ImportedAttendance = 0
		im.finish(ctx, res)
		return res, txErr
	}
	if fkErr != nil {
		res.ErrorMessage = "re-enable integrity enforcement: " + fkErr.Error()
		log.Error("re-enabling integrity enforcement failed", "err", fkErr)
		im.finish(ctx, res)
		return res, fkErr
	}

	im.finish(ctx, res)
	log.Info("import finished", "status", res.Status(),
		"imported_students", res.ImportedStudents, "imported_attendance", res.ImportedAttendance,
		"skipped_students", len(res.SkippedStudents), "skipped_attendance", len(res.SkippedAttendance))
	return res, nil
}

// loadStudents validates and inserts each student row, building the
// source-ID to store-ID map the attendance pass consults.
func (im *Importer) loadStudents(ctx context.Context, tx *store.Tx, rows []StudentRow, res *ImportResult) map[int64]int64 {
	idMap := make(map[int64]int64, len(rows))
	for _, row := range rows {
		st, reason := validateStudent(row)
		if reason != "" {
			res.SkippedStudents = append(res.SkippedStudents, reason)
			im.log.Warn("skipping student", "source_id", row.SourceID, "reason", reason)
			continue
		}
		if _, dup := idMap[row.SourceID]; dup {
			reason := fmt.Sprintf("%s (duplicate source student ID %d)", st.Name, row.SourceID)
			res.SkippedStudents = append(res.SkippedStudents, reason)
			im.log.Warn("skipping student", "source_id", row.SourceID, "reason", "duplicate source id")
			continue
		}
		newID, err := tx.InsertStudent(ctx, &st)
		if err != nil {
			res.SkippedStudents = append(res.SkippedStudents,
				fmt.Sprintf("%s (insert failed: %v)", st.Name, err))
			im.log.Warn("student insert failed", "source_id", row.SourceID, "err", err)
			continue
		}
		idMap[row.SourceID] = newID
		res.ImportedStudents++
	}
	return idMap
}

// loadAttendance re-keys each attendance row to its student's new ID and
// inserts it. The notified flag always starts false: a restored backup
// carries no outstanding-notification memory.
func (im *Importer) loadAttendance(ctx context.Context, tx *store.Tx, rows []AttendanceRow, idMap map[int64]int64, res *ImportResult) {
	for _, row := range rows {
		newID, ok := idMap[row.SourceStudentID]
		if !ok {
			res.SkippedAttendance = append(res.SkippedAttendance,
				fmt.Sprintf("attendance for source student ID %d on date %d (student not imported)", row.SourceStudentID, row.Date))
			continue
		}
		rec := model.Attendance{
			StudentID: newID,
			Date:      row.Date,
			Present:   row.Present,
			Notified:  false,
		}
		if _, err := tx.InsertAttendance(ctx, &rec); err != nil {
			if errors.Is(err, store.ErrConflict) {
				res.SkippedAttendance = append(res.SkippedAttendance,
					fmt.Sprintf("attendance for source student ID %d on date %d (duplicate for that day)", row.SourceStudentID, row.Date))
				continue
			}
			res.SkippedAttendance = append(res.SkippedAttendance,
				fmt.Sprintf("attendance for source student ID %d on date %d (insert failed: %v)", row.SourceStudentID, row.Date, err))
			im.log.Warn("attendance insert failed", "source_student_id", row.SourceStudentID, "err", err)
			continue
		}
		res.ImportedAttendance++
	}
}

// validateStudent trims and checks one decoded row. The returned reason
// is empty when the row passes.
func validateStudent(row StudentRow) (model.Student, string) {
	st := model.Student{
		Name:            strings.TrimSpace(row.Name),
		Gender:          strings.TrimSpace(row.Gender),
		Mobile:          strings.TrimSpace(row.Mobile),
		GuardianMobile:  strings.TrimSpace(row.GuardianMobile),
		CurrentSemester: int(row.CurrentSemester),
		Section:         strings.TrimSpace(row.Section),
	}
	switch {
	case st.Name == "" || st.Mobile == "" || st.GuardianMobile == "" || st.Section == "",
		st.Gender == "" || strings.EqualFold(st.Gender, "Select Gender"),
		st.CurrentSemester <= 0:
		return st, st.Name + " (validation failed: missing or invalid fields)"
	case len(st.Mobile) != 10 || !digitsOnly.MatchString(st.Mobile):
		return st, st.Name + " (validation failed: invalid mobile format)"
	case len(st.GuardianMobile) != 10 || !digitsOnly.MatchString(st.GuardianMobile):
		return st, st.Name + " (validation failed: invalid guardian mobile format)"
	}
	return st, ""
}

// finish records the summary in the notification log and bumps metrics.
func (im *Importer) finish(ctx context.Context, res *ImportResult) {
	status := res.Status()
	metrics.ImportsTotal.WithLabelValues(string(status)).Inc()
	metrics.ImportedRowsTotal.WithLabelValues("students").Add(float64(res.ImportedStudents))
	metrics.ImportedRowsTotal.WithLabelValues("attendance").Add(float64(res.ImportedAttendance))
	metrics.SkippedRowsTotal.WithLabelValues("students").Add(float64(len(res.SkippedStudents)))
	metrics.SkippedRowsTotal.WithLabelValues("attendance").Add(float64(len(res.SkippedAttendance)))
	im.notifier.Record(context.WithoutCancel(ctx), "Data Import Report", res.summary(), string(status))
}
