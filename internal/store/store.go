package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aquaa/markly/internal/model"
	"github.com/mattn/go-sqlite3"
)

// Table names used by bulk operations.
const (
	TableStudents      = "students"
	TableAttendance    = "attendance"
	TableNotifications = "notifications"
)

var (
	// ErrNotFound signals a point query with no matching row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict signals an insert that violated a uniqueness constraint,
	// e.g. a second attendance record for the same (student, date).
	ErrConflict = errors.New("store: conflict")
)

// Store wraps the SQLite database holding students, attendance and
// notifications.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and applies the
// schema. WAL mode keeps readers unblocked during the import transaction.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The import path toggles foreign_keys on the connection; with more
	// than one connection the pragma would only affect one of them.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		student_id       INTEGER PRIMARY KEY AUTOINCREMENT,
		name             TEXT NOT NULL,
		gender           TEXT NOT NULL,
		mobile           TEXT NOT NULL,
		guardian_mobile  TEXT NOT NULL,
		current_semester INTEGER NOT NULL,
		section          TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance (
		attendance_id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id    INTEGER NOT NULL REFERENCES students(student_id) ON DELETE CASCADE,
		date          INTEGER NOT NULL,
		is_present    INTEGER NOT NULL,
		is_notified   INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_student_date ON attendance(student_id, date);

	CREATE TABLE IF NOT EXISTS notifications (
		notification_id INTEGER PRIMARY KEY AUTOINCREMENT,
		title           TEXT NOT NULL,
		message         TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		is_read         INTEGER NOT NULL DEFAULT 0,
		severity        TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// SetForeignKeys toggles referential-integrity enforcement on the
// connection. SQLite ignores this pragma inside a transaction, so bulk
// callers must flip it before Begin and restore it after Commit/Rollback.
func (s *Store) SetForeignKeys(ctx context.Context, enabled bool) error {
	pragma := "PRAGMA foreign_keys = OFF"
	if enabled {
		pragma = "PRAGMA foreign_keys = ON"
	}
	_, err := s.db.ExecContext(ctx, pragma)
	return err
}

// Tx exposes the subset of operations that run inside a transaction.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction. All writes commit together or the
// transaction is rolled back and fn's error is returned.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DeleteAll removes every row from the named table.
func (t *Tx) DeleteAll(ctx context.Context, table string) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM "+table)
	return err
}

// ResetSequence clears the AUTOINCREMENT counter for the named table so
// the next insert starts numbering from 1.
func (t *Tx) ResetSequence(ctx context.Context, table string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, table)
	return err
}

// InsertStudent inserts inside the transaction, returning the new ID.
func (t *Tx) InsertStudent(ctx context.Context, st *model.Student) (int64, error) {
	return insertStudent(ctx, t.tx, st)
}

// InsertAttendance inserts inside the transaction, returning the new ID.
// A (student, date) collision yields ErrConflict.
func (t *Tx) InsertAttendance(ctx context.Context, a *model.Attendance) (int64, error) {
	return insertAttendance(ctx, t.tx, a)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertStudent(ctx context.Context, db execer, st *model.Student) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO students (name, gender, mobile, guardian_mobile, current_semester, section)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.Name, st.Gender, st.Mobile, st.GuardianMobile, st.CurrentSemester, st.Section,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	st.ID = id
	return id, nil
}

func insertAttendance(ctx context.Context, db execer, a *model.Attendance) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO attendance (student_id, date, is_present, is_notified) VALUES (?, ?, ?, ?)`,
		a.StudentID, a.Date, a.Present, a.Notified,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

// -------- Students --------

func (s *Store) InsertStudent(ctx context.Context, st *model.Student) (int64, error) {
	return insertStudent(ctx, s.db, st)
}

func (s *Store) UpdateStudent(ctx context.Context, st *model.Student) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE students SET name = ?, gender = ?, mobile = ?, guardian_mobile = ?, current_semester = ?, section = ?
		 WHERE student_id = ?`,
		st.Name, st.Gender, st.Mobile, st.GuardianMobile, st.CurrentSemester, st.Section, st.ID,
	)
	return err
}

// DeleteStudent removes a student; attendance rows cascade.
func (s *Store) DeleteStudent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE student_id = ?`, id)
	return err
}

func (s *Store) StudentByID(ctx context.Context, id int64) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT student_id, name, gender, mobile, guardian_mobile, current_semester, section
		 FROM students WHERE student_id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.Gender, &st.Mobile, &st.GuardianMobile, &st.CurrentSemester, &st.Section)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListStudents returns all students ordered by name ascending, the order
// the export document uses.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, name, gender, mobile, guardian_mobile, current_semester, section
		 FROM students ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Gender, &st.Mobile, &st.GuardianMobile, &st.CurrentSemester, &st.Section); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *Store) StudentsBySemester(ctx context.Context, semester int) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, name, gender, mobile, guardian_mobile, current_semester, section
		 FROM students WHERE current_semester = ? ORDER BY name ASC`, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Gender, &st.Mobile, &st.GuardianMobile, &st.CurrentSemester, &st.Section); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// Semesters returns the distinct semesters that currently have students.
func (s *Store) Semesters(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT current_semester FROM students ORDER BY current_semester ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var semesters []int
	for rows.Next() {
		var sem int
		if err := rows.Scan(&sem); err != nil {
			return nil, err
		}
		semesters = append(semesters, sem)
	}
	return semesters, rows.Err()
}

// -------- Attendance --------

func (s *Store) InsertAttendance(ctx context.Context, a *model.Attendance) (int64, error) {
	return insertAttendance(ctx, s.db, a)
}

func (s *Store) UpdateAttendance(ctx context.Context, a *model.Attendance) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE attendance SET student_id = ?, date = ?, is_present = ?, is_notified = ? WHERE attendance_id = ?`,
		a.StudentID, a.Date, a.Present, a.Notified, a.ID,
	)
	return err
}

func (s *Store) DeleteAttendance(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attendance WHERE attendance_id = ?`, id)
	return err
}

// AttendanceByStudentAndDate is the point query backing the per-day
// reconciliation rule.
func (s *Store) AttendanceByStudentAndDate(ctx context.Context, studentID, date int64) (*model.Attendance, error) {
	var a model.Attendance
	err := s.db.QueryRowContext(ctx,
		`SELECT attendance_id, student_id, date, is_present, is_notified
		 FROM attendance WHERE student_id = ? AND date = ? LIMIT 1`, studentID, date,
	).Scan(&a.ID, &a.StudentID, &a.Date, &a.Present, &a.Notified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttendance returns every record ordered by date then student ID,
// the order the export document uses.
func (s *Store) ListAttendance(ctx context.Context) ([]model.Attendance, error) {
	return s.scanAttendance(ctx,
		`SELECT attendance_id, student_id, date, is_present, is_notified
		 FROM attendance ORDER BY date ASC, student_id ASC`)
}

func (s *Store) AttendanceForStudent(ctx context.Context, studentID, from, to int64) ([]model.Attendance, error) {
	return s.scanAttendance(ctx,
		`SELECT attendance_id, student_id, date, is_present, is_notified
		 FROM attendance WHERE student_id = ? AND date BETWEEN ? AND ? ORDER BY date ASC`,
		studentID, from, to)
}

func (s *Store) scanAttendance(ctx context.Context, query string, args ...any) ([]model.Attendance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.Attendance
	for rows.Next() {
		var a model.Attendance
		if err := rows.Scan(&a.ID, &a.StudentID, &a.Date, &a.Present, &a.Notified); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// AbsenteesPendingNotify returns IDs of students absent on date whose
// absence has not been notified yet.
func (s *Store) AbsenteesPendingNotify(ctx context.Context, date int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id FROM attendance WHERE date = ? AND is_present = 0 AND is_notified = 0 ORDER BY student_id ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// -------- Notifications --------

func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (title, message, timestamp, is_read, severity) VALUES (?, ?, ?, ?, ?)`,
		n.Title, n.Message, n.Timestamp, n.Read, n.Severity,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	n.ID = id
	return id, nil
}

func (s *Store) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT notification_id, title, message, timestamp, is_read, severity
		 FROM notifications ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Timestamp, &n.Read, &n.Severity); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE notification_id = ?`, id)
	return err
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1`)
	return err
}

func (s *Store) UnreadNotificationCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE is_read = 0`).Scan(&n)
	return n, err
}
