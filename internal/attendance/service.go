// Package attendance enforces the per-day attendance rules, including
// the notified-flag reconciliation applied on every write.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aquaa/markly/internal/model"
	"github.com/aquaa/markly/internal/store"
)

// Outcome describes what one Mark call did to the record.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFlagReset Outcome = "flag_reset"
	OutcomeUnchanged Outcome = "unchanged"
)

// Service coordinates attendance writes against the store.
type Service struct {
	store *store.Store
	log   *slog.Logger
}

func NewService(st *store.Store) *Service {
	return &Service{store: st, log: slog.Default().With("component", "attendance")}
}

// Mark records a student's presence for a day, reconciling the notified
// flag: the flag may only be true while the student is absent, and any
// write that (re-)establishes an absence clears it so the absence
// becomes eligible for notification again.
func (s *Service) Mark(ctx context.Context, studentID int64, day time.Time, present bool) (Outcome, error) {
	date := model.DayMillis(day)

	existing, err := s.store.AttendanceByStudentAndDate(ctx, studentID, date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup attendance: %w", err)
	}

	if existing == nil {
		rec := model.Attendance{StudentID: studentID, Date: date, Present: present, Notified: false}
		if _, err := s.store.InsertAttendance(ctx, &rec); err != nil {
			return "", fmt.Errorf("insert attendance: %w", err)
		}
		return OutcomeCreated, nil
	}

	if existing.Present != present {
		// The flag has no meaning on a present record and a fresh absence
		// has not been notified, so every flip clears it.
		existing.Present = present
		existing.Notified = false
		if err := s.store.UpdateAttendance(ctx, existing); err != nil {
			return "", fmt.Errorf("update attendance: %w", err)
		}
		return OutcomeUpdated, nil
	}

	// Same value resubmitted. Re-confirming an absence that was already
	// notified clears the flag: the operator wants it eligible for
	// another alert.
	if !present && existing.Notified {
		existing.Notified = false
		if err := s.store.UpdateAttendance(ctx, existing); err != nil {
			return "", fmt.Errorf("update attendance: %w", err)
		}
		s.log.Debug("notified flag reset on re-confirmed absence", "student_id", studentID, "date", date)
		return OutcomeFlagReset, nil
	}

	return OutcomeUnchanged, nil
}

// MarkNotified flips the notified flag for the student's record on the
// given date. Setting the flag on a present record is refused: the flag
// has no meaning while the student is present.
func (s *Service) MarkNotified(ctx context.Context, studentID int64, day time.Time, notified bool) error {
	date := model.DayMillis(day)
	rec, err := s.store.AttendanceByStudentAndDate(ctx, studentID, date)
	if err != nil {
		return fmt.Errorf("lookup attendance: %w", err)
	}
	if notified && rec.Present {
		s.log.Warn("refusing to mark a present record notified", "student_id", studentID, "date", date)
		return nil
	}
	rec.Notified = notified
	return s.store.UpdateAttendance(ctx, rec)
}

// Absentees returns the students absent on the given day whose absence
// has not been notified yet.
func (s *Service) Absentees(ctx context.Context, day time.Time) ([]model.Student, error) {
	date := model.DayMillis(day)
	ids, err := s.store.AbsenteesPendingNotify(ctx, date)
	if err != nil {
		return nil, err
	}
	var students []model.Student
	for _, id := range ids {
		st, err := s.store.StudentByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		students = append(students, *st)
	}
	return students, nil
}

// Promote increments the semester of each listed student.
func (s *Service) Promote(ctx context.Context, studentIDs []int64) (int, error) {
	promoted := 0
	for _, id := range studentIDs {
		st, err := s.store.StudentByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return promoted, err
		}
		st.CurrentSemester++
		if err := s.store.UpdateStudent(ctx, st); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}
