package attendance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aquaa/markly/internal/model"
	"github.com/aquaa/markly/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func addStudent(t *testing.T, st *store.Store, name string) int64 {
	t.Helper()
	s := model.Student{Name: name, Gender: "Male", Mobile: "9000000001", GuardianMobile: "9000000002", CurrentSemester: 2, Section: "A"}
	id, err := st.InsertStudent(context.Background(), &s)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

var day = time.Date(2026, time.March, 9, 14, 30, 0, 0, time.UTC)

func TestMarkTransitions(t *testing.T) {
	tests := []struct {
		name         string
		prior        *model.Attendance // nil means no record yet
		markPresent  bool
		wantOutcome  Outcome
		wantPresent  bool
		wantNotified bool
	}{
		{
			name:        "no record marked present",
			markPresent: true,
			wantOutcome: OutcomeCreated,
			wantPresent: true,
		},
		{
			name:        "no record marked absent",
			markPresent: false,
			wantOutcome: OutcomeCreated,
		},
		{
			name:        "present flipped to absent",
			prior:       &model.Attendance{Present: true},
			markPresent: false,
			wantOutcome: OutcomeUpdated,
		},
		{
			name:        "absent flipped to present drops the flag",
			prior:       &model.Attendance{Present: false, Notified: true},
			markPresent: true,
			wantOutcome: OutcomeUpdated,
			wantPresent: true,
		},
		{
			name:        "present re-confirmed unchanged",
			prior:       &model.Attendance{Present: true},
			markPresent: true,
			wantOutcome: OutcomeUnchanged,
			wantPresent: true,
		},
		{
			name:        "unnotified absence re-confirmed unchanged",
			prior:       &model.Attendance{Present: false, Notified: false},
			markPresent: false,
			wantOutcome: OutcomeUnchanged,
		},
		{
			name:        "notified absence re-confirmed resets the flag",
			prior:       &model.Attendance{Present: false, Notified: true},
			markPresent: false,
			wantOutcome: OutcomeFlagReset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newTestStore(t)
			svc := NewService(st)
			studentID := addStudent(t, st, "Arun")

			if tt.prior != nil {
				rec := *tt.prior
				rec.StudentID = studentID
				rec.Date = model.DayMillis(day)
				if _, err := st.InsertAttendance(ctx, &rec); err != nil {
					t.Fatal(err)
				}
			}

			outcome, err := svc.Mark(ctx, studentID, day, tt.markPresent)
			if err != nil {
				t.Fatalf("Mark: %v", err)
			}
			if outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", outcome, tt.wantOutcome)
			}

			rec, err := st.AttendanceByStudentAndDate(ctx, studentID, model.DayMillis(day))
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if rec.Present != tt.wantPresent || rec.Notified != tt.wantNotified {
				t.Errorf("record = {present %v, notified %v}, want {present %v, notified %v}",
					rec.Present, rec.Notified, tt.wantPresent, tt.wantNotified)
			}
		})
	}
}

func TestMarkTruncatesToDay(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)
	studentID := addStudent(t, st, "Arun")

	morning := time.Date(2026, time.March, 9, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, time.March, 9, 20, 45, 0, 0, time.UTC)

	if _, err := svc.Mark(ctx, studentID, morning, false); err != nil {
		t.Fatal(err)
	}
	outcome, err := svc.Mark(ctx, studentID, evening, true)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("outcome = %s, want %s (same calendar day, one record)", outcome, OutcomeUpdated)
	}

	records, err := st.ListAttendance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records for one day, want 1", len(records))
	}
}

func TestMarkNotified(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)
	studentID := addStudent(t, st, "Arun")

	if _, err := svc.Mark(ctx, studentID, day, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkNotified(ctx, studentID, day, true); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	rec, err := st.AttendanceByStudentAndDate(ctx, studentID, model.DayMillis(day))
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Notified {
		t.Error("flag not set on absent record")
	}
}

func TestMarkNotifiedRefusedWhilePresent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)
	studentID := addStudent(t, st, "Arun")

	if _, err := svc.Mark(ctx, studentID, day, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkNotified(ctx, studentID, day, true); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	rec, err := st.AttendanceByStudentAndDate(ctx, studentID, model.DayMillis(day))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Notified {
		t.Error("flag set on a present record")
	}
}

func TestAbsentees(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)

	absent := addStudent(t, st, "Absent One")
	present := addStudent(t, st, "Present One")
	notified := addStudent(t, st, "Already Notified")

	if _, err := svc.Mark(ctx, absent, day, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Mark(ctx, present, day, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Mark(ctx, notified, day, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkNotified(ctx, notified, day, true); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Absentees(ctx, day)
	if err != nil {
		t.Fatalf("Absentees: %v", err)
	}
	if len(got) != 1 || got[0].ID != absent {
		t.Errorf("absentees = %+v, want only student %d", got, absent)
	}
}

func TestPromote(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)

	a := addStudent(t, st, "Arun")
	b := addStudent(t, st, "Zara")

	n, err := svc.Promote(ctx, []int64{a, b, 999})
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if n != 2 {
		t.Errorf("promoted %d, want 2 (missing ID skipped)", n)
	}

	got, err := st.StudentByID(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentSemester != 3 {
		t.Errorf("semester = %d, want 3", got.CurrentSemester)
	}
}
