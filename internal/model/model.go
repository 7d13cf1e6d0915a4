package model

import "time"

// Student is a registered student. The ID is assigned by the store on
// insert and stays stable for the lifetime of the record.
type Student struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	Mobile          string `json:"mobile"`
	GuardianMobile  string `json:"guardian_mobile"`
	CurrentSemester int    `json:"current_semester"`
	Section         string `json:"section"`
}

// Attendance is one student's presence on one day. Date is epoch
// milliseconds normalized to midnight UTC; there is at most one record
// per (student, date). Notified tracks whether an outbound alert was
// already sent for this absence and is meaningful only while Present
// is false.
type Attendance struct {
	ID        int64 `json:"id"`
	StudentID int64 `json:"student_id"`
	Date      int64 `json:"date"`
	Present   bool  `json:"present"`
	Notified  bool  `json:"notified"`
}

// Notification is an append-only in-app log entry describing the
// outcome of an operation.
type Notification struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Read      bool   `json:"read"`
	Severity  string `json:"severity"`
}

// DayMillis truncates t to midnight UTC and returns epoch milliseconds.
// All attendance dates pass through here so the per-day uniqueness
// constraint compares like with like.
func DayMillis(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

// DayFromMillis converts a stored date stamp back to a UTC time.
func DayFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
