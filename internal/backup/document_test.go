package backup

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aquaa/markly/internal/model"
)

func TestEncodeJSONOrderingAndKeys(t *testing.T) {
	students := []model.Student{
		{ID: 2, Name: "Zara", Gender: "Female", Mobile: "9876543210", GuardianMobile: "9876543211", CurrentSemester: 3, Section: "B"},
		{ID: 1, Name: "Arun", Gender: "Male", Mobile: "9123456780", GuardianMobile: "9123456781", CurrentSemester: 2, Section: "A"},
	}
	records := []model.Attendance{
		{ID: 5, StudentID: 2, Date: 200, Present: false},
		{ID: 4, StudentID: 1, Date: 200, Present: true},
		{ID: 3, StudentID: 2, Date: 100, Present: true},
	}

	out, err := EncodeJSON(students, records)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	for _, key := range []string{"Format Version", "Students", "Attendance"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	var stRows []map[string]any
	if err := json.Unmarshal(raw["Students"], &stRows); err != nil {
		t.Fatalf("parse students: %v", err)
	}
	if len(stRows) != 2 {
		t.Fatalf("got %d students, want 2", len(stRows))
	}
	if stRows[0]["Name"] != "Arun" || stRows[1]["Name"] != "Zara" {
		t.Errorf("students not ordered by name: %v, %v", stRows[0]["Name"], stRows[1]["Name"])
	}
	for _, key := range []string{"Student ID", "Name", "Gender", "Mobile", "Guardian Mobile", "Current Semester", "Section"} {
		if _, ok := stRows[0][key]; !ok {
			t.Errorf("student row missing key %q", key)
		}
	}

	var atRows []map[string]any
	if err := json.Unmarshal(raw["Attendance"], &atRows); err != nil {
		t.Fatalf("parse attendance: %v", err)
	}
	wantOrder := []struct{ date, student float64 }{{100, 2}, {200, 1}, {200, 2}}
	for i, w := range wantOrder {
		if atRows[i]["Date (Timestamp)"] != w.date || atRows[i]["Student ID"] != w.student {
			t.Errorf("attendance[%d] = (date %v, student %v), want (%v, %v)",
				i, atRows[i]["Date (Timestamp)"], atRows[i]["Student ID"], w.date, w.student)
		}
	}
	if atRows[1]["Is Present"] != float64(1) {
		t.Errorf("Is Present = %v, want numeric 1", atRows[1]["Is Present"])
	}

	if !strings.Contains(string(out), "\n  ") {
		t.Error("document not pretty-printed")
	}
}

func TestDecodeJSON(t *testing.T) {
	doc := `{
  "Format Version": 1,
  "Students": [
    {"Student ID": 7, "Name": "Meera", "Gender": "Female", "Mobile": "9000000001", "Guardian Mobile": "9000000002", "Current Semester": 4, "Section": "A"},
    {"Student ID": 8, "Name": "Ravi", "Gender": "Male", "Mobile": "9000000003", "Guardian Mobile": "9000000004", "Current Semester": "N/A", "Section": "B"}
  ],
  "Attendance": [
    {"Attendance": 1, "Student ID": 7, "Date (Timestamp)": 1700000000000, "Is Present": 0}
  ]
}`
	got, err := DecodeJSON([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if len(got.Students) != 2 {
		t.Fatalf("got %d students, want 2", len(got.Students))
	}
	if got.Students[0].SourceID != 7 || got.Students[0].Name != "Meera" || got.Students[0].CurrentSemester != 4 {
		t.Errorf("first student decoded wrong: %+v", got.Students[0])
	}
	if got.Students[1].CurrentSemester != 0 {
		t.Errorf("unparseable semester = %d, want default 0", got.Students[1].CurrentSemester)
	}
	if len(got.Attendance) != 1 {
		t.Fatalf("got %d attendance rows, want 1", len(got.Attendance))
	}
	a := got.Attendance[0]
	if a.SourceID != 1 || a.SourceStudentID != 7 || a.Date != 1700000000000 || a.Present {
		t.Errorf("attendance decoded wrong: %+v", a)
	}
}

func TestDecodeJSONMissingCollections(t *testing.T) {
	got, err := DecodeJSON([]byte(`{"Students": []}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(got.Students) != 0 || len(got.Attendance) != 0 {
		t.Errorf("expected empty document, got %+v", got)
	}
}

func TestDecodeJSONVersionless(t *testing.T) {
	got, err := DecodeJSON([]byte(`{"Students": [], "Attendance": []}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Version != 0 {
		t.Errorf("Version = %d, want 0 for versionless backups", got.Version)
	}
}

func TestDecodeJSONMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not json", in: `{{`},
		{name: "top-level array", in: `[1,2]`},
		{name: "students not a list", in: `{"Students": {"Name": "x"}}`},
		{name: "null document", in: `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeJSON([]byte(tt.in)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
