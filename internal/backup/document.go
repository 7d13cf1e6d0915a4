package backup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aquaa/markly/internal/model"
)

// FormatVersion is stamped into exported documents. Importers accept
// documents without the field (backups written before versioning).
const FormatVersion = 1

// Logical collection names, also the top-level JSON keys.
const (
	CollectionStudents   = "Students"
	CollectionAttendance = "Attendance"
)

// StudentRow is the transient decoded shape of one student. SourceID is
// the identifier the record carried in the document, not the one the
// store will assign.
type StudentRow struct {
	SourceID        int64
	Name            string
	Gender          string
	Mobile          string
	GuardianMobile  string
	CurrentSemester int64
	Section         string
}

// AttendanceRow is the transient decoded shape of one attendance record,
// keyed by the source student identifier.
type AttendanceRow struct {
	SourceID        int64
	SourceStudentID int64
	Date            int64
	Present         bool
}

// Document holds both decoded collections. It exists only between
// decode and import and is never persisted.
type Document struct {
	Version    int64
	Students   []StudentRow
	Attendance []AttendanceRow
}

// jsonStudent and jsonAttendance pin the display-oriented key names and
// their order in the exported document.
type jsonStudent struct {
	StudentID       int64  `json:"Student ID"`
	Name            string `json:"Name"`
	Gender          string `json:"Gender"`
	Mobile          string `json:"Mobile"`
	GuardianMobile  string `json:"Guardian Mobile"`
	CurrentSemester int64  `json:"Current Semester"`
	Section         string `json:"Section"`
}

type jsonAttendance struct {
	AttendanceID int64 `json:"Attendance"`
	StudentID    int64 `json:"Student ID"`
	Date         int64 `json:"Date (Timestamp)"`
	IsPresent    int   `json:"Is Present"`
}

type jsonDocument struct {
	FormatVersion int64            `json:"Format Version"`
	Students      []jsonStudent    `json:"Students"`
	Attendance    []jsonAttendance `json:"Attendance"`
}

// EncodeJSON serializes both collections into the consolidated document:
// pretty-printed UTF-8, students ordered by name ascending, attendance by
// date then student ID ascending.
func EncodeJSON(students []model.Student, records []model.Attendance) ([]byte, error) {
	doc := jsonDocument{
		FormatVersion: FormatVersion,
		Students:      make([]jsonStudent, 0, len(students)),
		Attendance:    make([]jsonAttendance, 0, len(records)),
	}

	sorted := make([]model.Student, len(students))
	copy(sorted, students)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, st := range sorted {
		doc.Students = append(doc.Students, jsonStudent{
			StudentID:       st.ID,
			Name:            st.Name,
			Gender:          st.Gender,
			Mobile:          st.Mobile,
			GuardianMobile:  st.GuardianMobile,
			CurrentSemester: int64(st.CurrentSemester),
			Section:         st.Section,
		})
	}

	sortedRecs := make([]model.Attendance, len(records))
	copy(sortedRecs, records)
	sort.SliceStable(sortedRecs, func(i, j int) bool {
		if sortedRecs[i].Date != sortedRecs[j].Date {
			return sortedRecs[i].Date < sortedRecs[j].Date
		}
		return sortedRecs[i].StudentID < sortedRecs[j].StudentID
	})
	for _, a := range sortedRecs {
		present := 0
		if a.Present {
			present = 1
		}
		doc.Attendance = append(doc.Attendance, jsonAttendance{
			AttendanceID: a.ID,
			StudentID:    a.StudentID,
			Date:         a.Date,
			IsPresent:    present,
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// DecodeJSON parses a consolidated document. An unparseable top-level
// shape is fatal; per-row coercion failures degrade to defaults and are
// logged, never dropped here (validation happens at import).
func DecodeJSON(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse document: empty or malformed")
	}

	log := slog.Default().With("component", "backup")
	doc := &Document{}

	if v, ok := raw["Format Version"]; ok {
		var version json.Number
		if err := json.Unmarshal(v, &version); err == nil {
			doc.Version, _ = version.Int64()
		}
	}

	if msg, ok := raw[CollectionStudents]; ok {
		var rows []map[string]any
		if err := json.Unmarshal(msg, &rows); err != nil {
			return nil, fmt.Errorf("parse %s collection: %w", CollectionStudents, err)
		}
		for i, row := range rows {
			semCell := FromAny(row["Current Semester"])
			if semCell.IsNull() {
				log.Warn("semester missing or invalid, defaulting to 0",
					"row", i, "student_id", FromAny(row["Student ID"]).AsInt(0))
			}
			doc.Students = append(doc.Students, StudentRow{
				SourceID:        FromAny(row["Student ID"]).AsInt(0),
				Name:            FromAny(row["Name"]).AsText(),
				Gender:          FromAny(row["Gender"]).AsText(),
				Mobile:          FromAny(row["Mobile"]).AsText(),
				GuardianMobile:  FromAny(row["Guardian Mobile"]).AsText(),
				CurrentSemester: semCell.AsInt(0),
				Section:         FromAny(row["Section"]).AsText(),
			})
		}
	} else {
		log.Warn("collection missing from document", "collection", CollectionStudents)
	}

	if msg, ok := raw[CollectionAttendance]; ok {
		var rows []map[string]any
		if err := json.Unmarshal(msg, &rows); err != nil {
			return nil, fmt.Errorf("parse %s collection: %w", CollectionAttendance, err)
		}
		for _, row := range rows {
			doc.Attendance = append(doc.Attendance, AttendanceRow{
				SourceID:        FromAny(row["Attendance"]).AsInt(0),
				SourceStudentID: FromAny(row["Student ID"]).AsInt(0),
				Date:            FromAny(row["Date (Timestamp)"]).AsInt(0),
				Present:         FromAny(row["Is Present"]).AsBool(),
			})
		}
	} else {
		log.Warn("collection missing from document", "collection", CollectionAttendance)
	}

	return doc, nil
}
