package backup

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aquaa/markly/internal/model"
)

// Sheet names in the exported workbook.
const (
	SheetStudents   = "Students"
	SheetAttendance = "Attendance"
)

var studentHeader = []string{
	"Student ID (Original)", "Name", "Gender", "Mobile", "Guardian Mobile", "Current Semester", "Section",
}

var attendanceHeader = []string{
	"Attendance ID (Original)", "Student ID (Original)", "Date (Timestamp)", "Is Present",
}

// nonNumeric strips everything a stored-as-text number may carry except
// digits, sign and decimal point. Mobile columns written as text cells
// come back through here.
var nonNumeric = regexp.MustCompile(`[^\d.-]`)

// EncodeWorkbook writes both collections into a two-sheet workbook.
// Phone numbers are written as text cells so leading zeros survive;
// booleans as literal "TRUE"/"FALSE".
func EncodeWorkbook(students []model.Student, records []model.Attendance) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetStudents); err != nil {
		return nil, fmt.Errorf("create students sheet: %w", err)
	}
	for col, name := range studentHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(SheetStudents, cell, name); err != nil {
			return nil, err
		}
	}
	for i, st := range students {
		row := i + 2
		values := []any{st.ID, st.Name, st.Gender, nil, nil, st.CurrentSemester, st.Section}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			var err error
			switch col {
			case 3:
				err = f.SetCellStr(SheetStudents, cell, st.Mobile)
			case 4:
				err = f.SetCellStr(SheetStudents, cell, st.GuardianMobile)
			default:
				err = f.SetCellValue(SheetStudents, cell, v)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if _, err := f.NewSheet(SheetAttendance); err != nil {
		return nil, fmt.Errorf("create attendance sheet: %w", err)
	}
	for col, name := range attendanceHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(SheetAttendance, cell, name); err != nil {
			return nil, err
		}
	}
	for i, a := range records {
		row := i + 2
		present := "FALSE"
		if a.Present {
			present = "TRUE"
		}
		values := []any{a.ID, a.StudentID, a.Date, present}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(SheetAttendance, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWorkbook reads a two-sheet workbook back into a Document. The
// header row and fully blank rows are skipped; a row that cannot be
// decoded is logged and dropped without failing the import. A missing
// sheet yields zero rows for that collection.
func DecodeWorkbook(r io.Reader) (*Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	log := slog.Default().With("component", "backup")
	doc := &Document{Version: FormatVersion}

	for _, row := range sheetRows(f, SheetStudents, log) {
		sr, err := decodeStudentRow(row)
		if err != nil {
			log.Warn("dropping student row", "err", err)
			continue
		}
		doc.Students = append(doc.Students, sr)
	}

	for _, row := range sheetRows(f, SheetAttendance, log) {
		ar, err := decodeAttendanceRow(row)
		if err != nil {
			log.Warn("dropping attendance row", "err", err)
			continue
		}
		doc.Attendance = append(doc.Attendance, ar)
	}

	return doc, nil
}

// sheetRows returns the data rows of a sheet, header and blank rows
// excluded. A missing sheet is tolerated.
func sheetRows(f *excelize.File, sheet string, log *slog.Logger) [][]string {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx == -1 {
		log.Warn("sheet not found in workbook", "sheet", sheet, "err", err)
		return nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		log.Warn("reading sheet failed", "sheet", sheet, "err", err)
		return nil
	}
	if len(rows) <= 1 {
		return nil
	}
	var out [][]string
	for _, row := range rows[1:] {
		if rowBlank(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func rowBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func decodeStudentRow(row []string) (StudentRow, error) {
	id, err := numericCell(cellAt(row, 0))
	if err != nil {
		return StudentRow{}, fmt.Errorf("student id: %w", err)
	}
	semester, err := numericCell(cellAt(row, 5))
	if err != nil {
		return StudentRow{}, fmt.Errorf("semester: %w", err)
	}
	return StudentRow{
		SourceID:        id,
		Name:            cellAt(row, 1),
		Gender:          cellAt(row, 2),
		Mobile:          cellAt(row, 3),
		GuardianMobile:  cellAt(row, 4),
		CurrentSemester: semester,
		Section:         cellAt(row, 6),
	}, nil
}

func decodeAttendanceRow(row []string) (AttendanceRow, error) {
	id, err := numericCell(cellAt(row, 0))
	if err != nil {
		return AttendanceRow{}, fmt.Errorf("attendance id: %w", err)
	}
	studentID, err := numericCell(cellAt(row, 1))
	if err != nil {
		return AttendanceRow{}, fmt.Errorf("student id: %w", err)
	}
	date, err := numericCell(cellAt(row, 2))
	if err != nil {
		return AttendanceRow{}, fmt.Errorf("date: %w", err)
	}
	return AttendanceRow{
		SourceID:        id,
		SourceStudentID: studentID,
		Date:            date,
		Present:         Text(cellAt(row, 3)).AsBool(),
	}, nil
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// numericCell parses a cell that should hold a number. An empty cell is
// zero (the sheet had nothing there); text is cleaned of everything but
// digits, sign and decimal point before parsing, matching how phones
// stored as general text round-trip.
func numericCell(s string) (int64, error) {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return int64(f), nil
}
