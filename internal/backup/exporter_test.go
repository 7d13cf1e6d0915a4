package backup

import (
	"bytes"
	"context"
	"testing"

	"github.com/aquaa/markly/internal/model"
	"github.com/aquaa/markly/internal/notify"
)

func TestExportFormats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	student := model.Student{Name: "Meera", Gender: "Female", Mobile: "9000000001", GuardianMobile: "9000000002", CurrentSemester: 4, Section: "A"}
	if _, err := st.InsertStudent(ctx, &student); err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertAttendance(ctx, &model.Attendance{StudentID: student.ID, Date: 100, Present: true}); err != nil {
		t.Fatal(err)
	}

	ex := NewExporter(st, notify.NewNotifier(st))

	jsonData, err := ex.Export(ctx, FormatJSON)
	if err != nil {
		t.Fatalf("Export(json): %v", err)
	}
	doc, err := DecodeJSON(jsonData)
	if err != nil {
		t.Fatalf("decode exported json: %v", err)
	}
	if doc.Version != FormatVersion || len(doc.Students) != 1 || len(doc.Attendance) != 1 {
		t.Errorf("exported document wrong: version %d, %d students, %d attendance",
			doc.Version, len(doc.Students), len(doc.Attendance))
	}

	xlsxData, err := ex.Export(ctx, FormatXLSX)
	if err != nil {
		t.Fatalf("Export(xlsx): %v", err)
	}
	wbDoc, err := DecodeWorkbook(bytes.NewReader(xlsxData))
	if err != nil {
		t.Fatalf("decode exported workbook: %v", err)
	}
	if len(wbDoc.Students) != 1 || len(wbDoc.Attendance) != 1 {
		t.Errorf("exported workbook wrong: %d students, %d attendance", len(wbDoc.Students), len(wbDoc.Attendance))
	}
	if wbDoc.Students[0].Name != "Meera" {
		t.Errorf("workbook student name = %q, want Meera", wbDoc.Students[0].Name)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	st := newTestStore(t)
	ex := NewExporter(st, notify.NewNotifier(st))
	if _, err := ex.Export(context.Background(), Format("csv")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExportEmptyStore(t *testing.T) {
	st := newTestStore(t)
	ex := NewExporter(st, notify.NewNotifier(st))

	data, err := ex.Export(context.Background(), FormatJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	doc, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Students) != 0 || len(doc.Attendance) != 0 {
		t.Errorf("empty store exported rows: %+v", doc)
	}
}
