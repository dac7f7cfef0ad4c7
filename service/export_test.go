package service

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/katalogbuku/backend/models"
	"github.com/xuri/excelize/v2"
)

func exportBooks() []models.Book {
	return []models.Book{
		{
			InputDate:           "2026-08-30",
			Author:              "Melville, Herman",
			Title:               "Moby Dick",
			Edition:             "1",
			PublicationCity:     "New York",
			Publisher:           "Harper & Brothers",
			PublicationYear:     "1851",
			PhysicalDescription: "635 p.; 20 cm",
			Source:              "donation",
			Subject:             "Whaling",
			CallNumber:          "813.3 MEL m",
			ExemplarCount:       2,
			ISBN:                "123",
			Level:               "A",
		},
		{
			InputDate:     "2026-08-31",
			Author:        "Twain, Mark",
			Title:         "Tom Sawyer",
			Edition:       "1",
			Source:        "purchase",
			ExemplarCount: 1,
			Level:         "B",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, exportBooks()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2 records)", len(rows))
	}
	for i, col := range ExportColumns {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	first := rows[1]
	if first[0] != "1" {
		t.Errorf("No = %q, want 1", first[0])
	}
	if first[2] != "Melville, Herman" {
		t.Errorf("Author = %q, want Melville, Herman", first[2])
	}
	if first[12] != "2" {
		t.Errorf("Copies = %q, want 2", first[12])
	}
	if first[13] != "123" {
		t.Errorf("ISBN = %q, want 123", first[13])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1 (header only)", len(rows))
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, exportBooks()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(exportSheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2 records)", len(rows))
	}
	for i, col := range ExportColumns {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[2][3] != "Tom Sawyer" {
		t.Errorf("Title = %q, want Tom Sawyer", rows[2][3])
	}
	if rows[2][1] != "2026-08-31" {
		t.Errorf("Input Date = %q, want 2026-08-31", rows[2][1])
	}
}
