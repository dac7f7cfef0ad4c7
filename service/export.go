package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/katalogbuku/backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportColumns is the fixed column order of catalog exports.
var ExportColumns = []string{
	"No", "Input Date", "Author", "Title", "Edition", "Publication City",
	"Publisher", "Publication Year", "Physical Description", "Source",
	"Subject", "Call Number", "Copies", "ISBN", "Level",
}

const exportSheetName = "Book Catalog"

func exportRow(no int, b *models.Book) []string {
	return []string{
		strconv.Itoa(no),
		b.InputDate,
		b.Author,
		b.Title,
		b.Edition,
		b.PublicationCity,
		b.Publisher,
		b.PublicationYear,
		b.PhysicalDescription,
		b.Source,
		b.Subject,
		b.CallNumber,
		strconv.Itoa(b.ExemplarCount),
		b.ISBN,
		b.Level,
	}
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, books []models.Book) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for i := range books {
		if err := cw.Write(exportRow(i+1, &books[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the records as a single-sheet workbook in the fixed
// column order.
func WriteXLSX(w io.Writer, books []models.Book) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return err
	}
	if err := setRow(f, 1, ExportColumns); err != nil {
		return err
	}
	for i := range books {
		if err := setRow(f, i+2, exportRow(i+1, &books[i])); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}
