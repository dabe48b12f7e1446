package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jamolinav/ai-assist-attorney/models"
)

// WriteDetailSheet writes the case detail table to an Excel workbook.
// One row per filing, in the order the portal listed them.
func WriteDetailSheet(path string, rows []models.DetailRow) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("Error closing Excel file: %v\n", err)
		}
	}()

	sheetName := "Caratulado"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Folio", "Doc", "Anexo", "Etapa", "Trámite", "Descripción", "Fojas", "Ubicación",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, r := range rows {
		row := rowIdx + 2 // Start from row 2 (after headers)

		doc := ""
		if r.HasDocument() {
			doc = r.DocURL
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.Folio)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), doc)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.Annex)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.Stage)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), r.Procedure)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), r.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), r.Page)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), r.Location)
	}

	for i := range headers {
		col := fmt.Sprintf("%c:%c", 'A'+i, 'A'+i)
		f.SetColWidth(sheetName, col, col, 20)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
