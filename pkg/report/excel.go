// Package report renders stored harness runs into an Excel workbook for
// the QE reporting flow.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/virtwho-qe/harness/internal/store"
)

const sheet = "Runs"

var header = []string{
	"Run ID", "Started (UTC)", "Mode", "Register", "Launch",
	"Sends", "Loops", "Errors", "Warnings", "Reporter ID",
}

// WriteWorkbook writes one row per run record to path.
func WriteWorkbook(path string, records []store.RunRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
	}

	for i, record := range records {
		values := []any{
			record.ID.String(),
			record.CreatedAt.Format("2006-01-02 15:04:05"),
			string(record.Mode),
			string(record.Register),
			record.Launch,
			record.Send,
			record.LoopCount,
			record.ErrorCount,
			record.WarningCount,
			record.Result.ReporterID,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}
