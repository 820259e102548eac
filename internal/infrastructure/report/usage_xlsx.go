package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/employee-portal/internal/application/service"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

var (
	usageHeader = []interface{}{
		"Employee ID", "Employee", "Service",
		"Draft", "Pending", "Returned", "Approved", "Rejected", "Approved days",
	}
	statusColumns = []domainwf.State{
		domainwf.StateDraft,
		domainwf.StatePending,
		domainwf.StateReturned,
		domainwf.StateApproved,
		domainwf.StateRejected,
	}
)

// UsageWorkbook renders usage summaries as a single-sheet xlsx file
type UsageWorkbook struct {
	logger *zap.Logger
}

// NewUsageWorkbook creates a new usage workbook renderer
func NewUsageWorkbook(logger *zap.Logger) *UsageWorkbook {
	return &UsageWorkbook{logger: logger}
}

// SheetName returns the sheet title used for a year
func SheetName(year int) string {
	return fmt.Sprintf("Usage %d", year)
}

// Write renders one row per employee and service, followed by a totals row
func (u *UsageWorkbook) Write(w io.Writer, year int, summaries []*service.UsageSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(year)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := u.setRow(f, sheet, 1, usageHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	row := 2
	totals := make([]int, len(statusColumns))
	var totalDays float64
	for _, s := range summaries {
		if len(s.Services) == 0 {
			values := []interface{}{s.EmployeeID, s.EmployeeName, ""}
			for range statusColumns {
				values = append(values, 0)
			}
			values = append(values, 0)
			if err := u.setRow(f, sheet, row, values); err != nil {
				return err
			}
			row++
			continue
		}

		for _, usage := range s.Services {
			values := []interface{}{s.EmployeeID, s.EmployeeName, usage.ServiceTitle}
			for i, status := range statusColumns {
				n := usage.Counts[status]
				totals[i] += n
				values = append(values, n)
			}
			values = append(values, usage.ApprovedDays)
			totalDays += usage.ApprovedDays

			if err := u.setRow(f, sheet, row, values); err != nil {
				return err
			}
			row++
		}
	}

	totalRow := []interface{}{"Total", "", ""}
	for _, n := range totals {
		totalRow = append(totalRow, n)
	}
	totalRow = append(totalRow, totalDays)
	if err := u.setRow(f, sheet, row, totalRow); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, row, row, bold); err != nil {
		return fmt.Errorf("failed to style totals: %w", err)
	}

	if err := f.SetColWidth(sheet, "A", "C", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	u.logger.Info("Usage workbook rendered",
		zap.Int("year", year),
		zap.Int("employees", len(summaries)),
		zap.Int("rows", row-1))
	return nil
}

func (u *UsageWorkbook) setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
