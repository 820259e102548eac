package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/employee-portal/internal/application/service"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

func TestUsageWorkbook_Write(t *testing.T) {
	summaries := []*service.UsageSummary{
		{
			EmployeeID:   "emp",
			EmployeeName: "Emery",
			Year:         2026,
			Services: []service.ServiceUsage{
				{
					ServiceID:    "permission",
					ServiceTitle: "Permission request",
					Counts:       map[domainwf.State]int{domainwf.StateApproved: 2, domainwf.StateRejected: 1},
					ApprovedDays: 3.5,
				},
			},
			Total:        3,
			ApprovedDays: 3.5,
		},
		{EmployeeID: "idle", EmployeeName: "Idle", Year: 2026},
	}

	var buf bytes.Buffer
	require.NoError(t, NewUsageWorkbook(zap.NewNop()).Write(&buf, 2026, summaries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Usage 2026"}, f.GetSheetList())

	rows, err := f.GetRows("Usage 2026")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Employee ID", rows[0][0])
	assert.Equal(t, "Approved days", rows[0][8])

	assert.Equal(t, []string{"emp", "Emery", "Permission request", "0", "0", "0", "2", "1", "3.5"}, rows[1])
	assert.Equal(t, "idle", rows[2][0])
	assert.Equal(t, "0", rows[2][6])

	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "2", rows[3][6])
	assert.Equal(t, "3.5", rows[3][8])
}

func TestUsageWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewUsageWorkbook(zap.NewNop()).Write(&buf, 2025, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName(2025))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Total", rows[1][0])
}
