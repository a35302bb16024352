package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Student", "Date", "Status"},
		Rows: []map[string]string{
			{"Student": "Ana Reyes", "Date": "2025-03-03", "Status": "PRESENT"},
			{"Student": "Ben Cruz", "Date": "2025-03-03", "Status": "ABSENT"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Date,Status", lines[0])
	assert.Contains(t, lines[2], "ABSENT")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Class 10-A Attendance")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "Class 10-A Attendance")
	require.NoError(t, err)

	f, err := excelize.OpenReader(strings.NewReader(string(out)))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	title, err := f.GetCellValue("Report", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Class 10-A Attendance", title)

	header, err := f.GetCellValue("Report", "C2")
	require.NoError(t, err)
	assert.Equal(t, "Status", header)

	status, err := f.GetCellValue("Report", "C4")
	require.NoError(t, err)
	assert.Equal(t, "ABSENT", status)
}
