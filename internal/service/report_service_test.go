package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/attendance-api/internal/models"
)

type pagedSessionLister struct {
	sessions []models.SessionDetail
	pages    []int
}

func (p *pagedSessionLister) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	p.pages = append(p.pages, filter.Page)
	limit := filter.PageSize
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(p.sessions) {
		return nil, len(p.sessions), nil
	}
	end := start + limit
	if end > len(p.sessions) {
		end = len(p.sessions)
	}
	return p.sessions[start:end], len(p.sessions), nil
}

type stubReportAttendanceReader struct{}

func (stubReportAttendanceReader) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	return []models.AttendanceRecord{{
		Attendance:  models.Attendance{SessionID: sessionID, Status: models.AttendanceStatusPresent},
		StudentName: "Dana Reyes",
	}}, nil
}

func TestReportDatasetSpansAllSessionPages(t *testing.T) {
	lister := &pagedSessionLister{}
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 130; i++ {
		lister.sessions = append(lister.sessions, models.SessionDetail{
			AttendanceSession: models.AttendanceSession{
				ID:          fmt.Sprintf("s%03d", i),
				ClassID:     "c1",
				SessionDate: day.AddDate(0, 0, i),
			},
		})
	}
	svc := NewReportService(nil, lister, stubReportAttendanceReader{}, nil, nil, nil, nil, ReportQueueConfig{}, nil, nil)

	job := &models.ReportJob{
		ID:       "job1",
		ClassID:  "c1",
		DateFrom: day,
		DateTo:   day.AddDate(0, 6, 0),
		Format:   models.ReportFormatCSV,
	}
	dataset, err := svc.buildDataset(context.Background(), job)
	require.NoError(t, err)

	assert.Len(t, dataset.Rows, 130)
	assert.Equal(t, []int{1, 2}, lister.pages)
}

func TestReportDatasetEmptyRangePlaceholder(t *testing.T) {
	lister := &pagedSessionLister{}
	svc := NewReportService(nil, lister, stubReportAttendanceReader{}, nil, nil, nil, nil, ReportQueueConfig{}, nil, nil)

	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	job := &models.ReportJob{ID: "job2", ClassID: "c1", DateFrom: day, DateTo: day, Format: models.ReportFormatCSV}

	dataset, err := svc.buildDataset(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, "no records in range", dataset.Rows[0]["student"])
}
