package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

type mockDashboardContext struct {
	classSummaries   []models.ClassAttendanceSummary
	studentSummaries []models.StudentAttendanceSummary
}

func (m *mockDashboardContext) ClassSummaries(ctx context.Context, teacherID string) ([]models.ClassAttendanceSummary, error) {
	return m.classSummaries, nil
}

func (m *mockDashboardContext) StudentSummaries(ctx context.Context, studentID, teacherID string) ([]models.StudentAttendanceSummary, error) {
	return m.studentSummaries, nil
}

func newAssistantFixture(t *testing.T, upstream http.HandlerFunc) (*AssistantService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	dashboards := &mockDashboardContext{
		classSummaries: []models.ClassAttendanceSummary{
			{ClassName: "Algebra I", Block: models.BlockA, SessionsHeld: 10, PresentCount: 80, AbsentCount: 20, Rate: 80},
		},
		studentSummaries: []models.StudentAttendanceSummary{
			{ClassName: "Algebra I", PresentCount: 8, AbsentCount: 2, Rate: 80},
		},
	}
	svc := NewAssistantService(dashboards, nil, server.Client(), AssistantConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-1.5-flash",
	}, validator.New(), zap.NewNop())
	return svc, server
}

func TestAssistantServiceAskTeacher(t *testing.T) {
	var gotPrompt string
	svc, _ := newAssistantFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, ":generateContent")

		var payload generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.NotEmpty(t, payload.Contents)
		gotPrompt = payload.Contents[0].Parts[0].Text

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "Attendance is at 80%."}},
				}},
			},
		})
	})

	resp, err := svc.Ask(context.Background(), AskRequest{TeacherID: "t1", Question: "How is attendance?"})
	require.NoError(t, err)
	assert.Equal(t, "Attendance is at 80%.", resp.Answer)
	assert.True(t, strings.Contains(gotPrompt, "Algebra I"))
	assert.True(t, strings.Contains(gotPrompt, "How is attendance?"))
}

func TestAssistantServiceAskStudent(t *testing.T) {
	svc, _ := newAssistantFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "You missed two sessions."}},
				}},
			},
		})
	})

	resp, err := svc.Ask(context.Background(), AskRequest{StudentID: "s1", Question: "How many sessions did I miss?"})
	require.NoError(t, err)
	assert.Equal(t, "You missed two sessions.", resp.Answer)
}

func TestAssistantServiceRequiresExactlyOneSubject(t *testing.T) {
	svc, _ := newAssistantFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := svc.Ask(context.Background(), AskRequest{TeacherID: "t1", StudentID: "s1", Question: "Who am I?"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Ask(context.Background(), AskRequest{Question: "No subject at all"})
	require.Error(t, err)
}

func TestAssistantServiceUpstreamError(t *testing.T) {
	svc, _ := newAssistantFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := svc.Ask(context.Background(), AskRequest{TeacherID: "t1", Question: "How is attendance?"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
}

func TestAssistantServiceNoCandidates(t *testing.T) {
	svc, _ := newAssistantFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	})

	_, err := svc.Ask(context.Background(), AskRequest{TeacherID: "t1", Question: "How is attendance?"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
}
