package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

type dashboardContextReader interface {
	ClassSummaries(ctx context.Context, teacherID string) ([]models.ClassAttendanceSummary, error)
	StudentSummaries(ctx context.Context, studentID, teacherID string) ([]models.StudentAttendanceSummary, error)
}

// AssistantConfig configures the upstream completion API.
type AssistantConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
}

// AskRequest is a natural-language question scoped to a teacher or a
// student. Exactly one of TeacherID and StudentID must be set.
type AskRequest struct {
	TeacherID string `json:"teacher_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Question  string `json:"question" validate:"required,min=3,max=2000"`
}

// AskResponse carries the generated answer.
type AskResponse struct {
	Answer string `json:"answer"`
}

// AssistantService answers attendance questions by prompting an external
// completion API with the requester's aggregated attendance figures.
type AssistantService struct {
	dashboards dashboardContextReader
	metrics    *MetricsService
	client     *http.Client
	config     AssistantConfig
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAssistantService constructs an AssistantService.
func NewAssistantService(dashboards dashboardContextReader, metrics *MetricsService, client *http.Client, config AssistantConfig, validate *validator.Validate, logger *zap.Logger) *AssistantService {
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantService{dashboards: dashboards, metrics: metrics, client: client, config: config, validator: validate, logger: logger}
}

// Ask builds a prompt from the requester's attendance aggregates and
// forwards the question upstream.
func (s *AssistantService) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assistant payload")
	}
	if (req.TeacherID == "") == (req.StudentID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of teacher_id and student_id is required")
	}
	if s.config.APIKey == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assistant is not configured")
	}

	prompt, err := s.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.generate(ctx, prompt)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAssistantCall("error")
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordAssistantCall("ok")
	}
	return &AskResponse{Answer: answer}, nil
}

func (s *AssistantService) buildPrompt(ctx context.Context, req AskRequest) (string, error) {
	var b strings.Builder
	b.WriteString("You are an assistant for a school attendance system. ")
	b.WriteString("Answer the question using only the attendance figures below. ")
	b.WriteString("Be concise and factual.\n\n")

	if req.TeacherID != "" {
		summaries, err := s.dashboards.ClassSummaries(ctx, req.TeacherID)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class summaries")
		}
		b.WriteString("Classes taught by the requesting teacher:\n")
		if len(summaries) == 0 {
			b.WriteString("- none\n")
		}
		for _, c := range summaries {
			fmt.Fprintf(&b, "- %s (block %s, %d sessions held): %d present, %d absent, %.1f%% attendance\n",
				c.ClassName, c.Block, c.SessionsHeld, c.PresentCount, c.AbsentCount, c.Rate)
		}
	} else {
		summaries, err := s.dashboards.StudentSummaries(ctx, req.StudentID, "")
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student summaries")
		}
		b.WriteString("Attendance of the requesting student per class:\n")
		if len(summaries) == 0 {
			b.WriteString("- none\n")
		}
		for _, c := range summaries {
			fmt.Fprintf(&b, "- %s: %d present, %d absent, %.1f%% attendance\n",
				c.ClassName, c.PresentCount, c.AbsentCount, c.Rate)
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(req.Question)
	return b.String(), nil
}

type generateContentRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (s *AssistantService) generate(ctx context.Context, prompt string) (string, error) {
	payload := generateContentRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: s.config.MaxOutputTokens,
			Temperature:     s.config.Temperature,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode assistant request")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(s.config.BaseURL, "/"), s.config.Model, s.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build assistant request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "completion API unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read completion response")
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("completion API returned error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return "", appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("completion API returned status %d", resp.StatusCode))
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to decode completion response")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", appErrors.Clone(appErrors.ErrUpstream, "completion API returned no candidates")
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}
