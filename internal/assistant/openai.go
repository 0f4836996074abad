package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	chop "github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/templates"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	// Per-operation deadlines. Splits reuse the plan deadline.
	questionTimeout = 10 * time.Second
	planTimeout     = 15 * time.Second
	subtaskTimeout  = 20 * time.Second
)

// OpenAI is an Assistant backed by the OpenAI chat-completions API.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
}

var _ Assistant = (*OpenAI)(nil)

// Option configures the OpenAI client.
type Option func(*OpenAI)

// WithModel overrides the completion model.
func WithModel(m string) Option {
	return func(c *OpenAI) { c.model = m }
}

// WithBaseURL overrides the API base URL (OpenAI-compatible endpoints).
func WithBaseURL(u string) Option {
	return func(c *OpenAI) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAI) { c.httpc = hc }
}

// NewOpenAI creates an OpenAI-backed assistant.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	c := &OpenAI{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// complete sends one chat completion and returns the reply text.
func (c *OpenAI) complete(ctx context.Context, op string, timeout time.Duration, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", chop.ErrAssistantTimeout(op)
		}
		return "", chop.Wrap(chop.CodeAssistantUnavailable, "assistant request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", chop.Wrap(chop.CodeAssistantUnavailable, "read assistant response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", chop.Wrap(chop.CodeAssistantBadReply, "parse assistant response", err)
	}
	if parsed.Error != nil {
		return "", chop.Newf(chop.CodeAssistantUnavailable, "assistant error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", chop.Newf(chop.CodeAssistantUnavailable, "assistant returned HTTP %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", chop.New(chop.CodeAssistantBadReply, "assistant returned no content")
	}

	return parsed.Choices[0].Message.Content, nil
}

// renderPrompt executes an embedded prompt template.
func renderPrompt(name string, data any) (string, error) {
	raw, err := templates.Prompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("read prompt template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

// GenerateClarificationQuestions asks the model for clarification questions
// and extracts the usable ones from its free-text reply.
func (c *OpenAI) GenerateClarificationQuestions(ctx context.Context, issue model.Issue) ([]model.ClarificationQuestion, error) {
	prompt, err := renderPrompt("clarify.md", map[string]string{
		"Title": issue.Title,
		"Body":  issue.Body,
	})
	if err != nil {
		return nil, err
	}

	reply, err := c.complete(ctx, "clarification questions", questionTimeout, prompt)
	if err != nil {
		return nil, err
	}

	questions := ExtractQuestions(reply)
	if len(questions) == 0 {
		return nil, chop.New(chop.CodeAssistantBadReply, "no usable questions in assistant reply")
	}

	out := make([]model.ClarificationQuestion, len(questions))
	for i, q := range questions {
		out[i] = model.ClarificationQuestion{
			ID:       fmt.Sprintf("Q-%d", i+1),
			Question: q,
			Required: i == 0,
		}
	}
	return out, nil
}

// GenerateExecutionPlan asks the model for a markdown plan.
func (c *OpenAI) GenerateExecutionPlan(ctx context.Context, issue model.Issue, questions []model.ClarificationQuestion) (string, error) {
	prompt, err := renderPrompt("plan.md", map[string]string{
		"Title":   issue.Title,
		"Body":    issue.Body,
		"Answers": answerNotes(questions),
	})
	if err != nil {
		return "", err
	}

	reply, err := c.complete(ctx, "plan generation", planTimeout, prompt)
	if err != nil {
		return "", err
	}

	content := ExtractPlanContent(reply)
	if strings.TrimSpace(content) == "" {
		return "", chop.New(chop.CodeAssistantBadReply, "assistant returned an empty plan")
	}
	return content, nil
}

// GenerateSubtasks asks the model for a subtask breakdown of the plan.
func (c *OpenAI) GenerateSubtasks(ctx context.Context, plan *model.ExecutionPlan) ([]model.Subtask, error) {
	prompt, err := renderPrompt("subtasks.md", map[string]string{
		"Content": plan.Content,
	})
	if err != nil {
		return nil, err
	}

	reply, err := c.complete(ctx, "subtask generation", subtaskTimeout, prompt)
	if err != nil {
		return nil, err
	}

	subtasks := ExtractSubtasks(reply)
	if len(subtasks) == 0 {
		return nil, chop.New(chop.CodeAssistantBadReply, "no usable subtasks in assistant reply")
	}
	return subtasks, nil
}

// SplitSubtask asks the model to split one subtask.
func (c *OpenAI) SplitSubtask(ctx context.Context, st model.Subtask) ([]model.Subtask, error) {
	prompt, err := renderPrompt("split.md", map[string]any{
		"Title":          st.Title,
		"Description":    st.Description,
		"Criteria":       "- " + strings.Join(st.AcceptanceCriteria, "\n- "),
		"EstimatedHours": st.EstimatedHours,
	})
	if err != nil {
		return nil, err
	}

	reply, err := c.complete(ctx, "subtask split", planTimeout, prompt)
	if err != nil {
		return nil, err
	}

	parts := ExtractSubtasks(reply)
	if len(parts) < 2 {
		return nil, chop.New(chop.CodeAssistantBadReply, "assistant split produced fewer than two parts")
	}
	for i := range parts {
		parts[i].ID = model.ChildID(st.ID, i+1)
	}
	return parts, nil
}

// Resilient wraps a primary assistant with the deterministic fallback.
// Remote failures are logged and absorbed; callers always get a result.
type Resilient struct {
	Primary  Assistant
	Fallback Fallback
	Logger   *slog.Logger
}

var _ Assistant = (*Resilient)(nil)

// NewResilient builds the standard assistant stack. A nil primary (no API
// key configured) runs on the fallback alone.
func NewResilient(primary Assistant, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{Primary: primary, Logger: logger}
}

func (r *Resilient) GenerateClarificationQuestions(ctx context.Context, issue model.Issue) ([]model.ClarificationQuestion, error) {
	if r.Primary != nil {
		out, err := r.Primary.GenerateClarificationQuestions(ctx, issue)
		if err == nil {
			return out, nil
		}
		r.Logger.Warn("clarification generation failed, using fallback", "error", err)
	}
	return r.Fallback.GenerateClarificationQuestions(ctx, issue)
}

func (r *Resilient) GenerateExecutionPlan(ctx context.Context, issue model.Issue, questions []model.ClarificationQuestion) (string, error) {
	if r.Primary != nil {
		out, err := r.Primary.GenerateExecutionPlan(ctx, issue, questions)
		if err == nil {
			return out, nil
		}
		r.Logger.Warn("plan generation failed, using fallback", "error", err)
	}
	return r.Fallback.GenerateExecutionPlan(ctx, issue, questions)
}

func (r *Resilient) GenerateSubtasks(ctx context.Context, plan *model.ExecutionPlan) ([]model.Subtask, error) {
	if r.Primary != nil {
		out, err := r.Primary.GenerateSubtasks(ctx, plan)
		if err == nil {
			return out, nil
		}
		r.Logger.Warn("subtask generation failed, using fallback", "error", err)
	}
	return r.Fallback.GenerateSubtasks(ctx, plan)
}

func (r *Resilient) SplitSubtask(ctx context.Context, st model.Subtask) ([]model.Subtask, error) {
	if r.Primary != nil {
		out, err := r.Primary.SplitSubtask(ctx, st)
		if err == nil {
			return out, nil
		}
		r.Logger.Warn("assistant split failed, using fallback", "error", err)
	}
	return r.Fallback.SplitSubtask(ctx, st)
}
