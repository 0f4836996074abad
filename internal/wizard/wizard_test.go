package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randalmurphal/chopchop/internal/assistant"
	"github.com/randalmurphal/chopchop/internal/config"
	"github.com/randalmurphal/chopchop/internal/issuestore"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/orchestrator"
	"github.com/randalmurphal/chopchop/internal/session"
	"github.com/randalmurphal/chopchop/internal/storage"
)

type stubStore struct {
	issue *model.Issue
	next  int
}

func (s *stubStore) FetchIssue(context.Context, string) (*model.Issue, error) {
	if s.issue == nil {
		return nil, errors.New("no issue")
	}
	return s.issue, nil
}

func (s *stubStore) CreateIssue(_ context.Context, owner, repo, title, _ string, _ []string) (*model.CreatedIssue, error) {
	s.next++
	return &model.CreatedIssue{
		Number: s.next,
		URL:    fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, repo, s.next),
		Title:  title,
	}, nil
}

func (s *stubStore) ValidateToken(context.Context) bool     { return true }
func (s *stubStore) ValidateRepoRead(context.Context) bool  { return true }
func (s *stubStore) ValidateRepoWrite(context.Context) bool { return true }

func newTestModel() (*Model, *stubStore) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &stubStore{
		issue: &model.Issue{ID: "ISS-1", Title: "Add dark mode", Body: "Users want a dark theme.", Number: 42},
	}
	machine := session.New(assistant.Fallback{}, logger)
	m := New(machine, Deps{
		KV:       storage.NewMemKV(),
		NewStore: func(string, string) (issuestore.Store, error) { return store, nil },
		NewOrchestrator: func(s issuestore.Store) *orchestrator.Orchestrator {
			return orchestrator.New(s, logger, orchestrator.WithPaceDelay(func(context.Context) {}))
		},
	})
	return m, store
}

// drain runs a command chain to completion, feeding every produced message
// back into the model the way the Bubbletea runtime would.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				drain(t, m, c)
			}
			return
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		if next != m {
			t.Fatal("model identity changed during update")
		}
	}
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	}
	panic("unknown key " + s)
}

func press(t *testing.T, m *Model, s string) {
	t.Helper()
	_, cmd := m.Update(key(s))
	drain(t, m, cmd)
}

func configured(m *Model) {
	m.machine.Dispatch(session.SetConfig{Config: config.AppConfig{
		GitHubPAT: "p", GitHubRepo: "octo/spoon", OpenAIAPIKey: "k",
	}})
}

func TestWizard_StartsAtConfig(t *testing.T) {
	m, _ := newTestModel()
	if got := m.machine.State().Current; got != session.StageConfig {
		t.Fatalf("start stage = %s", got)
	}
	if !strings.Contains(m.View(), "GitHub token") {
		t.Error("config view missing token field")
	}
}

func TestWizard_AdvanceRefusedWithoutConfig(t *testing.T) {
	m, _ := newTestModel()
	press(t, m, "ctrl+n")

	if got := m.machine.State().Current; got != session.StageConfig {
		t.Fatalf("stage = %s, want config after refused advance", got)
	}
	if !strings.Contains(m.View(), "missing required configuration") {
		t.Error("guard error not rendered")
	}
}

func TestWizard_FetchThenFullWalk(t *testing.T) {
	m, _ := newTestModel()
	configured(m)
	press(t, m, "ctrl+n") // config -> input

	m.inputView.ref.SetValue("#42")
	press(t, m, "enter") // fetch

	s := m.machine.State()
	if s.Issue == nil || s.Issue.Title != "Add dark mode" {
		t.Fatalf("issue not loaded: %+v", s.Issue)
	}

	press(t, m, "ctrl+n") // -> clarification, fallback questions generated
	s = m.machine.State()
	if s.Current != session.StageClarification || len(s.Questions) == 0 {
		t.Fatalf("clarification not reached: %s, %d questions", s.Current, len(s.Questions))
	}

	// Answer every required question through the view.
	for i, q := range s.Questions {
		if !q.Required {
			continue
		}
		m.clarifyView.cursor = i
		press(t, m, "enter")
		m.clarifyView.answer.SetValue("the whole app")
		press(t, m, "enter")
	}

	press(t, m, "ctrl+n") // -> plan
	s = m.machine.State()
	if s.Current != session.StagePlan || s.Plan == nil || len(s.Plan.Steps) == 0 {
		t.Fatalf("plan not generated: %s", s.Current)
	}

	press(t, m, "ctrl+n") // -> subtasks
	s = m.machine.State()
	if s.Current != session.StageSubtasks || len(s.Subtasks) == 0 {
		t.Fatalf("subtasks not generated: %s", s.Current)
	}

	press(t, m, "ctrl+n") // -> approval
	if got := m.machine.State().Current; got != session.StageApproval {
		t.Fatalf("stage = %s, want approval", got)
	}

	press(t, m, "enter") // create issues
	s = m.machine.State()
	if len(s.CreatedIssues) != len(s.Subtasks) {
		t.Errorf("created %d issues for %d subtasks", len(s.CreatedIssues), len(s.Subtasks))
	}
	if s.Err != nil {
		t.Errorf("unexpected error: %v", s.Err)
	}
}

func TestWizard_BackNavigationKeepsData(t *testing.T) {
	m, _ := newTestModel()
	configured(m)
	press(t, m, "ctrl+n")
	m.machine.Dispatch(session.SetIssue{Issue: model.Issue{ID: "ISS-1", Title: "T", Body: "B"}})
	press(t, m, "ctrl+n") // clarification

	press(t, m, "ctrl+p") // back to input
	s := m.machine.State()
	if s.Current != session.StageInput {
		t.Fatalf("stage = %s, want input", s.Current)
	}
	if len(s.Questions) == 0 {
		t.Error("questions cleared by backward navigation")
	}
}

func TestWizard_SavePlanKeepsSubtasks(t *testing.T) {
	m, _ := newTestModel()
	lib, err := storage.OpenPlanLibrary(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("open plan library: %v", err)
	}
	defer lib.Close()
	m.deps.Plans = lib

	configured(m)
	press(t, m, "ctrl+n")
	m.machine.Dispatch(session.SetIssue{Issue: model.Issue{ID: "ISS-1", Title: "T", Body: "B"}})
	press(t, m, "ctrl+n") // clarification
	for _, q := range m.machine.State().Questions {
		if q.Required {
			m.machine.Dispatch(session.AnswerQuestion{ID: q.ID, Answer: "the whole app"})
		}
	}
	press(t, m, "ctrl+n") // plan
	press(t, m, "ctrl+n") // subtasks
	press(t, m, "ctrl+n") // approval

	press(t, m, "w")

	s := m.machine.State()
	if len(s.Subtasks) == 0 {
		t.Fatal("no subtasks generated")
	}
	saved, err := lib.LoadPlan(s.Plan.ID)
	if err != nil {
		t.Fatalf("load saved plan: %v", err)
	}
	if len(saved.Subtasks) != len(s.Subtasks) {
		t.Errorf("saved %d subtasks, session has %d", len(saved.Subtasks), len(s.Subtasks))
	}
}

func TestWizard_BackNavigationAvailableWhileBusy(t *testing.T) {
	m, _ := newTestModel()
	configured(m)
	press(t, m, "ctrl+n")
	m.machine.Dispatch(session.SetIssue{Issue: model.Issue{ID: "ISS-1", Title: "T", Body: "B"}})
	press(t, m, "ctrl+n") // clarification

	m.busy = true

	// Forward navigation is swallowed during an operation.
	next, cmd := m.Update(key("ctrl+n"))
	if next != m || cmd != nil {
		t.Fatal("forward navigation must be ignored while busy")
	}
	if got := m.machine.State().Current; got != session.StageClarification {
		t.Fatalf("stage = %s, want clarification", got)
	}

	// Backward navigation still works.
	_, _ = m.Update(key("ctrl+p"))
	if got := m.machine.State().Current; got != session.StageInput {
		t.Errorf("stage = %s, want input after backward nav while busy", got)
	}
}

func TestWizard_BreadcrumbHighlightsCurrent(t *testing.T) {
	m, _ := newTestModel()
	crumb := m.breadcrumb(m.machine.State())
	if !strings.Contains(crumb, "Configuration") {
		t.Errorf("breadcrumb missing stage title: %q", crumb)
	}
}

func TestWizard_PasteModeParsesMarkdown(t *testing.T) {
	m, _ := newTestModel()
	configured(m)
	press(t, m, "ctrl+n")

	m.inputView.pasteMode = true
	m.inputView.paste.SetValue("# Pasted title\n\nPasted body.")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	drain(t, m, cmd)

	s := m.machine.State()
	if s.Issue == nil || s.Issue.Title != "Pasted title" {
		t.Fatalf("pasted issue not parsed: %+v", s.Issue)
	}
	if s.Issue.Body != "Pasted body." {
		t.Errorf("body = %q", s.Issue.Body)
	}
}
