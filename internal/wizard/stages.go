package wizard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/randalmurphal/chopchop/internal/config"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/orchestrator"
	"github.com/randalmurphal/chopchop/internal/session"
)

// ---------------------- Configuration ----------------------

type configView struct {
	inputs  []textinput.Model
	focus   int
	synced  bool
	checked string
}

var configLabels = []string{"GitHub token", "Repository (owner/repo)", "OpenAI API key"}

func (v *configView) sync(m *Model, s session.State) {
	if v.synced {
		return
	}
	v.inputs = make([]textinput.Model, 3)
	values := []string{s.Config.GitHubPAT, s.Config.GitHubRepo, s.Config.OpenAIAPIKey}
	for i := range v.inputs {
		ti := textinput.New()
		ti.SetValue(values[i])
		ti.Width = 50
		if i == 0 || i == 2 {
			ti.EchoMode = textinput.EchoPassword
		}
		v.inputs[i] = ti
	}
	v.inputs[0].Focus()
	v.synced = true
}

func (v *configView) update(m *Model, msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down", "enter":
			if key.String() == "enter" && v.focus == len(v.inputs)-1 {
				v.commit(m)
				return m.advance()
			}
			v.setFocus((v.focus + 1) % len(v.inputs))
			return nil
		case "shift+tab", "up":
			v.setFocus((v.focus + len(v.inputs) - 1) % len(v.inputs))
			return nil
		case "ctrl+s":
			v.commit(m)
			return nil
		case "ctrl+t":
			return v.runChecks(m)
		}
	}
	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	return cmd
}

func (v *configView) setFocus(i int) {
	v.inputs[v.focus].Blur()
	v.focus = i
	v.inputs[v.focus].Focus()
}

// commit saves the form to the machine and the key-value store.
func (v *configView) commit(m *Model) {
	cfg := m.machine.State().Config
	cfg.GitHubPAT = strings.TrimSpace(v.inputs[0].Value())
	cfg.GitHubRepo = strings.TrimSpace(v.inputs[1].Value())
	cfg.OpenAIAPIKey = strings.TrimSpace(v.inputs[2].Value())
	m.machine.Dispatch(session.SetConfig{Config: cfg})
	if m.deps.KV != nil {
		_ = config.Save(m.deps.KV, cfg)
	}
}

// runChecks validates the token and repo access without blocking the UI.
func (v *configView) runChecks(m *Model) tea.Cmd {
	v.commit(m)
	cfg := m.machine.State().Config
	store, err := m.deps.NewStore(cfg.GitHubPAT, cfg.GitHubRepo)
	if err != nil {
		v.checked = "invalid repository: " + cfg.GitHubRepo
		return nil
	}
	m.busy = true
	return func() tea.Msg {
		ctx := context.Background()
		token := store.ValidateToken(ctx)
		read := store.ValidateRepoRead(ctx)
		write := store.ValidateRepoWrite(ctx)
		return checksDoneMsg{summary: fmt.Sprintf("token: %s  read: %s  write: %s",
			mark(token), mark(read), mark(write))}
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func (v *configView) view(m *Model, s session.State) string {
	var b strings.Builder
	for i, ti := range v.inputs {
		label := configLabels[i]
		if i == v.focus {
			label = m.styles.Selected.Render("> " + label)
		} else {
			label = "  " + label
		}
		b.WriteString(label + "\n  " + ti.View() + "\n\n")
	}
	if v.checked != "" {
		b.WriteString(m.styles.Subtle.Render(v.checked) + "\n")
	}
	b.WriteString(m.styles.Subtle.Render("tab: next field • ctrl+s: save • ctrl+t: test access • enter on last field: continue"))
	return b.String()
}

// ---------------------- Issue input ----------------------

type inputView struct {
	pasteMode bool
	ref       textinput.Model
	paste     textarea.Model
	synced    bool
}

func (v *inputView) sync(m *Model, s session.State) {
	if v.synced {
		return
	}
	v.ref = textinput.New()
	v.ref.Placeholder = "https://github.com/owner/repo/issues/123, owner/repo#123, or #123"
	v.ref.Width = 60
	v.ref.Focus()
	v.paste = textarea.New()
	v.paste.Placeholder = "# Issue title\n\nIssue body in markdown..."
	v.paste.SetWidth(72)
	v.paste.SetHeight(10)
	v.synced = true
}

func (v *inputView) update(m *Model, msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+o":
			v.pasteMode = !v.pasteMode
			if v.pasteMode {
				v.ref.Blur()
				return v.paste.Focus()
			}
			v.paste.Blur()
			v.ref.Focus()
			return nil
		case "enter":
			if !v.pasteMode {
				return v.fetch(m)
			}
		case "ctrl+d":
			if v.pasteMode {
				text := v.paste.Value()
				if strings.TrimSpace(text) == "" {
					return nil
				}
				m.machine.Dispatch(session.SetIssue{Issue: model.ParseIssueMarkdown(text)})
				return nil
			}
		}
	}
	var cmd tea.Cmd
	if v.pasteMode {
		v.paste, cmd = v.paste.Update(msg)
	} else {
		v.ref, cmd = v.ref.Update(msg)
	}
	return cmd
}

// fetch loads the referenced issue from GitHub off-thread.
func (v *inputView) fetch(m *Model) tea.Cmd {
	ref := strings.TrimSpace(v.ref.Value())
	if ref == "" {
		return nil
	}
	cfg := m.machine.State().Config
	store, err := m.deps.NewStore(cfg.GitHubPAT, cfg.GitHubRepo)
	if err != nil {
		m.machine.Dispatch(session.SetError{Err: err})
		return nil
	}
	m.busy = true
	return func() tea.Msg {
		issue, err := store.FetchIssue(context.Background(), ref)
		return fetchDoneMsg{issue: issue, err: err}
	}
}

func (v *inputView) view(m *Model, s session.State) string {
	var b strings.Builder
	if v.pasteMode {
		b.WriteString("Paste the issue markdown:\n\n" + v.paste.View() + "\n\n")
		b.WriteString(m.styles.Subtle.Render("ctrl+d: use pasted issue • ctrl+o: fetch by reference instead"))
	} else {
		b.WriteString("Issue reference:\n\n  " + v.ref.View() + "\n\n")
		b.WriteString(m.styles.Subtle.Render("enter: fetch • ctrl+o: paste markdown instead"))
	}
	if s.Issue != nil {
		b.WriteString("\n\n" + m.styles.Success.Render("Loaded: "+s.Issue.Title))
		if s.Issue.Number > 0 {
			b.WriteString(m.styles.Subtle.Render(fmt.Sprintf(" (#%d)", s.Issue.Number)))
		}
	}
	return b.String()
}

// ---------------------- Clarification ----------------------

type clarifyView struct {
	cursor  int
	editing bool
	answer  textinput.Model
}

func (v *clarifyView) sync(m *Model, s session.State) {
	if v.cursor >= len(s.Questions) {
		v.cursor = 0
	}
}

func (v *clarifyView) update(m *Model, msg tea.Msg) tea.Cmd {
	s := m.machine.State()
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if v.editing {
			var cmd tea.Cmd
			v.answer, cmd = v.answer.Update(msg)
			return cmd
		}
		return nil
	}

	if v.editing {
		switch key.String() {
		case "enter":
			m.machine.Dispatch(session.AnswerQuestion{
				ID:     s.Questions[v.cursor].ID,
				Answer: strings.TrimSpace(v.answer.Value()),
			})
			v.editing = false
			return nil
		case "esc":
			v.editing = false
			return nil
		}
		var cmd tea.Cmd
		v.answer, cmd = v.answer.Update(msg)
		return cmd
	}

	switch key.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(s.Questions)-1 {
			v.cursor++
		}
	case "enter":
		if len(s.Questions) == 0 {
			return nil
		}
		v.answer = textinput.New()
		v.answer.SetValue(s.Questions[v.cursor].Answer)
		v.answer.Width = 60
		v.answer.Focus()
		v.editing = true
	case "r":
		m.busy = true
		return runOp(func() error {
			return m.machine.GenerateQuestions(context.Background())
		})
	}
	return nil
}

func (v *clarifyView) view(m *Model, s session.State) string {
	var b strings.Builder
	for i, q := range s.Questions {
		cursor := "  "
		if i == v.cursor {
			cursor = "> "
		}
		line := cursor + q.Question
		if q.Required {
			line += m.styles.Warning.Render(" *")
		}
		if i == v.cursor {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line + "\n")
		if v.editing && i == v.cursor {
			b.WriteString("    " + v.answer.View() + "\n")
		} else if q.Answered() {
			b.WriteString("    " + m.styles.Success.Render(q.Answer) + "\n")
		} else {
			b.WriteString("    " + m.styles.Subtle.Render("(unanswered)") + "\n")
		}
	}
	b.WriteString("\n" + m.styles.Subtle.Render("enter: answer • r: regenerate questions • * required"))
	return b.String()
}

// ---------------------- Plan ----------------------

type planView struct {
	editor   textarea.Model
	editing  bool
	cursor   int
	syncedID string
}

func (v *planView) sync(m *Model, s session.State) {
	if s.Plan == nil || v.syncedID == s.Plan.ID {
		return
	}
	v.editor = textarea.New()
	v.editor.SetWidth(78)
	v.editor.SetHeight(14)
	v.editor.SetValue(s.Plan.Content)
	v.syncedID = s.Plan.ID
}

func (v *planView) update(m *Model, msg tea.Msg) tea.Cmd {
	s := m.machine.State()
	if s.Plan == nil {
		return nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if v.editing {
			var cmd tea.Cmd
			v.editor, cmd = v.editor.Update(msg)
			return cmd
		}
		return nil
	}

	if v.editing {
		switch key.String() {
		case "esc":
			m.machine.Dispatch(session.UpdatePlanContent{Content: v.editor.Value()})
			m.machine.Dispatch(session.RegenerateSteps{})
			v.editing = false
			v.editor.Blur()
			return nil
		}
		var cmd tea.Cmd
		v.editor, cmd = v.editor.Update(msg)
		return cmd
	}

	switch key.String() {
	case "e":
		v.editing = true
		return v.editor.Focus()
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(s.Plan.Steps)-1 {
			v.cursor++
		}
	case "g":
		if v.cursor < len(s.Plan.Steps) {
			m.machine.Dispatch(session.ToggleStepGrouped{ID: s.Plan.Steps[v.cursor].ID})
		}
	case "a":
		if v.cursor < len(s.Plan.Steps) {
			m.machine.Dispatch(session.ToggleStepAllowSplit{ID: s.Plan.Steps[v.cursor].ID})
		}
	case "r":
		m.busy = true
		return runOp(func() error {
			return m.machine.GeneratePlan(context.Background())
		})
	}
	return nil
}

func (v *planView) view(m *Model, s session.State) string {
	if s.Plan == nil {
		return m.styles.Subtle.Render("no plan yet")
	}
	if v.editing {
		return v.editor.View() + "\n\n" +
			m.styles.Subtle.Render("esc: apply edits and re-derive steps")
	}

	var b strings.Builder
	for i, step := range s.Plan.Steps {
		cursor := "  "
		if i == v.cursor {
			cursor = "> "
		}
		flags := ""
		if step.IsGroupedUnit {
			flags += " [grouped]"
		}
		if step.AllowSplit {
			flags += " [splittable]"
		}
		line := fmt.Sprintf("%s%d. %s%s", cursor, step.Order, step.Title, m.styles.Warning.Render(flags))
		if i == v.cursor {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if len(s.Plan.Steps) == 0 {
		b.WriteString(m.styles.Subtle.Render("no structured steps parsed from the plan\n"))
	}
	b.WriteString("\n" + m.styles.Subtle.Render("e: edit markdown • g: toggle grouped • a: toggle splittable • r: regenerate plan"))
	return b.String()
}

// ---------------------- Subtasks ----------------------

type subtasksView struct {
	cursor int
}

func (v *subtasksView) sync(m *Model, s session.State) {
	if v.cursor >= len(s.Subtasks) && len(s.Subtasks) > 0 {
		v.cursor = len(s.Subtasks) - 1
	}
}

func (v *subtasksView) update(m *Model, msg tea.Msg) tea.Cmd {
	s := m.machine.State()
	key, ok := msg.(tea.KeyMsg)
	if !ok || len(s.Subtasks) == 0 {
		return nil
	}
	switch key.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(s.Subtasks)-1 {
			v.cursor++
		}
	case "K", "shift+up":
		if v.cursor > 0 {
			m.machine.Dispatch(session.MoveSubtask{From: v.cursor, To: v.cursor - 1})
			v.cursor--
		}
	case "J", "shift+down":
		if v.cursor < len(s.Subtasks)-1 {
			m.machine.Dispatch(session.MoveSubtask{From: v.cursor, To: v.cursor + 1})
			v.cursor++
		}
	case "d":
		m.machine.Dispatch(session.RemoveSubtask{ID: s.Subtasks[v.cursor].ID})
		v.sync(m, m.machine.State())
	case "s":
		id := s.Subtasks[v.cursor].ID
		m.busy = true
		return runOp(func() error {
			return m.machine.SplitSubtask(context.Background(), id)
		})
	case "r":
		m.busy = true
		return runOp(func() error {
			return m.machine.GenerateSubtasks(context.Background())
		})
	}
	return nil
}

func (v *subtasksView) view(m *Model, s session.State) string {
	var b strings.Builder
	for i, st := range s.Subtasks {
		cursor := "  "
		if i == v.cursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%d. %s", cursor, st.Order, st.Title)
		if st.EstimatedHours > 0 {
			line += m.styles.Subtle.Render(fmt.Sprintf(" (%dh)", st.EstimatedHours))
		}
		if st.IsTooBig {
			line += m.styles.Warning.Render(" ⚠ too big")
		}
		if i == v.cursor {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line + "\n")
		if i == v.cursor {
			for _, c := range st.AcceptanceCriteria {
				b.WriteString(m.styles.Subtle.Render("      · "+c) + "\n")
			}
		}
	}
	b.WriteString("\n" + m.styles.Subtle.Render("J/K: reorder • d: delete • s: split • r: regenerate"))
	return b.String()
}

// ---------------------- Approval ----------------------

type approvalView struct {
	started bool
	done    bool
	saved   bool
}

func (v *approvalView) sync(m *Model, s session.State) {}

func (v *approvalView) update(m *Model, msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "enter", "c":
		if v.started {
			return nil
		}
		v.started = true
		return v.startCreation(m)
	case "w":
		s := m.machine.State()
		if m.deps.Plans != nil && s.Plan != nil && !v.saved {
			// Save the plan together with the breakdown under approval.
			plan := *s.Plan
			plan.Subtasks = append([]model.Subtask(nil), s.Subtasks...)
			if err := m.deps.Plans.SavePlan(&plan); err == nil {
				v.saved = true
			}
		}
	}
	return nil
}

// startCreation runs the orchestrator in the background and streams its
// progress snapshots back into the update loop.
func (v *approvalView) startCreation(m *Model) tea.Cmd {
	s := m.machine.State()
	store, err := m.deps.NewStore(s.Config.GitHubPAT, s.Config.GitHubRepo)
	if err != nil {
		m.machine.Dispatch(session.SetError{Err: err})
		v.started = false
		return nil
	}
	orch := m.deps.NewOrchestrator(store)

	ch := make(chan orchestrator.Progress, 16)
	m.progressCh = ch
	m.progress = nil
	m.busy = true

	subtasks := append([]model.Subtask(nil), s.Subtasks...)
	repo := s.Config.GitHubRepo
	parent := s.Issue
	create := func() tea.Msg {
		created, err := orch.CreateAll(context.Background(), subtasks, repo, parent,
			func(p orchestrator.Progress) { ch <- p })
		close(ch)
		return createDoneMsg{created: created, err: err}
	}
	return tea.Batch(create, waitProgress(ch))
}

func (v *approvalView) view(m *Model, s session.State) string {
	var b strings.Builder

	if !v.started {
		fmt.Fprintf(&b, "About to create %d issues in %s:\n\n", len(s.Subtasks), s.Config.GitHubRepo)
		for _, st := range s.Subtasks {
			b.WriteString(fmt.Sprintf("  %d. %s\n", st.Order, st.Title))
		}
		b.WriteString("\n" + m.styles.Subtle.Render("enter: create issues • w: save plan for later"))
		if v.saved {
			b.WriteString("\n" + m.styles.Success.Render("plan saved"))
		}
		return b.String()
	}

	for _, p := range m.progress {
		switch p.Status {
		case orchestrator.StatusCreating:
			fmt.Fprintf(&b, "%s creating %d/%d: %s\n",
				m.spin.View(), p.CurrentIssue, p.TotalIssues, p.CurrentTask)
		case orchestrator.StatusCompleted:
			b.WriteString(m.styles.Success.Render(fmt.Sprintf("✓ %d/%d %s", p.CurrentIssue, p.TotalIssues, p.CurrentTask)) + "\n")
		case orchestrator.StatusError:
			b.WriteString(m.styles.Error.Render(fmt.Sprintf("✗ %d/%d %s: %s", p.CurrentIssue, p.TotalIssues, p.CurrentTask, p.Error)) + "\n")
		}
	}

	if v.done {
		b.WriteString("\n")
		for _, c := range s.CreatedIssues {
			fmt.Fprintf(&b, "  #%d %s\n", c.Number, c.URL)
		}
		if s.Err == nil {
			b.WriteString("\n" + m.styles.Success.Render(fmt.Sprintf("Created %d issues.", len(s.CreatedIssues))))
		} else {
			b.WriteString("\n" + m.styles.Warning.Render(fmt.Sprintf("Stopped after %d issues. Created issues were kept.", len(s.CreatedIssues))))
		}
	}
	return b.String()
}
