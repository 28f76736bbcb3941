package tui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/aymanbagabas/go-udiff"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/jingkaihe/rulesmgr/pkg/panel"
	"github.com/jingkaihe/rulesmgr/pkg/projectrules"
	"github.com/jingkaihe/rulesmgr/pkg/ruleinput"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
)

// Sender delivers panel requests; *panel.Handle satisfies it.
type Sender interface {
	Send(ctx context.Context, req panel.Request) (panel.Response, error)
}

// Launcher builds the editor process for a file.
type Launcher func(path string) *exec.Cmd

// DeferredOpener is a projectrules.Opener that remembers the last path
// instead of opening it, so the model can suspend the UI and run the editor
// itself.
type DeferredOpener struct {
	mu   sync.Mutex
	path string
}

// Open records path.
func (o *DeferredOpener) Open(_ context.Context, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.path = path
	return nil
}

// Take returns and clears the recorded path.
func (o *DeferredOpener) Take() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.path
	o.path = ""
	return p
}

// pending carries answers between consecutive prompts.
type pending struct {
	name       string
	editorType rules.EditorType
	globalName string
	content    string
}

// Model is the rules panel
type Model struct {
	ctx    context.Context
	sender Sender
	opener *DeferredOpener
	launch Launcher

	tab          Tab
	editorType   rules.EditorType
	target       rules.EditorType
	projectRules []rules.RuleFile
	globalRules  []rules.GlobalRule
	ruleCursor   int
	globalCursor int
	ruleFilter   string
	globalQuery  string
	globalSource rules.EditorType

	mode    mode
	purpose inputPurpose
	confirm confirmPurpose
	input   textinput.Model
	pending pending

	preview     viewport.Model
	previewKey  string
	status      string
	statusError bool

	width  int
	height int
	ready  bool

	titleStyle    lipgloss.Style
	activeTab     lipgloss.Style
	inactiveTab   lipgloss.Style
	selectedStyle lipgloss.Style
	dimStyle      lipgloss.Style
	errorStyle    lipgloss.Style
	statusStyle   lipgloss.Style
}

// NewModel creates the panel model. opener must be the opener the project
// store was built with; launch may be nil, in which case editing is
// unavailable.
func NewModel(ctx context.Context, sender Sender, opener *DeferredOpener, launch Launcher) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.CharLimit = 256
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

	vp := viewport.New(0, 0)

	return Model{
		ctx:           ctx,
		sender:        sender,
		opener:        opener,
		launch:        launch,
		input:         ti,
		preview:       vp,
		status:        "Loading...",
		titleStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7")).Bold(true),
		activeTab:     lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("205")).Padding(0, 1).Bold(true),
		inactiveTab:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		errorStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true),
		statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Background(lipgloss.Color("236")).Padding(0, 1),
	}
}

type responseMsg struct {
	resp     panel.Response
	err      error
	openPath string
	conflict *projectrules.Conflict
}

type previewMsg struct {
	key     string
	content string
	err     error
}

type editorClosedMsg struct {
	err error
}

type globalEditedMsg struct {
	name string
	tags []string
	old  string
	path string
	err  error
}

// Init requests the initial state
func (m Model) Init() tea.Cmd {
	return m.send(panel.Ready{})
}

func (m Model) send(req panel.Request) tea.Cmd {
	ctx, sender, opener := m.ctx, m.sender, m.opener
	return func() tea.Msg {
		resp, err := sender.Send(ctx, req)
		msg := responseMsg{resp: resp, err: err}
		if opener != nil {
			msg.openPath = opener.Take()
		}
		return msg
	}
}

// addToProject sends AddGlobalRuleToProject. Without force an existing file is
// not overwritten; the conflict is reported back so the user can confirm.
func (m Model) addToProject(name string, force bool) tea.Cmd {
	ctx, sender, opener := m.ctx, m.sender, m.opener
	return func() tea.Msg {
		var conflict *projectrules.Conflict
		req := panel.AddGlobalRuleToProject{
			Name: name,
			Confirm: func(_ context.Context, c projectrules.Conflict) bool {
				if force {
					return true
				}
				conflict = &c
				return false
			},
		}
		resp, err := sender.Send(ctx, req)
		msg := responseMsg{resp: resp, err: err}
		if opener != nil {
			msg.openPath = opener.Take()
		}
		if conflict != nil && errors.Is(err, rules.ErrUserCancelled) {
			msg.conflict = conflict
			msg.err = nil
		}
		return msg
	}
}

func (m Model) visibleRules() []rules.RuleFile {
	list, err := projectrules.Filter(m.projectRules, m.ruleFilter)
	if err != nil {
		return nil
	}
	return list
}

func (m Model) selectedRule() (rules.RuleFile, bool) {
	list := m.visibleRules()
	if m.ruleCursor < 0 || m.ruleCursor >= len(list) {
		return rules.RuleFile{}, false
	}
	return list[m.ruleCursor], true
}

func (m Model) selectedGlobal() (rules.GlobalRule, bool) {
	if m.globalCursor < 0 || m.globalCursor >= len(m.globalRules) {
		return rules.GlobalRule{}, false
	}
	return m.globalRules[m.globalCursor], true
}

func clamp(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

func ruleKey(r rules.RuleFile) string {
	return string(r.EditorType) + "/" + r.FileName
}

// refreshPreview updates the preview pane for the current selection. Global
// rules carry their content; project rules are fetched.
func (m *Model) refreshPreview() tea.Cmd {
	switch m.tab {
	case TabGlobal:
		g, ok := m.selectedGlobal()
		if !ok {
			m.setPreview("", m.dimStyle.Render("No global rules"))
			return nil
		}
		m.setPreview("global/"+g.Name, formatGlobalPreview(g))
		return nil
	default:
		r, ok := m.selectedRule()
		if !ok {
			m.setPreview("", m.dimStyle.Render("No project rules"))
			return nil
		}
		key := ruleKey(r)
		ctx, sender := m.ctx, m.sender
		return func() tea.Msg {
			resp, err := sender.Send(ctx, panel.ReadRule{FileName: r.FileName, EditorType: r.EditorType})
			return previewMsg{key: key, content: resp.Content, err: err}
		}
	}
}

func (m *Model) setPreview(key, content string) {
	if key != m.previewKey {
		m.preview.GotoTop()
	}
	m.previewKey = key
	m.preview.SetContent(content)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusError = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusError = true
}

func (m *Model) prompt(purpose inputPurpose, placeholder, value string) tea.Cmd {
	m.mode = modeInput
	m.purpose = purpose
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) ask(purpose confirmPurpose, question string) {
	m.mode = modeConfirm
	m.confirm = purpose
	m.setStatus(question + " [y/N]")
}

// Update handles the message updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case responseMsg:
		return m.handleResponse(msg)

	case previewMsg:
		if r, ok := m.selectedRule(); ok && m.tab == TabProject && ruleKey(r) == msg.key {
			if msg.err != nil {
				m.setPreview(msg.key, m.errorStyle.Render(msg.err.Error()))
			} else {
				m.setPreview(msg.key, msg.content)
			}
		}
		return m, nil

	case editorClosedMsg:
		if msg.err != nil {
			m.setError(errors.Wrap(msg.err, "editor exited with an error"))
		}
		cmd := m.refreshPreview()
		return m, cmd

	case globalEditedMsg:
		return m.handleGlobalEdited(msg)

	case tea.KeyMsg:
		switch m.mode {
		case modeInput:
			return m.updateInput(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeHelp:
			m.mode = modeBrowse
			return m, nil
		default:
			return m.updateBrowse(msg)
		}
	}

	var cmd tea.Cmd
	if m.mode == modeInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) handleResponse(msg responseMsg) (tea.Model, tea.Cmd) {
	resp := msg.resp
	if resp.EditorType != "" {
		m.editorType = resp.EditorType
		if m.target == "" {
			m.target = resp.EditorType
		}
	}
	// Failed requests only carry the lists they managed to rebuild.
	if resp.RefreshesRules() && (msg.err == nil || resp.Rules != nil) {
		m.projectRules = resp.Rules
		m.ruleCursor = clamp(m.ruleCursor, len(m.visibleRules()))
	}
	if resp.RefreshesGlobalRules() && (msg.err == nil || resp.GlobalRules != nil) {
		m.globalRules = resp.GlobalRules
		m.globalCursor = clamp(m.globalCursor, len(m.globalRules))
	}

	switch {
	case msg.conflict != nil:
		m.setPreview("diff", udiff.Unified(msg.conflict.Path, msg.conflict.Path, msg.conflict.Existing, msg.conflict.Incoming))
		m.ask(confirmOverwrite, fmt.Sprintf("%s already exists. Overwrite?", msg.conflict.Path))
		return m, nil
	case msg.err != nil:
		m.setError(msg.err)
	case resp.Notice != "":
		m.setStatus(resp.Notice)
	case resp.Command == panel.CmdReady:
		m.setStatus("Ready")
	}

	cmds := []tea.Cmd{m.refreshPreview()}
	if msg.openPath != "" {
		cmds = append(cmds, m.openInEditor(msg.openPath))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) openInEditor(path string) tea.Cmd {
	if m.launch == nil {
		m.setStatus("Saved " + path + " (no editor configured)")
		return nil
	}
	return tea.ExecProcess(m.launch(path), func(err error) tea.Msg {
		return editorClosedMsg{err: err}
	})
}

func (m *Model) editGlobalContent(g rules.GlobalRule) tea.Cmd {
	if m.launch == nil {
		m.setError(errors.New("no editor configured"))
		return nil
	}
	f, err := os.CreateTemp("", "rulesmgr-global-*.md")
	if err != nil {
		m.setError(errors.Wrap(err, "failed to create temporary file"))
		return nil
	}
	_, werr := f.WriteString(g.Content)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(f.Name())
		m.setError(errors.New("failed to write temporary file"))
		return nil
	}

	edited := globalEditedMsg{name: g.Name, tags: g.Tags, old: g.Content, path: f.Name()}
	return tea.ExecProcess(m.launch(f.Name()), func(err error) tea.Msg {
		edited.err = err
		return edited
	})
}

func (m Model) handleGlobalEdited(msg globalEditedMsg) (tea.Model, tea.Cmd) {
	defer os.Remove(msg.path)
	if msg.err != nil {
		m.setError(errors.Wrap(msg.err, "editor exited with an error"))
		return m, nil
	}
	data, err := os.ReadFile(msg.path)
	if err != nil {
		m.setError(errors.Wrap(err, "failed to read edited rule"))
		return m, nil
	}
	if string(data) == msg.old {
		m.setStatus("No changes to " + msg.name)
		return m, nil
	}
	return m, m.send(panel.EditGlobalRule{Name: msg.name, Content: string(data), Tags: msg.tags})
}

func (m Model) moveCursor(delta int) (Model, tea.Cmd) {
	if m.tab == TabGlobal {
		m.globalCursor = clamp(m.globalCursor+delta, len(m.globalRules))
	} else {
		m.ruleCursor = clamp(m.ruleCursor+delta, len(m.visibleRules()))
	}
	cmd := m.refreshPreview()
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "?":
		m.mode = modeHelp
		return m, nil
	case "tab", "shift+tab":
		if m.tab == TabProject {
			m.tab = TabGlobal
		} else {
			m.tab = TabProject
		}
		cmd := m.refreshPreview()
		return m, cmd
	case "up", "k":
		return m.moveCursor(-1)
	case "down", "j":
		return m.moveCursor(1)
	case "pgup":
		m.preview.PageUp()
		return m, nil
	case "pgdown":
		m.preview.PageDown()
		return m, nil
	case "r":
		if m.tab == TabGlobal {
			return m, m.send(panel.SearchGlobalRules{Query: m.globalQuery, Source: m.globalSource})
		}
		return m, m.send(panel.GetRules{})
	}

	if m.tab == TabGlobal {
		return m.updateBrowseGlobal(msg)
	}
	return m.updateBrowseProject(msg)
}

func (m Model) updateBrowseProject(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "n":
		m.pending = pending{editorType: m.target}
		cmd := m.prompt(inputCreateName, "rule file name, e.g. my-rule", "")
		return m, cmd
	case "t":
		m.target = nextEditorType(m.target, false)
		m.setStatus("New rules go to " + m.target.String())
		return m, nil
	case "/":
		cmd := m.prompt(inputFilter, "filter, e.g. *.md or cursor", m.ruleFilter)
		return m, cmd
	}

	r, ok := m.selectedRule()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "enter", "o":
		return m, m.send(panel.EditRule{FileName: r.FileName, EditorType: r.EditorType})
	case "d":
		m.pending = pending{name: r.FileName, editorType: r.EditorType}
		m.ask(confirmDeleteRule, fmt.Sprintf("Delete rule file %s?", r.FullPath))
		return m, nil
	case "g":
		m.pending = pending{name: r.FileName, editorType: r.EditorType}
		cmd := m.prompt(inputGlobalName, "global rule name", r.FileName)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateBrowseGlobal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "/":
		cmd := m.prompt(inputSearch, "search by name or tag", m.globalQuery)
		return m, cmd
	case "s":
		m.globalSource = nextEditorType(m.globalSource, true)
		return m, m.send(panel.SearchGlobalRules{Query: m.globalQuery, Source: m.globalSource})
	}

	g, ok := m.selectedGlobal()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "enter", "a":
		m.pending = pending{name: g.Name}
		return m, m.addToProject(g.Name, false)
	case "e":
		cmd := m.editGlobalContent(g)
		return m, cmd
	case "T":
		m.pending = pending{name: g.Name, content: g.Content}
		cmd := m.prompt(inputEditTags, "tags, comma separated (max 5)", strings.Join(g.Tags, ", "))
		return m, cmd
	case "d":
		m.pending = pending{name: g.Name}
		m.ask(confirmDeleteGlobal, fmt.Sprintf("Delete global rule %q?", g.Name))
		return m, nil
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		m.setStatus("Cancelled")
		return m, nil
	case "enter":
		value := m.input.Value()
		m.mode = modeBrowse
		m.input.Blur()
		return m.submitInput(value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitInput(value string) (tea.Model, tea.Cmd) {
	switch m.purpose {
	case inputCreateName:
		if err := ruleinput.ValidateFileName(value); err != nil {
			m.setError(err)
			cmd := m.prompt(inputCreateName, "rule file name, e.g. my-rule", value)
			return m, cmd
		}
		m.pending.name = strings.TrimSpace(value)
		cmd := m.prompt(inputCreateFormat, "format: "+strings.Join(ruleinput.Formats, " "), ruleinput.DefaultFormat)
		return m, cmd

	case inputCreateFormat:
		if _, err := ruleinput.ParseFormat(value); err != nil {
			m.setError(err)
			cmd := m.prompt(inputCreateFormat, "format: "+strings.Join(ruleinput.Formats, " "), value)
			return m, cmd
		}
		return m, m.send(panel.CreateRule{Name: m.pending.name, EditorType: m.pending.editorType, Format: value})

	case inputGlobalName:
		name := strings.TrimSpace(value)
		if name == "" {
			name = m.pending.name
		}
		m.pending.globalName = name
		cmd := m.prompt(inputGlobalTags, "tags, comma separated (max 5), e.g. web, frontend", "")
		return m, cmd

	case inputGlobalTags:
		return m, m.send(panel.SaveRuleAsGlobal{
			RuleName:   m.pending.name,
			EditorType: m.pending.editorType,
			GlobalName: m.pending.globalName,
			Tags:       ruleinput.ParseTags(value),
		})

	case inputEditTags:
		return m, m.send(panel.EditGlobalRule{Name: m.pending.name, Content: m.pending.content, Tags: ruleinput.ParseTags(value)})

	case inputFilter:
		if _, err := projectrules.Filter(nil, value); err != nil {
			m.setError(err)
			return m, nil
		}
		m.ruleFilter = strings.TrimSpace(value)
		m.ruleCursor = clamp(0, len(m.visibleRules()))
		cmd := m.refreshPreview()
		return m, cmd

	case inputSearch:
		m.globalQuery = value
		m.globalCursor = 0
		return m, m.send(panel.SearchGlobalRules{Query: value, Source: m.globalSource})
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	m.mode = modeBrowse
	yes := msg.String() == "y" || msg.String() == "Y"
	if !yes {
		m.setStatus("Cancelled")
		cmd := m.refreshPreview()
		return m, cmd
	}

	switch m.confirm {
	case confirmDeleteRule:
		return m, m.send(panel.DeleteRule{FileName: m.pending.name, EditorType: m.pending.editorType})
	case confirmDeleteGlobal:
		return m, m.send(panel.DeleteGlobalRule{Name: m.pending.name})
	case confirmOverwrite:
		return m, m.addToProject(m.pending.name, true)
	}
	return m, nil
}
