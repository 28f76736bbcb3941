package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jingkaihe/rulesmgr/pkg/rulemeta"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
)

const (
	headerHeight = 2
	footerHeight = 3
	minListWidth = 24
)

// FormatRuleLine renders one project rule for the list
func FormatRuleLine(r rules.RuleFile) string {
	return fmt.Sprintf("%-14s %s", "["+r.EditorType.String()+"]", r.FullPath)
}

// FormatGlobalRuleLine renders one global rule for the list
func FormatGlobalRuleLine(g rules.GlobalRule) string {
	line := g.Name
	if g.EditorType != "" {
		line += " (" + g.EditorType.String() + ")"
	}
	if len(g.Tags) > 0 {
		line += " #" + strings.Join(g.Tags, " #")
	}
	return line
}

// FormatSavedAt renders a global rule timestamp in local time
func FormatSavedAt(millis int64) string {
	if millis <= 0 {
		return "unknown"
	}
	return time.UnixMilli(millis).Local().Format("2006-01-02 15:04")
}

func formatGlobalPreview(g rules.GlobalRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:    %s\n", g.Name)
	if summary := rulemeta.Summary(g.Name, g.Content); summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", summary)
	}
	if g.EditorType != "" {
		fmt.Fprintf(&b, "Source:  %s\n", g.EditorType)
	}
	if len(g.Tags) > 0 {
		fmt.Fprintf(&b, "Tags:    %s\n", strings.Join(g.Tags, ", "))
	}
	fmt.Fprintf(&b, "Saved:   %s\n\n", FormatSavedAt(g.Timestamp))
	b.WriteString(g.Content)
	return b.String()
}

func (m *Model) listWidth() int {
	w := m.width * 2 / 5
	if w < minListWidth {
		w = minListWidth
	}
	return w
}

func (m *Model) bodyHeight() int {
	h := m.height - headerHeight - footerHeight
	if h < 1 {
		h = 1
	}
	return h
}

// layout sizes the preview pane to the window
func (m *Model) layout() {
	m.preview.Width = m.width - m.listWidth() - 3
	if m.preview.Width < 10 {
		m.preview.Width = 10
	}
	m.preview.Height = m.bodyHeight()
	m.input.Width = m.width - 4
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.mode == modeHelp {
		return GetHelpText() + "\n\n" + m.dimStyle.Render("Press any key to return")
	}

	list := lipgloss.NewStyle().
		Width(m.listWidth()).
		Height(m.bodyHeight()).
		Render(m.listView())

	preview := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color("240")).
		PaddingLeft(1).
		Render(m.preview.View())

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.headerView(),
		lipgloss.JoinHorizontal(lipgloss.Top, list, preview),
		m.footerView(),
	)
}

func (m Model) headerView() string {
	tabs := make([]string, 0, 2)
	for _, t := range []Tab{TabProject, TabGlobal} {
		style := m.inactiveTab
		if t == m.tab {
			style = m.activeTab
		}
		tabs = append(tabs, style.Render(t.String()))
	}

	info := fmt.Sprintf(" editor: %s │ new rules: %s", m.editorType, m.target)
	switch {
	case m.tab == TabProject && m.ruleFilter != "":
		info += " │ filter: " + m.ruleFilter
	case m.tab == TabGlobal && (m.globalQuery != "" || m.globalSource != ""):
		source := "all"
		if m.globalSource != "" {
			source = m.globalSource.String()
		}
		info += fmt.Sprintf(" │ search: %q in %s", m.globalQuery, source)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, append(tabs, m.dimStyle.Render(info))...) + "\n"
}

func (m Model) listView() string {
	var lines []string
	width := m.listWidth() - 2

	if m.tab == TabGlobal {
		if len(m.globalRules) == 0 {
			return m.dimStyle.Render("No global rules. Press Tab, select a project rule and press g.")
		}
		for i, g := range m.globalRules {
			lines = append(lines, m.renderItem(i == m.globalCursor, truncate(FormatGlobalRuleLine(g), width)))
		}
	} else {
		visible := m.visibleRules()
		if len(visible) == 0 {
			return m.dimStyle.Render("No project rules. Press n to create one.")
		}
		for i, r := range visible {
			lines = append(lines, m.renderItem(i == m.ruleCursor, truncate(FormatRuleLine(r), width)))
		}
	}

	start := 0
	cursor := m.ruleCursor
	if m.tab == TabGlobal {
		cursor = m.globalCursor
	}
	if h := m.bodyHeight(); cursor >= h {
		start = cursor - h + 1
	}
	return strings.Join(lines[start:], "\n")
}

func (m Model) renderItem(selected bool, text string) string {
	if selected {
		return m.selectedStyle.Render("› " + text)
	}
	return "  " + text
}

func (m Model) footerView() string {
	var line string
	if m.mode == modeInput {
		line = m.input.View()
	}

	status := truncate(m.status, max(m.width-40, 20))
	if m.statusError {
		status = m.errorStyle.Render("✗ " + status)
	}
	bar := m.statusStyle.Render(status + " │ ?: Help │ Tab: Switch │ q: Quit")
	return "\n" + line + "\n" + bar
}
