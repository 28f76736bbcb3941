package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
)

func TestFormatRuleLine(t *testing.T) {
	tests := []struct {
		name string
		rule rules.RuleFile
		want string
	}{
		{
			name: "nested folder",
			rule: rules.NewRuleFile("style.md", rules.EditorCursor),
			want: "[Cursor]       .cursor/rules/style.md",
		},
		{
			name: "project root",
			rule: rules.NewRuleFile("rules.md", rules.EditorWindsurf),
			want: "[Windsurf]     rules.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRuleLine(tt.rule))
		})
	}
}

func TestFormatGlobalRuleLine(t *testing.T) {
	assert.Equal(t, "plain", FormatGlobalRuleLine(rules.GlobalRule{Name: "plain"}))
	assert.Equal(t, "web (Cline) #react #css", FormatGlobalRuleLine(rules.GlobalRule{
		Name:       "web",
		EditorType: rules.EditorCline,
		Tags:       []string{"react", "css"},
	}))
}

func TestFormatSavedAt(t *testing.T) {
	assert.Equal(t, "unknown", FormatSavedAt(0))
	assert.Equal(t, "unknown", FormatSavedAt(-5))

	ts := time.Date(2024, 3, 9, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "2024-03-09 14:30", FormatSavedAt(ts.UnixMilli()))
}

func TestFormatGlobalPreview(t *testing.T) {
	out := formatGlobalPreview(rules.GlobalRule{
		Name:       "api.md",
		Content:    "---\ndescription: API conventions\n---\nUse REST.",
		Tags:       []string{"api"},
		EditorType: rules.EditorCursor,
	})

	assert.Contains(t, out, "Name:    api.md")
	assert.Contains(t, out, "Summary: API conventions")
	assert.Contains(t, out, "Source:  Cursor")
	assert.Contains(t, out, "Tags:    api")
	assert.Contains(t, out, "Saved:   unknown")
	assert.Contains(t, out, "Use REST.")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 6, "hello…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
		{"a\nb", 5, "a b"},
		{"héllo wörld", 4, "hél…"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.width), "truncate(%q, %d)", tt.in, tt.width)
	}
}

func TestView(t *testing.T) {
	m := NewModel(context.Background(), nil, nil, nil)
	assert.Equal(t, "Initializing...", m.View())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = updated.(Model)
	m.projectRules = []rules.RuleFile{rules.NewRuleFile("style.md", rules.EditorCursor)}
	m.editorType = rules.EditorCursor
	m.target = rules.EditorCursor

	view := m.View()
	assert.Contains(t, view, "Project Rules")
	assert.Contains(t, view, "Global Rules")
	assert.Contains(t, view, ".cursor/rules/style.md")
	assert.Contains(t, view, "editor: Cursor")

	m.tab = TabGlobal
	assert.Contains(t, m.View(), "No global rules")

	m.mode = modeHelp
	assert.Contains(t, m.View(), "RULES MANAGER HELP")
}
