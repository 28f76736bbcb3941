package rules

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorTypeFolders(t *testing.T) {
	assert.Equal(t, ".clinerules", EditorCline.Folder())
	assert.Equal(t, ".cursor/rules", EditorCursor.Folder())
	assert.Equal(t, ".github", EditorVSCodeCopilot.Folder())
	assert.Equal(t, "", EditorWindsurf.Folder())

	roots := 0
	for _, e := range AllEditorTypes {
		assert.True(t, e.Valid())
		if e.IsRoot() {
			roots++
		}
	}
	assert.Equal(t, 1, roots, "exactly one editor type maps to the project root")
	assert.False(t, EditorType("Zed").Valid())
	assert.False(t, EditorType("Zed").IsRoot())
}

func TestParseEditorType(t *testing.T) {
	tests := []struct {
		input    string
		expected EditorType
		wantErr  bool
	}{
		{"Cursor", EditorCursor, false},
		{"cursor", EditorCursor, false},
		{" vscodecopilot ", EditorVSCodeCopilot, false},
		{"WINDSURF", EditorWindsurf, false},
		{"cline", EditorCline, false},
		{"zed", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEditorType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestIsSupportedRuleFile(t *testing.T) {
	assert.True(t, IsSupportedRuleFile("rule.md"))
	assert.True(t, IsSupportedRuleFile("RULE.MD"))
	assert.True(t, IsSupportedRuleFile("config.Yml"))
	assert.True(t, IsSupportedRuleFile("a.yaml"))
	assert.True(t, IsSupportedRuleFile("a.json"))
	assert.True(t, IsSupportedRuleFile("a.txt"))
	assert.True(t, IsSupportedRuleFile("a.xml"))
	assert.False(t, IsSupportedRuleFile("a.mdc"))
	assert.False(t, IsSupportedRuleFile(".windsurfrules"))
	assert.False(t, IsSupportedRuleFile("main.go"))
}

func TestIsExcludedRootFile(t *testing.T) {
	assert.True(t, IsExcludedRootFile("README.md"))
	assert.True(t, IsExcludedRootFile("readme.md"))
	assert.True(t, IsExcludedRootFile("README_en.md"))
	assert.False(t, IsExcludedRootFile("RULES.md"))
}

func TestNewRuleFile(t *testing.T) {
	r := NewRuleFile("my-rule.md", EditorCursor)
	assert.Equal(t, RuleFile{
		FileName:   "my-rule.md",
		EditorType: EditorCursor,
		FullPath:   ".cursor/rules/my-rule.md",
		Source:     EditorCursor,
	}, r)

	root := NewRuleFile("AGENTS.md", EditorWindsurf)
	assert.Equal(t, "AGENTS.md", root.FullPath)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindAlreadyExists, KindOf(errors.Wrapf(ErrAlreadyExists, "rule file %q", "a.md")))
	assert.Equal(t, KindNotFound, KindOf(errors.Wrap(ErrNotFound, "x")))
	assert.Equal(t, KindUserCancelled, KindOf(ErrUserCancelled))
	assert.Equal(t, KindUnknownIO, KindOf(errors.New("disk on fire")))
}
