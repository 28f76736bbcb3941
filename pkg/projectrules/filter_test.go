package projectrules

import (
	"testing"

	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	records := []rules.RuleFile{
		rules.NewRuleFile("style.md", rules.EditorCline),
		rules.NewRuleFile("react.yaml", rules.EditorCursor),
		rules.NewRuleFile("copilot-instructions.md", rules.EditorVSCodeCopilot),
		rules.NewRuleFile("AGENTS.md", rules.EditorWindsurf),
	}
	paths := func(list []rules.RuleFile) []string {
		out := make([]string, 0, len(list))
		for _, r := range list {
			out = append(out, r.FullPath)
		}
		return out
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{".clinerules/style.md", ".cursor/rules/react.yaml", ".github/copilot-instructions.md", "AGENTS.md"}},
		{"CURSOR", []string{".cursor/rules/react.yaml"}},
		{"*.md", []string{".clinerules/style.md", ".github/copilot-instructions.md", "AGENTS.md"}},
		{".cursor/**", []string{".cursor/rules/react.yaml"}},
		{"*.{yaml,yml}", []string{".cursor/rules/react.yaml"}},
		{"nothing*", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Filter(records, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, paths(got))
		})
	}

	_, err := Filter(records, "[unclosed")
	assert.Error(t, err)
}
