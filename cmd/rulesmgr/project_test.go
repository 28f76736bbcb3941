package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/rulesmgr/pkg/projectrules"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T, root string) *projectrules.Store {
	t.Helper()
	project, err := projectrules.New(root)
	require.NoError(t, err)
	return project
}

func TestParseTypeFlag(t *testing.T) {
	got, err := parseTypeFlag("")
	require.NoError(t, err)
	assert.Equal(t, rules.EditorType(""), got)

	got, err = parseTypeFlag("cursor")
	require.NoError(t, err)
	assert.Equal(t, rules.EditorCursor, got)

	_, err = parseTypeFlag("zed")
	assert.Error(t, err)
}

func TestResolveRuleRef(t *testing.T) {
	ctx := context.Background()
	project := newProject(t, t.TempDir())
	require.NoError(t, project.Create(ctx, "shared.md", rules.EditorCline, "a"))
	require.NoError(t, project.Create(ctx, "shared.md", rules.EditorCursor, "b"))
	require.NoError(t, project.Create(ctx, "only.md", rules.EditorWindsurf, "c"))

	tests := []struct {
		name       string
		ref        string
		editorType rules.EditorType
		want       string
		wantErr    string
		notFound   bool
	}{
		{name: "unique file name", ref: "only.md", want: "only.md"},
		{name: "listed path", ref: ".cursor/rules/shared.md", want: ".cursor/rules/shared.md"},
		{name: "narrowed by type", ref: "shared.md", editorType: rules.EditorCline, want: ".clinerules/shared.md"},
		{name: "ambiguous", ref: "shared.md", wantErr: "exists for Cline, Cursor"},
		{name: "missing", ref: "nope.md", notFound: true},
		{name: "wrong type", ref: "only.md", editorType: rules.EditorCursor, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveRuleRef(ctx, project, tt.ref, tt.editorType)
			switch {
			case tt.notFound:
				assert.True(t, errors.Is(err, rules.ErrNotFound), "got %v", err)
			case tt.wantErr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got.FullPath)
			}
		})
	}
}

func TestProjectListOutput(t *testing.T) {
	ctx := context.Background()
	project := newProject(t, t.TempDir())
	require.NoError(t, project.Create(ctx, "api.md", rules.EditorCursor, "---\ndescription: API conventions\n---\nbody"))
	require.NoError(t, project.Create(ctx, "style.yaml", rules.EditorCline, "# Style guide\nrules: []"))

	t.Run("table", func(t *testing.T) {
		out, err := newProjectListOutput(ctx, project, "")
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, out.render(&buf, false))
		text := buf.String()
		assert.Contains(t, text, "Editor")
		assert.Contains(t, text, ".cursor/rules/api.md")
		assert.Contains(t, text, "API conventions")
		assert.Contains(t, text, ".clinerules/style.yaml")
		assert.Contains(t, text, "Style guide")
	})

	t.Run("json with match", func(t *testing.T) {
		out, err := newProjectListOutput(ctx, project, "*.md")
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, out.render(&buf, true))

		var decoded struct {
			Rules []struct {
				FileName   string `json:"fileName"`
				EditorType string `json:"editorType"`
				FullPath   string `json:"fullPath"`
				Summary    string `json:"summary"`
			} `json:"rules"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded.Rules, 1)
		assert.Equal(t, "api.md", decoded.Rules[0].FileName)
		assert.Equal(t, "Cursor", decoded.Rules[0].EditorType)
		assert.Equal(t, "API conventions", decoded.Rules[0].Summary)
	})

	t.Run("empty", func(t *testing.T) {
		out, err := newProjectListOutput(ctx, newProject(t, t.TempDir()), "")
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, out.render(&buf, false))
		assert.Equal(t, "No rule files found\n", buf.String())
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := newProjectListOutput(ctx, project, "[oops")
		assert.Error(t, err)
	})
}

func TestTruncateSummary(t *testing.T) {
	assert.Equal(t, "short", truncateSummary("short", 10))
	assert.Equal(t, "abcdefg...", truncateSummary("abcdefghijklmnop", 10))
}

func TestRunProjectCreateShowDelete(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	useConfig(t, cfg)
	path := filepath.Join(cfg.ProjectRoot, ".cursor", "rules", "style.md")

	require.NoError(t, runProjectCreate(ctx, "style", &ProjectCreateConfig{Format: ".md", NoOpen: true}))
	require.FileExists(t, path)

	var buf bytes.Buffer
	require.NoError(t, runProjectShow(ctx, "style.md", &ProjectRuleConfig{}, &buf))
	assert.Contains(t, buf.String(), "# style")

	err := runProjectCreate(ctx, "style", &ProjectCreateConfig{Format: ".md", NoOpen: true})
	assert.True(t, errors.Is(err, rules.ErrAlreadyExists))

	answer(t, "n")
	require.NoError(t, runProjectDelete(ctx, "style.md", &ProjectRuleConfig{}))
	assert.FileExists(t, path)

	require.NoError(t, runProjectDelete(ctx, "style.md", &ProjectRuleConfig{Yes: true}))
	assert.NoFileExists(t, path)
	assert.NoDirExists(t, filepath.Dir(path))
}

func TestRunProjectCreateWithType(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	useConfig(t, cfg)

	require.NoError(t, runProjectCreate(ctx, "notes", &ProjectCreateConfig{EditorType: "windsurf", Format: "txt", NoOpen: true}))
	assert.FileExists(t, filepath.Join(cfg.ProjectRoot, "notes.txt"))

	err := runProjectCreate(ctx, "x", &ProjectCreateConfig{EditorType: "zed", NoOpen: true})
	assert.Error(t, err)
}

func TestRunAddGlobal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	useConfig(t, cfg)

	a, err := newApp(ctx, cfg, appOptions{noOpen: true})
	require.NoError(t, err)
	require.NoError(t, a.global.Save(ctx, "style.md", "new", nil, rules.EditorCline))
	require.NoError(t, a.project.Create(ctx, "style.md", rules.EditorCline, "old"))
	require.NoError(t, a.Close())
	path := filepath.Join(cfg.ProjectRoot, ".clinerules", "style.md")

	answer(t, "n")
	require.NoError(t, runAddGlobal(ctx, "style.md", &AddGlobalConfig{NoOpen: true}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	answer(t, "y")
	require.NoError(t, runAddGlobal(ctx, "style.md", &AddGlobalConfig{NoOpen: true}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	err = runAddGlobal(ctx, "missing", &AddGlobalConfig{NoOpen: true})
	assert.True(t, errors.Is(err, rules.ErrNotFound))
}

func TestConfirmOverwriteForce(t *testing.T) {
	confirm := confirmOverwrite(true)
	assert.True(t, confirm(context.Background(), projectrules.Conflict{Path: "x", Existing: "a", Incoming: "b"}))
}
