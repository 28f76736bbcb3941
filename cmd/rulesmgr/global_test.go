package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jingkaihe/rulesmgr/pkg/globalrules"
	"github.com/jingkaihe/rulesmgr/pkg/settings"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGlobalStore(t *testing.T) *globalrules.Store {
	t.Helper()
	return globalrules.New(settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json")))
}

func TestRenderGlobalRules(t *testing.T) {
	list := []rules.GlobalRule{
		{Name: "web", Content: "x", Tags: []string{"react", "css"}, EditorType: rules.EditorCursor},
		{Name: "plain", Content: "y"},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderGlobalRules(&buf, list, false))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], "Name")
		assert.Contains(t, lines[2], "web")
		assert.Contains(t, lines[2], "Cursor")
		assert.Contains(t, lines[2], "react,css")
		assert.Contains(t, lines[2], "unknown")
		assert.Contains(t, lines[3], "-")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderGlobalRules(&buf, list, true))
		var decoded map[string][]rules.GlobalRule
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, list, decoded["globalRules"])
	})

	t.Run("empty json is an empty array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderGlobalRules(&buf, nil, true))
		assert.Contains(t, buf.String(), `"globalRules": []`)
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderGlobalRules(&buf, nil, false))
		assert.Equal(t, "No global rules found\n", buf.String())
	})
}

func TestSaveFileAsGlobal(t *testing.T) {
	ctx := context.Background()
	store := newGlobalStore(t)
	path := filepath.Join(t.TempDir(), "testing.md")
	require.NoError(t, os.WriteFile(path, []byte("write tests"), 0o644))

	name, err := saveFileAsGlobal(ctx, store, path, "", []string{"qa"}, rules.EditorCline)
	require.NoError(t, err)
	assert.Equal(t, "testing.md", name)

	rule, err := store.FindByName(ctx, "testing.md")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "write tests", rule.Content)
	assert.Equal(t, []string{"qa"}, rule.Tags)
	assert.Equal(t, rules.EditorCline, rule.EditorType)

	name, err = saveFileAsGlobal(ctx, store, path, " custom ", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "custom", name)

	_, err = saveFileAsGlobal(ctx, store, filepath.Join(t.TempDir(), "missing.md"), "", nil, "")
	assert.Error(t, err)
}

func TestExportImportLibrary(t *testing.T) {
	ctx := context.Background()
	source := newGlobalStore(t)
	require.NoError(t, source.Save(ctx, "web", "use react", []string{"frontend"}, rules.EditorCursor))
	require.NoError(t, source.Save(ctx, "db", "use sql", nil, ""))

	var buf bytes.Buffer
	n, err := exportLibrary(ctx, source, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "globalRules:")

	target := newGlobalStore(t)
	result, err := importLibrary(ctx, target, bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	assert.Equal(t, importResult{Imported: 2}, result)

	web, err := target.FindByName(ctx, "web")
	require.NoError(t, err)
	require.NotNil(t, web)
	assert.Equal(t, "use react", web.Content)
	assert.Equal(t, []string{"frontend"}, web.Tags)
	assert.Equal(t, rules.EditorCursor, web.EditorType)

	db, err := target.FindByName(ctx, "db")
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.Equal(t, rules.EditorType(""), db.EditorType)
}

func TestExportImportLibrary_KeepsOrder(t *testing.T) {
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)
	tick := 0
	source := globalrules.New(
		settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json")),
		globalrules.WithClock(func() time.Time {
			tick += 2
			return start.Add(time.Duration(tick) * time.Millisecond)
		}),
	)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, source.Save(ctx, name, name, nil, ""))
	}

	var buf bytes.Buffer
	_, err := exportLibrary(ctx, source, &buf)
	require.NoError(t, err)

	fixed := start.Add(time.Hour)
	target := globalrules.New(
		settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json")),
		globalrules.WithClock(func() time.Time { return fixed }),
	)
	_, err = importLibrary(ctx, target, bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)

	list, err := target.List(ctx)
	require.NoError(t, err)
	got := make([]string, 0, len(list))
	for _, r := range list {
		got = append(got, r.Name)
	}
	assert.Equal(t, []string{"c", "b", "a"}, got)
	assert.Greater(t, list[0].Timestamp, list[1].Timestamp)
	assert.Greater(t, list[1].Timestamp, list[2].Timestamp)
}

func TestImportLibrary(t *testing.T) {
	ctx := context.Background()

	t.Run("skip existing", func(t *testing.T) {
		store := newGlobalStore(t)
		require.NoError(t, store.Save(ctx, "web", "keep me", nil, ""))

		doc := "globalRules:\n  - name: web\n    content: replaced\n  - name: new\n    content: added\n"
		result, err := importLibrary(ctx, store, strings.NewReader(doc), true)
		require.NoError(t, err)
		assert.Equal(t, importResult{Imported: 1, Skipped: 1}, result)

		web, err := store.FindByName(ctx, "web")
		require.NoError(t, err)
		assert.Equal(t, "keep me", web.Content)
	})

	t.Run("replace existing", func(t *testing.T) {
		store := newGlobalStore(t)
		require.NoError(t, store.Save(ctx, "web", "old", nil, ""))

		result, err := importLibrary(ctx, store, strings.NewReader("globalRules:\n  - name: web\n    content: new\n"), false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "new", list[0].Content)
	})

	t.Run("drops unknown origin and caps tags", func(t *testing.T) {
		store := newGlobalStore(t)
		doc := "globalRules:\n  - name: r\n    content: x\n    editorType: Zed\n    tags: [a, b, c, d, e, f, g]\n"
		_, err := importLibrary(ctx, store, strings.NewReader(doc), false)
		require.NoError(t, err)

		r, err := store.FindByName(ctx, "r")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, rules.EditorType(""), r.EditorType)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, r.Tags)
	})

	t.Run("empty document", func(t *testing.T) {
		result, err := importLibrary(ctx, newGlobalStore(t), strings.NewReader(""), false)
		require.NoError(t, err)
		assert.Equal(t, importResult{}, result)
	})

	t.Run("missing name", func(t *testing.T) {
		store := newGlobalStore(t)
		doc := "globalRules:\n  - name: ok\n    content: y\n  - content: x\n"
		_, err := importLibrary(ctx, store, strings.NewReader(doc), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "global rule #2 has no name")

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := importLibrary(ctx, newGlobalStore(t), strings.NewReader("globalRules: [unclosed"), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode global rules")
	})
}

func TestEditContent(t *testing.T) {
	ctx := context.Background()

	var seen string
	edited, err := editContent(ctx, func(_ context.Context, path string) error {
		seen = path
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(path, append(data, []byte(" edited")...), 0o644)
	}, "rule.yaml", "original")
	require.NoError(t, err)
	assert.Equal(t, "original edited", edited)
	assert.Equal(t, ".yaml", filepath.Ext(seen))
	assert.NoFileExists(t, seen)

	_, err = editContent(ctx, func(context.Context, string) error {
		return errors.New("editor crashed")
	}, "rule", "x")
	assert.EqualError(t, err, "editor crashed")
}

func TestRunGlobalSaveAndEdit(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	useConfig(t, cfg)

	a, err := newApp(ctx, cfg, appOptions{noOpen: true})
	require.NoError(t, err)
	require.NoError(t, a.project.Create(ctx, "api.md", rules.EditorCursor, "rest"))
	require.NoError(t, a.Close())

	require.NoError(t, runGlobalSave(ctx, "api.md", &GlobalSaveConfig{Tags: "web, api"}))
	require.NoError(t, runGlobalSave(ctx, "api.md", &GlobalSaveConfig{Name: "api-conventions"}))

	require.Error(t, runGlobalSave(ctx, "", &GlobalSaveConfig{}))
	require.Error(t, runGlobalSave(ctx, "api.md", &GlobalSaveConfig{File: "x.md"}))

	require.NoError(t, runGlobalEdit(ctx, "api-conventions", &GlobalEditConfig{Tags: "rest", SetTags: true, NoEdit: true}))

	a, err = newApp(ctx, cfg, appOptions{noOpen: true})
	require.NoError(t, err)
	defer a.Close()

	list, err := a.global.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "api-conventions", list[0].Name)
	assert.Equal(t, "rest", list[0].Content)
	assert.Equal(t, []string{"rest"}, list[0].Tags)
	assert.Equal(t, rules.EditorCursor, list[0].EditorType)

	err = runGlobalEdit(ctx, "missing", &GlobalEditConfig{NoEdit: true})
	assert.True(t, errors.Is(err, rules.ErrNotFound))
}

func TestRunGlobalDelete(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	useConfig(t, cfg)

	a, err := newApp(ctx, cfg, appOptions{noOpen: true})
	require.NoError(t, err)
	require.NoError(t, a.global.Save(ctx, "web", "x", nil, ""))
	require.NoError(t, a.Close())

	answer(t, "no")
	require.NoError(t, runGlobalDelete(ctx, "web", false))

	var buf bytes.Buffer
	require.NoError(t, runGlobalSearch(ctx, "WE", &GlobalListConfig{}, &buf))
	assert.Contains(t, buf.String(), "web")

	require.NoError(t, runGlobalDelete(ctx, "web", true))
	buf.Reset()
	require.NoError(t, runGlobalSearch(ctx, "", &GlobalListConfig{}, &buf))
	assert.Equal(t, "No global rules found\n", buf.String())

	err = runGlobalDelete(ctx, "web", true)
	assert.True(t, errors.Is(err, rules.ErrNotFound))
}
