package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSettingsSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSettingsSchema(&buf))

	var schema map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	entry, ok := props["rules-manager.globalRules"].(map[string]any)
	require.True(t, ok, "schema lacks the global rules key")
	assert.Equal(t, "array", entry["type"])

	text := buf.String()
	for _, want := range []string{`"timestamp"`, `"editorType"`, `"VSCodeCopilot"`} {
		assert.Contains(t, text, want)
	}
}

func TestPrintSettingsPath(t *testing.T) {
	cfg := testConfig(t)
	useConfig(t, cfg)

	var buf bytes.Buffer
	printSettingsPath(&buf)
	assert.Contains(t, buf.String(), "backend: file")
	assert.Contains(t, buf.String(), cfg.Settings.Path)
	assert.Contains(t, buf.String(), "rules-manager.globalRules")

	cfg.Settings.Backend = "sqlite"
	useConfig(t, cfg)
	buf.Reset()
	printSettingsPath(&buf)
	assert.Contains(t, buf.String(), cfg.Settings.DBPath)
}
