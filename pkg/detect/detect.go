// Package detect picks the default editor type for a session from explicit
// configuration or from hints left in the environment by the host editor.
package detect

import (
	"strings"

	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
)

// Fallback is used when nothing in the environment identifies the host.
const Fallback = rules.EditorVSCodeCopilot

// EditorType returns override when it is set, otherwise the editor type
// suggested by environ (in os.Environ form), otherwise Fallback.
func EditorType(override string, environ []string) (rules.EditorType, error) {
	if strings.TrimSpace(override) != "" {
		t, err := rules.ParseEditorType(override)
		if err != nil {
			return "", errors.Wrap(err, "invalid editor_type")
		}
		return t, nil
	}
	return FromEnv(environ), nil
}

// FromEnv inspects environment variables set by editor terminals.
func FromEnv(environ []string) rules.EditorType {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}

	if env["CURSOR_TRACE_ID"] != "" || strings.EqualFold(env["TERM_PROGRAM"], "cursor") {
		return rules.EditorCursor
	}
	for k := range env {
		if strings.HasPrefix(strings.ToUpper(k), "WINDSURF") {
			return rules.EditorWindsurf
		}
	}
	if strings.EqualFold(env["TERM_PROGRAM"], "windsurf") {
		return rules.EditorWindsurf
	}
	if strings.EqualFold(env["TERM_PROGRAM"], "vscode") {
		return rules.EditorCline
	}
	return Fallback
}
