package tui

import (
	"strings"

	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
)

// Tab identifies which list the panel shows.
type Tab int

const (
	TabProject Tab = iota
	TabGlobal
)

func (t Tab) String() string {
	if t == TabGlobal {
		return "Global Rules"
	}
	return "Project Rules"
}

type mode int

const (
	modeBrowse mode = iota
	modeInput
	modeConfirm
	modeHelp
)

// inputPurpose says what a text prompt's answer is used for.
type inputPurpose int

const (
	inputCreateName inputPurpose = iota
	inputCreateFormat
	inputGlobalName
	inputGlobalTags
	inputEditTags
	inputFilter
	inputSearch
)

type confirmPurpose int

const (
	confirmDeleteRule confirmPurpose = iota
	confirmDeleteGlobal
	confirmOverwrite
)

// GetHelpText returns the key bindings of the panel
func GetHelpText() string {
	return `RULES MANAGER HELP

GENERAL
   Tab               → Switch between project and global rules
   ↑/↓, k/j          → Move selection
   PgUp/PgDn         → Scroll preview
   r                 → Refresh
   ?                 → Toggle this help
   q, Ctrl+C         → Quit

PROJECT RULES
   Enter, o          → Open rule in editor
   n                 → New rule
   d                 → Delete rule
   g                 → Save rule as global
   t                 → Cycle editor type used for new rules
   /                 → Filter by path (globs like *.md work)

GLOBAL RULES
   Enter, a          → Add rule to project
   e                 → Edit rule content in editor
   T                 → Edit rule tags
   d                 → Delete rule
   s                 → Cycle source editor filter
   /                 → Search by name or tag

Esc cancels any prompt.`
}

// nextEditorType cycles through the given editor types, wrapping around.
// When includeAll is set an empty value, meaning "all", is part of the cycle.
func nextEditorType(current rules.EditorType, includeAll bool) rules.EditorType {
	cycle := rules.AllEditorTypes
	if includeAll {
		cycle = append([]rules.EditorType{""}, cycle...)
	}
	for i, t := range cycle {
		if t == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
