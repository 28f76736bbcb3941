// Package rulemeta extracts display metadata from rule file content.
package rulemeta

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// Meta is the frontmatter of a Markdown rule. Cursor style keys are
// recognised; everything else is ignored.
type Meta struct {
	Description string
	Globs       []string
	AlwaysApply bool
}

// Parse reads the YAML frontmatter of a Markdown document. A document without
// frontmatter yields a zero Meta.
func Parse(content string) (Meta, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert([]byte(content), &buf, parser.WithContext(pctx)); err != nil {
		return Meta{}, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return Meta{}, errors.Wrap(err, "invalid frontmatter")
	}

	var m Meta
	m.Description, _ = metaData["description"].(string)
	m.AlwaysApply, _ = metaData["alwaysApply"].(bool)
	m.Globs = toStrings(metaData["globs"])
	return m, nil
}

func toStrings(v any) []string {
	switch val := v.(type) {
	case string:
		var out []string
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

// Body returns content with any leading frontmatter block removed.
func Body(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
	}
	return content
}

// Summary returns a one line description of a rule file for listings: the
// frontmatter description of Markdown files, otherwise the first non-empty
// line with heading markers stripped.
func Summary(fileName, content string) string {
	if strings.EqualFold(filepath.Ext(fileName), ".md") {
		if m, err := Parse(content); err == nil && m.Description != "" {
			return m.Description
		}
		content = Body(content)
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return ""
}
