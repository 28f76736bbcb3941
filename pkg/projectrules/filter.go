package projectrules

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
)

// Filter returns the records matching pattern. A pattern containing glob
// metacharacters is matched with doublestar against the display path and the
// file name; any other pattern is a case-insensitive substring of the display
// path. An empty pattern keeps everything.
func Filter(records []rules.RuleFile, pattern string) ([]rules.RuleFile, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return records, nil
	}

	isGlob := strings.ContainsAny(pattern, "*?[{")
	if isGlob && !doublestar.ValidatePattern(pattern) {
		return nil, errors.Errorf("invalid glob pattern %q", pattern)
	}

	lower := strings.ToLower(pattern)
	matched := make([]rules.RuleFile, 0, len(records))
	for _, r := range records {
		var ok bool
		if isGlob {
			ok = doublestar.MatchUnvalidated(pattern, r.FullPath) || doublestar.MatchUnvalidated(pattern, r.FileName)
		} else {
			ok = strings.Contains(strings.ToLower(r.FullPath), lower)
		}
		if ok {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
