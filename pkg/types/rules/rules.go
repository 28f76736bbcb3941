// Package rules defines the shared types used by the project and global rule
// stores: the closed set of editor types, their rule folders, the derived
// rule file record and the persisted global rule record.
package rules

import (
	"path"
	"strings"

	"github.com/pkg/errors"
)

// EditorType identifies an AI coding tool integration and therefore which
// folder its rule files live in.
type EditorType string

const (
	// EditorCline stores rules in .clinerules
	EditorCline EditorType = "Cline"
	// EditorCursor stores rules in .cursor/rules
	EditorCursor EditorType = "Cursor"
	// EditorVSCodeCopilot stores rules in .github
	EditorVSCodeCopilot EditorType = "VSCodeCopilot"
	// EditorWindsurf stores rules at the project root
	EditorWindsurf EditorType = "Windsurf"
)

// AllEditorTypes is the ordered list of every supported editor type. Listing
// and scanning always walk the types in this order.
var AllEditorTypes = []EditorType{
	EditorCline,
	EditorCursor,
	EditorVSCodeCopilot,
	EditorWindsurf,
}

// folderByEditorType maps each editor type to its slash separated folder,
// relative to the project root. An empty folder means the root itself.
var folderByEditorType = map[EditorType]string{
	EditorCline:         ".clinerules",
	EditorCursor:        ".cursor/rules",
	EditorVSCodeCopilot: ".github",
	EditorWindsurf:      "",
}

// Folder returns the slash separated rule folder for the editor type relative
// to the project root. The empty string denotes the project root.
func (e EditorType) Folder() string {
	return folderByEditorType[e]
}

// IsRoot reports whether the editor type keeps its rules at the project root.
func (e EditorType) IsRoot() bool {
	return e.Valid() && folderByEditorType[e] == ""
}

// Valid reports whether e is one of AllEditorTypes.
func (e EditorType) Valid() bool {
	_, ok := folderByEditorType[e]
	return ok
}

func (e EditorType) String() string {
	return string(e)
}

// ParseEditorType resolves a user supplied name to an EditorType, ignoring case.
func ParseEditorType(s string) (EditorType, error) {
	s = strings.TrimSpace(s)
	for _, t := range AllEditorTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	names := make([]string, 0, len(AllEditorTypes))
	for _, t := range AllEditorTypes {
		names = append(names, string(t))
	}
	return "", errors.Errorf("unknown editor type %q, must be one of: %s", s, strings.Join(names, ", "))
}

// SupportedExtensions lists the file extensions recognised as rule files.
var SupportedExtensions = []string{".md", ".yaml", ".yml", ".json", ".txt", ".xml"}

// IsSupportedRuleFile reports whether fileName ends with a supported
// extension, compared case-insensitively.
func IsSupportedRuleFile(fileName string) bool {
	lower := strings.ToLower(fileName)
	for _, ext := range SupportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// excludedRootFiles are project documentation files that are never treated as
// rules when scanning the project root.
var excludedRootFiles = []string{"README.md", "README_en.md"}

// IsExcludedRootFile reports whether fileName is project documentation that
// must be skipped when the project root is scanned.
func IsExcludedRootFile(fileName string) bool {
	for _, name := range excludedRootFiles {
		if strings.EqualFold(fileName, name) {
			return true
		}
	}
	return false
}

// RuleFile is a rule file discovered by scanning a project. It is derived on
// every listing and never persisted.
type RuleFile struct {
	FileName   string     `json:"fileName"`
	EditorType EditorType `json:"editorType"`
	// FullPath is the display path: the bare file name for root rules,
	// folder/fileName otherwise.
	FullPath string     `json:"fullPath"`
	Source   EditorType `json:"source"`
}

// NewRuleFile builds the record for fileName found in the folder of editorType.
func NewRuleFile(fileName string, editorType EditorType) RuleFile {
	fullPath := fileName
	if folder := editorType.Folder(); folder != "" {
		fullPath = path.Join(folder, fileName)
	}
	return RuleFile{
		FileName:   fileName,
		EditorType: editorType,
		FullPath:   fullPath,
		Source:     editorType,
	}
}

// MaxTags is the maximum number of tags a global rule carries.
const MaxTags = 5

// GlobalRule is a user level rule snippet persisted in user settings.
type GlobalRule struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name" jsonschema:"title=Name,description=Unique rule name"`
	Content string `json:"content" yaml:"content" mapstructure:"content" jsonschema:"title=Content"`
	// Timestamp is the save time in milliseconds since the Unix epoch.
	Timestamp  int64      `json:"timestamp" yaml:"timestamp" mapstructure:"timestamp" jsonschema:"title=Saved At,description=Unix epoch milliseconds"`
	Tags       []string   `json:"tags,omitempty" yaml:"tags,omitempty" mapstructure:"tags" jsonschema:"maxItems=5"`
	EditorType EditorType `json:"editorType,omitempty" yaml:"editorType,omitempty" mapstructure:"editorType" jsonschema:"enum=Cline,enum=Cursor,enum=VSCodeCopilot,enum=Windsurf"`
}
