package panel

import (
	"github.com/jingkaihe/rulesmgr/pkg/projectrules"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
)

// Command names a panel request.
type Command string

const (
	CmdGetRules               Command = "getRules"
	CmdCreateRule             Command = "createRule"
	CmdEditRule               Command = "editRule"
	CmdReadRule               Command = "readRule"
	CmdDeleteRule             Command = "deleteRule"
	CmdGetGlobalRules         Command = "getGlobalRules"
	CmdSaveRuleAsGlobal       Command = "saveRuleAsGlobal"
	CmdDeleteGlobalRule       Command = "deleteGlobalRule"
	CmdAddGlobalRuleToProject Command = "addGlobalRuleToProject"
	CmdSearchGlobalRules      Command = "searchGlobalRules"
	CmdEditGlobalRule         Command = "editGlobalRule"
	CmdReady                  Command = "ready"
)

// Request is a typed panel command.
type Request interface {
	Command() Command
}

// GetRules lists the project rules.
type GetRules struct{}

// CreateRule creates a project rule file with starter content. Name is what
// the user typed; its extension is replaced by Format. An empty EditorType
// uses the panel's current editor type.
type CreateRule struct {
	Name       string
	EditorType rules.EditorType
	Format     string
}

// EditRule opens a project rule in the editor.
type EditRule struct {
	FileName   string
	EditorType rules.EditorType
}

// ReadRule fetches the content of a project rule for previewing.
type ReadRule struct {
	FileName   string
	EditorType rules.EditorType
}

// DeleteRule deletes a project rule file. Callers confirm with the user
// before sending it.
type DeleteRule struct {
	FileName   string
	EditorType rules.EditorType
}

// GetGlobalRules lists the global library.
type GetGlobalRules struct{}

// SaveRuleAsGlobal copies a project rule into the global library. An empty
// GlobalName keeps RuleName; a different GlobalName replaces any global rule
// previously saved under RuleName.
type SaveRuleAsGlobal struct {
	RuleName   string
	EditorType rules.EditorType
	GlobalName string
	Tags       []string
}

// DeleteGlobalRule removes a global rule. Callers confirm with the user
// before sending it.
type DeleteGlobalRule struct {
	Name string
}

// AddGlobalRuleToProject writes a global rule into the project, in the folder
// of the rule's origin editor type. Confirm is consulted before overwriting an
// existing file.
type AddGlobalRuleToProject struct {
	Name    string
	Confirm projectrules.ConfirmFunc
}

// SearchGlobalRules filters the global library by name or tag, optionally
// restricted to one origin editor type.
type SearchGlobalRules struct {
	Query  string
	Source rules.EditorType
}

// EditGlobalRule replaces the content and tags of an existing global rule.
type EditGlobalRule struct {
	Name    string
	Content string
	Tags    []string
}

// Ready requests the initial panel state.
type Ready struct{}

func (GetRules) Command() Command               { return CmdGetRules }
func (CreateRule) Command() Command             { return CmdCreateRule }
func (EditRule) Command() Command               { return CmdEditRule }
func (ReadRule) Command() Command               { return CmdReadRule }
func (DeleteRule) Command() Command             { return CmdDeleteRule }
func (GetGlobalRules) Command() Command         { return CmdGetGlobalRules }
func (SaveRuleAsGlobal) Command() Command       { return CmdSaveRuleAsGlobal }
func (DeleteGlobalRule) Command() Command       { return CmdDeleteGlobalRule }
func (AddGlobalRuleToProject) Command() Command { return CmdAddGlobalRuleToProject }
func (SearchGlobalRules) Command() Command      { return CmdSearchGlobalRules }
func (EditGlobalRule) Command() Command         { return CmdEditGlobalRule }
func (Ready) Command() Command                  { return CmdReady }

// Response carries whatever state a request changed. Which lists a request
// refreshes is fixed per command; see RefreshesRules and RefreshesGlobalRules.
type Response struct {
	Command     Command            `json:"command"`
	Rules       []rules.RuleFile   `json:"rules,omitempty"`
	GlobalRules []rules.GlobalRule `json:"globalRules,omitempty"`
	EditorType  rules.EditorType   `json:"editorType,omitempty"`
	Content     string             `json:"content,omitempty"`
	Notice      string             `json:"notice,omitempty"`
}

// RefreshesRules reports whether Rules holds a fresh project listing.
func (r Response) RefreshesRules() bool {
	switch r.Command {
	case CmdGetRules, CmdCreateRule, CmdDeleteRule, CmdAddGlobalRuleToProject, CmdReady:
		return true
	}
	return false
}

// RefreshesGlobalRules reports whether GlobalRules holds a fresh (possibly
// filtered) global listing.
func (r Response) RefreshesGlobalRules() bool {
	switch r.Command {
	case CmdGetGlobalRules, CmdSaveRuleAsGlobal, CmdDeleteGlobalRule, CmdSearchGlobalRules, CmdEditGlobalRule, CmdReady:
		return true
	}
	return false
}
