package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/rulesmgr/pkg/panel"
	"github.com/jingkaihe/rulesmgr/pkg/presenter"
	"github.com/jingkaihe/rulesmgr/pkg/projectrules"
	"github.com/jingkaihe/rulesmgr/pkg/rulemeta"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ProjectListConfig holds configuration for the project list command
type ProjectListConfig struct {
	Match string
	JSON  bool
}

func NewProjectListConfig() *ProjectListConfig {
	return &ProjectListConfig{}
}

// ProjectCreateConfig holds configuration for the project create command
type ProjectCreateConfig struct {
	EditorType string
	Format     string
	NoOpen     bool
}

func NewProjectCreateConfig() *ProjectCreateConfig {
	return &ProjectCreateConfig{
		Format: ".md",
	}
}

// ProjectRuleConfig selects one rule file by name and, optionally, editor type
type ProjectRuleConfig struct {
	EditorType string
	Yes        bool
}

func NewProjectRuleConfig() *ProjectRuleConfig {
	return &ProjectRuleConfig{}
}

// AddGlobalConfig holds configuration for copying a global rule into the project
type AddGlobalConfig struct {
	Force  bool
	NoOpen bool
}

func NewAddGlobalConfig() *AddGlobalConfig {
	return &AddGlobalConfig{}
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage the rule files of the current project",
	Long: `List, create, show, open and delete the rule files of a project.

Rule files live in a fixed folder per editor type:
  Cline          .clinerules/
  Cursor         .cursor/rules/
  VSCodeCopilot  .github/
  Windsurf       project root`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rule files of the project",
	Long: `List every rule file found in the project's rule folders.

Examples:
  rulesmgr project list
  rulesmgr project list --match '*.md'
  rulesmgr project list --match cursor --json`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getProjectListConfigFromFlags(cmd)
		if err := runProjectList(cmd.Context(), config, os.Stdout); err != nil {
			presenter.Error(err, "Failed to list project rules")
			exitWithError(cmd.Context(), err)
		}
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new rule file",
	Long: `Create a rule file with starter content and open it in your editor.

The file goes into the folder of the default editor type unless --type is given.

Examples:
  rulesmgr project create coding-style
  rulesmgr project create api --type Cursor --format yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getProjectCreateConfigFromFlags(cmd)
		if err := runProjectCreate(cmd.Context(), args[0], config); err != nil {
			presenter.Error(err, "Failed to create rule file")
			exitWithError(cmd.Context(), err)
		}
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <file>",
	Short: "Delete a rule file",
	Long: `Delete a rule file. A rule folder left empty is removed as well.

<file> is a file name or a listed path such as .cursor/rules/api.md. Use --type when
the same file name exists for several editor types.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getProjectRuleConfigFromFlags(cmd)
		if err := runProjectDelete(cmd.Context(), args[0], config); err != nil {
			presenter.Error(err, "Failed to delete rule file")
			exitWithError(cmd.Context(), err)
		}
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print the content of a rule file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getProjectRuleConfigFromFlags(cmd)
		if err := runProjectShow(cmd.Context(), args[0], config, os.Stdout); err != nil {
			presenter.Error(err, "Failed to show rule file")
			exitWithError(cmd.Context(), err)
		}
	},
}

var projectOpenCmd = &cobra.Command{
	Use:   "open <file>",
	Short: "Open a rule file in your editor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getProjectRuleConfigFromFlags(cmd)
		if err := runProjectOpen(cmd.Context(), args[0], config); err != nil {
			presenter.Error(err, "Failed to open rule file")
			exitWithError(cmd.Context(), err)
		}
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <global-rule>",
	Short: "Copy a global rule into the project",
	Long: `Write a global rule into the project, using the editor type it was saved from.
When the target file exists a diff is shown and you are asked before it is overwritten.

Examples:
  rulesmgr project add react-style.md
  rulesmgr project add react-style.md --force`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getAddGlobalConfigFromFlags(cmd)
		if err := runAddGlobal(cmd.Context(), args[0], config); err != nil {
			presenter.Error(err, "Failed to add global rule to the project")
			exitWithError(cmd.Context(), err)
		}
	},
}

func init() {
	listDefaults := NewProjectListConfig()
	projectListCmd.Flags().StringP("match", "m", listDefaults.Match, "Only list rules whose path matches this glob or substring")
	projectListCmd.Flags().Bool("json", listDefaults.JSON, "Output as JSON")

	createDefaults := NewProjectCreateConfig()
	projectCreateCmd.Flags().StringP("type", "t", createDefaults.EditorType, "Editor type whose folder receives the file")
	projectCreateCmd.Flags().StringP("format", "f", createDefaults.Format, "File format: .md, .txt, .json, .yaml, .yml or .xml")
	projectCreateCmd.Flags().Bool("no-open", createDefaults.NoOpen, "Do not open the new file in the editor")

	ruleDefaults := NewProjectRuleConfig()
	for _, c := range []*cobra.Command{projectDeleteCmd, projectShowCmd, projectOpenCmd} {
		c.Flags().StringP("type", "t", ruleDefaults.EditorType, "Editor type of the rule file")
	}
	projectDeleteCmd.Flags().BoolP("yes", "y", ruleDefaults.Yes, "Do not ask for confirmation")

	addDefaults := NewAddGlobalConfig()
	projectAddCmd.Flags().Bool("force", addDefaults.Force, "Overwrite an existing file without asking")
	projectAddCmd.Flags().Bool("no-open", addDefaults.NoOpen, "Do not open the written file in the editor")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectOpenCmd)
	projectCmd.AddCommand(projectAddCmd)
	rootCmd.AddCommand(projectCmd)
}

func getProjectListConfigFromFlags(cmd *cobra.Command) *ProjectListConfig {
	config := NewProjectListConfig()
	if match, err := cmd.Flags().GetString("match"); err == nil {
		config.Match = match
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

func getProjectCreateConfigFromFlags(cmd *cobra.Command) *ProjectCreateConfig {
	config := NewProjectCreateConfig()
	if editorType, err := cmd.Flags().GetString("type"); err == nil {
		config.EditorType = editorType
	}
	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}
	if noOpen, err := cmd.Flags().GetBool("no-open"); err == nil {
		config.NoOpen = noOpen
	}
	return config
}

func getProjectRuleConfigFromFlags(cmd *cobra.Command) *ProjectRuleConfig {
	config := NewProjectRuleConfig()
	if editorType, err := cmd.Flags().GetString("type"); err == nil {
		config.EditorType = editorType
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	return config
}

func getAddGlobalConfigFromFlags(cmd *cobra.Command) *AddGlobalConfig {
	config := NewAddGlobalConfig()
	if force, err := cmd.Flags().GetBool("force"); err == nil {
		config.Force = force
	}
	if noOpen, err := cmd.Flags().GetBool("no-open"); err == nil {
		config.NoOpen = noOpen
	}
	return config
}

// parseTypeFlag turns an optional --type value into an editor type; empty
// stays empty.
func parseTypeFlag(value string) (rules.EditorType, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return rules.ParseEditorType(value)
}

// resolveRuleRef finds the rule file ref points at. ref is a file name or a
// listed path; editorType narrows the search when set.
func resolveRuleRef(ctx context.Context, project *projectrules.Store, ref string, editorType rules.EditorType) (rules.RuleFile, error) {
	ref = strings.TrimSpace(ref)
	if editorType != "" {
		for _, r := range project.List(ctx) {
			if r.EditorType == editorType && (r.FileName == ref || r.FullPath == ref) {
				return r, nil
			}
		}
		return rules.RuleFile{}, errors.Wrapf(rules.ErrNotFound, "rule file %q for %s", ref, editorType)
	}

	var matches []rules.RuleFile
	for _, r := range project.List(ctx) {
		if r.FileName == ref || r.FullPath == ref {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return rules.RuleFile{}, errors.Wrapf(rules.ErrNotFound, "rule file %q", ref)
	case 1:
		return matches[0], nil
	default:
		types := make([]string, 0, len(matches))
		for _, m := range matches {
			types = append(types, m.EditorType.String())
		}
		return rules.RuleFile{}, errors.Errorf("rule file %q exists for %s, pick one with --type", ref, strings.Join(types, ", "))
	}
}

// ruleListItem is one row of project list output
type ruleListItem struct {
	rules.RuleFile
	Summary string `json:"summary,omitempty"`
}

// ProjectListOutput renders the project list command
type ProjectListOutput struct {
	Rules []ruleListItem `json:"rules"`
}

func newProjectListOutput(ctx context.Context, project *projectrules.Store, match string) (*ProjectListOutput, error) {
	records, err := projectrules.Filter(project.List(ctx), match)
	if err != nil {
		return nil, err
	}

	out := &ProjectListOutput{Rules: make([]ruleListItem, 0, len(records))}
	for _, r := range records {
		item := ruleListItem{RuleFile: r}
		if content, ok := project.Read(ctx, r.FileName, r.EditorType); ok {
			item.Summary = rulemeta.Summary(r.FileName, content)
		}
		out.Rules = append(out.Rules, item)
	}
	return out, nil
}

func (o *ProjectListOutput) render(w io.Writer, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return errors.Wrap(err, "error generating JSON output")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(o.Rules) == 0 {
		_, err := fmt.Fprintln(w, "No rule files found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Editor\tPath\tSummary")
	fmt.Fprintln(tw, "------\t----\t-------")
	for _, r := range o.Rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.EditorType, r.FullPath, truncateSummary(r.Summary, 60))
	}
	return tw.Flush()
}

func truncateSummary(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func runProjectList(ctx context.Context, config *ProjectListConfig, w io.Writer) error {
	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := newProjectListOutput(ctx, a.project, config.Match)
	if err != nil {
		return err
	}
	return out.render(w, config.JSON)
}

func runProjectCreate(ctx context.Context, name string, config *ProjectCreateConfig) error {
	editorType, err := parseTypeFlag(config.EditorType)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: config.NoOpen})
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.controller.Handle(ctx, panel.CreateRule{Name: name, EditorType: editorType, Format: config.Format})
	if err != nil {
		return err
	}
	presenter.Success(resp.Notice)
	return nil
}

func runProjectDelete(ctx context.Context, ref string, config *ProjectRuleConfig) error {
	editorType, err := parseTypeFlag(config.EditorType)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := resolveRuleRef(ctx, a.project, ref, editorType)
	if err != nil {
		return err
	}
	if !config.Yes && !presenter.Confirm(fmt.Sprintf("Delete rule file %s?", r.FullPath)) {
		presenter.Info("Cancelled")
		return nil
	}

	resp, err := a.controller.Handle(ctx, panel.DeleteRule{FileName: r.FileName, EditorType: r.EditorType})
	if err != nil {
		return err
	}
	presenter.Success(resp.Notice)
	return nil
}

func runProjectShow(ctx context.Context, ref string, config *ProjectRuleConfig, w io.Writer) error {
	editorType, err := parseTypeFlag(config.EditorType)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := resolveRuleRef(ctx, a.project, ref, editorType)
	if err != nil {
		return err
	}
	resp, err := a.controller.Handle(ctx, panel.ReadRule{FileName: r.FileName, EditorType: r.EditorType})
	if err != nil {
		return err
	}

	content := resp.Content
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, err = io.WriteString(w, content)
	return err
}

func runProjectOpen(ctx context.Context, ref string, config *ProjectRuleConfig) error {
	editorType, err := parseTypeFlag(config.EditorType)
	if err != nil {
		return err
	}

	launcher, err := newLauncher(loadedConfig)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, loadedConfig, appOptions{opener: launcher})
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := resolveRuleRef(ctx, a.project, ref, editorType)
	if err != nil {
		return err
	}
	_, err = a.controller.Handle(ctx, panel.EditRule{FileName: r.FileName, EditorType: r.EditorType})
	return err
}

// confirmOverwrite shows what an overwrite would change and asks the user.
// force skips both.
func confirmOverwrite(force bool) projectrules.ConfirmFunc {
	return func(_ context.Context, c projectrules.Conflict) bool {
		if force {
			return true
		}
		presenter.Diff(c.Path, c.Existing, c.Incoming)
		return presenter.Confirm(fmt.Sprintf("%s already exists. Overwrite?", c.Path))
	}
}

func runAddGlobal(ctx context.Context, name string, config *AddGlobalConfig) error {
	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: config.NoOpen})
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.controller.Handle(ctx, panel.AddGlobalRuleToProject{Name: name, Confirm: confirmOverwrite(config.Force)})
	if errors.Is(err, rules.ErrUserCancelled) {
		presenter.Info("Left the existing file untouched")
		return nil
	}
	if err != nil {
		return err
	}
	presenter.Success(resp.Notice)
	return nil
}
