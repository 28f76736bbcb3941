package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/rulesmgr/pkg/globalrules"
	"github.com/jingkaihe/rulesmgr/pkg/panel"
	"github.com/jingkaihe/rulesmgr/pkg/presenter"
	"github.com/jingkaihe/rulesmgr/pkg/ruleinput"
	"github.com/jingkaihe/rulesmgr/pkg/telemetry"
	"github.com/jingkaihe/rulesmgr/pkg/tui"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// GlobalListConfig holds configuration for the global list and search commands
type GlobalListConfig struct {
	Source string
	JSON   bool
}

func NewGlobalListConfig() *GlobalListConfig {
	return &GlobalListConfig{}
}

// GlobalSaveConfig holds configuration for the global save command
type GlobalSaveConfig struct {
	EditorType string
	Name       string
	Tags       string
	File       string
}

func NewGlobalSaveConfig() *GlobalSaveConfig {
	return &GlobalSaveConfig{}
}

// GlobalEditConfig holds configuration for the global edit command
type GlobalEditConfig struct {
	Tags    string
	SetTags bool
	NoEdit  bool
}

func NewGlobalEditConfig() *GlobalEditConfig {
	return &GlobalEditConfig{}
}

// GlobalImportConfig holds configuration for the global import command
type GlobalImportConfig struct {
	SkipExisting bool
}

func NewGlobalImportConfig() *GlobalImportConfig {
	return &GlobalImportConfig{}
}

var globalCmd = &cobra.Command{
	Use:   "global",
	Short: "Manage your library of global rules",
	Long: `Global rules are rule snippets kept in your user settings so they can be
copied into any project. Each remembers the editor type it was saved from.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var globalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List global rules, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		config := getGlobalListConfigFromFlags(cmd)
		if err := runGlobalSearch(cmd.Context(), "", config, os.Stdout); err != nil {
			presenter.Error(err, "Failed to list global rules")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search global rules by name or tag",
	Long: `Search global rules whose name or any tag contains the query, ignoring case.
An empty query matches every rule.

Examples:
  rulesmgr global search react
  rulesmgr global search --source Cursor`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getGlobalListConfigFromFlags(cmd)
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		if err := runGlobalSearch(cmd.Context(), query, config, os.Stdout); err != nil {
			presenter.Error(err, "Failed to search global rules")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a global rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGlobalShow(cmd.Context(), args[0], os.Stdout); err != nil {
			presenter.Error(err, "Failed to show global rule")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalSaveCmd = &cobra.Command{
	Use:   "save [rule-file]",
	Short: "Save a project rule, or any file, as a global rule",
	Long: `Save the content of a project rule file into the global library. Saving under
an existing name replaces that rule. Renaming with --name drops any global rule
still stored under the file's own name.

Examples:
  rulesmgr global save coding-style.md --tags style,go
  rulesmgr global save api.md --type Cursor --name api-conventions
  rulesmgr global save --file ~/snippets/testing.md`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getGlobalSaveConfigFromFlags(cmd)
		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}
		if err := runGlobalSave(cmd.Context(), ref, config); err != nil {
			presenter.Error(err, "Failed to save global rule")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a global rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getProjectRuleConfigFromFlags(cmd)
		if err := runGlobalDelete(cmd.Context(), args[0], config.Yes); err != nil {
			presenter.Error(err, "Failed to delete global rule")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit the content or tags of a global rule",
	Long: `Open a global rule in your editor and save the result. The rule keeps the
editor type it was saved from.

Examples:
  rulesmgr global edit react-style.md
  rulesmgr global edit react-style.md --tags react,frontend --no-edit`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getGlobalEditConfigFromFlags(cmd)
		if err := runGlobalEdit(cmd.Context(), args[0], config); err != nil {
			presenter.Error(err, "Failed to edit global rule")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Copy a global rule into the current project",
	Long:  `Same as "rulesmgr project add".`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getAddGlobalConfigFromFlags(cmd)
		if err := runAddGlobal(cmd.Context(), args[0], config); err != nil {
			presenter.Error(err, "Failed to apply global rule")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the global rule library as YAML",
	Long: `Write every global rule to a YAML file, or to stdout when no file is given.

Examples:
  rulesmgr global export > rules.yaml
  rulesmgr global export rules.yaml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGlobalExport(cmd.Context(), args); err != nil {
			presenter.Error(err, "Failed to export global rules")
			exitWithError(cmd.Context(), err)
		}
	},
}

var globalImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import global rules from a YAML export",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getGlobalImportConfigFromFlags(cmd)
		if err := runGlobalImport(cmd.Context(), args[0], config); err != nil {
			presenter.Error(err, "Failed to import global rules")
			exitWithError(cmd.Context(), err)
		}
	},
}

func init() {
	listDefaults := NewGlobalListConfig()
	for _, c := range []*cobra.Command{globalListCmd, globalSearchCmd} {
		c.Flags().StringP("source", "s", listDefaults.Source, "Only show rules saved from this editor type")
		c.Flags().Bool("json", listDefaults.JSON, "Output as JSON")
	}

	saveDefaults := NewGlobalSaveConfig()
	globalSaveCmd.Flags().StringP("type", "t", saveDefaults.EditorType, "Editor type of the project rule, or the origin recorded for --file")
	globalSaveCmd.Flags().StringP("name", "n", saveDefaults.Name, "Name of the global rule (default: the file name)")
	globalSaveCmd.Flags().String("tags", saveDefaults.Tags, "Comma separated tags, at most 5")
	globalSaveCmd.Flags().StringP("file", "f", saveDefaults.File, "Save the content of this file instead of a project rule")

	globalDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	editDefaults := NewGlobalEditConfig()
	globalEditCmd.Flags().String("tags", editDefaults.Tags, "Replace the tags, comma separated")
	globalEditCmd.Flags().Bool("no-edit", editDefaults.NoEdit, "Do not open the editor, only update tags")

	addDefaults := NewAddGlobalConfig()
	globalApplyCmd.Flags().Bool("force", addDefaults.Force, "Overwrite an existing file without asking")
	globalApplyCmd.Flags().Bool("no-open", addDefaults.NoOpen, "Do not open the written file in the editor")

	importDefaults := NewGlobalImportConfig()
	globalImportCmd.Flags().Bool("skip-existing", importDefaults.SkipExisting, "Keep rules that already exist instead of replacing them")

	globalCmd.AddCommand(globalListCmd)
	globalCmd.AddCommand(globalSearchCmd)
	globalCmd.AddCommand(globalShowCmd)
	globalCmd.AddCommand(globalSaveCmd)
	globalCmd.AddCommand(globalDeleteCmd)
	globalCmd.AddCommand(globalEditCmd)
	globalCmd.AddCommand(globalApplyCmd)
	globalCmd.AddCommand(globalExportCmd)
	globalCmd.AddCommand(globalImportCmd)
	rootCmd.AddCommand(globalCmd)
}

func getGlobalListConfigFromFlags(cmd *cobra.Command) *GlobalListConfig {
	config := NewGlobalListConfig()
	if source, err := cmd.Flags().GetString("source"); err == nil {
		config.Source = source
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

func getGlobalSaveConfigFromFlags(cmd *cobra.Command) *GlobalSaveConfig {
	config := NewGlobalSaveConfig()
	if editorType, err := cmd.Flags().GetString("type"); err == nil {
		config.EditorType = editorType
	}
	if name, err := cmd.Flags().GetString("name"); err == nil {
		config.Name = name
	}
	if tags, err := cmd.Flags().GetString("tags"); err == nil {
		config.Tags = tags
	}
	if file, err := cmd.Flags().GetString("file"); err == nil {
		config.File = file
	}
	return config
}

func getGlobalEditConfigFromFlags(cmd *cobra.Command) *GlobalEditConfig {
	config := NewGlobalEditConfig()
	if tags, err := cmd.Flags().GetString("tags"); err == nil {
		config.Tags = tags
	}
	config.SetTags = cmd.Flags().Changed("tags")
	if noEdit, err := cmd.Flags().GetBool("no-edit"); err == nil {
		config.NoEdit = noEdit
	}
	return config
}

func getGlobalImportConfigFromFlags(cmd *cobra.Command) *GlobalImportConfig {
	config := NewGlobalImportConfig()
	if skip, err := cmd.Flags().GetBool("skip-existing"); err == nil {
		config.SkipExisting = skip
	}
	return config
}

// renderGlobalRules writes global rules as a table or as JSON
func renderGlobalRules(w io.Writer, list []rules.GlobalRule, asJSON bool) error {
	if asJSON {
		if list == nil {
			list = []rules.GlobalRule{}
		}
		data, err := json.MarshalIndent(map[string]any{"globalRules": list}, "", "  ")
		if err != nil {
			return errors.Wrap(err, "error generating JSON output")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No global rules found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tSource\tTags\tSaved")
	fmt.Fprintln(tw, "----\t------\t----\t-----")
	for _, g := range list {
		source := g.EditorType.String()
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.Name, source, strings.Join(g.Tags, ","), tui.FormatSavedAt(g.Timestamp))
	}
	return tw.Flush()
}

func runGlobalSearch(ctx context.Context, query string, config *GlobalListConfig, w io.Writer) error {
	source, err := parseTypeFlag(config.Source)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.controller.Handle(ctx, panel.SearchGlobalRules{Query: query, Source: source})
	if err != nil {
		return err
	}
	return renderGlobalRules(w, resp.GlobalRules, config.JSON)
}

func findGlobal(ctx context.Context, store *globalrules.Store, name string) (*rules.GlobalRule, error) {
	rule, err := store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, errors.Wrapf(rules.ErrNotFound, "global rule %q", name)
	}
	return rule, nil
}

func runGlobalShow(ctx context.Context, name string, w io.Writer) error {
	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	rule, err := findGlobal(ctx, a.global, name)
	if err != nil {
		return err
	}

	content := rule.Content
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, err = io.WriteString(w, content)
	return err
}

func runGlobalSave(ctx context.Context, ref string, config *GlobalSaveConfig) error {
	editorType, err := parseTypeFlag(config.EditorType)
	if err != nil {
		return err
	}
	tags := ruleinput.ParseTags(config.Tags)

	switch {
	case ref == "" && config.File == "":
		return errors.New("a project rule file or --file is required")
	case ref != "" && config.File != "":
		return errors.New("give either a project rule file or --file, not both")
	}

	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if config.File != "" {
		name, err := saveFileAsGlobal(ctx, a.global, config.File, config.Name, tags, editorType)
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Saved %q as a global rule", name))
		return nil
	}

	r, err := resolveRuleRef(ctx, a.project, ref, editorType)
	if err != nil {
		return err
	}
	resp, err := a.controller.Handle(ctx, panel.SaveRuleAsGlobal{
		RuleName:   r.FileName,
		EditorType: r.EditorType,
		GlobalName: config.Name,
		Tags:       tags,
	})
	if err != nil {
		return err
	}
	presenter.Success(resp.Notice)
	return nil
}

// saveFileAsGlobal stores the content of an arbitrary file as a global rule
// named name, or after the file when name is empty.
func saveFileAsGlobal(ctx context.Context, store *globalrules.Store, path, name string, tags []string, origin rules.EditorType) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = filepath.Base(path)
	}
	if err := store.Save(ctx, name, string(data), tags, origin); err != nil {
		return "", err
	}
	return name, nil
}

func runGlobalDelete(ctx context.Context, name string, yes bool) error {
	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := findGlobal(ctx, a.global, name); err != nil {
		return err
	}
	if !yes && !presenter.Confirm(fmt.Sprintf("Delete global rule %q?", name)) {
		presenter.Info("Cancelled")
		return nil
	}

	resp, err := a.controller.Handle(ctx, panel.DeleteGlobalRule{Name: name})
	if err != nil {
		return err
	}
	presenter.Success(resp.Notice)
	return nil
}

// editContent lets the user change content in an editor and returns the
// result.
func editContent(ctx context.Context, open func(ctx context.Context, path string) error, name, content string) (string, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ruleinput.DefaultFormat
	}
	f, err := os.CreateTemp("", "rulesmgr-global-*"+ext)
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary file")
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", errors.Wrap(err, "failed to write temporary file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "failed to write temporary file")
	}

	if err := open(ctx, f.Name()); err != nil {
		return "", err
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return "", errors.Wrap(err, "failed to read edited rule")
	}
	return string(data), nil
}

func runGlobalEdit(ctx context.Context, name string, config *GlobalEditConfig) error {
	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	rule, err := findGlobal(ctx, a.global, name)
	if err != nil {
		return err
	}

	content := rule.Content
	if !config.NoEdit {
		launcher, err := newLauncher(a.cfg)
		if err != nil {
			return err
		}
		if content, err = editContent(ctx, launcher.Open, rule.Name, rule.Content); err != nil {
			return err
		}
	}

	tags := rule.Tags
	if config.SetTags {
		tags = ruleinput.ParseTags(config.Tags)
	}

	if content == rule.Content && !config.SetTags {
		presenter.Info(fmt.Sprintf("No changes to %q", rule.Name))
		return nil
	}

	resp, err := a.controller.Handle(ctx, panel.EditGlobalRule{Name: rule.Name, Content: content, Tags: tags})
	if err != nil {
		return err
	}
	presenter.Success(resp.Notice)
	return nil
}

// libraryDocument is the YAML layout of global export and import
type libraryDocument struct {
	GlobalRules []rules.GlobalRule `yaml:"globalRules"`
}

func exportLibrary(ctx context.Context, store *globalrules.Store, w io.Writer) (int, error) {
	list, err := store.List(ctx)
	if err != nil {
		return 0, err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(libraryDocument{GlobalRules: list}); err != nil {
		return 0, errors.Wrap(err, "failed to encode global rules")
	}
	if err := enc.Close(); err != nil {
		return 0, errors.Wrap(err, "failed to encode global rules")
	}
	return len(list), nil
}

// importResult counts what importLibrary did
type importResult struct {
	Imported int
	Skipped  int
}

// importLibrary saves every rule of a YAML export in one batch, keeping the
// exported order. Imported rules get fresh timestamps; unknown origins are
// dropped and tags are capped.
func importLibrary(ctx context.Context, store *globalrules.Store, r io.Reader, skipExisting bool) (importResult, error) {
	var result importResult
	var doc libraryDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		return result, errors.Wrap(err, "failed to decode global rules")
	}

	existing := map[string]bool{}
	if skipExisting {
		list, err := store.List(ctx)
		if err != nil {
			return result, err
		}
		for _, rule := range list {
			existing[rule.Name] = true
		}
	}

	batch := make([]rules.GlobalRule, 0, len(doc.GlobalRules))
	for i, rule := range doc.GlobalRules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return result, errors.Errorf("global rule #%d has no name", i+1)
		}
		if existing[name] {
			result.Skipped++
			continue
		}

		origin := rule.EditorType
		if origin != "" && !origin.Valid() {
			presenter.Warning(fmt.Sprintf("Ignoring unknown editor type %q of %q", origin, name))
			origin = ""
		}
		tags := rule.Tags
		if len(tags) > rules.MaxTags {
			tags = tags[:rules.MaxTags]
		}

		batch = append(batch, rules.GlobalRule{
			Name:       name,
			Content:    rule.Content,
			Tags:       tags,
			EditorType: origin,
		})
	}

	err := telemetry.WithSpan(ctx, "global.import", func(ctx context.Context) error {
		return store.SaveAll(ctx, batch)
	}, attribute.Int("rules.count", len(batch)), attribute.Int("rules.skipped", result.Skipped))
	if err != nil {
		return result, errors.Wrap(err, "failed to import global rules")
	}
	result.Imported = len(batch)
	return result, nil
}

func runGlobalExport(ctx context.Context, args []string) error {
	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		_, err := exportLibrary(ctx, a.global, os.Stdout)
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", args[0])
	}
	n, err := exportLibrary(ctx, a.global, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "failed to write %s", args[0])
	}
	if err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Exported %d global rule(s) to %s", n, args[0]))
	return nil
}

func runGlobalImport(ctx context.Context, path string, config *GlobalImportConfig) error {
	a, err := newApp(ctx, loadedConfig, appOptions{noOpen: true})
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	result, err := importLibrary(ctx, a.global, f, config.SkipExisting)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Imported %d global rule(s)", result.Imported)
	if result.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d existing", result.Skipped)
	}
	presenter.Success(msg)
	return nil
}
