package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/rulesmgr/pkg/globalrules"
	"github.com/jingkaihe/rulesmgr/pkg/presenter"
	"github.com/jingkaihe/rulesmgr/pkg/settings"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect where global rules are stored",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings backend and location",
	Run: func(_ *cobra.Command, _ []string) {
		printSettingsPath(os.Stdout)
	},
}

var settingsSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the global rules settings entry",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := writeSettingsSchema(os.Stdout); err != nil {
			presenter.Error(err, "Failed to generate settings schema")
			exitWithError(cmd.Context(), err)
		}
	},
}

func init() {
	settingsCmd.AddCommand(settingsPathCmd)
	settingsCmd.AddCommand(settingsSchemaCmd)
	rootCmd.AddCommand(settingsCmd)
}

func printSettingsPath(w io.Writer) {
	location := loadedConfig.Settings.Path
	if settings.Backend(loadedConfig.Settings.Backend) == settings.BackendSQLite {
		location = loadedConfig.Settings.DBPath
	}
	fmt.Fprintf(w, "backend: %s\n", loadedConfig.Settings.Backend)
	fmt.Fprintf(w, "path:    %s\n", location)
	fmt.Fprintf(w, "key:     %s\n", globalrules.SettingsKey)
}

// settingsDocument mirrors the part of the settings object rulesmgr owns
type settingsDocument struct {
	GlobalRules []rules.GlobalRule `json:"rules-manager.globalRules" jsonschema:"title=Global Rules,description=Rule snippets available to every project"`
}

func generateSettingsSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	return reflector.Reflect(&settingsDocument{})
}

func writeSettingsSchema(w io.Writer) error {
	data, err := json.MarshalIndent(generateSettingsSchema(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal schema")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
