// Package config loads rulesmgr configuration from config files, environment
// variables and command line flags through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jingkaihe/rulesmgr/pkg/settings"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. RULESMGR_EDITOR_TYPE.
	EnvPrefix = "RULESMGR"
	// DirName is the per user and per project configuration directory.
	DirName = ".rulesmgr"
	// BasePathEnv overrides the per user directory.
	BasePathEnv = "RULESMGR_BASE_PATH"
)

// SettingsConfig locates the settings store holding the global rule library.
type SettingsConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=file sqlite"`
	Path    string `mapstructure:"path"`
	DBPath  string `mapstructure:"db_path"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio   float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

// Config is the resolved rulesmgr configuration.
type Config struct {
	ProjectRoot  string         `mapstructure:"project_root"`
	EditorType   string         `mapstructure:"editor_type" validate:"omitempty,editor_type"`
	Editor       string         `mapstructure:"editor"`
	OpenInEditor bool           `mapstructure:"open_in_editor"`
	Settings     SettingsConfig `mapstructure:"settings"`
	Tracing      TracingConfig  `mapstructure:"tracing"`
	LogLevel     string         `mapstructure:"log_level" validate:"oneof=panic fatal error warn warning info debug trace"`
	LogFormat    string         `mapstructure:"log_format" validate:"oneof=fmt json"`
}

// Init wires viper to the environment and reads the first config.yaml found in
// ./.rulesmgr or the per user directory. A missing config file is not an
// error.
func Init() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.Join(".", DirName))
	if dir, err := BaseDir(); err == nil {
		viper.AddConfigPath(dir)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// SetDefaults registers every key so environment variables are picked up by
// Unmarshal.
func SetDefaults() {
	viper.SetDefault("project_root", "")
	viper.SetDefault("editor_type", "")
	viper.SetDefault("editor", "")
	viper.SetDefault("open_in_editor", true)
	viper.SetDefault("settings.backend", string(settings.BackendFile))
	viper.SetDefault("settings.path", "")
	viper.SetDefault("settings.db_path", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler", "ratio")
	viper.SetDefault("tracing.ratio", 1.0)
}

// BaseDir returns the per user rulesmgr directory.
func BaseDir() (string, error) {
	if dir := os.Getenv(BasePathEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, DirName), nil
}

// Load unmarshals the current viper state, fills derived paths and validates
// the result.
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, errors.Wrap(err, "failed to get working directory")
		}
		cfg.ProjectRoot = wd
	}
	if cfg.Settings.Backend == "" {
		cfg.Settings.Backend = string(settings.BackendFile)
	}
	if cfg.Settings.Path == "" || cfg.Settings.DBPath == "" {
		base, err := BaseDir()
		if err != nil {
			return cfg, err
		}
		if cfg.Settings.Path == "" {
			cfg.Settings.Path = filepath.Join(base, "settings.json")
		}
		if cfg.Settings.DBPath == "" {
			cfg.Settings.DBPath = filepath.Join(base, "storage.db")
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// SettingsOptions converts the settings section into settings.Options.
func (c Config) SettingsOptions() settings.Options {
	return settings.Options{
		Backend: settings.Backend(c.Settings.Backend),
		Path:    c.Settings.Path,
		DBPath:  c.Settings.DBPath,
	}
}

// Validate checks cfg using its struct tags.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.RegisterValidation("editor_type", validateEditorType); err != nil {
		return errors.Wrap(err, "failed to register editor_type validation")
	}
	if err := v.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func validateEditorType(fl validator.FieldLevel) bool {
	_, err := rules.ParseEditorType(fl.Field().String())
	return err == nil
}

var keyByField = map[string]string{
	"EditorType": "editor_type",
	"Backend":    "settings.backend",
	"LogLevel":   "log_level",
	"LogFormat":  "log_format",
	"Sampler":    "tracing.sampler",
	"Ratio":      "tracing.ratio",
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		key := keyByField[e.Field()]
		if key == "" {
			key = e.Field()
		}
		switch e.Tag() {
		case "oneof":
			messages = append(messages, key+" must be one of: "+e.Param())
		case "editor_type":
			names := make([]string, 0, len(rules.AllEditorTypes))
			for _, t := range rules.AllEditorTypes {
				names = append(names, t.String())
			}
			messages = append(messages, key+" must be one of: "+strings.Join(names, " "))
		case "gte", "lte":
			messages = append(messages, key+" must be between 0 and 1")
		default:
			messages = append(messages, key+" failed validation: "+e.Tag())
		}
	}
	return errors.New(strings.Join(messages, "; "))
}
