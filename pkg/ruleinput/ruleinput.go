// Package ruleinput validates and normalizes what users type when creating or
// saving rules, and produces the starter content of new rule files.
package ruleinput

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MaxFileNameLength is the longest accepted rule file name, counted in
// characters after trimming.
const MaxFileNameLength = 50

// forbiddenChars are rejected on every platform.
const forbiddenChars = `/\:*?"<>|`

// DefaultFormat is used when no format is chosen.
const DefaultFormat = ".md"

// Formats lists the formats offered when creating a rule, in display order.
var Formats = []string{".md", ".txt", ".json", ".yaml", ".yml", ".xml"}

type fileNameInput struct {
	Name string `validate:"required,max=50,rulefilename"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("rulefilename", validateRuleFileName); err != nil {
		panic(err)
	}
	return v
}

func validateRuleFileName(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), forbiddenChars)
}

// ValidateFileName checks a user supplied rule file name. The name is trimmed
// before the checks run.
func ValidateFileName(name string) error {
	trimmed := strings.TrimSpace(name)
	err := validate.Struct(fileNameInput{Name: trimmed})
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return errors.Wrap(err, "failed to validate file name")
	}
	switch validationErrors[0].Tag() {
	case "required":
		return errors.New("file name must not be empty")
	case "max":
		return errors.Errorf("file name must be at most %d characters (got %d)", MaxFileNameLength, len([]rune(trimmed)))
	case "rulefilename":
		return errors.Errorf("file name must not contain any of: %s", strings.Join(strings.Split(forbiddenChars, ""), " "))
	default:
		return errors.Errorf("file name failed validation: %s", validationErrors[0].Tag())
	}
}

// ParseFormat resolves a format name such as "yaml" or ".YAML". An empty
// string selects DefaultFormat.
func ParseFormat(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultFormat, nil
	}
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	for _, f := range Formats {
		if f == s {
			return f, nil
		}
	}
	return "", errors.Errorf("unsupported format %q, must be one of: %s", s, strings.Join(Formats, ", "))
}

// NormalizeFileName replaces the extension of name, if any, with format.
func NormalizeFileName(name, format string) string {
	name = strings.TrimSpace(name)
	if format == "" {
		format = DefaultFormat
	}
	return stripExt(name) + format
}

func stripExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return name[:idx]
	}
	return name
}

type skeletonItem struct {
	Rule string `json:"rule" yaml:"rule"`
}

type skeleton struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Rules       []skeletonItem `json:"rules" yaml:"rules"`
}

type xmlSkeleton struct {
	XMLName     xml.Name `xml:"rule"`
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
	Content     string   `xml:"content"`
}

const (
	placeholderDescription = "Describe what this rule asks the assistant to do"
	placeholderRule        = "Example rule"
)

// InitialContent returns the starter content for a new rule file, chosen by
// the file's extension. Unknown extensions get plain text.
func InitialContent(fileName string) string {
	title := stripExt(filepath.Base(fileName))
	sk := skeleton{
		Name:        title,
		Description: placeholderDescription,
		Rules:       []skeletonItem{{Rule: placeholderRule}},
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".md":
		return fmt.Sprintf("# %s\n\n%s.\n", title, placeholderDescription)
	case ".yaml", ".yml":
		var buf bytes.Buffer
		buf.WriteString("# " + title + "\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(sk); err != nil {
			return plainText(title)
		}
		_ = enc.Close()
		return buf.String()
	case ".json":
		data, err := json.MarshalIndent(sk, "", "  ")
		if err != nil {
			return plainText(title)
		}
		return string(data) + "\n"
	case ".xml":
		data, err := xml.MarshalIndent(xmlSkeleton{
			Name:        title,
			Description: placeholderDescription,
			Content:     placeholderRule,
		}, "", "  ")
		if err != nil {
			return plainText(title)
		}
		return xml.Header + string(data) + "\n"
	default:
		return plainText(title)
	}
}

func plainText(title string) string {
	return fmt.Sprintf("%s\n\n%s.\n", title, placeholderDescription)
}

// ParseTags splits comma separated tags, trimming each and dropping empties.
// At most rules.MaxTags tags are kept.
func ParseTags(input string) []string {
	var tags []string
	for _, part := range strings.Split(input, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == rules.MaxTags {
			break
		}
	}
	return tags
}
