package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/decatholac/internal/models"
)

// TargetConfig is a [[targets]] entry as written in config files
type TargetConfig struct {
	Name            string            `toml:"name" yaml:"name" validate:"required"`
	Source          string            `toml:"source" yaml:"source" validate:"required,url"`
	Mode            string            `toml:"mode" yaml:"mode" validate:"required"`
	AscendingSource bool              `toml:"ascending_source" yaml:"ascending_source"`
	BaseURL         string            `toml:"baseUrl" yaml:"baseUrl"`
	RequestHeaders  map[string]string `toml:"requestHeaders" yaml:"requestHeaders"`
	Delay           int               `toml:"delay" yaml:"delay" validate:"min=0,max=255"`
	Keys            *TargetKeysConfig `toml:"keys" yaml:"keys"`
	Tags            *TargetTagsConfig `toml:"tags" yaml:"tags"`
}

// TargetKeysConfig holds the JSON dot paths. Number and Title take a string or
// a list of strings.
type TargetKeysConfig struct {
	Chapters   string         `toml:"chapters" yaml:"chapters" validate:"required"`
	Number     any            `toml:"number" yaml:"number" validate:"required"`
	Title      any            `toml:"title" yaml:"title" validate:"required"`
	Date       string         `toml:"date" yaml:"date" validate:"required"`
	DateFormat string         `toml:"dateFormat" yaml:"dateFormat"`
	URL        string         `toml:"url" yaml:"url" validate:"required"`
	Skip       map[string]any `toml:"skip" yaml:"skip"`
}

// TargetTagsConfig holds the CSS selectors for HTML targets
type TargetTagsConfig struct {
	ChaptersTag     string `toml:"chaptersTag" yaml:"chaptersTag" validate:"required"`
	NumberTag       string `toml:"numberTag" yaml:"numberTag"`
	NumberAttribute string `toml:"numberAttribute" yaml:"numberAttribute"`
	TitleTag        string `toml:"titleTag" yaml:"titleTag"`
	TitleAttribute  string `toml:"titleAttribute" yaml:"titleAttribute"`
	DateTag         string `toml:"dateTag" yaml:"dateTag"`
	DateAttribute   string `toml:"dateAttribute" yaml:"dateAttribute"`
	DateFormat      string `toml:"dateFormat" yaml:"dateFormat"`
	URLTag          string `toml:"urlTag" yaml:"urlTag"`
	URLAttribute    string `toml:"urlAttribute" yaml:"urlAttribute"`
}

// targetFile is the layout of a file in the targets directory
type targetFile struct {
	Targets []TargetConfig `toml:"targets" yaml:"targets"`
}

var validate = validator.New()

// ErrNoTargets is returned when neither the config nor the targets directory lists a target
var ErrNoTargets = errors.New("no targets found")

// ToTarget validates the raw entry and converts it into a models.Target
func (tc *TargetConfig) ToTarget() (*models.Target, error) {
	if err := validate.Struct(tc); err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", tc.Name, err)
	}

	mode, err := models.ParseParseMode(tc.Mode)
	if err != nil {
		return nil, err
	}

	target := &models.Target{
		Name:            tc.Name,
		Source:          tc.Source,
		AscendingSource: tc.AscendingSource,
		Mode:            mode,
		BaseURL:         tc.BaseURL,
		RequestHeaders:  tc.RequestHeaders,
		Delay:           uint8(tc.Delay),
	}

	if tc.Keys != nil {
		keys, err := tc.Keys.toKeys()
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", tc.Name, err)
		}
		target.Keys = keys
	}
	if tc.Tags != nil {
		if err := validate.Struct(tc.Tags); err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", tc.Name, err)
		}
		target.Tags = tc.Tags.toTags()
	}

	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}

func (kc *TargetKeysConfig) toKeys() (*models.TargetKeys, error) {
	if err := validate.Struct(kc); err != nil {
		return nil, err
	}

	number, err := stringList(kc.Number)
	if err != nil {
		return nil, fmt.Errorf("keys.number: %w", err)
	}
	title, err := stringList(kc.Title)
	if err != nil {
		return nil, fmt.Errorf("keys.title: %w", err)
	}

	keys := &models.TargetKeys{
		Chapters: kc.Chapters,
		Number:   number,
		Title:    title,
		Date:     kc.Date,
		URL:      kc.URL,
		Skip:     kc.Skip,
	}
	if format, ok := models.ParseDateFormat(kc.DateFormat); ok {
		keys.DateFormat = &format
	}
	return keys, nil
}

func (tc *TargetTagsConfig) toTags() *models.TargetTags {
	return &models.TargetTags{
		ChaptersTag:     strings.TrimSpace(tc.ChaptersTag),
		NumberTag:       strings.TrimSpace(tc.NumberTag),
		NumberAttribute: strings.TrimSpace(tc.NumberAttribute),
		TitleTag:        strings.TrimSpace(tc.TitleTag),
		TitleAttribute:  strings.TrimSpace(tc.TitleAttribute),
		DateTag:         strings.TrimSpace(tc.DateTag),
		DateAttribute:   strings.TrimSpace(tc.DateAttribute),
		DateFormat:      strings.TrimSpace(tc.DateFormat),
		URLTag:          strings.TrimSpace(tc.URLTag),
		URLAttribute:    strings.TrimSpace(tc.URLAttribute),
	}
}

// stringList accepts a string or a list of strings and drops empty entries
func stringList(value any) ([]string, error) {
	var result []string
	switch v := value.(type) {
	case string:
		if v != "" {
			result = append(result, v)
		}
	case []string:
		for _, s := range v {
			if s != "" {
				result = append(result, s)
			}
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %T", item)
			}
			if s != "" {
				result = append(result, s)
			}
		}
	default:
		return nil, fmt.Errorf("expected a string or a list of strings, got %T", value)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no paths given")
	}
	return result, nil
}

// LoadTargets converts the configured targets plus any files in the targets
// directory. Duplicate names are rejected.
func (c *Config) LoadTargets() ([]*models.Target, error) {
	raw := append([]TargetConfig{}, c.Targets...)

	if c.TargetsDir.Dir != "" {
		extra, err := loadTargetsDir(c.TargetsDir.Dir)
		if err != nil {
			return nil, err
		}
		raw = append(raw, extra...)
	}
	if len(raw) == 0 {
		return nil, ErrNoTargets
	}

	seen := make(map[string]struct{}, len(raw))
	targets := make([]*models.Target, 0, len(raw))
	for i := range raw {
		target, err := raw[i].ToTarget()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[target.Name]; dup {
			return nil, fmt.Errorf("duplicate target name: %s", target.Name)
		}
		seen[target.Name] = struct{}{}
		targets = append(targets, target)
	}

	return targets, nil
}

// loadTargetsDir reads every *.toml, *.yaml and *.yml file in dir, in name order
func loadTargetsDir(dir string) ([]TargetConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".toml", ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var targets []TargetConfig
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read target file %s: %w", path, err)
		}

		var file targetFile
		if strings.EqualFold(filepath.Ext(name), ".toml") {
			err = toml.Unmarshal(data, &file)
		} else {
			err = yaml.Unmarshal(data, &file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse target file %s: %w", path, err)
		}
		targets = append(targets, file.Targets...)
	}

	return targets, nil
}
