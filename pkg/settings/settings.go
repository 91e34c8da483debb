// Package settings loads engine.Settings from layered configuration
// sources: compiled defaults, an optional settings file, and
// environment variables, lowest to highest priority.
package settings

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/codesentry/codesentry/pkg/engine"
)

const envPrefix = "SENTRY_"

var defaults = map[string]interface{}{
	"ignore_files_list":          []string{},
	"ignore_rules_list":          []string{},
	"enable_best_practice_rules": false,
	"enable_manual_review_rules": false,
	"validate_rules_files":       true,
}

// fileShape mirrors engine.Settings but with koanf/json struct tags,
// since engine.Settings itself stays free of serialization concerns.
type fileShape struct {
	IgnoreFilesList         []string `koanf:"ignore_files_list"`
	IgnoreRulesList         []string `koanf:"ignore_rules_list"`
	EnableBestPracticeRules bool     `koanf:"enable_best_practice_rules"`
	EnableManualReviewRules bool     `koanf:"enable_manual_review_rules"`
	ValidateRulesFiles      bool     `koanf:"validate_rules_files"`
}

// Load builds an engine.Settings from compiled defaults, an optional
// JSON settings file at path (skipped entirely when path is empty or
// the file doesn't exist), and SENTRY_-prefixed environment variables.
func Load(path string) (engine.Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return engine.Settings{}, fmt.Errorf("settings: loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), json.Parser()); err != nil {
				return engine.Settings{}, fmt.Errorf("settings: loading %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return engine.Settings{}, fmt.Errorf("settings: stat %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = envKeyToField(key)
			return key, value
		},
	}), nil); err != nil {
		return engine.Settings{}, fmt.Errorf("settings: loading environment: %w", err)
	}

	var shape fileShape
	if err := k.Unmarshal("", &shape); err != nil {
		return engine.Settings{}, fmt.Errorf("settings: unmarshal: %w", err)
	}

	return engine.Settings{
		IgnoreFilesList:         shape.IgnoreFilesList,
		IgnoreRulesList:         shape.IgnoreRulesList,
		EnableBestPracticeRules: shape.EnableBestPracticeRules,
		EnableManualReviewRules: shape.EnableManualReviewRules,
		ValidateRulesFiles:      shape.ValidateRulesFiles,
	}, nil
}

// envKeyToField turns SENTRY_ENABLE_BEST_PRACTICE_RULES into
// enable_best_practice_rules, matching the snake_case keys used by the
// defaults map and the settings file.
func envKeyToField(key string) string {
	key = key[len(envPrefix):]
	out := make([]byte, 0, len(key))
	for _, c := range key {
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out = append(out, byte(c))
	}
	return string(out)
}
