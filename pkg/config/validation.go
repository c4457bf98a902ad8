package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/treefs/treefs/pkg/namespace"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tags handle the declarative checks; custom rules cover constraints
// that cannot be expressed in tags, such as filesystem name validity and
// uniqueness.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Declared filesystem names must be valid namespace names and unique.
	names := make(map[string]bool)
	for i, fs := range cfg.Filesystems {
		if err := namespace.CheckName(fs.Name); err != nil {
			return fmt.Errorf("filesystems[%d]: %w", i, err)
		}
		if names[fs.Name] {
			return fmt.Errorf("filesystems[%d]: duplicate filesystem name %q", i, fs.Name)
		}
		names[fs.Name] = true

		if fs.ExportOptions != "" && !fs.Export {
			return fmt.Errorf("filesystems[%d]: export_options set but export is false", i)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics: listen_address is required when metrics are enabled")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
