package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers duovisor-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("env_name", validateEnvName); err != nil {
		return fmt.Errorf("failed to register env_name validator: %w", err)
	}
	return nil
}

// validateEnvName accepts any non-empty name without '=' or NUL, which is
// all the OS requires of an environment variable name.
func validateEnvName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name != "" && !strings.ContainsAny(name, "=\x00")
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDistinctNames(); err != nil {
		return err
	}

	return nil
}

// validateDistinctNames keeps log lines attributable to one child.
func (c *Config) validateDistinctNames() error {
	if c.Primary.Name != "" && c.Primary.Name == c.Secondary.Name {
		return fmt.Errorf("primary and secondary must have different names, both are %q", c.Primary.Name)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "env_name":
		return fmt.Sprintf("%s has an invalid environment variable name %q", field, e.Value())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
