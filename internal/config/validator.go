package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers Relay Gate specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("endpoint_path", validateEndpointPath); err != nil {
		return fmt.Errorf("failed to register endpoint_path validator: %w", err)
	}
	return nil
}

// validateEndpointPath validates an endpoint path field: it must be
// rooted ("/sse") and must not carry a query string, because the post
// path gets the sessionId query parameter appended.
func validateEndpointPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if !strings.HasPrefix(path, "/") {
		return false
	}
	return !strings.ContainsAny(path, "?#")
}

// Validate validates the Config using struct tags and custom cross-field
// rules. Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validatePathsDistinct(); err != nil {
		return err
	}

	return c.validateAuthStore()
}

// validatePathsDistinct ensures the stream and message endpoints do not
// collide on the mux.
func (c *Config) validatePathsDistinct() error {
	if c.Server.SSEPath == c.Server.PostPath {
		return fmt.Errorf("server: sse_path and post_path must differ, both are %q", c.Server.SSEPath)
	}
	return nil
}

// validateAuthStore ensures the selected client store has its backing
// configuration.
func (c *Config) validateAuthStore() error {
	if !c.Auth.Enabled {
		return nil
	}

	switch c.Auth.Store {
	case "memory":
		if c.Auth.ClientsFile == "" {
			return errors.New("auth: clients_file is required when auth is enabled with the memory store")
		}
	case "sqlite":
		if c.Auth.SQLitePath == "" {
			return errors.New("auth: sqlite_path is required when auth is enabled with the sqlite store")
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
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

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "endpoint_path":
		return fmt.Sprintf("%s must be a rooted path without a query string", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
