package source

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration failure. It aborts a run before any fetch.
type ConfigError struct {
	File    string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.File != "" && e.Field != "":
		return fmt.Sprintf("invalid config %s: %s: %s", e.File, e.Field, e.Message)
	case e.File != "":
		return fmt.Sprintf("invalid config %s: %s", e.File, e.Message)
	default:
		return fmt.Sprintf("invalid config: %s", e.Message)
	}
}

func NewConfigError(file, field, format string, args ...any) *ConfigError {
	return &ConfigError{File: file, Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
