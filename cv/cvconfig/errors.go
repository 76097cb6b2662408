package cvconfig

import (
	"errors"
	"fmt"
)

// ConfigError is returned from [LoadEngineConfig]
// when the configuration file cannot be read or is missing a required field
// or contains a malformed value.
type ConfigError struct {
	Path string

	// Dotted TOML key of the offending field.
	// Empty if the failure was not specific to one field.
	Field string

	Err error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: field %s: %v", e.Path, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ErrMissingField is wrapped in a [*ConfigError] when a required field is absent.
var ErrMissingField = errors.New("required field is missing")
