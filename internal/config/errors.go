package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is fatal: the process must not start a refresh with a
// broken reference table or invalid tunables.
type ConfigurationError struct {
	Source   string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %s", e.Source, strings.Join(e.Problems, "; "))
}

func (e *ConfigurationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ConfigurationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
