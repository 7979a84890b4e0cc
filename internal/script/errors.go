package script

import (
	"fmt"
	"strings"
)

// ConfigError reports authoring defects found while loading a script. A
// script with any defect is never handed to the playback engine.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any problem was recorded.
func (e *ConfigError) HasErrors() bool { return len(e.Problems) > 0 }

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid script: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid script (%d problems):\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}
