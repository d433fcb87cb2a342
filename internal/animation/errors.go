package animation

import "fmt"

// ConfigurationError means the run could not start: the target, clock or
// configuration is unusable. Nothing was rendered or recorded.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
