package structured

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks structurally invalid requests, such as asking for
// direct coercion against a multi-field schema. These are never retried.
var ErrConfiguration = errors.New("configuration error")

// ConfigError ties a configuration error to the player it was raised for.
type ConfigError struct {
	Player string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("structured: player %s: %v", e.Player, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// GenerationError means the controller produced no reply at all.
type GenerationError struct {
	Player string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("structured: player %s: generation failed: %v", e.Player, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Attempt is one reply and the validation outcome for it.
type Attempt struct {
	Number int    `json:"number"`
	Raw    string `json:"raw"`
	Err    string `json:"error,omitempty"`
}

// FormatError is returned once the retry budget is spent without a valid
// reply. Err is the last validation error.
type FormatError struct {
	Player   string
	Raw      string
	Err      error
	Attempts []Attempt
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("structured: player %s gave no valid output after %d attempts: %v (last output: %q)",
		e.Player, len(e.Attempts), e.Err, e.Raw)
}

func (e *FormatError) Unwrap() error { return e.Err }
