// Package ppc holds the error taxonomy and the small value types shared by
// the metrics, rule, and decision packages.
package ppc

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every error produced by the core matches exactly one of
// these via errors.Is.
var (
	// ErrInvalidInput marks a negative, non-finite, or out-of-domain input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks a value that cannot be computed at all
	// because a required denominator is zero or an input is missing.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrConfiguration marks an internally inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Problem describes a single rejected input field.
type Problem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (p Problem) String() string {
	return p.Field + ": " + p.Reason
}

// InvalidInputError reports every invalid field of a request at once.
type InvalidInputError struct {
	Problems []Problem `json:"problems"`
}

func (e *InvalidInputError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// FieldError reports that a single derived field is undefined.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInsufficientData.
func (e *FieldError) Unwrap() error {
	return ErrInsufficientData
}

// InsufficientData returns a FieldError for field.
func InsufficientData(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// ConfigurationError lists every inconsistency found in a configuration.
type ConfigurationError struct {
	Problems []string `json:"problems"`
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.Join(e.Problems, "; ")
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ConfigChecker accumulates configuration problems.
type ConfigChecker struct {
	prefix   string
	problems []string
}

// NewConfigChecker returns a checker whose messages are prefixed with section.
func NewConfigChecker(section string) *ConfigChecker {
	return &ConfigChecker{prefix: section}
}

// Addf records a problem.
func (c *ConfigChecker) Addf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.prefix != "" {
		msg = c.prefix + "." + msg
	}
	c.problems = append(c.problems, msg)
}

// Merge folds the problems carried by err into c. Errors that are not
// configuration errors are recorded by message.
func (c *ConfigChecker) Merge(err error) {
	if err == nil {
		return
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		c.problems = append(c.problems, ce.Problems...)
		return
	}
	c.problems = append(c.problems, err.Error())
}

// Err returns nil when no problems were recorded.
func (c *ConfigChecker) Err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ConfigurationError{Problems: append([]string(nil), c.problems...)}
}
