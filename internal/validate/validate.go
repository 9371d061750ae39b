// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate accumulates configuration validation failures so that
// every problem is reported at once.
package validate

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Error is one failed check.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every failed check of one Validator.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator collects failures. The zero value is ready to use.
type Validator struct {
	errors []Error
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{}
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// IsValid reports whether no failure has been recorded.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// Check records err, if any, against field.
func (v *Validator) Check(field string, value any, err error) {
	if err != nil {
		v.AddError(field, err.Error(), value)
	}
}

// Range checks lo <= value <= hi.
func Range[T cmp.Ordered](v *Validator, field string, value, lo, hi T) {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("value must be between %v and %v, got %v", lo, hi, value), value)
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf checks that value is in allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
	}
}

// Filename checks for a bare file name without directories or traversal.
func (v *Validator) Filename(field, name string) {
	switch {
	case strings.TrimSpace(name) == "":
		v.AddError(field, "file name cannot be empty", name)
	case strings.Contains(name, ".."):
		v.AddError(field, fmt.Sprintf("contains path traversal: %s", name), name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		v.AddError(field, fmt.Sprintf("must be a file name, got path: %s", name), name)
	}
}

// IndexPattern checks that pattern formats exactly one integer, as in
// "frame_%d.ppm" or "frame_%04d.ppm".
func (v *Validator) IndexPattern(field, pattern string) {
	verbs := strings.Count(pattern, "%") - 2*strings.Count(pattern, "%%")
	if verbs != 1 || strings.Contains(fmt.Sprintf(pattern, 1), "%!") {
		v.AddError(field, "must contain exactly one integer verb such as %d", pattern)
	}
}
