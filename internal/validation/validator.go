// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package validation provides struct validation using
// go-playground/validator v10 through a thread-safe singleton instance.
//
// Custom validators cover the scanner wire vocabulary:
//   - tokenid:  ^[A-Za-z_0-9]+$, 1-100 chars
//   - teamid:   exactly three digits
//   - deviceid: 1-100 chars, no control characters
//   - scanmode: blackmarket or detective
//
// Validation failures translate to the VALIDATION_ERROR body shape used
// by every API error response.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorInstance *validator.Validate
	validatorOnce     sync.Once
)

var (
	tokenIDPattern  = regexp.MustCompile(`^[A-Za-z_0-9]{1,100}$`)
	teamIDPattern   = regexp.MustCompile(`^[0-9]{3}$`)
	deviceIDPattern = regexp.MustCompile(`^[^\x00-\x1f\x7f]{1,100}$`)
)

// ValidationError describes a single field failure.
type ValidationError struct {
	field string
	tag   string
	param string
	value interface{}
}

// Field returns the failing struct field name.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return translateTag(e.field, e.tag, e.param)
}

// RequestValidationError aggregates every field failure for one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field failures.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		msgs = append(msgs, ve.errors[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// Details returns one human-readable line per failing field, for the
// details array of a VALIDATION_ERROR body.
func (ve *RequestValidationError) Details() []string {
	details := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		details = append(details, ve.errors[i].Error())
	}
	return details
}

// GetValidator returns the singleton validator, constructing it on first
// use. The instance caches struct metadata, so sharing one is both a
// correctness and a performance choice.
func GetValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Registration only fails for empty tags or nil funcs; these are
		// compile-time constants, so a failure is a programming error.
		mustRegister(v, "tokenid", func(fl validator.FieldLevel) bool {
			return tokenIDPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "teamid", func(fl validator.FieldLevel) bool {
			return teamIDPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "deviceid", func(fl validator.FieldLevel) bool {
			return deviceIDPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "scanmode", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || s == "blackmarket" || s == "detective"
		})

		validatorInstance = v
	})
	return validatorInstance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// ValidateStruct validates s and returns nil on success or a
// RequestValidationError carrying every field failure.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return &RequestValidationError{errors: []ValidationError{
			{field: "request", tag: "invalid"},
		}}
	}

	ve := &RequestValidationError{errors: make([]ValidationError, 0, len(fieldErrors))}
	for _, fe := range fieldErrors {
		ve.errors = append(ve.errors, ValidationError{
			field: fe.Field(),
			tag:   fe.Tag(),
			param: fe.Param(),
			value: fe.Value(),
		})
	}
	return ve
}

var tagMessages = map[string]string{
	"required": "%s is required",
	"tokenid":  "%s must be 1-100 characters of letters, digits or underscore",
	"teamid":   "%s must be exactly three digits",
	"deviceid": "%s must be 1-100 printable characters",
	"scanmode": "%s must be blackmarket or detective",
	"uuid":     "%s must be a valid UUID",
}

func translateTag(field, tag, param string) string {
	if tmpl, ok := tagMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
