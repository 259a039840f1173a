// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package validation validates request bodies and handler payloads with
// go-playground/validator v10.
//
// A single validator instance is shared by the process. It reports fields
// by their json or form names and adds two tags:
//
//	task_type  lowercase snake_case identifier, at most 64 characters
//	duration   positive Go duration string such as "30s" or "720h"
//
// Example:
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    rw.ValidationError(verr)
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var taskTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError lists every failed rule of one struct.
type RequestValidationError struct {
	Fields []FieldError
}

// Error joins the field messages.
func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	if len(ve.Fields) == 1 {
		return ve.Fields[0].Message
	}
	parts := make([]string, len(ve.Fields))
	for i, fe := range ve.Fields {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// Details is the error envelope's details object.
func (ve *RequestValidationError) Details() map[string]interface{} {
	return map[string]interface{}{"fields": ve.Fields}
}

// GetValidator returns the shared validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)

		mustRegister("task_type", func(fl validator.FieldLevel) bool {
			return taskTypePattern.MatchString(fl.Field().String())
		})
		mustRegister("duration", func(fl validator.FieldLevel) bool {
			d, err := time.ParseDuration(fl.Field().String())
			return err == nil && d > 0
		})
	})
	return validate
}

// fieldName prefers the json name, then the form name.
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return fld.Name
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// ValidateStruct returns nil when s passes every rule.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{Fields: []FieldError{{Field: "body", Tag: "invalid", Message: err.Error()}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		}
	}
	return out
}

var messages = map[string]string{
	"required":  "%s is required",
	"url":       "%s must be a valid URL",
	"http_url":  "%s must be a valid http or https URL",
	"uuid":      "%s must be a valid UUID",
	"task_type": "%s must be a lowercase snake_case identifier",
	"duration":  "%s must be a positive duration such as 30s or 720h",
	"oneof":     "%s must be one of: %s",
	"gte":       "%s must be greater than or equal to %s",
	"lte":       "%s must be less than or equal to %s",
	"gt":        "%s must be greater than %s",
	"lt":        "%s must be less than %s",
}

func message(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tag == "min" || tag == "max" {
		bound := "at least"
		if tag == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be %s %s characters", field, bound, param)
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, param)
	}

	tmpl, ok := messages[tag]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, field, param)
	}
	return fmt.Sprintf(tmpl, field)
}
