// Package validation runs struct-tag rules before any write and turns
// validator failures into field-keyed, human readable messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var colorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("color", func(fl validator.FieldLevel) bool {
		return colorRe.MatchString(fl.Field().String())
	})
}

// messages maps validation tags to message templates.  Templates with a
// single %s receive the field name, templates with two also receive the
// tag parameter.
var messages = map[string]string{
	"required": "The field '%s' is required.",
	"email":    "The field '%s' must be a valid email address.",
	"min":      "The field '%s' must be at least %s.",
	"max":      "The field '%s' must be no longer than %s.",
	"lte":      "The field '%s' must be less than or equal to %s.",
	"gte":      "The field '%s' must be greater than or equal to %s.",
	"gt":       "The field '%s' must be greater than %s.",
	"oneof":    "The field '%s' must be one of [%s].",
	"color":    "The field '%s' must be a valid hex color.",
	"url":      "The field '%s' must be a valid URL.",
	"uuid":     "The field '%s' must be a valid id.",
	"dive":     "The field '%s' contains an invalid entry.",
}

// Errors collects field level validation failures.  Field names use the
// JSON names of the request payload.
type Errors struct {
	Fields map[string]string
	order  []string
}

// New returns Errors holding a single field failure.
func New(field, msg string) *Errors {
	e := &Errors{}
	e.Add(field, msg)
	return e
}

// Add records msg for field.  The first message recorded for a field wins.
func (e *Errors) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = msg
	e.order = append(e.order, field)
}

// Empty reports whether no failure was recorded.
func (e *Errors) Empty() bool { return e == nil || len(e.Fields) == 0 }

// First returns the message of the first recorded failure.
func (e *Errors) First() string {
	if e.Empty() {
		return ""
	}
	return e.Fields[e.order[0]]
}

func (e *Errors) Error() string { return e.First() }

// OrNil returns e when it holds failures and a nil error otherwise.
func (e *Errors) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Struct validates s (a pointer to a struct) and returns *Errors when any
// rule fails.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Errors{}
	for _, fe := range verrs {
		field := fieldPath(fe)
		out.Add(field, message(field, fe))
	}
	return out
}

// fieldPath drops the root struct name from the namespace so nested
// fields read as settings.autoArchiveDays.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(field string, fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		switch strings.Count(msg, "%s") {
		case 1:
			return fmt.Sprintf(msg, field)
		case 2:
			return fmt.Sprintf(msg, field, fe.Param())
		}
	}
	return fmt.Sprintf("Field '%s' is invalid: %s", field, fe.Tag())
}
