// Package validation wraps go-playground/validator with the server's custom rules.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"roomie_server/models"
)

// ValidationError maps field names (as seen by clients) to messages.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fmt.Sprintf("field '%s': %s", f, e.Errors[f]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("is-role", validateRole); err != nil {
		panic(fmt.Sprintf("register is-role: %v", err))
	}

	return &Validator{validate: v}
}

// Validate checks i and returns a *ValidationError listing every failing field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return &ValidationError{Errors: out}
}

// Var validates a single value against a tag, e.g. v.Var(phone, "e164").
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

func validateRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "is-role":
		return "must be 'hunter' or 'host'"
	case "e164":
		return "must be an E.164 phone number"
	case "latitude", "longitude":
		return "is not a valid coordinate"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return "failed on '" + fe.Tag() + "'"
	}
}
