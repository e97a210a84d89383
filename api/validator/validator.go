package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/GetStream/careerchat/apperror"
	"github.com/go-playground/validator/v10"
)

// Validator is a struct that provides methods for struct validation using the underlying validator library.
type Validator struct {
	cli *validator.Validate
}

// ValidationError represents an error encountered during validation of a struct field.
type ValidationError struct {
	Field  string
	Reason string
}

func (v *Validator) formatError(err error) []ValidationError {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Reason: err.Error()}}
	}
	out := make([]ValidationError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, ValidationError{
			Field:  fe.Field(),
			Reason: reason(fe),
		})
	}
	return out
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be empty"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return "is invalid"
	}
}

// ValidateStruct validates the provided struct using the underlying validator and returns a slice of validation errors.
func (v *Validator) ValidateStruct(s interface{}) []ValidationError {
	err := v.cli.Struct(s)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks the provided value against the specified validation tags and returns a slice of validation errors.
func (v *Validator) Validate(value interface{}, tag string) []ValidationError {
	err := v.cli.Var(value, tag)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// Check validates s and returns its first failure as an
// *apperror.ValidationError, or nil.
func (v *Validator) Check(s interface{}) error {
	errs := v.ValidateStruct(s)
	if len(errs) == 0 {
		return nil
	}
	return apperror.Validation(errs[0].Field, errs[0].Reason)
}

// New initializes and returns a new instance of the Validator. Field names
// in errors are taken from the json tag.
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	cli.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(cli, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{cli: cli}
}

// mustRegister registers a custom validation and panics if the tag or
// function is rejected.
func mustRegister(cli *validator.Validate, tag string, fn validator.Func) {
	if err := cli.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}
