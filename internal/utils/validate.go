package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct checks the validate tags of v and describes the first failing field.
func ValidateStruct(v interface{}) error {
	return describe(validate.Struct(v), "")
}

// ValidateVar checks a single value against tag, naming it field in the error.
func ValidateVar(field string, value interface{}, tag string) error {
	return describe(validate.Var(value, tag), field)
}

func describe(err error, field string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "url", "http_url":
		return fmt.Errorf("%s must be a valid URL", field)
	case "max":
		return fmt.Errorf("%s must be at most %s characters", field, fe.Param())
	case "required":
		return fmt.Errorf("%s is required", field)
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}
