// Package validation checks decoded API requests and reports the first problem as an
// apierr validation error named after the JSON field.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/propoto-agents/internal/apierr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s using its `validate` tags.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apierr.Internal("request validation failed", err)
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apierr.MissingField(field)
	case "oneof":
		options := strings.Join(strings.Fields(fe.Param()), ", ")
		return apierr.Validation(apierr.CodeInvalidFormat, fmt.Sprintf("%s must be one of: %s", field, options)).
			WithDetail("field", field)
	case "min", "max":
		return apierr.Validation(apierr.CodeInvalidFormat, fmt.Sprintf("%s must be %s %s", field, bound(fe.Tag()), fe.Param())).
			WithDetail("field", field)
	default:
		return apierr.Validation(apierr.CodeInvalidFormat, field+" is invalid").WithDetail("field", field)
	}
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

// HTTPURL rejects raw unless it is an absolute http or https URL with a host.
func HTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierr.Validation(apierr.CodeInvalidURL, field+" must be a valid HTTP/HTTPS URL").
			WithDetail("field", field)
	}
	return nil
}
