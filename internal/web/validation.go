package web

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
)

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("measurement", isMeasurement)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// isMeasurement accepts what the classifier reads as a threshold: a value
// with a numeric prefix ("90", "90 PSI", "1e400").
func isMeasurement(fl validator.FieldLevel) bool {
	return !math.IsNaN(core.ParseNumber(fl.Field().String()))
}

// fieldErrors flattens validator errors into field -> message.
func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = formatFieldError(fe)
	}
	return out
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "measurement":
		return "must be a number"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must have at most " + fe.Param() + " items"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
