package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/erp/marketsync/internal/interfaces/http/dto"
	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator reporting fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	return v
}

// validationDetails flattens validator errors into response details
func validationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.ValidationDetail{{Message: err.Error()}}
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "gte", "min":
		return "Must be at least " + e.Param()
	case "lte", "max":
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "datetime":
		return "Must be a date formatted as " + e.Param()
	case "gtefield":
		return "Must not be before " + e.Param()
	default:
		return "Invalid value"
	}
}
