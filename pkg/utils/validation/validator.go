package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

var (
	instance *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator, reporting fields by their json names
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct validates s and converts failures into a Validation error listing
// each offending field and rule
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WithType(err, errors.ErrorTypeValidation)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fe.Namespace()+" failed "+fe.Tag()+"="+fe.Param())
		} else {
			parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
		}
	}
	return errors.Validation("invalid request: " + strings.Join(parts, "; "))
}
