package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

var (
	poNumberPattern  = regexp.MustCompile(`^[A-Z0-9]+$`)
	amountPattern    = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	poCommentPattern = regexp.MustCompile(`^[A-Za-z0-9@ \n]*$`)
	letterPattern    = regexp.MustCompile(`[A-Za-z]`)
	digitPattern     = regexp.MustCompile(`[0-9]`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the helpdesk tags registered.
// Field names in messages use the json tag.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		mustRegister(v, "po_number", func(fl validator.FieldLevel) bool {
			return poNumberPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "amount", func(fl validator.FieldLevel) bool {
			return amountPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "po_comment", func(fl validator.FieldLevel) bool {
			return poCommentPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "password", func(fl validator.FieldLevel) bool {
			pw := fl.Field().String()
			return letterPattern.MatchString(pw) && digitPattern.MatchString(pw)
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Struct validates s and converts failures into an apperr validation error
// with one message per field.
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%v", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = message(fe)
	}
	return apperr.ValidationFields(fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "alphanum":
		return "must contain only letters and numbers"
	case "po_number":
		return "must contain only uppercase letters and numbers"
	case "amount":
		return "must be a number with at most 2 decimal places"
	case "password":
		return "must contain at least one letter and one number"
	case "po_comment":
		return "may contain only letters, numbers, spaces, @ and new lines"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
