package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxInstrumentLength bounds instrument codes; they also name files on disk
const MaxInstrumentLength = 16

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator with the custom tags registered:
//
//	instrument  upper-case letters and digits, 1 to MaxInstrumentLength long
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("instrument", isInstrument)

		// Use JSON or YAML tag names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"json", "yaml"} {
				name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
	return validate
}

// Struct validates s with the shared validator
func Struct(s interface{}) error {
	return Validator().Struct(s)
}

// ValidInstrument reports whether code is an acceptable instrument code
func ValidInstrument(code string) bool {
	if len(code) < 1 || len(code) > MaxInstrumentLength {
		return false
	}
	for _, ch := range code {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			return false
		}
	}
	return true
}

// NormalizeInstrument trims and upper-cases a user supplied code
func NormalizeInstrument(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isInstrument(fl validator.FieldLevel) bool {
	return ValidInstrument(fl.Field().String())
}
