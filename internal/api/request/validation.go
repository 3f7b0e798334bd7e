package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	elementAddressRegex = regexp.MustCompile(`^[0-9]+/[0-9]+$`)
	transitionNameRegex = regexp.MustCompile(`^[a-z]+_to_[a-z]+$`)
)

func init() {
	validate.RegisterValidation("element_address", func(fl validator.FieldLevel) bool {
		return elementAddressRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("transition_name", func(fl validator.FieldLevel) bool {
		return transitionNameRegex.MatchString(fl.Field().String())
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// DecodeOptional is Decode for endpoints whose body may be omitted.
func DecodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return validateStruct(v)
	}
	return Decode(r, v)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
