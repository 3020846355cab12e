package common

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

var extensionPattern = regexp.MustCompile(`^[a-z0-9]+$`)

var (
	sharedValidator     *validator.Validate
	sharedValidatorOnce sync.Once
)

// NewValidator returns a validator with the custom tags used across the service registered
func NewValidator() *validator.Validate {
	v := validator.New()
	// "extension" accepts a bare lowercase file extension such as "png" (no dot)
	_ = v.RegisterValidation("extension", func(fl validator.FieldLevel) bool {
		return extensionPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateStruct validates a struct with the shared validator instance
func ValidateStruct(i interface{}) error {
	sharedValidatorOnce.Do(func() {
		sharedValidator = NewValidator()
	})
	return sharedValidator.Struct(i)
}

type GenericEchoValidator struct {
	Validator *validator.Validate
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = NewValidator()
	}
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request: %v", err))
	}
	return nil
}
