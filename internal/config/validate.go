package config

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// ошибка регистрации тут невозможна: тег и функция фиксированы
		_ = validate.RegisterValidation("goident", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return token.IsIdentifier(s) && s != "_"
		})
	})
	return validate
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	err := validatorInstance().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "goident":
		return fmt.Sprintf("%s %q is not a Go identifier", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s %q must be one of: %s", field, fe.Value(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
