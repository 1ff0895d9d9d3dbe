package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	defaultValidator *validator.Validate
	validatorOnce    sync.Once
)

// Validator 返回进程共享的 validator 实例
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		defaultValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return defaultValidator
}

// Validate 按 validate tag 校验结构体
func Validate(cfg any) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if err := Validator().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", ErrValidationFailed, formatValidationErrors(err))
	}
	return nil
}

// formatValidationErrors 格式化校验错误
func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field, param := fe.Namespace(), fe.Param()
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("field '%s' is required", field))
		case "min", "gte":
			parts = append(parts, fmt.Sprintf("field '%s' must be at least %s", field, param))
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("field '%s' must be at most %s", field, param))
		case "oneof":
			parts = append(parts, fmt.Sprintf("field '%s' must be one of [%s]", field, param))
		case "gtefield", "ltefield":
			parts = append(parts, fmt.Sprintf("field '%s' must satisfy %s=%s", field, fe.Tag(), param))
		default:
			parts = append(parts, fmt.Sprintf("field '%s' failed validation '%s'", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
