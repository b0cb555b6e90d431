package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"storefront/internal/domain/model"

	"github.com/go-playground/validator/v10"
)

// echo.Validatorとして使うリクエストDTOの検証
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	//エラーメッセージはjsonのフィールド名で出す
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	//電話番号（空白/ハイフンは許す）
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		_, ok := model.NormalizePhone(fl.Field().String())
		return ok
	})

	return &RequestValidator{validate: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validate.Struct(i); err != nil {
		return &ValidationError{msg: message(err)}
	}
	return nil
}

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// 最初のエラーだけを読みやすい形にする
func message(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return "invalid request"
	}
	fe := ves[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s elements", field, fe.Param())
		}
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at most %s elements", field, fe.Param())
		}
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	case "phone":
		return field + " must be a valid phone number"
	}
	return field + " is invalid"
}
