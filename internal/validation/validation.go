// Package validation はgo-playground/validatorを用いた入力検証を提供する。
// 検証エラーはJSONタグ名をキーとしたmodel.FieldErrorsに変換される。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/postbook/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	// 空白のみの文字列も未入力として扱う
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}

	return v
}

// Struct は構造体のvalidateタグを検証し、フィールド単位のエラーを返す。
// エラーがない場合は空のFieldErrorsを返す。
func Struct(s any) model.FieldErrors {
	fields := model.FieldErrors{}

	err := validate.Struct(s)
	if err == nil {
		return fields
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields.Add(model.NonFieldErrorsKey, err.Error())
		return fields
	}

	for _, fe := range verrs {
		fields.Add(fe.Field(), message(fe.Tag(), fe.Param()))
	}
	return fields
}

func message(tag, param string) string {
	switch tag {
	case "required", "notblank":
		return "この項目は必須です。"
	case "max":
		return fmt.Sprintf("%s文字以下で入力してください。", param)
	case "min":
		return fmt.Sprintf("%s文字以上で入力してください。", param)
	case "email":
		return "有効なメールアドレスを入力してください。"
	case "eqfield":
		return "確認用の値が一致しません。"
	default:
		return "入力値が不正です。"
	}
}
