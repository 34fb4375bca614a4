package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

var (
	// Validate проверяет тела HTTP-запросов и payload событий WebSocket
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags
	violationTypeTag = "violation_type"
	questionTypeTag  = "question_type"
	notBlankTag      = "notblank"
)

func init() {
	Validate = validator.New()
	Validate.SetTagName("binding")

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = Validate.RegisterValidation(violationTypeTag, violationTypeValidation)
	_ = Validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{violationTypeTag, questionTypeTag, notBlankTag} {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustomValidationErrs)
	}
}

// structValidator подменяет валидатор gin, чтобы HTTP и WebSocket
// проверялись одним экземпляром с одними правилами и переводами
type structValidator struct {
	validate *validator.Validate
}

func (sv structValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	switch value.Kind() {
	case reflect.Ptr:
		if value.IsNil() {
			return nil
		}
		return sv.ValidateStruct(value.Elem().Interface())
	case reflect.Struct:
		return sv.validate.Struct(obj)
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			if err := sv.ValidateStruct(value.Index(i).Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sv structValidator) Engine() any {
	return sv.validate
}

// RegisterGinValidators делает Validate валидатором gin
func RegisterGinValidators() {
	binding.Validator = structValidator{validate: Validate}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case violationTypeTag:
		return fe.Field() + " must be one of tab-switch, blur, copy-paste, right-click, dev-tools, disconnect"
	case questionTypeTag:
		return fe.Field() + " must be one of single, multiple, numerical"
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	default:
		return ""
	}
}

// ValidationMessage собирает читаемое сообщение из ошибок валидатора
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(Translator))
	}
	return strings.Join(msgs, "; ")
}

// Custom Validators

func violationTypeValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return entity.ViolationType(str).IsValid()
	}
	return false
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return entity.QuestionType(str).IsValid()
	}
	return false
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}
