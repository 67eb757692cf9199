// Package validation configures gin's validator and renders its errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldError is one failed rule, reported with the field's wire name.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

var (
	once       sync.Once
	setupErr   error
	translator ut.Translator
)

// Setup installs english messages and wire-name reporting on gin's validator
// and makes JSON binding reject unknown fields. Safe to call repeatedly.
func Setup() error {
	once.Do(func() { setupErr = setup() })
	return setupErr
}

func setup() error {
	binding.EnableDecoderDisallowUnknownFields = true

	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	v.RegisterTagNameFunc(wireName)

	eng := en.New()
	uni := ut.New(eng, eng)
	translator, _ = uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, translator); err != nil {
		return fmt.Errorf("register translations: %w", err)
	}
	return addCustomTranslations(v)
}

func addCustomTranslations(v *validator.Validate) error {
	if err := v.RegisterTranslation("required", translator, func(ut ut.Translator) error {
		return ut.Add("required", "{0} is required", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("required", fe.Field())
		return t
	}); err != nil {
		return err
	}

	if err := v.RegisterTranslation("email", translator, func(ut ut.Translator) error {
		return ut.Add("email", "Please provide a valid email address", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("email")
		return t
	}); err != nil {
		return err
	}

	// string lengths only; numeric min keeps the default wording
	return v.RegisterTranslation("min", translator, func(ut ut.Translator) error {
		if err := ut.Add("min-string", "{0} must be at least {1} characters long", true); err != nil {
			return err
		}
		return ut.Add("min-number", "{0} must be {1} or greater", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		key := "min-number"
		if fe.Kind() == reflect.String {
			key = "min-string"
		}
		t, _ := ut.T(key, fe.Field(), fe.Param())
		return t
	})
}

// wireName reports the json name, then the form name, then the Go name.
func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Details converts validator errors to FieldErrors. It returns nil for
// anything that is not a validator.ValidationErrors.
func Details(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Error()
		if translator != nil {
			msg = fe.Translate(translator)
		}
		out = append(out, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: msg,
		})
	}
	return out
}
