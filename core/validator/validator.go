package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translation "github.com/go-playground/validator/v10/translations/en"
)

const defaultLocale = "en"

var (
	validate   *validator.Validate
	translator ut.Translator
	once       sync.Once
)

// FieldError is a single failed rule. Field is the json path of the value,
// e.g. externalLinks[0].url.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Errors is returned by ValidateStruct when at least one rule failed.
type Errors []FieldError

func (errs Errors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, " and ")
}

func newValidator(trans ut.Translator) *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := en_translation.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}
	return validate
}

func ValidateStruct(f interface{}) error {
	err := getValidator().Struct(f)
	return checkError(err)
}

func ValidateOneOf(value string, enums ...string) error {
	tags := "omitempty,oneof=" + strings.Join(enums, " ")
	err := getValidator().Var(value, tags)
	return checkError(err)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		translator, _ = ut.New(en.New(), en.New()).GetTranslator(defaultLocale)
		validate = newValidator(translator)
	})
	return validate
}

func checkError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(e.Namespace()),
			Rule:    e.Tag(),
			Message: message(e),
		})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("value %q not recognized, only support %q", e.Value(), e.Param())
	case "gte":
		return fmt.Sprintf("cannot be less than %s", e.Param())
	case "url":
		return fmt.Sprintf("%q is not a valid url", e.Value())
	case "excludesall":
		return fmt.Sprintf("must not contain any of %q", e.Param())
	}
	if msg := e.Translate(translator); msg != "" {
		return msg
	}
	return fmt.Sprintf("failed on the %q rule", e.Tag())
}
