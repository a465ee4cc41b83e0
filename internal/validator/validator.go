package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/stemsi/listening-survey/internal/response"
)

var (
	// trans is the singleton English translator for validation errors.
	trans     ut.Translator
	setupOnce sync.Once
)

// Setup registers the validator with English translations on Gin's binding engine.
// Safe to call more than once; only the first call has effect.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)
	})
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if trans != nil {
				fields[fe.Namespace()] = fe.Translate(trans)
			} else {
				fields[fe.Namespace()] = fe.Error()
			}
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// BindBody decodes and validates an already-read request body into dst, so
// the raw bytes stay available to the caller. On failure it returns the
// error code to report (ErrInvalidPayload for malformed JSON, ErrValidation
// for rule violations) and the translated field map.
func BindBody(body []byte, dst interface{}) (response.ErrCode, map[string]string) {
	err := binding.JSON.BindBody(body, dst)
	if err == nil {
		return "", nil
	}

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		return response.ErrValidation, TranslateErrors(err)
	}
	return response.ErrInvalidPayload, TranslateErrors(err)
}
