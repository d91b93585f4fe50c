// Package validation registers the request binding rules used by the API.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/i18n"
)

const slugRegexString = `^[a-z0-9][a-z0-9-]{1,63}$`

var slugRegex = regexp.MustCompile(slugRegexString)

var (
	once     sync.Once
	errSetup error
	trans    ut.Translator
)

// IsSlug reports whether s is a valid organization slug.
func IsSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// Register adds the custom tags and English messages to gin's validator. Safe to call repeatedly.
func Register() error {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			errSetup = errors.New("unexpected binding validator engine")
			return
		}
		errSetup = register(v)
	})
	return errSetup
}

func register(v *validator.Validate) error {
	defaultEn := en.New()
	uni := ut.New(defaultEn, defaultEn)
	trans, _ = uni.GetTranslator(defaultEn.Locale())
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return fmt.Errorf("register default translations: %w", err)
	}

	rules := []struct {
		tag string
		fn  validator.Func
		msg string
	}{
		{"slug", func(fl validator.FieldLevel) bool {
			return IsSlug(fl.Field().String())
		}, "{0} must be 2-64 lowercase letters, digits or hyphens and start with a letter or digit"},
		{"doccategory", func(fl validator.FieldLevel) bool {
			return models.IsCategory(fl.Field().String())
		}, "{0} must be one of " + strings.Join(models.Categories, ", ")},
		{"locale", func(fl validator.FieldLevel) bool {
			return i18n.IsSupported(fl.Field().String())
		}, "{0} must be one of " + strings.Join(i18n.Supported, ", ")},
	}
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return fmt.Errorf("register validation %s: %w", r.tag, err)
		}
		tag, msg := r.tag, r.msg
		if err := v.RegisterTranslation(tag, trans,
			func(ut ut.Translator) error { return ut.Add(tag, msg, true) },
			func(ut ut.Translator, fe validator.FieldError) string {
				t, _ := ut.T(tag, fe.Field())
				return t
			},
		); err != nil {
			return fmt.Errorf("register translation %s: %w", tag, err)
		}
	}
	return nil
}

// Describe turns a binding error into a short human-readable message.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || trans == nil {
		return "invalid request: " + err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return strings.Join(msgs, "; ")
}
