// Package i18n holds message catalogs and locale negotiation.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Default is the locale used when nothing better matches.
const Default = "en"

// Supported lists the locales with a catalog.
var Supported = []string{"en", "es", "de", "fr"}

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Spanish,
	language.German,
	language.French,
})

// IsSupported reports whether locale has a catalog.
func IsSupported(locale string) bool {
	_, ok := catalogs[locale]
	return ok
}

// Normalize maps a locale such as "es-MX" to a supported base locale, or "" if none.
func Normalize(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if IsSupported(base.String()) {
		return base.String()
	}
	return ""
}

// Negotiate picks the stored preference when supported, otherwise the best match for an
// Accept-Language header, otherwise Default.
func Negotiate(preferred, acceptLanguage string) string {
	if l := Normalize(preferred); l != "" {
		return l
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	tag, _, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	base, _ := tag.Base()
	if IsSupported(base.String()) {
		return base.String()
	}
	return Default
}

// T returns the message for key in locale, falling back to English and then to the key.
// Args are applied with fmt.Sprintf.
func T(locale, key string, args ...interface{}) string {
	msg, ok := lookup(locale, key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Has reports whether key exists in locale or the English fallback.
func Has(locale, key string) bool {
	_, ok := lookup(locale, key)
	return ok
}

func lookup(locale, key string) (string, bool) {
	if c, ok := catalogs[Normalize(locale)]; ok {
		if msg, ok := c[key]; ok {
			return msg, true
		}
	}
	msg, ok := catalogs[Default][key]
	return msg, ok
}
