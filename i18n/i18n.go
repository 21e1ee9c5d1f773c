// Package i18n localises mxkit's own user-facing messages.
//
// Catalogs are gettext PO files embedded in the binary under
// locales/{lang}/LC_MESSAGES/mxkit.po and served through gotext. Message
// ids are the English strings, so an unknown language or a missing entry
// falls through to English.
//
//	i18n.Init("")
//	fmt.Println(i18n.T("Wrote %s", path))
//	fmt.Println(i18n.N("%d unit", "%d units", n, n))
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "mxkit"

var (
	po   *gotext.Locale
	lang = "en"
)

// Init loads the catalog for lang, or for the language named by the
// environment when lang is empty. Call it once before T or N.
func Init(l string) {
	if l == "" {
		l = detectLanguage()
	}
	lang = l

	po = gotext.NewLocaleFSWithPath(l, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Language returns the language passed to or detected by Init.
func Language() string { return lang }

// T translates msgid and formats it with vars.
func T(msgid string, vars ...any) string {
	if po == nil {
		return format(msgid, vars)
	}
	return po.Get(msgid, vars...)
}

// N translates a message with plural forms and formats it with vars.
func N(singular, plural string, n int, vars ...any) string {
	if po == nil {
		if n == 1 {
			return format(singular, vars)
		}
		return format(plural, vars)
	}
	return po.GetN(singular, plural, n, vars...)
}

func format(s string, vars []any) string {
	if len(vars) == 0 {
		return s
	}
	return fmt.Sprintf(s, vars...)
}

// detectLanguage follows GNU gettext: LANGUAGE, then LC_ALL, LC_MESSAGES
// and LANG. Encodings and modifiers are dropped; C and POSIX mean English.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if i := strings.IndexAny(val, ".@"); i >= 0 {
			val = val[:i]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
