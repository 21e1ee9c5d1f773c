// Package langmeta resolves the language codes found in MXLIFF files and
// TMS job listings ("en", "en_us", "pt-BR", "zh_hant_tw") to display names.
package langmeta

import "strings"

// Meta describes how to show a language.
type Meta struct {
	Code   string // canonical code, e.g. "pt-BR"
	Name   string // native name
	Flag   string // emoji flag of the region, "" without one
	Script string // script subtag, e.g. "Hant"
}

var names = map[string]string{
	"ar":    "العربية",
	"bg":    "Български",
	"cs":    "Čeština",
	"da":    "Dansk",
	"de":    "Deutsch",
	"el":    "Ελληνικά",
	"en":    "English",
	"en-GB": "English (UK)",
	"en-US": "English (US)",
	"es":    "Español",
	"es-MX": "Español (México)",
	"et":    "Eesti",
	"fi":    "Suomi",
	"fr":    "Français",
	"fr-CA": "Français (Canada)",
	"he":    "עברית",
	"hi":    "हिन्दी",
	"hr":    "Hrvatski",
	"hu":    "Magyar",
	"id":    "Bahasa Indonesia",
	"it":    "Italiano",
	"ja":    "日本語",
	"ko":    "한국어",
	"lt":    "Lietuvių",
	"lv":    "Latviešu",
	"ms":    "Bahasa Melayu",
	"nb":    "Norsk bokmål",
	"nl":    "Nederlands",
	"pl":    "Polski",
	"pt":    "Português",
	"pt-BR": "Português (Brasil)",
	"pt-PT": "Português (Portugal)",
	"ro":    "Română",
	"ru":    "Русский",
	"sk":    "Slovenčina",
	"sl":    "Slovenščina",
	"sr":    "Српски",
	"sv":    "Svenska",
	"th":    "ไทย",
	"tr":    "Türkçe",
	"uk":    "Українська",
	"vi":    "Tiếng Việt",
	"zh":    "中文",
	"zh-CN": "简体中文",
	"zh-TW": "繁體中文",
}

// Canonical normalizes a code to BCP 47 casing: lower-case language,
// title-case script, upper-case region. Memsource's "zh_hant_tw" becomes
// "zh-Hant-TW".
func Canonical(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return ""
	}
	parts := strings.Split(code, "-")
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		switch len(parts[i]) {
		case 2, 3:
			parts[i] = strings.ToUpper(parts[i])
		case 4:
			parts[i] = strings.ToUpper(parts[i][:1]) + strings.ToLower(parts[i][1:])
		}
	}
	return strings.Join(parts, "-")
}

func split(canonical string) (lang, script, region string) {
	parts := strings.Split(canonical, "-")
	lang = parts[0]
	for _, p := range parts[1:] {
		switch {
		case len(p) == 4:
			script = p
		case len(p) == 2 && region == "":
			region = p
		}
	}
	return
}

// FlagFromRegion returns the emoji flag for a two-letter region code.
func FlagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + r - 'A')
	}
	return b.String()
}

// Resolve returns metadata for code. Unknown variants fall back to the
// base language name; unknown languages keep the code as their name.
func Resolve(code string) Meta {
	c := Canonical(code)
	lang, script, region := split(c)
	m := Meta{Code: c, Script: script, Flag: FlagFromRegion(region)}

	switch {
	case names[c] != "":
		m.Name = names[c]
	case region != "" && names[lang+"-"+region] != "":
		m.Name = names[lang+"-"+region]
	case names[lang] != "":
		m.Name = names[lang]
	default:
		m.Name = code
	}
	return m
}

// Label renders "Name (code)" for CLI output, or just the code when the
// language is unknown.
func Label(code string) string {
	if code == "" {
		return "?"
	}
	m := Resolve(code)
	if m.Name == code {
		return code
	}
	return m.Name + " (" + code + ")"
}
