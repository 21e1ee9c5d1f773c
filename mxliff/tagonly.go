package mxliff

import (
	"regexp"
	"strings"
	"unicode"
)

// Placeholder syntax inside segment text:
//
//	{N>text<N}  paired formatting span
//	{N}         standalone tag
//
// Delimiters may appear raw or entity-escaped ({N&gt;text&lt;N}), since
// segment text keeps character data escaped.
var (
	pairOpenRe   = regexp.MustCompile(`\{([0-9]+)(?:>|&gt;)`)
	standaloneRe = regexp.MustCompile(`\{[0-9]+\}`)
)

// IsTagOnly reports whether source text consists only of placeholders and
// whitespace, i.e. there is nothing to translate.
//
// Paired spans are unwrapped leftmost-first until none remain, standalone
// placeholders are dropped, and the remainder is checked for emptiness. A
// span whose closing id differs from its opening id ({1>text<2}) is not a
// pair and stays in the text.
func IsTagOnly(text string) bool {
	s := stripPairedTags(text)
	s = standaloneRe.ReplaceAllString(s, "")
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	return s == ""
}

// ClassifyTagOnly computes and stores u.OnlyTag from the unit's source.
func ClassifyTagOnly(u *TransUnit) bool {
	u.OnlyTag = IsTagOnly(u.Source.Text)
	return u.OnlyTag
}

// HasUnpairedPlaceholder reports whether an opening {N> delimiter is left
// after all matching pairs have been unwrapped.
func HasUnpairedPlaceholder(text string) bool {
	return pairOpenRe.MatchString(stripPairedTags(text))
}

func stripPairedTags(s string) string {
	for {
		next, ok := stripFirstPair(s)
		if !ok {
			return s
		}
		s = next
	}
}

// stripFirstPair replaces the leftmost {N>…<N} with its inner text. The
// inner text is the shortest run up to a close with the same id and never
// crosses a newline.
func stripFirstPair(s string) (string, bool) {
	for _, m := range pairOpenRe.FindAllStringSubmatchIndex(s, -1) {
		id := s[m[2]:m[3]]
		body := s[m[1]:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[:nl]
		}
		if i, n := indexClose(body, id); i >= 0 {
			return s[:m[0]] + body[:i] + s[m[1]+i+n:], true
		}
	}
	return s, false
}

// indexClose returns the position and length of the first <id} or &lt;id}
// in s, or -1.
func indexClose(s, id string) (int, int) {
	raw := "<" + id + "}"
	esc := "&lt;" + id + "}"
	i := strings.Index(s, raw)
	j := strings.Index(s, esc)
	switch {
	case i < 0 && j < 0:
		return -1, 0
	case j < 0 || (i >= 0 && i < j):
		return i, len(raw)
	default:
		return j, len(esc)
	}
}
