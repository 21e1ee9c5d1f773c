package mxliff

import "testing"

func TestIsTagOnly(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"paired span with text", "{1>Hello<1} {2}", false},
		{"standalone only", "{1}{2}", true},
		{"mismatched ids", "{1>Hello<2}", false},
		{"empty", "", true},
		{"whitespace only", "  \t", true},
		{"plain text", "Hello", false},
		{"escaped empty pair", "{1&gt;&lt;1}", true},
		{"escaped pair with text", "{1&gt;Hello&lt;1}", false},
		{"mixed delimiters", "{3&gt;<3}{4}", true},
		{"nested pairs", "{1>{2>{3}<2}<1}", true},
		{"adjacent pairs", "{1><1}{2><2} ", true},
		{"pair spanning newline", "{1>\n<1}", false},
		{"multi-digit ids", "{12>{3}<12}", true},
		{"id is a prefix of close", "{1><11}", false},
		{"trailing text after tags", "{1}{2} x", false},
		{"leading space", " {1}", true},
		{"brace text", "{name}", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTagOnly(tc.text); got != tc.want {
				t.Errorf("IsTagOnly(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestStripPairedTags(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"{1>Hello<1} {2}", "Hello {2}"},
		{"{1>Hello<2}", "{1>Hello<2}"},
		{"{1&gt;a&lt;1}{2&gt;b&lt;2}", "ab"},
		{"{1>a{2>b<2}c<1}", "abc"},
		// The shortest run wins, so the first close with the same id ends
		// the span.
		{"{1>a<1}b<1}", "ab<1}"},
		// An open without a close does not block later pairs.
		{"{1>x {2>y<2}", "{1>x y"},
	}

	for _, tc := range tests {
		if got := stripPairedTags(tc.text); got != tc.want {
			t.Errorf("stripPairedTags(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestClassifyTagOnly(t *testing.T) {
	u := &TransUnit{Source: Segment{Text: "{1}"}}
	if !ClassifyTagOnly(u) || !u.OnlyTag {
		t.Errorf("ClassifyTagOnly: got OnlyTag=%v, want true", u.OnlyTag)
	}
	u.Source.Text = "{1>text<1}"
	if ClassifyTagOnly(u) || u.OnlyTag {
		t.Errorf("ClassifyTagOnly: got OnlyTag=%v, want false", u.OnlyTag)
	}
}

func TestHasUnpairedPlaceholder(t *testing.T) {
	if !HasUnpairedPlaceholder("{1&gt;Hello&lt;2}") {
		t.Error("mismatched ids should be reported")
	}
	if HasUnpairedPlaceholder("{1&gt;Hello&lt;1} {2}") {
		t.Error("matched pair should not be reported")
	}
	if HasUnpairedPlaceholder("{2}") {
		t.Error("standalone placeholder should not be reported")
	}
}

func TestEscapeText(t *testing.T) {
	got := EscapeText(`{1>Tom & "Jerry"<1}`)
	want := `{1&gt;Tom &amp; "Jerry"&lt;1}`
	if got != want {
		t.Errorf("EscapeText = %q, want %q", got, want)
	}
	if !IsTagOnly(EscapeText("{1><1}")) {
		t.Error("escaped empty pair should stay tag-only")
	}
}
