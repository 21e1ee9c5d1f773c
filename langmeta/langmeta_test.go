package langmeta

import "testing"

func TestCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "zh_hant_tw", want: "zh-Hant-TW"},
		{in: "sr_latn", want: "sr-Latn"},
		{in: "ja", want: "ja"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		if got := Canonical(tc.in); got != tc.want {
			t.Fatalf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		got := Resolve("en_gb")
		if got.Code != "en-GB" || got.Name != "English (UK)" || got.Flag != "🇬🇧" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("script is skipped for the region lookup", func(t *testing.T) {
		got := Resolve("zh_hant_tw")
		if got.Name != "繁體中文" || got.Script != "Hant" || got.Flag != "🇹🇼" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("base fallback", func(t *testing.T) {
		got := Resolve("de_at")
		if got.Name != "Deutsch" || got.Flag != "🇦🇹" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("unknown language", func(t *testing.T) {
		got := Resolve("xx_yy")
		if got.Name != "xx_yy" || got.Code != "xx-YY" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})
}

func TestFlagFromRegion(t *testing.T) {
	if got := FlagFromRegion("us"); got != "🇺🇸" {
		t.Fatalf("FlagFromRegion(us) = %q", got)
	}
	if got := FlagFromRegion("USA"); got != "" {
		t.Fatalf("FlagFromRegion(USA) = %q, want empty", got)
	}
	if got := FlagFromRegion("1A"); got != "" {
		t.Fatalf("FlagFromRegion(1A) = %q, want empty", got)
	}
}

func TestLabel(t *testing.T) {
	if got := Label("ja"); got != "日本語 (ja)" {
		t.Errorf("Label(ja) = %q", got)
	}
	if got := Label("tlh"); got != "tlh" {
		t.Errorf("Label(tlh) = %q", got)
	}
	if got := Label(""); got != "?" {
		t.Errorf("Label(\"\") = %q", got)
	}
}
