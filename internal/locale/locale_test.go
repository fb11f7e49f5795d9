package locale

import "testing"

func TestNormalizeLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "zh", want: LanguageChinese},
		{input: "zh-CN", want: LanguageChinese},
		{input: "ZH_hans", want: LanguageChinese},
		{input: "en", want: LanguageEnglish},
		{input: "en-US", want: LanguageEnglish},
		{input: "fr", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := NormalizeLanguage(tc.input); got != tc.want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestLanguageFromAcceptLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "zh-CN,zh;q=0.9", want: LanguageChinese},
		{input: "en-US,en;q=0.9", want: LanguageEnglish},
		{input: "fr-FR,fr;q=0.9", want: ""},
		{input: "fr-FR,en;q=0.5,zh;q=0.8", want: LanguageChinese},
		{input: "en-US,zh;q=0.1", want: LanguageEnglish},
		{input: "zh;q=0,en;q=0.3", want: LanguageEnglish},
		{input: "*", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := LanguageFromAcceptLanguage(tc.input); got != tc.want {
			t.Fatalf("LanguageFromAcceptLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestPreferenceForLanguage(t *testing.T) {
	pref := PreferenceForLanguage("en")
	if pref.Language != LanguageEnglish {
		t.Fatalf("expected language %q, got %q", LanguageEnglish, pref.Language)
	}
	if pref.Locale != "en_US" {
		t.Fatalf("expected locale en_US, got %q", pref.Locale)
	}
	if pref.HTMLLang != "en-US" {
		t.Fatalf("expected html lang en-US, got %q", pref.HTMLLang)
	}

	zh := PreferenceForLanguage("zh-TW")
	if zh.Language != LanguageChinese || zh.HTMLLang != "zh-CN" {
		t.Fatalf("unexpected chinese preference %+v", zh)
	}

	fallback := PreferenceForLanguage("")
	if fallback.Language != LanguageEnglish {
		t.Fatalf("expected fallback language %q, got %q", LanguageEnglish, fallback.Language)
	}
}

func TestPick(t *testing.T) {
	if got := Pick("en", "english", "chinese"); got != "english" {
		t.Fatalf("Pick(en) = %q, want %q", got, "english")
	}
	if got := Pick("zh", "english", "chinese"); got != "chinese" {
		t.Fatalf("Pick(zh) = %q, want %q", got, "chinese")
	}
	if got := Pick("fr", "english", "chinese"); got != "english" {
		t.Fatalf("Pick(fr) = %q, want %q", got, "english")
	}
	if got := Pick("zh", "english", ""); got != "english" {
		t.Fatalf("Pick(zh) without chinese = %q, want %q", got, "english")
	}
}

func TestCatalog(t *testing.T) {
	cases := []struct {
		language string
		key      Key
		want     string
	}{
		{language: "en", key: KeyPostUpdated, want: "Your post is updated"},
		{language: "zh-CN", key: KeyPostUpdated, want: "文章已更新"},
		{language: "en-US", key: KeyLoadFailed, want: "Couldn't fetch the post detail"},
		{language: "", key: KeyConfirmDeletePhoto, want: "Do you want to delete your post picture?"},
		{language: "zh", key: KeyConfirmDeletePhoto, want: "确定要删除文章图片吗？"},
		{language: "en", key: Key("missing"), want: "missing"},
	}

	for _, tc := range cases {
		if got := T(tc.language, tc.key); got != tc.want {
			t.Fatalf("T(%q, %q) = %q, want %q", tc.language, tc.key, got, tc.want)
		}
	}

	for key, e := range catalog {
		if e.english == "" || e.chinese == "" {
			t.Fatalf("catalog entry %q is missing a translation", key)
		}
	}
}
