package locale

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

// Preference is the resolved language of one admin request.
type Preference struct {
	Language string
	Locale   string
	HTMLLang string
}

// NormalizeLanguage maps a raw tag to a supported language, or "" when unsupported.
func NormalizeLanguage(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case trimmed == "":
		return ""
	case strings.HasPrefix(trimmed, "zh"), trimmed == "cn":
		return LanguageChinese
	case strings.HasPrefix(trimmed, "en"):
		return LanguageEnglish
	}
	return ""
}

// LanguageFromAcceptLanguage returns the highest weighted supported language.
func LanguageFromAcceptLanguage(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	tags, weights, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return ""
	}
	for i, tag := range tags {
		if weights[i] <= 0 {
			continue
		}
		base, _ := tag.Base()
		if normalized := NormalizeLanguage(base.String()); normalized != "" {
			return normalized
		}
	}
	return ""
}

// PreferenceForLanguage falls back to English for anything unsupported.
func PreferenceForLanguage(lang string) Preference {
	if NormalizeLanguage(lang) == LanguageChinese {
		return Preference{Language: LanguageChinese, Locale: "zh_CN", HTMLLang: "zh-CN"}
	}
	return Preference{Language: LanguageEnglish, Locale: "en_US", HTMLLang: "en-US"}
}
