package handler

import (
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/locale"
)

const (
	localeContextKey = "__request_locale"
	sessionLanguage  = "language"
)

// LocaleMiddleware resolves the request language. An explicit ?lang is kept in the session.
func (a *API) LocaleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		pref := a.requestLocale(c)
		c.Header("Content-Language", pref.HTMLLang)
		c.Header("Vary", "Accept-Language, Cookie")
		c.Next()
	}
}

func (a *API) requestLocale(c *gin.Context) locale.Preference {
	if cached, exists := c.Get(localeContextKey); exists {
		if pref, ok := cached.(locale.Preference); ok {
			return pref
		}
	}
	pref := locale.PreferenceForLanguage(resolveLanguage(c))
	c.Set(localeContextKey, pref)
	return pref
}

func (a *API) language(c *gin.Context) string {
	return a.requestLocale(c).Language
}

// 优先级：?lang > 会话 > Accept-Language > 英文
func resolveLanguage(c *gin.Context) string {
	session := sessions.Default(c)
	if override := locale.NormalizeLanguage(c.Query("lang")); override != "" {
		if session.Get(sessionLanguage) != override {
			session.Set(sessionLanguage, override)
			if err := session.Save(); err != nil {
				c.Error(err)
			}
		}
		return override
	}
	if stored, ok := session.Get(sessionLanguage).(string); ok {
		if normalized := locale.NormalizeLanguage(stored); normalized != "" {
			return normalized
		}
	}
	if fromHeader := locale.LanguageFromAcceptLanguage(c.GetHeader("Accept-Language")); fromHeader != "" {
		return fromHeader
	}
	return locale.LanguageEnglish
}

// buildLanguageSwitch 生成切换语言的链接，保留当前查询参数
func buildLanguageSwitch(c *gin.Context) map[string]string {
	path := "/"
	values := url.Values{}
	if c.Request != nil && c.Request.URL != nil {
		path = c.Request.URL.Path
		values = c.Request.URL.Query()
	}

	links := make(map[string]string, 2)
	for _, language := range []string{locale.LanguageEnglish, locale.LanguageChinese} {
		values.Set("lang", language)
		links[language] = path + "?" + values.Encode()
	}
	return links
}
