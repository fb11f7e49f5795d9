package router

import (
	"crypto/sha256"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/handler"
	"github.com/postdesk/internal/locale"
	"github.com/postdesk/internal/logger"
	"github.com/rs/zerolog"
)

// Options 配置路由所需的外部参数
type Options struct {
	SessionSecret string
	TemplateGlob  string
	Logger        zerolog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(opts.Logger))

	// 配置会话中间件
	// 会话中保存远端令牌，cookie 需要签名并加密
	authKey, encryptionKey := sessionKeys(opts.SessionSecret)
	store := cookie.NewStore(authKey, encryptionKey)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("postdesk_session", store))
	r.Use(api.LocaleMiddleware())

	// 加载模板并添加自定义函数
	r.SetFuncMap(template.FuncMap{
		"relativeTime": func(language string, t time.Time) string {
			return formatRelativeTime(time.Now(), t, language)
		},
		"joinCategories": joinCategories,
	})
	if strings.TrimSpace(opts.TemplateGlob) != "" {
		r.LoadHTMLGlob(opts.TemplateGlob)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.GET("/login", api.ShowLoginPage)
		admin.POST("/login", api.Login)
		admin.GET("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("")
		auth.Use(api.AuthRequired())
		{
			auth.GET("", api.ShowHome)
			auth.GET("/posts", api.OpenPost)
			auth.GET("/posts/:slug/edit", api.ShowPostEdit)
			auth.POST("/posts/:slug/photo", api.SelectPhoto)
			auth.GET("/posts/:slug/photo/preview", api.PreviewPhoto)
			auth.POST("/posts/:slug/photo/delete", api.DeletePhoto)
			auth.POST("/posts/:slug/update", api.UpdatePost)
			auth.POST("/posts/:slug/discard", api.DiscardBuffer)

			// 编辑器组件回调
			apiGroup := auth.Group("/api")
			{
				apiGroup.GET("/posts/:slug/buffer", api.GetBuffer)
				apiGroup.PUT("/posts/:slug/title", api.UpdateTitle)
				apiGroup.PUT("/posts/:slug/body", api.UpdateBody)
				apiGroup.POST("/posts/:slug/submit", api.SubmitPost)
			}
		}
	}

	return r
}

// sessionKeys 从同一个密钥派生出签名密钥和 AES-256 加密密钥
func sessionKeys(secret string) ([]byte, []byte) {
	authKey := sha256.Sum256([]byte("postdesk-session-auth:" + secret))
	encryptionKey := sha256.Sum256([]byte("postdesk-session-encrypt:" + secret))
	return authKey[:], encryptionKey[:]
}

// formatRelativeTime 以“几分钟前”的形式展示时间
func formatRelativeTime(now, t time.Time, language string) string {
	if t.IsZero() {
		return ""
	}
	english := locale.NormalizeLanguage(language) == locale.LanguageEnglish

	diff := now.Sub(t)
	if diff < time.Minute {
		return locale.Pick(language, "just now", "刚刚")
	}

	var n int
	var unitEN, unitZH string
	switch {
	case diff < time.Hour:
		n, unitEN, unitZH = int(diff/time.Minute), "minute", "分钟前"
	case diff < 24*time.Hour:
		n, unitEN, unitZH = int(diff/time.Hour), "hour", "小时前"
	case diff < 30*24*time.Hour:
		n, unitEN, unitZH = int(diff/(24*time.Hour)), "day", "天前"
	case diff < 365*24*time.Hour:
		n, unitEN, unitZH = int(diff/(30*24*time.Hour)), "month", "个月前"
	default:
		n, unitEN, unitZH = int(diff/(365*24*time.Hour)), "year", "年前"
	}

	if !english {
		return fmt.Sprintf("%d%s", n, unitZH)
	}
	if n != 1 {
		unitEN += "s"
	}
	return fmt.Sprintf("%d %s ago", n, unitEN)
}

func joinCategories(categories []blogapi.Category) string {
	names := make([]string, 0, len(categories))
	for _, category := range categories {
		if name := strings.TrimSpace(category.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
