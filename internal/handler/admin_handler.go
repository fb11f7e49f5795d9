package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/locale"
	"github.com/postdesk/internal/service"
)

const (
	sessionUserName  = "user_name"
	sessionUserToken = "user_token"
	sessionEditorID  = "editor_id"

	tokenContextKey = "__user_token"
)

// ShowLoginPage 渲染登录页面
func (a *API) ShowLoginPage(c *gin.Context) {
	session := sessions.Default(c)
	a.renderHTML(c, http.StatusOK, "login.html", gin.H{
		"title":    locale.T(a.language(c), locale.KeyLoginTitle),
		"next":     safeNext(c.Query("next")),
		"username": session.Get(sessionUserName),
	})
}

// Login 通过远端博客 API 校验账号，并把令牌保存在会话中
func (a *API) Login(c *gin.Context) {
	lang := a.language(c)
	email := c.PostForm("email")
	password := c.PostForm("password")
	next := safeNext(c.PostForm("next"))

	user, err := a.auth.Login(c.Request.Context(), email, password)
	if err != nil {
		status := http.StatusUnauthorized
		message := locale.T(lang, locale.KeyLoginFailed)
		var apiErr *blogapi.APIError
		switch {
		case errors.Is(err, service.ErrCredentialsRequired):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrNotAdmin):
			status = http.StatusForbidden
			message = locale.T(lang, locale.KeyNotAdmin)
		case errors.As(err, &apiErr):
			if apiErr.StatusCode >= http.StatusInternalServerError {
				status = http.StatusBadGateway
			}
			message = apiErr.Message
		default:
			status = http.StatusBadGateway
		}
		a.log.Warn().Err(err).Str("email", email).Msg("login failed")
		a.renderHTML(c, status, "login.html", gin.H{
			"title": locale.T(lang, locale.KeyLoginTitle),
			"next":  next,
			"error": message,
			"email": email,
		})
		return
	}

	// 设置会话
	session := sessions.Default(c)
	session.Set(sessionUserName, user.Name)
	session.Set(sessionUserToken, user.Token)
	session.Set(sessionEditorID, uuid.NewString())
	if err := session.Save(); err != nil {
		c.Error(err)
		a.renderHTML(c, http.StatusInternalServerError, "login.html", gin.H{
			"title": locale.T(lang, locale.KeyLoginTitle),
			"next":  next,
			"error": err.Error(),
		})
		return
	}

	if next == "" {
		a.notifier.Success(c, locale.T(lang, locale.KeySignedIn))
		next = "/admin"
	}
	c.Redirect(http.StatusSeeOther, next)
}

// ShowHome 登录后的落地页，按 slug 打开文章编辑页
func (a *API) ShowHome(c *gin.Context) {
	session := sessions.Default(c)
	a.renderHTML(c, http.StatusOK, "home.html", gin.H{
		"title":    locale.T(a.language(c), locale.KeyHomeTitle),
		"username": session.Get(sessionUserName),
	})
}

// OpenPost 把落地页提交的 slug 转成编辑页地址
func (a *API) OpenPost(c *gin.Context) {
	slug := strings.Trim(strings.TrimSpace(c.Query("slug")), "/")
	if slug == "" {
		c.Redirect(http.StatusFound, "/admin")
		return
	}
	c.Redirect(http.StatusFound, "/admin/posts/"+url.PathEscape(slug)+"/edit")
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.Redirect(http.StatusFound, "/admin/login")
}

// AuthRequired 要求会话中存在未过期的令牌
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(sessionUserToken).(string)

		if token == "" || a.auth.TokenExpired(token) {
			if token != "" {
				session.Clear()
				if err := session.Save(); err != nil {
					c.Error(err)
				}
				a.notifier.Error(c, locale.T(a.language(c), locale.KeySessionExpired))
			}
			if isJSONRoute(c) {
				respondError(c, http.StatusUnauthorized, locale.T(a.language(c), locale.KeySessionExpired))
				c.Abort()
				return
			}
			c.Redirect(http.StatusFound, "/admin/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		c.Set(tokenContextKey, token)
		c.Next()
	}
}

// editorID 返回当前会话的编辑器标识，编辑缓冲以它为键
func editorID(c *gin.Context) string {
	session := sessions.Default(c)
	if id, ok := session.Get(sessionEditorID).(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	session.Set(sessionEditorID, id)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	return id
}

func userToken(c *gin.Context) string {
	return c.GetString(tokenContextKey)
}

func isJSONRoute(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/admin/api/")
}

// safeNext 只允许跳转到站内后台地址
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/admin/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}
