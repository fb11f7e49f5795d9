package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/locale"
	"github.com/postdesk/internal/photo"
	"github.com/postdesk/internal/richtext"
	"github.com/postdesk/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// errorStatus 将业务错误映射为 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrBufferNotFound), blogapi.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionRequired), blogapi.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrDeleteNotConfirmed):
		return http.StatusConflict
	case errors.Is(err, service.ErrPhotoRequired),
		errors.Is(err, richtext.ErrInvalidDocument),
		errors.Is(err, photo.ErrNotImage),
		errors.Is(err, photo.ErrEmptyName),
		errors.Is(err, blogapi.ErrSlugRequired):
		return http.StatusBadRequest
	case errors.Is(err, photo.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	if code := blogapi.StatusCode(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}

// errorMessage 把错误压平成一条提示文本，远端错误直接使用服务端返回的信息
func errorMessage(language string, err error) string {
	var apiErr *blogapi.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, service.ErrLoadFailed):
		return locale.T(language, locale.KeyLoadFailed)
	case errors.Is(err, richtext.ErrInvalidDocument):
		return locale.T(language, locale.KeyInvalidBody)
	case errors.Is(err, photo.ErrNotImage), errors.Is(err, service.ErrPhotoRequired):
		return locale.T(language, locale.KeyPhotoRejected)
	}
	return err.Error()
}

func editPath(slug string) string {
	return "/admin/posts/" + url.PathEscape(slug) + "/edit"
}

func photoPreviewPath(slug string) string {
	return "/admin/posts/" + url.PathEscape(slug) + "/photo/preview"
}

// markdownDigest 忽略浏览器提交 textarea 时引入的换行差异
func markdownDigest(markdown string) string {
	normalized := strings.Trim(strings.ReplaceAll(markdown, "\r\n", "\n"), "\r\n")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// bodyUntouched 表单中的正文与渲染时一致
func bodyUntouched(c *gin.Context, markdown string) bool {
	digest := c.PostForm("body_digest")
	return digest != "" && digest == markdownDigest(markdown)
}
