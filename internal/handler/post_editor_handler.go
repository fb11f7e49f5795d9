package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/locale"
	"github.com/postdesk/internal/photo"
	"github.com/postdesk/internal/richtext"
	"github.com/postdesk/internal/service"
)

const photoFormField = "postPicture"

// ShowPostEdit 渲染文章编辑页
func (a *API) ShowPostEdit(c *gin.Context) {
	lang := a.language(c)
	slug := c.Param("slug")

	view, err := a.editor.Open(c.Request.Context(), editorID(c), slug)
	if err != nil {
		c.Error(err)
		status := http.StatusBadGateway
		if blogapi.IsNotFound(err) {
			status = http.StatusNotFound
		} else if !errors.Is(err, service.ErrLoadFailed) {
			status = errorStatus(err)
		}
		a.renderHTML(c, status, "post_edit.html", gin.H{
			"title":        locale.T(lang, locale.KeyEditPostTitle),
			"state":        service.StateError,
			"slug":         slug,
			"errorMessage": locale.T(lang, locale.KeyLoadFailed),
		})
		return
	}

	a.renderHTML(c, http.StatusOK, "post_edit.html", a.editPageData(c, lang, view))
}

func (a *API) editPageData(c *gin.Context, lang string, view *service.EditorView) gin.H {
	buf := view.Buffer
	body := buf.Body
	if body == nil && view.Post != nil {
		body = view.Post.Body
	}
	markdown := richtext.ToMarkdown(body)

	return gin.H{
		"title":          locale.T(lang, locale.KeyEditPostTitle),
		"state":          view.State,
		"phase":          view.Phase,
		"slug":           view.Slug,
		"post":           view.Post,
		"buffer":         buf,
		"bodyMarkdown":   markdown,
		"bodyDigest":     markdownDigest(markdown),
		"bodyPreview":    richtext.RenderHTML(body),
		"photoURL":       a.photoURL(view.Slug, buf),
		"photoState":     buf.PhotoState(),
		"confirmDelete":  c.Query("confirm") == "delete-photo",
		"confirmMessage": locale.T(lang, locale.KeyConfirmDeletePhoto),
	}
}

// photoURL 新选择的图片走预览路由，否则指向上传目录中的原图
func (a *API) photoURL(slug string, buf *service.EditBuffer) string {
	if buf.Photo != nil {
		return photoPreviewPath(slug)
	}
	return photo.PreviewURL(a.uploadBaseURL, buf.InitialPhoto)
}

// SelectPhoto 保存表单内容并替换待上传的图片
func (a *API) SelectPhoto(c *gin.Context) {
	slug := c.Param("slug")
	if err := a.applyForm(c, editorID(c), slug); err != nil {
		a.notifier.Error(c, errorMessage(a.language(c), err))
	}
	c.Redirect(http.StatusSeeOther, editPath(slug))
}

// PreviewPhoto 输出会话中新选择的图片
func (a *API) PreviewPhoto(c *gin.Context) {
	buf, err := a.editor.Buffer(c.Request.Context(), editorID(c), c.Param("slug"))
	if err != nil || buf.Photo == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, buf.Photo.ContentType, buf.Photo.Data)
}

// DeletePhoto 未确认时跳转到确认提示，确认后清除新旧图片
func (a *API) DeletePhoto(c *gin.Context) {
	slug := c.Param("slug")
	session := editorID(c)

	// 删除按钮位于更新表单内：保留文字修改，忽略同时选择的文件
	if err := a.applyTextFields(c, session, slug); err != nil {
		a.notifier.Error(c, errorMessage(a.language(c), err))
		c.Redirect(http.StatusSeeOther, editPath(slug))
		return
	}

	confirmed := c.PostForm("confirm") == "yes"
	if _, err := a.editor.DeletePhoto(c.Request.Context(), session, slug, confirmed); err != nil {
		if errors.Is(err, service.ErrDeleteNotConfirmed) {
			// 用户尚未确认：展示确认框，不修改缓冲
			if c.PostForm("confirm") == "" {
				c.Redirect(http.StatusSeeOther, editPath(slug)+"?confirm=delete-photo")
				return
			}
		} else {
			a.notifier.Error(c, errorMessage(a.language(c), err))
		}
	}
	c.Redirect(http.StatusSeeOther, editPath(slug))
}

// UpdatePost 保存表单内容后提交到博客 API
func (a *API) UpdatePost(c *gin.Context) {
	lang := a.language(c)
	slug := c.Param("slug")
	session := editorID(c)

	if err := a.applyForm(c, session, slug); err != nil {
		a.notifier.Error(c, errorMessage(lang, err))
		c.Redirect(http.StatusSeeOther, editPath(slug))
		return
	}

	if _, err := a.editor.Submit(c.Request.Context(), session, slug, userToken(c)); err != nil {
		c.Error(err)
		a.notifier.Error(c, errorMessage(lang, err))
		c.Redirect(http.StatusSeeOther, editPath(slug))
		return
	}

	a.notifier.Success(c, locale.T(lang, locale.KeyPostUpdated))
	c.Redirect(http.StatusSeeOther, editPath(slug))
}

// DiscardBuffer 丢弃未提交的修改
func (a *API) DiscardBuffer(c *gin.Context) {
	slug := c.Param("slug")
	if err := a.editor.Discard(c.Request.Context(), editorID(c), slug); err != nil {
		c.Error(err)
		a.notifier.Error(c, errorMessage(a.language(c), err))
	}
	c.Redirect(http.StatusSeeOther, editPath(slug))
}

// applyForm 按提交的字段更新编辑缓冲，未出现的字段保持不变
func (a *API) applyForm(c *gin.Context, session, slug string) error {
	if err := a.applyTextFields(c, session, slug); err != nil {
		return err
	}
	return a.applyPhotoField(c, session, slug)
}

func (a *API) applyTextFields(c *gin.Context, session, slug string) error {
	ctx := c.Request.Context()

	if title, ok := c.GetPostForm("title"); ok {
		if _, err := a.editor.SetTitle(ctx, session, slug, title); err != nil {
			return err
		}
	}

	// 正文未改动时不回写，避免 markdown 往返改变文档结构
	if markdown, ok := c.GetPostForm("body_markdown"); ok && !bodyUntouched(c, markdown) {
		doc, err := richtext.FromMarkdown(markdown)
		if err != nil {
			return err
		}
		if _, err := a.editor.SetBody(ctx, session, slug, doc); err != nil {
			return err
		}
	}
	return nil
}

func (a *API) applyPhotoField(c *gin.Context, session, slug string) error {
	fh, err := c.FormFile(photoFormField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	if err != nil {
		return err
	}
	pic, info, err := photo.FromUpload(fh, a.maxPhotoBytes)
	if err != nil {
		return err
	}
	a.log.Debug().Str("slug", slug).Str("format", info.Format).Int("width", info.Width).Int("height", info.Height).Msg("photo selected")
	_, err = a.editor.SelectPhoto(c.Request.Context(), session, slug, pic)
	return err
}

type bufferResponse struct {
	Slug            string             `json:"slug"`
	Title           string             `json:"title"`
	Body            *richtext.Document `json:"body"`
	Photo           *photoResponse     `json:"photo"`
	InitialPhoto    string             `json:"initialPhoto,omitempty"`
	InitialPhotoURL string             `json:"initialPhotoUrl,omitempty"`
	PhotoState      string             `json:"photoState"`
	Phase           string             `json:"phase"`
}

type photoResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	PreviewURL  string `json:"previewUrl"`
}

func (a *API) toBufferResponse(buf *service.EditBuffer) bufferResponse {
	resp := bufferResponse{
		Slug:         buf.Slug,
		Title:        buf.Title,
		Body:         buf.Body,
		InitialPhoto: buf.InitialPhoto,
		PhotoState:   buf.PhotoState(),
		Phase:        buf.Phase,
	}
	if buf.InitialPhoto != "" {
		resp.InitialPhotoURL = photo.PreviewURL(a.uploadBaseURL, buf.InitialPhoto)
	}
	if buf.Photo != nil {
		resp.Photo = &photoResponse{
			Filename:    buf.Photo.Filename,
			ContentType: buf.Photo.ContentType,
			Size:        len(buf.Photo.Data),
			PreviewURL:  photoPreviewPath(buf.Slug),
		}
	}
	return resp
}

// GetBuffer 返回当前会话的编辑缓冲
func (a *API) GetBuffer(c *gin.Context) {
	buf, err := a.editor.Buffer(c.Request.Context(), editorID(c), c.Param("slug"))
	if err != nil {
		respondError(c, errorStatus(err), errorMessage(a.language(c), err))
		return
	}
	c.JSON(http.StatusOK, a.toBufferResponse(buf))
}

type titleRequest struct {
	Title *string `json:"title"`
}

// UpdateTitle 更新标题
func (a *API) UpdateTitle(c *gin.Context) {
	var req titleRequest
	if !bindJSON(c, &req, "invalid title payload") {
		return
	}
	if req.Title == nil {
		respondError(c, http.StatusBadRequest, "title is required")
		return
	}

	buf, err := a.editor.SetTitle(c.Request.Context(), editorID(c), c.Param("slug"), *req.Title)
	if err != nil {
		respondError(c, errorStatus(err), errorMessage(a.language(c), err))
		return
	}
	c.JSON(http.StatusOK, a.toBufferResponse(buf))
}

type bodyRequest struct {
	Body json.RawMessage `json:"body"`
}

// UpdateBody 编辑器每次变更都会提交完整文档
func (a *API) UpdateBody(c *gin.Context) {
	lang := a.language(c)

	var req bodyRequest
	if !bindJSON(c, &req, "invalid body payload") {
		return
	}
	doc, err := richtext.Parse(req.Body)
	if err != nil || doc == nil {
		respondError(c, http.StatusBadRequest, locale.T(lang, locale.KeyInvalidBody))
		return
	}

	buf, err := a.editor.SetBody(c.Request.Context(), editorID(c), c.Param("slug"), doc)
	if err != nil {
		respondError(c, errorStatus(err), errorMessage(lang, err))
		return
	}
	c.JSON(http.StatusOK, a.toBufferResponse(buf))
}

// SubmitPost 提交编辑缓冲
func (a *API) SubmitPost(c *gin.Context) {
	lang := a.language(c)

	updated, err := a.editor.Submit(c.Request.Context(), editorID(c), c.Param("slug"), userToken(c))
	if err != nil {
		c.Error(err)
		respondError(c, errorStatus(err), errorMessage(lang, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": locale.T(lang, locale.KeyPostUpdated),
		"post":    updated,
	})
}
