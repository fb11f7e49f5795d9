package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/notify"
	"github.com/postdesk/internal/richtext"
	"github.com/postdesk/internal/service"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func seedPost(h *handlerHarness, photoName string) {
	h.remote.AddPost(blogapi.Post{
		Slug:  "hello",
		Title: "Hello",
		Body: richtext.NewDocument(&richtext.Node{
			Type:    richtext.TypeParagraph,
			Content: []*richtext.Node{{Type: richtext.TypeText, Text: "first draft"}},
		}),
		Photo:      photoName,
		Categories: []blogapi.Category{{Name: "Go"}},
	})
}

func (h *handlerHarness) buffer(t *testing.T) bufferResponse {
	t.Helper()
	rec := h.get("/admin/api/posts/hello/buffer")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected buffer, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp bufferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode buffer: %v", err)
	}
	return resp
}

func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile(photoFormField, filename)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		part.Write(data)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestEditPageDataPrefersBufferBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	api := NewAPI(Options{UploadBaseURL: "https://cdn.example.com/uploads"})

	postBody, _ := richtext.FromMarkdown("from the server")
	edited, _ := richtext.FromMarkdown("edited *locally*")

	tests := []struct {
		name      string
		buffer    *service.EditBuffer
		wantBody  string
		wantPhoto string
	}{
		{
			name:      "untouched body falls back to post",
			buffer:    &service.EditBuffer{Slug: "hello", InitialPhoto: "cover.png"},
			wantBody:  "from the server",
			wantPhoto: "https://cdn.example.com/uploads/cover.png",
		},
		{
			name: "edited body and new photo",
			buffer: &service.EditBuffer{
				Slug:         "hello",
				Body:         edited,
				Photo:        &blogapi.Picture{Filename: "new.png", Data: []byte{1}},
				InitialPhoto: "cover.png",
			},
			wantBody:  "edited *locally*",
			wantPhoto: "/admin/posts/hello/photo/preview",
		},
		{
			name:     "no photo",
			buffer:   &service.EditBuffer{Slug: "hello"},
			wantBody: "from the server",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/admin/posts/hello/edit", nil)

			data := api.editPageData(c, "en", &service.EditorView{
				State:  service.StateReady,
				Slug:   "hello",
				Post:   &blogapi.Post{Slug: "hello", Body: postBody},
				Buffer: tc.buffer,
			})

			if data["bodyMarkdown"] != tc.wantBody {
				t.Fatalf("expected body %q, got %q", tc.wantBody, data["bodyMarkdown"])
			}
			if data["photoURL"] != tc.wantPhoto {
				t.Fatalf("expected photo url %q, got %q", tc.wantPhoto, data["photoURL"])
			}
			if data["confirmDelete"] != false {
				t.Fatal("confirmation prompt should be hidden by default")
			}
		})
	}
}

func TestShowPostEditSeedsFromRemote(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "cover.png")
	h.signIn(t)

	rec := h.get("/admin/posts/hello/edit")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	name, data := h.html.last(t)
	if name != "post_edit.html" {
		t.Fatalf("unexpected template %q", name)
	}
	if data["state"] != service.StateReady || data["siteName"] != "Test Desk" {
		t.Fatalf("unexpected page data %+v", data)
	}
	buf, ok := data["buffer"].(*service.EditBuffer)
	if !ok || buf.Title != "Hello" || buf.InitialPhoto != "cover.png" {
		t.Fatalf("expected seeded buffer, got %+v", data["buffer"])
	}
	if data["photoURL"] != h.remote.UploadURL()+"cover.png" {
		t.Fatalf("unexpected photo url %v", data["photoURL"])
	}
	if md, _ := data["bodyMarkdown"].(string); !strings.Contains(md, "first draft") {
		t.Fatalf("expected body markdown from post, got %q", md)
	}
}

func TestShowPostEditLoadFailure(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *handlerHarness)
		wantStatus int
	}{
		{name: "missing post", setup: func(*handlerHarness) {}, wantStatus: http.StatusNotFound},
		{name: "api unreachable", setup: func(h *handlerHarness) { h.remote.Close() }, wantStatus: http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHandlerHarness(t)
			h.signIn(t)
			tc.setup(h)

			rec := h.get("/admin/posts/hello/edit")
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			_, data := h.html.last(t)
			if data["state"] != service.StateError {
				t.Fatalf("expected error state, got %v", data["state"])
			}
			if data["errorMessage"] != "Couldn't fetch the post detail" {
				t.Fatalf("unexpected error message %v", data["errorMessage"])
			}
		})
	}
}

func TestUpdatePostSubmitsRetainedPhoto(t *testing.T) {
	h := newHandlerHarness(t)
	cover := pngBytes(t)
	seedPost(h, "cover.png")
	h.remote.AddPhoto("cover.png", cover)
	h.signIn(t)
	h.get("/admin/posts/hello/edit")

	rec := h.postForm("/admin/posts/hello/update", url.Values{
		"title":         {"Updated"},
		"body_markdown": {"New **body**"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/posts/hello/edit" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Location"))
	}

	want := []notify.Toast{{Kind: notify.KindSuccess, Message: "Your post is updated"}}
	if len(h.notifier.toasts) != 1 || h.notifier.toasts[0] != want[0] {
		t.Fatalf("expected one success toast, got %+v", h.notifier.toasts)
	}

	updates := h.remote.Updates()
	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	update := updates[0]
	if update.Token != testToken {
		t.Fatalf("expected bearer token %q, got %q", testToken, update.Token)
	}
	if update.PictureName != "cover.png" || !bytes.Equal(update.Picture, cover) {
		t.Fatalf("expected existing photo re-attached, got %q (%d bytes)", update.PictureName, len(update.Picture))
	}
	if h.remote.PhotoFetches("cover.png") != 1 {
		t.Fatalf("expected one photo download, got %d", h.remote.PhotoFetches("cover.png"))
	}

	var doc blogapi.Document
	if err := json.Unmarshal([]byte(update.Document), &doc); err != nil {
		t.Fatalf("decode document part: %v", err)
	}
	if doc.Title != "Updated" || doc.Body.PlainText() != "New body" {
		t.Fatalf("unexpected document %+v", doc)
	}

	h.get("/admin/posts/hello/edit")
	if calls := h.remote.GetCalls("hello"); calls != 2 {
		t.Fatalf("expected refetch after update, got %d fetches", calls)
	}
	_, data := h.html.last(t)
	if buf := data["buffer"].(*service.EditBuffer); buf.Title != "Updated" {
		t.Fatalf("expected fresh buffer from refetched post, got %q", buf.Title)
	}
}

func TestUpdatePostFailureKeepsBuffer(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "")
	h.remote.FailUpdates(http.StatusUnauthorized, "Not authorized, token failed")
	h.signIn(t)
	h.get("/admin/posts/hello/edit")

	rec := h.postForm("/admin/posts/hello/update", url.Values{"title": {"Draft"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}

	if len(h.notifier.toasts) != 1 {
		t.Fatalf("expected one toast, got %+v", h.notifier.toasts)
	}
	if toast := h.notifier.toasts[0]; toast.Kind != notify.KindError || toast.Message != "Not authorized, token failed" {
		t.Fatalf("expected server message toast, got %+v", toast)
	}

	buf := h.buffer(t)
	if buf.Title != "Draft" || buf.Phase != "idle" {
		t.Fatalf("expected buffer preserved, got %+v", buf)
	}
	if calls := h.remote.GetCalls("hello"); calls != 1 {
		t.Fatalf("expected no refetch, got %d", calls)
	}
}

func TestSelectPhotoThenSubmit(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "")
	h.signIn(t)
	h.get("/admin/posts/hello/edit")

	upload := pngBytes(t)
	rec := h.do(multipartRequest(t, "/admin/posts/hello/photo", map[string]string{"title": "With photo"}, "new.png", upload))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if len(h.notifier.toasts) != 0 {
		t.Fatalf("unexpected toasts %+v", h.notifier.toasts)
	}

	preview := h.get("/admin/posts/hello/photo/preview")
	if preview.Code != http.StatusOK || preview.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected preview %d %q", preview.Code, preview.Header().Get("Content-Type"))
	}
	if !bytes.Equal(preview.Body.Bytes(), upload) {
		t.Fatal("preview does not match the upload")
	}

	buf := h.buffer(t)
	if buf.Title != "With photo" || buf.Photo == nil || buf.PhotoState != "new" {
		t.Fatalf("unexpected buffer %+v", buf)
	}

	h.postForm("/admin/posts/hello/update", url.Values{})
	updates := h.remote.Updates()
	if len(updates) != 1 || updates[0].PictureName != "new.png" || !bytes.Equal(updates[0].Picture, upload) {
		t.Fatalf("expected new photo submitted, got %+v", updates)
	}
	if h.remote.PhotoFetches("new.png") != 0 {
		t.Fatal("expected no photo download")
	}
}

func TestSelectPhotoRejectsNonImage(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "")
	h.signIn(t)

	h.do(multipartRequest(t, "/admin/posts/hello/photo?lang=en", nil, "notes.txt", []byte("plain text")))

	if len(h.notifier.toasts) != 1 || h.notifier.toasts[0].Message != "Please choose an image file" {
		t.Fatalf("expected rejection toast, got %+v", h.notifier.toasts)
	}
	if rec := h.get("/admin/posts/hello/photo/preview"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected no preview, got %d", rec.Code)
	}
}

func TestDeletePhotoNeedsConfirmation(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "cover.png")
	h.remote.AddPhoto("cover.png", pngBytes(t))
	h.signIn(t)
	h.get("/admin/posts/hello/edit")

	rec := h.postForm("/admin/posts/hello/photo/delete", url.Values{})
	if got := rec.Header().Get("Location"); got != "/admin/posts/hello/edit?confirm=delete-photo" {
		t.Fatalf("expected confirmation redirect, got %q", got)
	}
	h.get("/admin/posts/hello/edit?confirm=delete-photo")
	_, data := h.html.last(t)
	if data["confirmDelete"] != true || data["confirmMessage"] != "Do you want to delete your post picture?" {
		t.Fatalf("expected confirmation prompt, got %+v", data)
	}

	h.postForm("/admin/posts/hello/photo/delete", url.Values{"confirm": {"no"}})
	if buf := h.buffer(t); buf.InitialPhoto != "cover.png" {
		t.Fatalf("expected cancelled delete to keep the photo, got %+v", buf)
	}

	h.postForm("/admin/posts/hello/photo/delete", url.Values{"confirm": {"yes"}})
	if buf := h.buffer(t); buf.PhotoState != "none" {
		t.Fatalf("expected photo removed, got %+v", buf)
	}

	h.postForm("/admin/posts/hello/update", url.Values{})
	updates := h.remote.Updates()
	if len(updates) != 1 || updates[0].PictureName != "" {
		t.Fatalf("expected update without picture, got %+v", updates)
	}
	if h.remote.PhotoFetches("cover.png") != 0 {
		t.Fatal("expected no photo download")
	}
}

const editorDocument = `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"1. Intro","marks":[{"type":"underline"}]}]},{"type":"youtube","attrs":{"src":"https://youtu.be/abc"}}]}`

// untouchedForm posts the edit form the way a browser would after only the title changed.
func untouchedForm(t *testing.T, h *handlerHarness, title string) url.Values {
	t.Helper()
	h.get("/admin/posts/hello/edit")
	_, data := h.html.last(t)
	markdown, _ := data["bodyMarkdown"].(string)
	digest, _ := data["bodyDigest"].(string)
	if digest == "" {
		t.Fatal("expected a body digest on the edit page")
	}
	return url.Values{
		"title":         {title},
		"body_markdown": {strings.ReplaceAll(markdown, "\n", "\r\n")},
		"body_digest":   {digest},
	}
}

func sentDocument(t *testing.T, h *handlerHarness) (string, string) {
	t.Helper()
	updates := h.remote.Updates()
	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	var sent struct {
		Title string          `json:"title"`
		Body  json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal([]byte(updates[0].Document), &sent); err != nil {
		t.Fatalf("decode document part: %v", err)
	}
	return sent.Title, string(sent.Body)
}

func TestTitleOnlyUpdateLeavesBodyUnset(t *testing.T) {
	h := newHandlerHarness(t)
	body, err := richtext.Parse([]byte(editorDocument))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	h.remote.AddPost(blogapi.Post{Slug: "hello", Title: "Hello", Body: body})
	h.signIn(t)

	h.postForm("/admin/posts/hello/update", untouchedForm(t, h, "Retitled"))

	title, sentBody := sentDocument(t, h)
	if title != "Retitled" {
		t.Fatalf("expected new title, got %q", title)
	}
	if sentBody != "null" {
		t.Fatalf("expected the untouched body to stay unset, got %s", sentBody)
	}
	if got, _ := json.Marshal(h.remote.Post("hello").Body); string(got) != editorDocument {
		t.Fatalf("remote body changed:\n%s", got)
	}
}

func TestUntouchedFormKeepsWidgetBody(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "")
	h.signIn(t)
	h.get("/admin/posts/hello/edit")

	req := httptest.NewRequest(http.MethodPut, "/admin/api/posts/hello/body", strings.NewReader(`{"body":`+editorDocument+`}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := h.do(req); rec.Code != http.StatusOK {
		t.Fatalf("expected body accepted, got %d: %s", rec.Code, rec.Body.String())
	}

	h.postForm("/admin/posts/hello/update", untouchedForm(t, h, "Retitled"))

	if _, sentBody := sentDocument(t, h); sentBody != editorDocument {
		t.Fatalf("expected body sent byte-identical:\nwant %s\ngot  %s", editorDocument, sentBody)
	}
}

func TestEditedMarkdownReplacesBody(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "")
	h.signIn(t)

	form := untouchedForm(t, h, "Hello")
	form.Set("body_markdown", "Rewritten **now**")
	h.postForm("/admin/posts/hello/update", form)

	_, sentBody := sentDocument(t, h)
	var doc richtext.Document
	if err := json.Unmarshal([]byte(sentBody), &doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc.PlainText() != "Rewritten now" {
		t.Fatalf("expected edited markdown to replace the body, got %s", sentBody)
	}
}

func TestDeletePhotoIgnoresChosenFile(t *testing.T) {
	h := newHandlerHarness(t)
	cover := pngBytes(t)
	seedPost(h, "cover.png")
	h.remote.AddPhoto("cover.png", cover)
	h.signIn(t)
	h.get("/admin/posts/hello/edit")

	rec := h.do(multipartRequest(t, "/admin/posts/hello/photo/delete", map[string]string{"title": "Kept title"}, "new.png", pngBytes(t)))
	if got := rec.Header().Get("Location"); got != "/admin/posts/hello/edit?confirm=delete-photo" {
		t.Fatalf("expected confirmation redirect, got %q", got)
	}

	h.postForm("/admin/posts/hello/photo/delete", url.Values{"confirm": {"no"}})

	buf := h.buffer(t)
	if buf.PhotoState != "retained" || buf.Photo != nil || buf.InitialPhoto != "cover.png" {
		t.Fatalf("expected cancelled delete to leave the photo alone, got %+v", buf)
	}
	if buf.Title != "Kept title" {
		t.Fatalf("expected the title edit to survive, got %q", buf.Title)
	}

	h.postForm("/admin/posts/hello/update", url.Values{})
	updates := h.remote.Updates()
	if len(updates) != 1 || updates[0].PictureName != "cover.png" || !bytes.Equal(updates[0].Picture, cover) {
		t.Fatalf("expected the existing photo to be re-attached, got %+v", updates)
	}
}

func TestDiscardBuffer(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "")
	h.signIn(t)
	h.postForm("/admin/posts/hello/photo", url.Values{"title": {"Scratch"}})

	if rec := h.postForm("/admin/posts/hello/discard", nil); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if rec := h.get("/admin/api/posts/hello/buffer"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected buffer gone, got %d", rec.Code)
	}
}

func TestJSONEditingEndpoints(t *testing.T) {
	h := newHandlerHarness(t)
	seedPost(h, "")
	h.signIn(t)

	if rec := h.get("/admin/api/posts/hello/buffer"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected no buffer before opening, got %d", rec.Code)
	}

	putJSON := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return h.do(req)
	}

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{name: "title", path: "/admin/api/posts/hello/title", body: `{"title":"From widget"}`, wantStatus: http.StatusOK},
		{name: "missing title", path: "/admin/api/posts/hello/title", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", path: "/admin/api/posts/hello/title", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "body", path: "/admin/api/posts/hello/body", body: `{"body":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hi"}]}]}}`, wantStatus: http.StatusOK},
		{name: "invalid body", path: "/admin/api/posts/hello/body", body: `{"body":{"type":"paragraph"}}`, wantStatus: http.StatusBadRequest},
		{name: "null body", path: "/admin/api/posts/hello/body", body: `{"body":null}`, wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := putJSON(tc.path, tc.body); rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}

	buf := h.buffer(t)
	if buf.Title != "From widget" || buf.Body.PlainText() != "Hi" {
		t.Fatalf("unexpected buffer %+v", buf)
	}

	h.remote.FailUpdates(http.StatusInternalServerError, "database offline")
	rec := h.do(httptest.NewRequest(http.MethodPost, "/admin/api/posts/hello/submit", nil))
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "database offline") {
		t.Fatalf("expected flattened server error, got %d %s", rec.Code, rec.Body.String())
	}

	h.remote.FailUpdates(0, "")
	rec = h.do(httptest.NewRequest(http.MethodPost, "/admin/api/posts/hello/submit", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Your post is updated") {
		t.Fatalf("unexpected submit response %d %s", rec.Code, rec.Body.String())
	}
	if post := h.remote.Post("hello"); post.Title != "From widget" || post.Body.PlainText() != "Hi" {
		t.Fatalf("remote post not updated: %+v", post)
	}
}
