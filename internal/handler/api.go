package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/notify"
	"github.com/postdesk/internal/service"
	"github.com/rs/zerolog"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	editor        *service.PostEditorService
	auth          *service.AuthService
	notifier      notify.Notifier
	log           zerolog.Logger
	siteName      string
	uploadBaseURL string
	maxPhotoBytes int64
}

// Options wires an API.
type Options struct {
	Editor        *service.PostEditorService
	Auth          *service.AuthService
	Notifier      notify.Notifier
	Logger        zerolog.Logger
	SiteName      string
	UploadBaseURL string
	MaxPhotoBytes int64
}

// NewAPI constructs a handler set with shared services.
func NewAPI(opts Options) *API {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewSessionNotifier()
	}
	siteName := strings.TrimSpace(opts.SiteName)
	if siteName == "" {
		siteName = "PostDesk"
	}
	maxBytes := opts.MaxPhotoBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	return &API{
		editor:        opts.Editor,
		auth:          opts.Auth,
		notifier:      notifier,
		log:           opts.Logger.With().Str("component", "handler").Logger(),
		siteName:      siteName,
		uploadBaseURL: opts.UploadBaseURL,
		maxPhotoBytes: maxBytes,
	}
}

func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}

	pref := a.requestLocale(c)
	if _, exists := payload["siteName"]; !exists {
		payload["siteName"] = a.siteName
	}
	if _, exists := payload["language"]; !exists {
		payload["language"] = pref.Language
	}
	if _, exists := payload["htmlLang"]; !exists {
		payload["htmlLang"] = pref.HTMLLang
	}
	if _, exists := payload["languageSwitch"]; !exists {
		payload["languageSwitch"] = buildLanguageSwitch(c)
	}
	if _, exists := payload["toasts"]; !exists {
		payload["toasts"] = notify.Pop(c)
	}

	c.HTML(status, template, payload)
}
