package notify

import (
	"encoding/gob"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Toast kinds.
const (
	KindSuccess = "success"
	KindError   = "error"
)

const flashKey = "toasts"

// Toast is a dismissible notification shown on the next rendered page.
type Toast struct {
	Kind    string
	Message string
}

func init() {
	gob.Register(Toast{})
}

// Notifier queues toasts for the current editor.
type Notifier interface {
	Success(c *gin.Context, message string)
	Error(c *gin.Context, message string)
}

// SessionNotifier stores toasts as session flashes.
type SessionNotifier struct{}

// NewSessionNotifier returns a Notifier backed by gin-contrib/sessions.
func NewSessionNotifier() SessionNotifier {
	return SessionNotifier{}
}

func (SessionNotifier) Success(c *gin.Context, message string) {
	push(c, Toast{Kind: KindSuccess, Message: message})
}

func (SessionNotifier) Error(c *gin.Context, message string) {
	push(c, Toast{Kind: KindError, Message: message})
}

func push(c *gin.Context, toast Toast) {
	session := sessions.Default(c)
	session.AddFlash(toast, flashKey)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
}

// Pop returns and clears the queued toasts.
func Pop(c *gin.Context) []Toast {
	session := sessions.Default(c)
	flashes := session.Flashes(flashKey)
	if len(flashes) == 0 {
		return nil
	}
	if err := session.Save(); err != nil {
		c.Error(err)
	}

	toasts := make([]Toast, 0, len(flashes))
	for _, flash := range flashes {
		if toast, ok := flash.(Toast); ok {
			toasts = append(toasts, toast)
		}
	}
	return toasts
}
