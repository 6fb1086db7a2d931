package pkg

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gocontacts/internal/notify"
)

// FlashCookie is the cookie carrying toasts across a full-page redirect.
const FlashCookie = "_flash"

const flashMaxAge = 60

// Toast is the browser-side shape of a notification.
type Toast struct {
	Type    string `json:"type"`
	Summary string `json:"summary"`
	Message string `json:"message"`
	Life    int64  `json:"life"`
}

// Toasts converts notifications into their browser-side shape.
func Toasts(notes []notify.Notification) []Toast {
	out := make([]Toast, 0, len(notes))
	for _, n := range notes {
		out = append(out, Toast{
			Type:    string(n.Severity),
			Summary: n.Summary,
			Message: n.Detail,
			Life:    n.Life.Milliseconds(),
		})
	}
	return out
}

// SetToastTrigger sets the HX-Trigger response header with a showToast event
// carrying notes. It is a no-op when notes is empty.
func SetToastTrigger(c *gin.Context, notes []notify.Notification) {
	if len(notes) == 0 {
		return
	}
	trigger, err := json.Marshal(map[string]any{
		"showToast": Toasts(notes),
	})
	if err != nil {
		return
	}
	c.Header("HX-Trigger", string(trigger))
}

// SetFlash stores notes in a short-lived cookie for the next rendered page.
func SetFlash(c *gin.Context, notes []notify.Notification) {
	if len(notes) == 0 {
		return
	}
	b, err := json.Marshal(Toasts(notes))
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookie, base64.RawURLEncoding.EncodeToString(b), flashMaxAge, "/", "", false, true)
}

// TakeFlash returns the toasts stored by SetFlash and clears the cookie.
func TakeFlash(c *gin.Context) []Toast {
	raw, err := c.Cookie(FlashCookie)
	if err != nil || raw == "" {
		return nil
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookie, "", -1, "/", "", false, true)

	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var toasts []Toast
	if err := json.Unmarshal(b, &toasts); err != nil {
		return nil
	}
	return toasts
}

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}
