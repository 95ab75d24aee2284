package handlers

import (
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	flashSessionName = "flash-session"
	flashKeySuccess  = "success"
	flashKeyError    = "error"
)

// Flashes carries one-shot notices set by earlier admin actions. They are
// cleared from the session when read.
type Flashes struct {
	Success []string `json:"success,omitempty"`
	Error   []string `json:"error,omitempty"`
}

// setFlash sets a flash message in the session.
func setFlash(c echo.Context, key, message string) {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return
	}
	sess.AddFlash(message, key)
	_ = sess.Save(c.Request(), c.Response())
}

// SetFlashSuccess sets a success flash message.
func SetFlashSuccess(c echo.Context, message string) {
	setFlash(c, flashKeySuccess, message)
}

// SetFlashError sets an error flash message.
func SetFlashError(c echo.Context, message string) {
	setFlash(c, flashKeyError, message)
}

// TakeFlashes retrieves and clears flash messages from the session.
func TakeFlashes(c echo.Context) Flashes {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return Flashes{}
	}

	// The Flashes() method retrieves and then clears the flashes from the
	// session, so the save below persists the clearing.
	out := Flashes{
		Success: flashStrings(sess.Flashes(flashKeySuccess)),
		Error:   flashStrings(sess.Flashes(flashKeyError)),
	}
	if len(out.Success) > 0 || len(out.Error) > 0 {
		_ = sess.Save(c.Request(), c.Response())
	}
	return out
}

func flashStrings(raw []interface{}) []string {
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
