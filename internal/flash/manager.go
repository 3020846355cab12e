package flash

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const cookieName = "flash_session"

// Manager attaches flash messages to the browser session identified by a cookie
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Add queues a message that is shown on the next page render
func (m *Manager) Add(c echo.Context, message string) error {
	session := m.session(c)
	if session == "" {
		session = uuid.NewString()
		c.SetCookie(&http.Cookie{
			Name:     cookieName,
			Value:    session,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if err := m.store.Push(c.Request().Context(), session, message); err != nil {
		return fmt.Errorf("failed to store flash message: %w", err)
	}
	return nil
}

// Consume returns and clears the pending messages of the current session.
// Store failures are logged and yield no messages.
func (m *Manager) Consume(c echo.Context) []string {
	session := m.session(c)
	if session == "" {
		return nil
	}
	messages, err := m.store.Pop(c.Request().Context(), session)
	if err != nil {
		slog.Error("flash: failed to read messages", "error", err)
		return nil
	}
	return messages
}

func (m *Manager) session(c echo.Context) string {
	cookie, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}
