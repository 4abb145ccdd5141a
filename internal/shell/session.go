// internal/shell/session.go
package shell

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"shelfkeeper/internal/membership"
)

// Session is the logged-in state of the shell.
type Session struct {
	ID     string
	User   membership.User
	active bool
}

func newSession(user membership.User) (*Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	return &Session{ID: "ses-" + id, User: user, active: true}, nil
}

// Active reports whether the session has not been logged out.
func (s *Session) Active() bool {
	return s.active
}

func (s *Session) end() {
	s.active = false
}
