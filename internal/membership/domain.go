// internal/membership/domain.go
package membership

import (
	"slices"
	"strings"
	"time"

	"shelfkeeper/internal/errors"
)

// Role tags a User as an Administrator or a Member.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
)

// ParseRole maps a role selector to a Role. It accepts the role names, the
// short form "admin", and the menu numbers 1 and 2.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "admin", "administrator":
		return RoleAdministrator, nil
	case "2", "member":
		return RoleMember, nil
	default:
		return "", errors.InvalidRolef("invalid role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleMember
}

// Capability is one action a logged-in user may take.
type Capability string

const (
	CapAddBook       Capability = "add_book"
	CapRemoveBook    Capability = "remove_book"
	CapBorrowBook    Capability = "borrow_book"
	CapReturnBook    Capability = "return_book"
	CapListBooks     Capability = "list_books"
	CapListAvailable Capability = "list_available"
	CapListBorrowed  Capability = "list_borrowed"
	CapHistory       Capability = "history"
	CapLogout        Capability = "logout"
)

// Capabilities returns the actions available to r, in menu order.
func (r Role) Capabilities() []Capability {
	switch r {
	case RoleAdministrator:
		return []Capability{CapAddBook, CapRemoveBook, CapListBooks, CapListAvailable, CapHistory, CapLogout}
	case RoleMember:
		return []Capability{CapBorrowBook, CapReturnBook, CapListBooks, CapListAvailable, CapListBorrowed, CapLogout}
	default:
		return nil
	}
}

// User is a registered account. Members additionally track the ids of the
// books they hold; the list is only reachable through the methods below.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	borrowed []int
}

// Can reports whether the user's role grants c.
func (u User) Can(c Capability) bool {
	return slices.Contains(u.Role.Capabilities(), c)
}

// IsMember reports whether the user holds the Member role.
func (u User) IsMember() bool {
	return u.Role == RoleMember
}

// RecordBorrow appends bookID to a member's borrowed list.
func (u *User) RecordBorrow(bookID int) error {
	switch u.Role {
	case RoleMember:
		u.borrowed = append(u.borrowed, bookID)
		return nil
	default:
		return errors.Forbiddenf("user %d is not a member", u.ID)
	}
}

// RecordReturn removes the first matching entry from a member's borrowed list.
func (u *User) RecordReturn(bookID int) error {
	switch u.Role {
	case RoleMember:
		i := slices.Index(u.borrowed, bookID)
		if i < 0 {
			return errors.NotFoundf("book %d not in borrowed list of user %d", bookID, u.ID)
		}
		u.borrowed = slices.Delete(u.borrowed, i, i+1)
		return nil
	default:
		return errors.Forbiddenf("user %d is not a member", u.ID)
	}
}

// Holds reports whether a member currently holds bookID.
func (u User) Holds(bookID int) bool {
	return slices.Contains(u.borrowed, bookID)
}

// ListBorrowed returns a copy of the member's borrowed book ids, oldest first.
// Administrators always get an empty list.
func (u User) ListBorrowed() []int {
	return slices.Clone(u.borrowed)
}

// clone returns a copy that shares no state with u.
func (u User) clone() User {
	u.borrowed = slices.Clone(u.borrowed)
	return u
}

// SessionKind distinguishes login from logout notifications.
type SessionKind string

const (
	SessionLoggedIn  SessionKind = "logged_in"
	SessionLoggedOut SessionKind = "logged_out"
)

// SessionEvent reports a login or logout back to the caller.
type SessionEvent struct {
	UserID int         `json:"user_id"`
	Name   string      `json:"name"`
	Role   Role        `json:"role"`
	Kind   SessionKind `json:"kind"`
	At     time.Time   `json:"at"`
}

// Login returns the notification for u logging in.
func (u User) Login() SessionEvent {
	return SessionEvent{UserID: u.ID, Name: u.Name, Role: u.Role, Kind: SessionLoggedIn, At: time.Now().UTC()}
}

// Logout returns the notification for u logging out.
func (u User) Logout() SessionEvent {
	return SessionEvent{UserID: u.ID, Name: u.Name, Role: u.Role, Kind: SessionLoggedOut, At: time.Now().UTC()}
}

// UserRegisteredEvent is published when a new user registers.
type UserRegisteredEvent struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
