// internal/membership/registry.go
package membership

import (
	"time"

	"golang.org/x/time/rate"

	"shelfkeeper/internal/errors"
)

// Registry owns the registered users in registration order and assigns
// their ids. It is not safe for concurrent use.
type Registry struct {
	users       []User
	nextID      int
	uniqueNames bool
	logins      *rate.Limiter
}

// Option configures a Registry.
type Option func(*Registry)

// WithUniqueNames rejects registering a name that is already taken.
func WithUniqueNames(enabled bool) Option {
	return func(r *Registry) { r.uniqueNames = enabled }
}

// WithLoginLimit caps authentication attempts to perMinute, allowing bursts
// of the same size. A value of zero or less disables the limit.
func WithLoginLimit(perMinute int) Option {
	return func(r *Registry) {
		if perMinute <= 0 {
			r.logins = nil
			return
		}
		r.logins = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// NewRegistry creates an empty registry whose first user gets id 1.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{nextID: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a user with the next id.
func (r *Registry) Register(role Role, name, email string) (User, error) {
	if !role.Valid() {
		return User{}, errors.InvalidRolef("invalid role %q", role)
	}
	if r.uniqueNames && r.find(name) >= 0 {
		return User{}, errors.AlreadyExistsf("user %q already registered", name)
	}

	u := User{
		ID:    r.nextID,
		Name:  name,
		Email: email,
		Role:  role,
	}
	r.nextID++
	r.users = append(r.users, u)
	return u.clone(), nil
}

// Authenticate returns the first user, in registration order, whose name
// equals name exactly.
func (r *Registry) Authenticate(name string) (User, error) {
	if r.logins != nil && !r.logins.Allow() {
		return User{}, errors.RateLimited("too many login attempts")
	}
	i := r.find(name)
	if i < 0 {
		return User{}, errors.NotFoundf("no user named %q", name)
	}
	return r.users[i].clone(), nil
}

// Get returns the user with the given id.
func (r *Registry) Get(id int) (User, error) {
	i := r.index(id)
	if i < 0 {
		return User{}, errors.NotFoundf("user %d not found", id)
	}
	return r.users[i].clone(), nil
}

// All returns every user in registration order.
func (r *Registry) All() []User {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.clone())
	}
	return out
}

// Update runs fn against the stored user with the given id. fn must either
// succeed or leave the user unchanged.
func (r *Registry) Update(id int, fn func(*User) error) error {
	i := r.index(id)
	if i < 0 {
		return errors.NotFoundf("user %d not found", id)
	}
	return fn(&r.users[i])
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	return len(r.users)
}

func (r *Registry) find(name string) int {
	for i := range r.users {
		if r.users[i].Name == name {
			return i
		}
	}
	return -1
}

func (r *Registry) index(id int) int {
	for i := range r.users {
		if r.users[i].ID == id {
			return i
		}
	}
	return -1
}
