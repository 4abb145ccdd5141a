package membership_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/internal/errors"
	"shelfkeeper/internal/membership"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want membership.Role
	}{
		{"1", membership.RoleAdministrator},
		{"admin", membership.RoleAdministrator},
		{"Administrator", membership.RoleAdministrator},
		{"2", membership.RoleMember},
		{" member ", membership.RoleMember},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := membership.ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := membership.ParseRole("3")
	assert.ErrorIs(t, err, errors.ErrInvalidRole)
}

func TestRole_Capabilities(t *testing.T) {
	admin := membership.User{Role: membership.RoleAdministrator}
	member := membership.User{Role: membership.RoleMember}

	assert.True(t, admin.Can(membership.CapAddBook))
	assert.True(t, admin.Can(membership.CapRemoveBook))
	assert.False(t, admin.Can(membership.CapBorrowBook))

	assert.True(t, member.Can(membership.CapBorrowBook))
	assert.True(t, member.Can(membership.CapListBorrowed))
	assert.False(t, member.Can(membership.CapRemoveBook))

	assert.Nil(t, membership.Role("librarian").Capabilities())
}

func TestUser_RecordBorrowAndReturn(t *testing.T) {
	u := membership.User{ID: 2, Name: "User", Role: membership.RoleMember}

	require.NoError(t, u.RecordBorrow(1))
	require.NoError(t, u.RecordBorrow(5))
	assert.Equal(t, []int{1, 5}, u.ListBorrowed())
	assert.True(t, u.Holds(5))

	require.NoError(t, u.RecordReturn(1))
	assert.Equal(t, []int{5}, u.ListBorrowed())

	err := u.RecordReturn(1)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, []int{5}, u.ListBorrowed())
}

func TestUser_AdministratorCannotHoldBooks(t *testing.T) {
	u := membership.User{ID: 1, Name: "Admin", Role: membership.RoleAdministrator}

	assert.ErrorIs(t, u.RecordBorrow(1), errors.ErrForbidden)
	assert.ErrorIs(t, u.RecordReturn(1), errors.ErrForbidden)
	assert.Empty(t, u.ListBorrowed())
}

func TestUser_ListBorrowedIsACopy(t *testing.T) {
	u := membership.User{ID: 2, Role: membership.RoleMember}
	require.NoError(t, u.RecordBorrow(3))

	list := u.ListBorrowed()
	list[0] = 99

	assert.Equal(t, []int{3}, u.ListBorrowed())
}

func TestUser_SessionEvents(t *testing.T) {
	u := membership.User{ID: 1, Name: "Admin", Role: membership.RoleAdministrator}

	in := u.Login()
	out := u.Logout()

	assert.Equal(t, membership.SessionLoggedIn, in.Kind)
	assert.Equal(t, membership.SessionLoggedOut, out.Kind)
	assert.Equal(t, "Admin", in.Name)
	assert.False(t, in.At.IsZero())
}

func TestRegistry_RegisterAssignsIDs(t *testing.T) {
	r := membership.NewRegistry()

	admin, err := r.Register(membership.RoleAdministrator, "Admin", "admin@example.com")
	require.NoError(t, err)
	member, err := r.Register(membership.RoleMember, "User", "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, admin.ID)
	assert.Equal(t, 2, member.ID)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RegisterRejectsInvalidRole(t *testing.T) {
	r := membership.NewRegistry()

	_, err := r.Register(membership.Role("guest"), "Eve", "eve@example.com")
	assert.ErrorIs(t, err, errors.ErrInvalidRole)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DuplicateNames(t *testing.T) {
	t.Run("allowed_by_default_first_match_wins", func(t *testing.T) {
		r := membership.NewRegistry()
		first, err := r.Register(membership.RoleMember, "Sam", "one@example.com")
		require.NoError(t, err)
		_, err = r.Register(membership.RoleAdministrator, "Sam", "two@example.com")
		require.NoError(t, err)

		got, err := r.Authenticate("Sam")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("rejected_when_unique", func(t *testing.T) {
		r := membership.NewRegistry(membership.WithUniqueNames(true))
		_, err := r.Register(membership.RoleMember, "Sam", "one@example.com")
		require.NoError(t, err)

		_, err = r.Register(membership.RoleMember, "Sam", "two@example.com")
		assert.ErrorIs(t, err, errors.ErrAlreadyExists)
		assert.Equal(t, 1, r.Len())
	})
}

func TestRegistry_AuthenticateIsExactMatch(t *testing.T) {
	r := membership.NewRegistry()
	_, err := r.Register(membership.RoleAdministrator, "Admin", "admin@example.com")
	require.NoError(t, err)

	_, err = r.Authenticate("admin")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = r.Authenticate("nobody")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	got, err := r.Authenticate("Admin")
	require.NoError(t, err)
	assert.Equal(t, membership.RoleAdministrator, got.Role)
}

func TestRegistry_LoginLimit(t *testing.T) {
	r := membership.NewRegistry(membership.WithLoginLimit(2))
	_, err := r.Register(membership.RoleMember, "User", "user@example.com")
	require.NoError(t, err)

	_, err = r.Authenticate("User")
	require.NoError(t, err)
	_, err = r.Authenticate("User")
	require.NoError(t, err)

	_, err = r.Authenticate("User")
	assert.ErrorIs(t, err, errors.ErrRateLimited)
}

func TestRegistry_UpdateAndCopies(t *testing.T) {
	r := membership.NewRegistry()
	u, err := r.Register(membership.RoleMember, "User", "user@example.com")
	require.NoError(t, err)

	require.NoError(t, r.Update(u.ID, func(m *membership.User) error { return m.RecordBorrow(4) }))

	got, err := r.Get(u.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, got.ListBorrowed())

	// The returned snapshot is detached from the registry.
	require.NoError(t, got.RecordBorrow(8))
	again, err := r.Get(u.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, again.ListBorrowed())

	err = r.Update(99, func(*membership.User) error { return nil })
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
