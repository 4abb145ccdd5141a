package shell_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/seed"
	"shelfkeeper/internal/shell"
)

func newSeededManager(t *testing.T) *circulation.Manager {
	t.Helper()
	mgr, err := circulation.NewManager()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, seed.Load(context.Background(), mgr))
	return mgr
}

// runScript feeds one answer per line to a shell over mgr and returns what
// it wrote.
func runScript(t *testing.T, mgr *circulation.Manager, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, shell.New(mgr, in, &out).Run(context.Background()))
	return out.String()
}

func TestShell_AdministratorAddsAndListsBooks(t *testing.T) {
	mgr := newSeededManager(t)

	out := runScript(t, mgr,
		"1", "Admin",
		"1", "Dune", "Frank Herbert", "Science Fiction",
		"3",
		"6",
		"3",
	)

	assert.Contains(t, out, "Admin logged in.")
	assert.Contains(t, out, "Admin Menu:\n1. Add Book\n2. Remove Book")
	assert.Contains(t, out, "Book added: BookID: 23, Title: Dune, Author: Frank Herbert, Genre: Science Fiction")
	assert.Contains(t, out, "All Books:\nBookID: 1, Title: 1984, Author: George Orwell, Genre: Dystopian\n")
	assert.Contains(t, out, "Admin logged out.")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
	assert.Len(t, mgr.ListAllBooks(context.Background()), seed.BookCount()+1)
}

func TestShell_MemberBorrowsAndReturns(t *testing.T) {
	mgr := newSeededManager(t)

	out := runScript(t, mgr,
		"1", "User",
		"1", "3",
		"1", "3",
		"5",
		"2", "3",
		"2", "3",
		"6",
		"3",
	)

	assert.Contains(t, out, "Member Menu:\n1. Borrow Book\n2. Return Book")
	assert.Contains(t, out, "Book borrowed: 3\n")
	assert.Contains(t, out, "Book not available.\n")
	assert.Contains(t, out, "Borrowed Books: 3\n")
	assert.Contains(t, out, "Book returned: 3\n")
	assert.Contains(t, out, "Book not found or not borrowed.\n")
	assert.Contains(t, out, "User logged out.")
	require.NoError(t, mgr.CheckConsistency(context.Background()))
}

func TestShell_AvailableListingHidesLoans(t *testing.T) {
	mgr := newSeededManager(t)

	out := runScript(t, mgr, "1", "User", "1", "1", "4", "6", "3")

	available := out[strings.Index(out, "Available Books:"):]
	assert.NotContains(t, available, "Title: 1984,")
	assert.Contains(t, available, "BookID: 2, Title: To Kill a Mockingbird")
}

func TestShell_UnknownUser(t *testing.T) {
	out := runScript(t, newSeededManager(t), "1", "nobody", "3")

	assert.Contains(t, out, "User not found.")
	assert.NotContains(t, out, "Menu:")
}

func TestShell_RegisterNewMember(t *testing.T) {
	mgr := newSeededManager(t)

	out := runScript(t, mgr,
		"2", "9",
		"2", "2", "Sam", "not-an-email",
		"2", "2", "Sam", "sam@example.com",
		"2", "2", "Sam", "sam2@example.com",
		"1", "Sam", "5", "6",
		"3",
	)

	assert.Contains(t, out, "Invalid user type selected.")
	assert.Contains(t, out, "Invalid input: email must be a valid email address")
	assert.Contains(t, out, "Registered Sam with user ID 3.")
	assert.Contains(t, out, `A user named "Sam" already exists.`)
	assert.Contains(t, out, "Sam logged in.")
	assert.Contains(t, out, "Borrowed Books: \n")
	assert.Len(t, mgr.Users(context.Background()), 3)
}

func TestShell_InvalidInput(t *testing.T) {
	mgr := newSeededManager(t)

	out := runScript(t, mgr,
		"7",
		"1", "User",
		"9",
		"1", "abc",
		"6",
		"3",
	)

	assert.Equal(t, 2, strings.Count(out, "Invalid option. Try again."))
	assert.Contains(t, out, `Invalid book ID "abc".`)
}

func TestShell_AdministratorCannotRemoveBookOnLoan(t *testing.T) {
	mgr := newSeededManager(t)

	out := runScript(t, mgr,
		"1", "User", "1", "5", "6",
		"1", "Admin", "2", "5", "2", "404", "2", "6", "6",
		"3",
	)

	assert.Contains(t, out, "Book is on loan and cannot be removed.")
	assert.Contains(t, out, "Book not found.")
	assert.Contains(t, out, "Book removed.")
}

func TestShell_AdministratorHistory(t *testing.T) {
	mgr := newSeededManager(t)

	out := runScript(t, mgr, "1", "Admin", "5", "6", "3")

	assert.Contains(t, out, "History:\n#1 BookAdded book-1 v1 ")
	assert.Contains(t, out, "UserLoggedIn user-1")
}

func TestShell_PromptsAndGreeting(t *testing.T) {
	var out bytes.Buffer
	sh := shell.New(newSeededManager(t), strings.NewReader("3\n"), &out,
		shell.WithPrompts(true),
		shell.WithGreeting("Welcome."),
	)

	require.NoError(t, sh.Run(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), "Welcome.\n"))
	assert.Contains(t, out.String(), "Choose an option: Goodbye!")
}

func TestShell_EndOfInput(t *testing.T) {
	const mainMenu = "Library Management System"

	t.Run("inside_session_menu", func(t *testing.T) {
		out := runScript(t, newSeededManager(t), "1", "User")

		assert.Contains(t, out, "User logged in.")
		assert.Equal(t, 1, strings.Count(out, mainMenu))
		assert.Equal(t, 1, strings.Count(out, "Member Menu:"))
		assert.NotContains(t, out, "Goodbye!")
	})

	t.Run("inside_session_action", func(t *testing.T) {
		out := runScript(t, newSeededManager(t), "1", "User", "1")

		assert.Equal(t, 1, strings.Count(out, mainMenu))
		assert.Equal(t, 1, strings.Count(out, "Member Menu:"))
		assert.True(t, strings.HasSuffix(out, "6. Logout\n"))
	})

	t.Run("inside_registration", func(t *testing.T) {
		out := runScript(t, newSeededManager(t), "2", "2", "Ada")

		assert.Equal(t, 1, strings.Count(out, mainMenu))
		assert.NotContains(t, out, "Registered")
	})

	t.Run("after_logout", func(t *testing.T) {
		out := runScript(t, newSeededManager(t), "1", "User", "6")

		assert.Contains(t, out, "User logged out.")
		assert.Equal(t, 2, strings.Count(out, mainMenu))
	})
}

func TestShell_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := shell.New(newSeededManager(t), strings.NewReader("3\n"), &bytes.Buffer{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
