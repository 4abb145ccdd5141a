// internal/shell/render.go
package shell

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/membership"
	"shelfkeeper/pkg/eventstore"
)

var menuLabels = map[membership.Capability]string{
	membership.CapAddBook:       "Add Book",
	membership.CapRemoveBook:    "Remove Book",
	membership.CapBorrowBook:    "Borrow Book",
	membership.CapReturnBook:    "Return Book",
	membership.CapListBooks:     "Display All Books",
	membership.CapListAvailable: "Display Available Books",
	membership.CapListBorrowed:  "Display My Borrowed Books",
	membership.CapHistory:       "Show History",
	membership.CapLogout:        "Logout",
}

// FormatBook renders a book as a single listing line.
func FormatBook(b catalog.Book) string {
	return fmt.Sprintf("BookID: %d, Title: %s, Author: %s, Genre: %s", b.ID, b.Title, b.Author, b.Genre)
}

// WriteBooks writes a heading followed by one line per book.
func WriteBooks(w io.Writer, heading string, books []catalog.Book) {
	fmt.Fprintf(w, "%s:\n", heading)
	for _, b := range books {
		fmt.Fprintln(w, FormatBook(b))
	}
}

func writeMainMenu(w io.Writer) {
	fmt.Fprint(w, "\nLibrary Management System\n1. Login\n2. Register New User\n3. Exit\n")
}

func writeRoleMenu(w io.Writer, role membership.Role) {
	title := "Member"
	if role == membership.RoleAdministrator {
		title = "Admin"
	}
	fmt.Fprintf(w, "\n%s Menu:\n", title)
	for i, c := range role.Capabilities() {
		fmt.Fprintf(w, "%d. %s\n", i+1, menuLabels[c])
	}
}

func writeBorrowed(w io.Writer, ids []int) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	fmt.Fprintf(w, "Borrowed Books: %s\n", strings.Join(parts, " "))
}

func writeHistory(w io.Writer, events []eventstore.Event) {
	fmt.Fprintln(w, "History:")
	for _, e := range events {
		fmt.Fprintf(w, "#%d %s %s v%d %s\n",
			e.Sequence, e.EventType, e.AggregateID, e.Version, e.CreatedAt.Format(time.RFC3339))
	}
}
