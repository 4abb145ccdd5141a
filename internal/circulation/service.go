// internal/circulation/service.go
package circulation

import (
	"context"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/membership"
	"shelfkeeper/pkg/eventstore"
)

// Service defines the catalog and circulation operations offered to callers
// such as the interactive shell.
type Service interface {
	AddBook(ctx context.Context, title, author, genre string) catalog.Book
	RemoveBook(ctx context.Context, bookID int) error
	RegisterUser(ctx context.Context, role membership.Role, name, email string) (membership.User, error)
	Authenticate(ctx context.Context, name string) (membership.User, membership.SessionEvent, error)
	Logout(ctx context.Context, userID int) (membership.SessionEvent, error)
	BorrowBook(ctx context.Context, bookID, memberID int) error
	ReturnBook(ctx context.Context, bookID, memberID int) error
	ListAllBooks(ctx context.Context) []catalog.Book
	ListAvailableBooks(ctx context.Context) []catalog.Book
	BorrowedBooks(ctx context.Context, memberID int) ([]int, error)
	SearchBooks(ctx context.Context, query string) ([]catalog.Book, error)
	History(ctx context.Context) []eventstore.Event
}

var _ Service = (*Manager)(nil)
