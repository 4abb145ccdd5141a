// internal/circulation/domain.go
package circulation

// Journal event types.
const (
	EventBookAdded      = "BookAdded"
	EventBookRemoved    = "BookRemoved"
	EventUserRegistered = "UserRegistered"
	EventBookBorrowed   = "BookBorrowed"
	EventBookReturned   = "BookReturned"
	EventUserLoggedIn   = "UserLoggedIn"
	EventUserLoggedOut  = "UserLoggedOut"
)

// Aggregate types used as journal stream prefixes.
const (
	aggregateBook = "book"
	aggregateUser = "user"
)

// BookBorrowedEvent is published when a member borrows a book.
type BookBorrowedEvent struct {
	BookID   int `json:"book_id"`
	MemberID int `json:"member_id"`
}

// BookReturnedEvent is published when a member returns a book.
type BookReturnedEvent struct {
	BookID   int `json:"book_id"`
	MemberID int `json:"member_id"`
}

// Inconsistency describes where the book flags and the members' borrowed
// lists disagree.
type Inconsistency struct {
	// BorrowedWithoutHolder are books flagged borrowed that no member lists.
	BorrowedWithoutHolder []int `json:"borrowed_without_holder,omitempty"`
	// HeldButAvailable are book ids listed by a member while the book is
	// missing from the catalog or not flagged borrowed, keyed by member id.
	HeldButAvailable map[int][]int `json:"held_but_available,omitempty"`
	// MultipleHolders are books listed more than once across all members.
	MultipleHolders []int `json:"multiple_holders,omitempty"`
}

// Empty reports whether no inconsistency was found.
func (i Inconsistency) Empty() bool {
	return len(i.BorrowedWithoutHolder) == 0 && len(i.HeldButAvailable) == 0 && len(i.MultipleHolders) == 0
}
