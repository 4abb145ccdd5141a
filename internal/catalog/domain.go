// internal/catalog/domain.go
package catalog

// Book represents a catalog item and its loan status.
type Book struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Genre    string `json:"genre"`
	Borrowed bool   `json:"borrowed"`
}

// Available reports whether the book can be lent.
func (b Book) Available() bool {
	return !b.Borrowed
}

func (b *Book) borrow() {
	b.Borrowed = true
}

func (b *Book) release() {
	b.Borrowed = false
}

// BookAddedEvent is published when a new book is added.
type BookAddedEvent struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// BookRemovedEvent is published when a book leaves the catalog.
type BookRemovedEvent struct {
	ID          int  `json:"id"`
	WasBorrowed bool `json:"was_borrowed"`
}
