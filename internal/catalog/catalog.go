// internal/catalog/catalog.go
package catalog

import (
	"shelfkeeper/internal/errors"
)

// Catalog owns the books in insertion order and assigns their ids.
//
// A Catalog is not safe for concurrent use. All accessors return copies, so
// the only way to change a book's loan flag is MarkBorrowed / MarkReturned.
type Catalog struct {
	books  []Book
	nextID int
	index  searchIndex
}

// New creates an empty catalog whose first book gets id 1.
func New() *Catalog {
	return &Catalog{nextID: 1}
}

// Add appends a new, available book and returns it.
func (c *Catalog) Add(title, author, genre string) Book {
	book := Book{
		ID:     c.nextID,
		Title:  title,
		Author: author,
		Genre:  genre,
	}
	c.nextID++
	c.books = append(c.books, book)
	c.index.put(book)
	return book
}

// Remove deletes the first book with the given id, borrowed or not.
func (c *Catalog) Remove(id int) (Book, error) {
	i := c.find(id)
	if i < 0 {
		return Book{}, errors.NotFoundf("book %d not found", id)
	}
	book := c.books[i]
	c.books = append(c.books[:i], c.books[i+1:]...)
	c.index.drop(id)
	return book, nil
}

// Get returns the book with the given id.
func (c *Catalog) Get(id int) (Book, error) {
	i := c.find(id)
	if i < 0 {
		return Book{}, errors.NotFoundf("book %d not found", id)
	}
	return c.books[i], nil
}

// All returns every book in catalog order.
func (c *Catalog) All() []Book {
	out := make([]Book, len(c.books))
	copy(out, c.books)
	return out
}

// Available returns the books not on loan, in catalog order.
func (c *Catalog) Available() []Book {
	out := make([]Book, 0, len(c.books))
	for _, b := range c.books {
		if b.Available() {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of books currently in the catalog.
func (c *Catalog) Len() int {
	return len(c.books)
}

// MarkBorrowed flags an available book as on loan. It fails with
// Unavailable when no book with that id is available.
func (c *Catalog) MarkBorrowed(id int) error {
	for i := range c.books {
		if c.books[i].ID == id && c.books[i].Available() {
			c.books[i].borrow()
			return nil
		}
	}
	return errors.Unavailablef("book %d not available", id)
}

// MarkReturned clears the loan flag of a borrowed book. It fails with
// NotFound when no book with that id is currently borrowed.
func (c *Catalog) MarkReturned(id int) error {
	for i := range c.books {
		if c.books[i].ID == id && c.books[i].Borrowed {
			c.books[i].release()
			return nil
		}
	}
	return errors.NotFoundf("book %d not found or not borrowed", id)
}

func (c *Catalog) find(id int) int {
	for i := range c.books {
		if c.books[i].ID == id {
			return i
		}
	}
	return -1
}
