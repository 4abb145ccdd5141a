// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/membership"
)

// Library is the subset of the circulation manager needed to seed it.
type Library interface {
	AddBook(ctx context.Context, title, author, genre string) catalog.Book
	RegisterUser(ctx context.Context, role membership.Role, name, email string) (membership.User, error)
}

// Title, author and genre of a sample book.
type bookRecord struct {
	Title, Author, Genre string
}

var books = []bookRecord{
	{"1984", "George Orwell", "Dystopian"},
	{"To Kill a Mockingbird", "Harper Lee", "Classic"},
	{"The Great Gatsby", "F. Scott Fitzgerald", "Classic"},
	{"One Hundred Years of Solitude", "Gabriel Garcia Marquez", "Magical Realism"},
	{"Pride and Prejudice", "Jane Austen", "Romance"},
	{"War and Peace", "Leo Tolstoy", "Historical Fiction"},
	{"The Catcher in the Rye", "J.D. Salinger", "Fiction"},
	{"The Hobbit", "J.R.R. Tolkien", "Fantasy"},
	{"Moby Dick", "Herman Melville", "Adventure"},
	{"Ulysses", "James Joyce", "Modernist"},
	{"The Odyssey", "Homer", "Epic"},
	{"Madame Bovary", "Gustave Flaubert", "Fiction"},
	{"Crime and Punishment", "Fyodor Dostoevsky", "Psychological Fiction"},
	{"The Divine Comedy", "Dante Alighieri", "Epic"},
	{"The Brothers Karamazov", "Fyodor Dostoevsky", "Philosophical Fiction"},
	{"Anna Karenina", "Leo Tolstoy", "Fiction"},
	{"Brave New World", "Aldous Huxley", "Dystopian"},
	{"The Iliad", "Homer", "Epic"},
	{"Jane Eyre", "Charlotte Bronte", "Romance"},
	{"Wuthering Heights", "Emily Bronte", "Gothic Fiction"},
	{"Don Quixote", "Miguel de Cervantes", "Adventure"},
	{"The Picture of Dorian Gray", "Oscar Wilde", "Philosophical Fiction"},
}

// Demo account names.
const (
	AdminName  = "Admin"
	MemberName = "User"
)

// BookCount returns the number of sample books Load adds.
func BookCount() int {
	return len(books)
}

// Load adds the sample books and the two demo accounts to lib.
func Load(ctx context.Context, lib Library) error {
	for _, b := range books {
		lib.AddBook(ctx, b.Title, b.Author, b.Genre)
	}
	if _, err := lib.RegisterUser(ctx, membership.RoleAdministrator, AdminName, "admin@example.com"); err != nil {
		return fmt.Errorf("seed administrator: %w", err)
	}
	if _, err := lib.RegisterUser(ctx, membership.RoleMember, MemberName, "user@example.com"); err != nil {
		return fmt.Errorf("seed member: %w", err)
	}
	return nil
}
