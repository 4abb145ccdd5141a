// Package shell implements the interactive, menu-driven front end over the
// circulation service. It reads one answer per line and writes plain text.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/errors"
	"shelfkeeper/internal/membership"
)

// Shell runs the main menu loop.
type Shell struct {
	svc      circulation.Service
	in       *bufio.Scanner
	out      io.Writer
	prompts  bool
	greeting string
	forms    *formValidator
	log      *slog.Logger

	// exhausted is set once the input has no more lines.
	exhausted bool
}

// Option configures a Shell.
type Option func(*Shell)

// WithPrompts controls whether input prompts such as "Choose an option: "
// are written. Menus and results are always written.
func WithPrompts(enabled bool) Option {
	return func(s *Shell) { s.prompts = enabled }
}

// WithGreeting sets a line written once before the first menu.
func WithGreeting(msg string) Option {
	return func(s *Shell) { s.greeting = msg }
}

// WithLogger sets the logger. Log output must not share the shell's writer.
func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) { s.log = l }
}

// New creates a shell reading from in and writing to out.
func New(svc circulation.Service, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		svc:   svc,
		in:    bufio.NewScanner(in),
		out:   out,
		forms: newFormValidator(),
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops over the main menu until the user exits or input ends.
func (s *Shell) Run(ctx context.Context) error {
	if s.greeting != "" {
		s.println(s.greeting)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		writeMainMenu(s.out)
		choice, ok := s.ask("Choose an option: ")
		if !ok {
			return s.in.Err()
		}

		switch choice {
		case "1":
			more, err := s.login(ctx)
			if err != nil {
				return err
			}
			if !more {
				return s.in.Err()
			}
		case "2":
			if s.register(ctx); s.exhausted {
				return s.in.Err()
			}
		case "3":
			s.println("Goodbye!")
			return nil
		default:
			s.println("Invalid option. Try again.")
		}
	}
}

// login runs one session. It reports false once the input is exhausted.
func (s *Shell) login(ctx context.Context) (bool, error) {
	name, ok := s.ask("Enter your name to login: ")
	if !ok {
		return false, nil
	}
	user, event, err := s.svc.Authenticate(ctx, name)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		s.println("User not found.")
		return true, nil
	case errors.Is(err, errors.ErrRateLimited):
		s.println("Too many login attempts. Try again later.")
		return true, nil
	case err != nil:
		s.printErr(err)
		return true, nil
	}

	sess, err := newSession(user)
	if err != nil {
		return false, err
	}
	log := s.log.With("session_id", sess.ID, "user_id", user.ID)
	log.DebugContext(ctx, "session started", "role", user.Role)
	s.printf("%s logged in.\n", event.Name)

	for sess.Active() {
		writeRoleMenu(s.out, sess.User.Role)
		choice, ok := s.ask("Choose an option: ")
		if !ok {
			log.DebugContext(ctx, "input ended in session")
			return false, nil
		}
		if s.dispatch(ctx, sess, choice); s.exhausted {
			log.DebugContext(ctx, "input ended in session")
			return false, nil
		}
	}
	log.DebugContext(ctx, "session ended")
	return true, nil
}

func (s *Shell) dispatch(ctx context.Context, sess *Session, choice string) {
	caps := sess.User.Role.Capabilities()
	n, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || n < 1 || n > len(caps) || !sess.User.Can(caps[n-1]) {
		s.println("Invalid option. Try again.")
		return
	}

	switch caps[n-1] {
	case membership.CapAddBook:
		s.addBook(ctx)
	case membership.CapRemoveBook:
		s.removeBook(ctx)
	case membership.CapBorrowBook:
		s.borrowBook(ctx, sess)
	case membership.CapReturnBook:
		s.returnBook(ctx, sess)
	case membership.CapListBooks:
		WriteBooks(s.out, "All Books", s.svc.ListAllBooks(ctx))
	case membership.CapListAvailable:
		WriteBooks(s.out, "Available Books", s.svc.ListAvailableBooks(ctx))
	case membership.CapListBorrowed:
		ids, err := s.svc.BorrowedBooks(ctx, sess.User.ID)
		if err != nil {
			s.printErr(err)
			return
		}
		writeBorrowed(s.out, ids)
	case membership.CapHistory:
		writeHistory(s.out, s.svc.History(ctx))
	case membership.CapLogout:
		event, err := s.svc.Logout(ctx, sess.User.ID)
		if err != nil {
			s.printErr(err)
		} else {
			s.printf("%s logged out.\n", event.Name)
		}
		sess.end()
	}
}

func (s *Shell) addBook(ctx context.Context) {
	var form bookForm
	var ok bool
	if form.Title, ok = s.ask("Enter book title: "); !ok {
		return
	}
	if form.Author, ok = s.ask("Enter book author: "); !ok {
		return
	}
	if form.Genre, ok = s.ask("Enter book genre: "); !ok {
		return
	}
	if err := s.forms.validate(form); err != nil {
		s.printf("Invalid input: %s\n", describeValidation(err))
		return
	}
	book := s.svc.AddBook(ctx, form.Title, form.Author, form.Genre)
	s.printf("Book added: %s\n", FormatBook(book))
}

func (s *Shell) removeBook(ctx context.Context) {
	id, ok := s.askID("Enter book ID to remove: ")
	if !ok {
		return
	}
	err := s.svc.RemoveBook(ctx, id)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		s.println("Book not found.")
	case errors.Is(err, errors.ErrUnavailable):
		s.println("Book is on loan and cannot be removed.")
	case err != nil:
		s.printErr(err)
	default:
		s.println("Book removed.")
	}
}

func (s *Shell) borrowBook(ctx context.Context, sess *Session) {
	id, ok := s.askID("Enter book ID to borrow: ")
	if !ok {
		return
	}
	err := s.svc.BorrowBook(ctx, id, sess.User.ID)
	switch {
	case errors.Is(err, errors.ErrUnavailable):
		s.println("Book not available.")
	case err != nil:
		s.printErr(err)
	default:
		s.printf("Book borrowed: %d\n", id)
	}
}

func (s *Shell) returnBook(ctx context.Context, sess *Session) {
	id, ok := s.askID("Enter book ID to return: ")
	if !ok {
		return
	}
	err := s.svc.ReturnBook(ctx, id, sess.User.ID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		s.println("Book not found or not borrowed.")
	case err != nil:
		s.printErr(err)
	default:
		s.printf("Book returned: %d\n", id)
	}
}

func (s *Shell) register(ctx context.Context) {
	selector, ok := s.ask("Select user type (1 for Admin, 2 for Member): ")
	if !ok {
		return
	}
	role, err := membership.ParseRole(selector)
	if err != nil {
		s.println("Invalid user type selected.")
		return
	}

	var form registrationForm
	if form.Name, ok = s.ask("Enter name: "); !ok {
		return
	}
	if form.Email, ok = s.ask("Enter email: "); !ok {
		return
	}
	if err := s.forms.validate(form); err != nil {
		s.printf("Invalid input: %s\n", describeValidation(err))
		return
	}

	user, err := s.svc.RegisterUser(ctx, role, form.Name, form.Email)
	switch {
	case errors.Is(err, errors.ErrAlreadyExists):
		s.printf("A user named %q already exists.\n", form.Name)
	case err != nil:
		s.printErr(err)
	default:
		s.printf("Registered %s with user ID %d.\n", user.Name, user.ID)
	}
}

// ask writes prompt when prompting is enabled and returns the next trimmed
// line. ok is false once input is exhausted.
func (s *Shell) ask(prompt string) (string, bool) {
	if s.prompts {
		fmt.Fprint(s.out, prompt)
	}
	if !s.in.Scan() {
		s.exhausted = true
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *Shell) askID(prompt string) (int, bool) {
	line, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(line)
	if err != nil {
		s.printf("Invalid book ID %q.\n", line)
		return 0, false
	}
	return id, true
}

func (s *Shell) println(msg string) {
	fmt.Fprintln(s.out, msg)
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) printErr(err error) {
	s.printf("Error: %v\n", err)
}
