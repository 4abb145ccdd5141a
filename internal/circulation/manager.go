// internal/circulation/manager.go
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/errors"
	"shelfkeeper/internal/membership"
	"shelfkeeper/pkg/eventstore"
)

const instrumentation = "shelfkeeper/circulation"

// Manager owns the catalog and the user registry and keeps the two sides of
// every loan in agreement: a book is flagged borrowed exactly when one
// member's borrowed list contains its id.
//
// A Manager is not safe for concurrent use.
type Manager struct {
	books   *catalog.Catalog
	users   *membership.Registry
	journal *eventstore.Store
	legacy  bool

	log        *slog.Logger
	tracer     trace.Tracer
	loans      metric.Int64Counter
	returns    metric.Int64Counter
	rejections metric.Int64Counter
}

// NewManager creates an empty library.
func NewManager(opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.journal == nil {
		o.journal = eventstore.NewStore(eventstore.WithTracerProvider(o.tracers))
	}

	meter := o.meters.Meter(instrumentation)
	loans, err := meter.Int64Counter("shelfkeeper.circulation.loans",
		metric.WithDescription("Books lent to members"))
	if err != nil {
		return nil, fmt.Errorf("create loans counter: %w", err)
	}
	returns, err := meter.Int64Counter("shelfkeeper.circulation.returns",
		metric.WithDescription("Books returned by members"))
	if err != nil {
		return nil, fmt.Errorf("create returns counter: %w", err)
	}
	rejections, err := meter.Int64Counter("shelfkeeper.circulation.rejections",
		metric.WithDescription("Operations rejected, by operation and error code"))
	if err != nil {
		return nil, fmt.Errorf("create rejections counter: %w", err)
	}

	return &Manager{
		books: catalog.New(),
		users: membership.NewRegistry(
			membership.WithUniqueNames(!o.legacy),
			membership.WithLoginLimit(o.loginLimit),
		),
		journal:    o.journal,
		legacy:     o.legacy,
		log:        o.logger.With("component", "circulation"),
		tracer:     o.tracers.Tracer(instrumentation),
		loans:      loans,
		returns:    returns,
		rejections: rejections,
	}, nil
}

// Close releases the catalog's search index.
func (m *Manager) Close() error {
	return m.books.Close()
}

// AddBook adds an available book to the end of the catalog.
func (m *Manager) AddBook(ctx context.Context, title, author, genre string) catalog.Book {
	ctx, span := m.start(ctx, "add_book", attribute.String("book.title", title))
	defer span.End()

	book := m.books.Add(title, author, genre)
	span.SetAttributes(attribute.Int("book.id", book.ID))
	m.record(ctx, aggregateBook, book.ID, EventBookAdded, catalog.BookAddedEvent{
		ID:     book.ID,
		Title:  book.Title,
		Author: book.Author,
		Genre:  book.Genre,
	})
	m.log.DebugContext(ctx, "book added", "book_id", book.ID, "title", title)
	return book
}

// RemoveBook deletes a book from the catalog. A book on loan cannot be
// removed unless the manager runs with legacy behavior.
func (m *Manager) RemoveBook(ctx context.Context, bookID int) error {
	const op = "remove_book"
	ctx, span := m.start(ctx, op, attribute.Int("book.id", bookID))
	defer span.End()

	book, err := m.books.Get(bookID)
	if err != nil {
		return m.reject(ctx, span, op, err)
	}
	if book.Borrowed && !m.legacy {
		return m.reject(ctx, span, op, errors.Unavailablef("book %d is on loan", bookID))
	}
	if _, err := m.books.Remove(bookID); err != nil {
		return m.reject(ctx, span, op, err)
	}
	if book.Borrowed {
		m.log.WarnContext(ctx, "removed a book still on loan", "book_id", bookID)
	}

	m.record(ctx, aggregateBook, bookID, EventBookRemoved, catalog.BookRemovedEvent{ID: bookID, WasBorrowed: book.Borrowed})
	m.log.DebugContext(ctx, "book removed", "book_id", bookID)
	return nil
}

// RegisterUser creates a user with the given role.
func (m *Manager) RegisterUser(ctx context.Context, role membership.Role, name, email string) (membership.User, error) {
	const op = "register_user"
	ctx, span := m.start(ctx, op, attribute.String("user.role", string(role)))
	defer span.End()

	user, err := m.users.Register(role, name, email)
	if err != nil {
		return membership.User{}, m.reject(ctx, span, op, err)
	}
	span.SetAttributes(attribute.Int("user.id", user.ID))

	m.record(ctx, aggregateUser, user.ID, EventUserRegistered, membership.UserRegisteredEvent{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
	m.log.InfoContext(ctx, "user registered", "user_id", user.ID, "role", role)
	return user, nil
}

// Authenticate logs in the first user whose name matches exactly.
func (m *Manager) Authenticate(ctx context.Context, name string) (membership.User, membership.SessionEvent, error) {
	const op = "authenticate"
	ctx, span := m.start(ctx, op)
	defer span.End()

	user, err := m.users.Authenticate(name)
	if err != nil {
		return membership.User{}, membership.SessionEvent{}, m.reject(ctx, span, op, err)
	}
	span.SetAttributes(attribute.Int("user.id", user.ID), attribute.String("user.role", string(user.Role)))

	event := user.Login()
	m.record(ctx, aggregateUser, user.ID, EventUserLoggedIn, event)
	m.log.InfoContext(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	return user, event, nil
}

// Logout ends a user's session.
func (m *Manager) Logout(ctx context.Context, userID int) (membership.SessionEvent, error) {
	const op = "logout"
	ctx, span := m.start(ctx, op, attribute.Int("user.id", userID))
	defer span.End()

	user, err := m.users.Get(userID)
	if err != nil {
		return membership.SessionEvent{}, m.reject(ctx, span, op, err)
	}

	event := user.Logout()
	m.record(ctx, aggregateUser, user.ID, EventUserLoggedOut, event)
	m.log.InfoContext(ctx, "user logged out", "user_id", user.ID)
	return event, nil
}

// BorrowBook lends an available book to a member. Both sides of the loan are
// updated or neither is.
func (m *Manager) BorrowBook(ctx context.Context, bookID, memberID int) error {
	const op = "borrow_book"
	ctx, span := m.start(ctx, op, attribute.Int("book.id", bookID), attribute.Int("user.id", memberID))
	defer span.End()

	user, err := m.users.Get(memberID)
	if err != nil {
		return m.reject(ctx, span, op, err)
	}
	if !user.IsMember() {
		return m.reject(ctx, span, op, errors.Forbiddenf("user %d is not a member", memberID))
	}
	if err := m.books.MarkBorrowed(bookID); err != nil {
		return m.reject(ctx, span, op, err)
	}

	if err := m.users.Update(memberID, func(u *membership.User) error { return u.RecordBorrow(bookID) }); err != nil {
		m.log.ErrorContext(ctx, "compensating failed loan", "book_id", bookID, "user_id", memberID, "error", err)
		if cerr := m.books.MarkReturned(bookID); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return m.reject(ctx, span, op, errors.InconsistentStatef("loan of book %d to user %d", bookID, memberID).WithCause(err))
	}

	m.loans.Add(ctx, 1)
	m.record(ctx, aggregateBook, bookID, EventBookBorrowed, BookBorrowedEvent{BookID: bookID, MemberID: memberID})
	m.log.InfoContext(ctx, "book borrowed", "book_id", bookID, "user_id", memberID)
	return nil
}

// ReturnBook takes a book back from the member holding it. The book must be
// on loan and listed by that member; otherwise nothing changes.
func (m *Manager) ReturnBook(ctx context.Context, bookID, memberID int) error {
	const op = "return_book"
	ctx, span := m.start(ctx, op, attribute.Int("book.id", bookID), attribute.Int("user.id", memberID))
	defer span.End()

	user, err := m.users.Get(memberID)
	if err != nil {
		return m.reject(ctx, span, op, err)
	}
	if !user.IsMember() {
		return m.reject(ctx, span, op, errors.Forbiddenf("user %d is not a member", memberID))
	}
	book, err := m.books.Get(bookID)
	if err != nil || !book.Borrowed {
		return m.reject(ctx, span, op, errors.NotFoundf("book %d not found or not borrowed", bookID))
	}
	// user is a detached copy, so this only probes the member's list.
	if err := user.RecordReturn(bookID); err != nil {
		return m.reject(ctx, span, op, errors.NotFoundf("book %d is not on loan to user %d", bookID, memberID).WithCause(err))
	}

	if err := m.books.MarkReturned(bookID); err != nil {
		return m.reject(ctx, span, op, err)
	}
	if err := m.users.Update(memberID, func(u *membership.User) error { return u.RecordReturn(bookID) }); err != nil {
		return m.reject(ctx, span, op, errors.InconsistentStatef("return of book %d by user %d", bookID, memberID).WithCause(err))
	}

	m.returns.Add(ctx, 1)
	m.record(ctx, aggregateBook, bookID, EventBookReturned, BookReturnedEvent{BookID: bookID, MemberID: memberID})
	m.log.InfoContext(ctx, "book returned", "book_id", bookID, "user_id", memberID)
	return nil
}

// ListAllBooks returns every book in catalog order.
func (m *Manager) ListAllBooks(ctx context.Context) []catalog.Book {
	_, span := m.start(ctx, "list_books")
	defer span.End()
	return m.books.All()
}

// ListAvailableBooks returns the books not on loan, in catalog order.
func (m *Manager) ListAvailableBooks(ctx context.Context) []catalog.Book {
	_, span := m.start(ctx, "list_available")
	defer span.End()
	return m.books.Available()
}

// Book returns a single book.
func (m *Manager) Book(_ context.Context, bookID int) (catalog.Book, error) {
	return m.books.Get(bookID)
}

// BorrowedBooks returns the ids a member holds, oldest loan first.
func (m *Manager) BorrowedBooks(ctx context.Context, memberID int) ([]int, error) {
	const op = "list_borrowed"
	ctx, span := m.start(ctx, op, attribute.Int("user.id", memberID))
	defer span.End()

	user, err := m.users.Get(memberID)
	if err != nil {
		return nil, m.reject(ctx, span, op, err)
	}
	if !user.IsMember() {
		return nil, m.reject(ctx, span, op, errors.Forbiddenf("user %d is not a member", memberID))
	}
	return user.ListBorrowed(), nil
}

// SearchBooks runs a full-text match over titles, authors and genres.
func (m *Manager) SearchBooks(ctx context.Context, query string) ([]catalog.Book, error) {
	const op = "search_books"
	ctx, span := m.start(ctx, op, attribute.String("search.query", query))
	defer span.End()

	books, err := m.books.Search(query)
	if err != nil {
		return nil, m.reject(ctx, span, op, err)
	}
	span.SetAttributes(attribute.Int("search.hits", len(books)))
	return books, nil
}

// Users returns every registered user in registration order.
func (m *Manager) Users(_ context.Context) []membership.User {
	return m.users.All()
}

// User returns a single user.
func (m *Manager) User(_ context.Context, userID int) (membership.User, error) {
	return m.users.Get(userID)
}

// History returns the whole journal, oldest event first.
func (m *Manager) History(ctx context.Context) []eventstore.Event {
	return m.journal.StreamEvents(ctx, 0, 0)
}

// VerifyHistory checks the journal's hash chain.
func (m *Manager) VerifyHistory(ctx context.Context) error {
	return m.journal.Verify(ctx)
}

// CheckConsistency compares every book's loan flag with the members'
// borrowed lists and fails with InconsistentState, carrying an
// Inconsistency as details, when they disagree.
func (m *Manager) CheckConsistency(ctx context.Context) error {
	const op = "check_consistency"
	ctx, span := m.start(ctx, op)
	defer span.End()

	var report Inconsistency
	holders := make(map[int]int)
	for _, u := range m.users.All() {
		for _, id := range u.ListBorrowed() {
			holders[id]++
			if book, err := m.books.Get(id); err == nil && book.Borrowed {
				continue
			}
			if report.HeldButAvailable == nil {
				report.HeldButAvailable = make(map[int][]int)
			}
			report.HeldButAvailable[u.ID] = append(report.HeldButAvailable[u.ID], id)
		}
	}
	for id, n := range holders {
		if n > 1 {
			report.MultipleHolders = append(report.MultipleHolders, id)
		}
	}
	slices.Sort(report.MultipleHolders)
	for _, b := range m.books.All() {
		if b.Borrowed && holders[b.ID] == 0 {
			report.BorrowedWithoutHolder = append(report.BorrowedWithoutHolder, b.ID)
		}
	}

	if report.Empty() {
		return nil
	}
	return m.reject(ctx, span, op, errors.InconsistentStatef("book flags and borrowed lists disagree").WithDetails(report))
}

func (m *Manager) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "circulation."+op, trace.WithAttributes(attrs...))
}

func (m *Manager) reject(ctx context.Context, span trace.Span, op string, err error) error {
	code := errors.CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("code", string(code)),
	))
	m.log.InfoContext(ctx, "operation rejected", "op", op, "code", code, "error", err)
	return err
}

func (m *Manager) record(ctx context.Context, aggregateType string, id int, eventType string, payload any) {
	aggregateID := fmt.Sprintf("%s-%d", aggregateType, id)
	if _, err := m.journal.Append(ctx, aggregateID, aggregateType, eventType, payload); err != nil {
		m.log.ErrorContext(ctx, "journal append failed", "aggregate_id", aggregateID, "event_type", eventType, "error", err)
	}
}
