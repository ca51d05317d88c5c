package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Fallback messages shown when the backend gives no usable reason
const (
	msgLoginFailed    = "login failed"
	msgRegisterFailed = "registration failed"
	msgLoadBooks      = "could not load books"
	msgSearchBooks    = "could not search books"
	msgAddBook        = "could not add book"
	msgUpdateBook     = "could not update book"
	msgDeleteBook     = "could not delete book"
	msgBorrowBook     = "could not borrow book"
	msgReturnBook     = "could not return book"
	msgLoadLoans      = "could not load loans"
	msgLoadUsers      = "could not load users"
	msgUpdateUser     = "could not update user"
	msgDeleteUser     = "could not delete user"
	msgSessionExpired = "session expired, please log in again"
)

// API has one method per backend endpoint. Admin endpoints check the
// session before any request is made.
type API struct {
	gateway  *Gateway
	sessions SessionSource
}

// NewAPI wraps gateway
func NewAPI(gateway *Gateway) *API {
	return &API{gateway: gateway}
}

// WithSessions sets where admin calls look for the session when ctx does
// not carry one.
func (a *API) WithSessions(sessions SessionSource) *API {
	a.sessions = sessions
	return a
}

var (
	_ Authenticator = (*API)(nil)
	_ Registrar     = (*API)(nil)
)

// Authenticate posts credentials to the login endpoint. The raw response is
// returned so the session store can pick the token field.
func (a *API) Authenticate(ctx context.Context, credentials Credentials) (map[string]any, error) {
	var resp map[string]any
	if err := a.gateway.send(ctx, http.MethodPost, "/auth/login", credentials, &resp, false); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNoTokenInResponse
	}
	return resp, nil
}

// Register creates an account. Backend refusals are passed on verbatim.
func (a *API) Register(ctx context.Context, req RegisterRequest) error {
	var confirmation string
	err := a.gateway.send(ctx, http.MethodPost, "/auth/register", req, &confirmation, false)
	return mapError(err, msgRegisterFailed, true)
}

func (a *API) ListBooks(ctx context.Context) ([]Book, error) {
	var books []Book
	if err := a.gateway.Do(ctx, http.MethodGet, "/books", nil, &books); err != nil {
		return nil, mapError(err, msgLoadBooks, false)
	}
	return books, nil
}

// SearchBooks uses the backend search by title or author
func (a *API) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	var books []Book
	path := "/books/search?" + url.Values{"query": {query}}.Encode()
	if err := a.gateway.Do(ctx, http.MethodGet, path, nil, &books); err != nil {
		return nil, mapError(err, msgSearchBooks, false)
	}
	return books, nil
}

func (a *API) AddBook(ctx context.Context, input BookInput) (Book, error) {
	if err := input.Validate(); err != nil {
		return Book{}, validationFailure(err, "invalid book")
	}
	if err := a.requireAdmin(ctx); err != nil {
		return Book{}, err
	}
	var book Book
	if err := a.gateway.Do(ctx, http.MethodPost, "/books", input, &book); err != nil {
		return Book{}, mapError(err, msgAddBook, true)
	}
	return book, nil
}

func (a *API) UpdateBook(ctx context.Context, id int64, input BookInput) (Book, error) {
	if err := input.Validate(); err != nil {
		return Book{}, validationFailure(err, "invalid book")
	}
	if err := a.requireAdmin(ctx); err != nil {
		return Book{}, err
	}
	var book Book
	if err := a.gateway.Do(ctx, http.MethodPut, fmt.Sprintf("/books/%d", id), input, &book); err != nil {
		return Book{}, mapError(err, msgUpdateBook, true)
	}
	return book, nil
}

func (a *API) DeleteBook(ctx context.Context, id int64) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}
	err := a.gateway.Do(ctx, http.MethodDelete, fmt.Sprintf("/books/%d", id), nil, nil)
	return mapError(err, msgDeleteBook, true)
}

// Borrow asks the backend for a copy. The client never checks availability
// itself; a refusal comes back with the backend's own message.
func (a *API) Borrow(ctx context.Context, bookID int64) (Loan, error) {
	var loan Loan
	if err := a.gateway.Do(ctx, http.MethodPost, fmt.Sprintf("/loans/borrow/%d", bookID), nil, &loan); err != nil {
		return Loan{}, mapError(err, msgBorrowBook, true)
	}
	return loan, nil
}

func (a *API) Return(ctx context.Context, loanID int64) (Loan, error) {
	var loan Loan
	if err := a.gateway.Do(ctx, http.MethodPut, fmt.Sprintf("/loans/return/%d", loanID), nil, &loan); err != nil {
		return Loan{}, mapError(err, msgReturnBook, true)
	}
	return loan, nil
}

func (a *API) MyLoans(ctx context.Context) ([]Loan, error) {
	return a.loans(ctx, "/loans/history/my")
}

func (a *API) UserLoans(ctx context.Context, userID int64) ([]Loan, error) {
	if err := a.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return a.loans(ctx, fmt.Sprintf("/loans/history/%d", userID))
}

func (a *API) OverdueLoans(ctx context.Context) ([]Loan, error) {
	if err := a.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return a.loans(ctx, "/loans/overdue")
}

func (a *API) ActiveLoans(ctx context.Context) ([]Loan, error) {
	if err := a.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return a.loans(ctx, "/loans/active")
}

func (a *API) loans(ctx context.Context, path string) ([]Loan, error) {
	var loans []Loan
	if err := a.gateway.Do(ctx, http.MethodGet, path, nil, &loans); err != nil {
		return nil, mapError(err, msgLoadLoans, false)
	}
	return loans, nil
}

func (a *API) ListUsers(ctx context.Context) ([]User, error) {
	if err := a.requireAdmin(ctx); err != nil {
		return nil, err
	}
	var users []User
	if err := a.gateway.Do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, mapError(err, msgLoadUsers, false)
	}
	for i := range users {
		users[i].Role = NormalizeRole(string(users[i].Role))
	}
	return users, nil
}

func (a *API) UpdateUser(ctx context.Context, id int64, update UserUpdate) (User, error) {
	if err := update.Validate(); err != nil {
		return User{}, validationFailure(err, "invalid user")
	}
	if err := a.requireAdmin(ctx); err != nil {
		return User{}, err
	}
	var user User
	if err := a.gateway.Do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), update, &user); err != nil {
		return User{}, mapError(err, msgUpdateUser, true)
	}
	user.Role = NormalizeRole(string(user.Role))
	return user, nil
}

func (a *API) DeleteUser(ctx context.Context, id int64) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}
	err := a.gateway.Do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
	return mapError(err, msgDeleteUser, true)
}

func (a *API) requireAdmin(ctx context.Context) error {
	session, ok := SessionFromContext(ctx)
	if !ok && a.sessions != nil {
		session = a.sessions.Current(ctx)
	}
	return requireCapability(session, CapabilityAdmin)
}

// mapError turns gateway errors into what a user should see. With verbatim
// set, a backend refusal keeps the backend's message; server failures without
// a message and transport errors get the operation's fallback.
func mapError(err error, fallback string, verbatim bool) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if IsTransportFailure(err) {
			return transportFailure(err, fallback)
		}
		return err
	}

	switch {
	case apiErr.Status == http.StatusUnauthorized:
		return transportFailure(apiErr, msgSessionExpired)
	case apiErr.Status == http.StatusForbidden:
		return forbidden(apiErr)
	case !verbatim:
		return transportFailure(apiErr, fallback)
	case apiErr.Status < http.StatusInternalServerError || apiErr.Message != "":
		return domainRejection(apiErr, fallback)
	default:
		return transportFailure(apiErr, fallback)
	}
}

func forbidden(apiErr *APIError) error {
	clone := ErrForbidden.Clone()
	if clone == nil {
		return ErrForbidden
	}
	clone.Source = apiErr
	return clone.WithMetadata(map[string]any{
		"status": apiErr.Status,
		"path":   apiErr.Path,
	})
}
