package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	library "github.com/goliatone/go-library-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	line     string
	password string
}

func (p fakePrompter) Line(string) (string, error)     { return p.line, nil }
func (p fakePrompter) Password(string) (string, error) { return p.password, nil }

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

type fakeBackend struct {
	mu         sync.Mutex
	hits       map[string]int
	token      string
	srv        *httptest.Server
	userUpdate *library.UserUpdate
}

func newFakeBackend(t *testing.T, token string) *fakeBackend {
	b := &fakeBackend{hits: map[string]int{}, token: token}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"jwtToken": b.token})
	})
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]library.Book{
			{ID: 1, Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", Category: "SF", PublicationYear: 1965, StockCount: 2, AvailableCount: 0},
			{ID: 2, Title: "Emma", Author: "Jane Austen", ISBN: "9780141439587", Category: "Classic", PublicationYear: 1815, StockCount: 1, AvailableCount: 1},
		})
	})
	mux.HandleFunc("POST /api/books", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":3,"title":"New"}`))
	})
	mux.HandleFunc("POST /api/loans/borrow/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Kitap stokta yok."}`))
	})
	mux.HandleFunc("GET /api/loans/history/my", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":10,"book":{"id":1,"title":"Dune","author":"Frank Herbert"},"borrowDate":"2026-01-01","dueDate":"2026-01-15","returnDate":null,"returned":false},
			{"id":11,"book":{"id":2,"title":"Emma","author":"Jane Austen"},"borrowDate":"2025-12-01","dueDate":"2025-12-15","returnDate":"2025-12-10","returned":true}
		]`))
	})
	mux.HandleFunc("GET /api/loans/overdue", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /api/books/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "herbert" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_ = json.NewEncoder(w).Encode([]library.Book{
			{ID: 1, Title: "Dune", Author: "Frank Herbert", StockCount: 2, AvailableCount: 0},
		})
	})
	mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":2,"email":"bob@example.com","firstName":"Bob","lastName":"Stone","role":"USER"}]`))
	})
	mux.HandleFunc("PUT /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		var update library.UserUpdate
		_ = json.NewDecoder(r.Body).Decode(&update)
		b.mu.Lock()
		b.userUpdate = &update
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(library.User{ID: 2, Email: update.Email, Role: update.Role})
	})

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

type harness struct {
	t       *testing.T
	storage *library.MemoryStorage
	backend *fakeBackend
	now     time.Time
}

func newHarness(t *testing.T, claims map[string]any) *harness {
	backend := newFakeBackend(t, makeToken(t, claims))
	t.Setenv("LIBRARY_MODE", library.ModeProduction)
	t.Setenv("LIBRARY_PRODUCTION_ORIGIN", backend.srv.URL+"/api")
	t.Setenv("LIBRARY_STORAGE__DRIVER", "memory")
	return &harness{
		t:       t,
		storage: library.NewMemoryStorage(),
		backend: backend,
		now:     time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC),
	}
}

func (h *harness) run(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	args = append([]string{"--config=", "--env-file="}, args...)
	code := Execute(context.Background(), args,
		WithIO(strings.NewReader(""), &out, &errOut),
		WithStorage(h.storage),
		WithPrompter(fakePrompter{line: "ada@example.com", password: "secret"}),
		WithClock(func() time.Time { return h.now }),
	)
	return code, out.String(), errOut.String()
}

func userClaims() map[string]any {
	return map[string]any{"userId": 5, "firstName": "Ada", "lastName": "Lovelace", "role": "ROLE_USER"}
}

func adminClaims() map[string]any {
	return map[string]any{"userId": 1, "firstName": "Grace", "roles": []string{"ROLE_ADMIN"}}
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t, userClaims())

	code, out, errOut := h.run("login", "--email", "ada@example.com")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Welcome, Ada!")

	code, out, _ = h.run("whoami")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Ada Lovelace <ada@example.com>")
	assert.Contains(t, out, "role: USER")
	assert.Contains(t, out, "id: 5")

	code, out, _ = h.run("logout")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Logged out.")

	code, out, _ = h.run("whoami")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Not logged in.")
}

func TestProtectedCommandRequiresLogin(t *testing.T) {
	h := newHarness(t, userClaims())

	code, _, errOut := h.run("books", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "please log in first")
	assert.Zero(t, h.backend.count("GET /api/books"))
}

func TestBooksListFilters(t *testing.T) {
	h := newHarness(t, userClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, out, _ := h.run("books", "list", "--available")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Emma")
	assert.NotContains(t, out, "Dune")

	code, out, _ = h.run("books", "list", "--search", "herbert")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Dune")
	assert.NotContains(t, out, "Emma")
}

func TestNonAdminCannotRunAdminCommands(t *testing.T) {
	h := newHarness(t, userClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, _, errOut = h.run("books", "add", "--title", "X", "--author", "Y", "--isbn", "1234567890", "--category", "Z", "--year", "2000")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "insufficient permissions")
	assert.Zero(t, h.backend.count("POST /api/books"))

	code, _, _ = h.run("loans", "overdue")
	assert.Equal(t, 1, code)
	assert.Zero(t, h.backend.count("GET /api/loans/overdue"))

	code, _, _ = h.run("users", "list")
	assert.Equal(t, 1, code)
	assert.Zero(t, h.backend.count("GET /api/users"))
}

func TestAdminCanRunAdminCommands(t *testing.T) {
	h := newHarness(t, adminClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := h.run("books", "add", "--title", "New", "--author", "Y", "--isbn", "1234567890", "--category", "Z", "--year", "2000")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Added book 3")
	assert.Equal(t, 1, h.backend.count("POST /api/books"))

	code, out, _ = h.run("loans", "overdue")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No loans.")
}

func TestHelpHidesAdminCommands(t *testing.T) {
	h := newHarness(t, userClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, out, _ := h.run("books", "--help")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "list")
	assert.NotContains(t, out, "Add a book")
	assert.NotContains(t, out, "Delete a book")

	code, out, _ = h.run("--help")
	require.Equal(t, 0, code)
	assert.NotContains(t, out, "Manage accounts")
}

func TestBorrowRejectionIsShownVerbatim(t *testing.T) {
	h := newHarness(t, userClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, _, errOut = h.run("loans", "borrow", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Kitap stokta yok.")
}

func TestMyLoansShowsStatsAndOverdue(t *testing.T) {
	h := newHarness(t, userClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := h.run("loans", "my")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Active: 1  Overdue: 1  Total: 2")
	assert.Contains(t, out, "OVERDUE 5 days")
	assert.Contains(t, out, "returned 2025-12-10")

	code, out, _ = h.run("loans", "my", "--search", "austen")
	require.Equal(t, 0, code)
	assert.NotContains(t, out, "Dune")
}

func TestLoginFailureIsGeneric(t *testing.T) {
	h := newHarness(t, userClaims())
	h.backend.token = "not-a-jwt"

	code, _, errOut := h.run("login")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "login failed, please check your credentials")
	assert.Zero(t, h.storage.Len())
}

func TestBooksSearchUsesBackend(t *testing.T) {
	h := newHarness(t, userClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := h.run("books", "search", "herbert")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Dune")
	assert.NotContains(t, out, "Emma")
	assert.Equal(t, 1, h.backend.count("GET /api/books/search"))
	assert.Zero(t, h.backend.count("GET /api/books"))
}

func TestListRefreshFetchesOnce(t *testing.T) {
	h := newHarness(t, userClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := h.run("books", "list", "--refresh")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Dune")
	assert.Equal(t, 1, h.backend.count("GET /api/books"))

	code, _, errOut = h.run("loans", "my", "--refresh")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, 1, h.backend.count("GET /api/loans/history/my"))
}

func TestUsersUpdateRole(t *testing.T) {
	h := newHarness(t, adminClaims())
	code, _, errOut := h.run("login")
	require.Equal(t, 0, code, errOut)

	code, _, errOut = h.run("users", "update", "2", "--role", "boss")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid role")
	assert.Zero(t, h.backend.count("GET /api/users"))

	code, out, errOut := h.run("users", "update", "2", "--role", "admin")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Updated user 2: bob@example.com (ADMIN)")

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	require.NotNil(t, h.backend.userUpdate)
	assert.Equal(t, library.RoleAdmin, h.backend.userUpdate.Role)
	assert.Equal(t, "Bob", h.backend.userUpdate.FirstName)
}
