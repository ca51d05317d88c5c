package library

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache keys. User loan partitions are keyed per user.
const (
	KeyBooks        = "books"
	KeyMyLoans      = "loans/my"
	KeyOverdueLoans = "loans/overdue"
	KeyActiveLoans  = "loans/active"
	KeyUsers        = "users"

	userLoansPrefix = "loans/user/"
	loansPrefix     = "loans/"
)

// UserLoansKey is the cache key for one user's loan history
func UserLoansKey(userID int64) string {
	return userLoansPrefix + strconv.FormatInt(userID, 10)
}

// LendingBackend is the part of the API the cache reads and writes through
type LendingBackend interface {
	ListBooks(ctx context.Context) ([]Book, error)
	MyLoans(ctx context.Context) ([]Loan, error)
	OverdueLoans(ctx context.Context) ([]Loan, error)
	ActiveLoans(ctx context.Context) ([]Loan, error)
	UserLoans(ctx context.Context, userID int64) ([]Loan, error)
	ListUsers(ctx context.Context) ([]User, error)

	Borrow(ctx context.Context, bookID int64) (Loan, error)
	Return(ctx context.Context, loanID int64) (Loan, error)
	AddBook(ctx context.Context, input BookInput) (Book, error)
	UpdateBook(ctx context.Context, id int64, input BookInput) (Book, error)
	DeleteBook(ctx context.Context, id int64) error
	UpdateUser(ctx context.Context, id int64, update UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// SessionSource hands out the current session snapshot
type SessionSource interface {
	Current(ctx context.Context) Session
}

type cacheEntry struct {
	value any
	fresh bool
}

// Cache holds the last fetched snapshot of each collection. Reads replace a
// collection wholesale; writes never patch it, they mark every collection
// they could affect stale so the next read goes to the backend.
//
// Every key carries a generation that moves on invalidation. A fetch that
// started under an older generation still answers its caller but is not
// kept as fresh.
type Cache struct {
	backend  LendingBackend
	sessions SessionSource
	logger   Logger

	group singleflight.Group

	mu          sync.Mutex
	entries     map[string]*cacheEntry
	generations map[string]uint64
	version     uint64
}

// NewCache builds a cache over backend. Admin reads are checked against the
// session from sessions before any request is made.
func NewCache(backend LendingBackend, sessions SessionSource) *Cache {
	return &Cache{
		backend:     backend,
		sessions:    sessions,
		logger:      defLogger{},
		entries:     map[string]*cacheEntry{},
		generations: map[string]uint64{},
	}
}

func (c *Cache) WithLogger(logger Logger) *Cache {
	c.logger = normalizeLogger(logger)
	return c
}

// ListBooks returns the catalog
func (c *Cache) ListBooks(ctx context.Context) ([]Book, error) {
	v, err := c.read(ctx, KeyBooks, CapabilityAuthenticated, func(ctx context.Context) (any, error) {
		books, err := c.backend.ListBooks(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			if !b.Consistent() {
				c.logger.Warn("Book %d has inconsistent counts: available=%d stock=%d", b.ID, b.AvailableCount, b.StockCount)
			}
		}
		return books, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneSlice(v.([]Book)), nil
}

// ListMyLoans returns the caller's own loan history
func (c *Cache) ListMyLoans(ctx context.Context) ([]Loan, error) {
	return c.readLoans(ctx, KeyMyLoans, CapabilityAuthenticated, c.backend.MyLoans)
}

func (c *Cache) ListOverdueLoans(ctx context.Context) ([]Loan, error) {
	return c.readLoans(ctx, KeyOverdueLoans, CapabilityAdmin, c.backend.OverdueLoans)
}

func (c *Cache) ListActiveLoans(ctx context.Context) ([]Loan, error) {
	return c.readLoans(ctx, KeyActiveLoans, CapabilityAdmin, c.backend.ActiveLoans)
}

func (c *Cache) ListUserLoans(ctx context.Context, userID int64) ([]Loan, error) {
	return c.readLoans(ctx, UserLoansKey(userID), CapabilityAdmin, func(ctx context.Context) ([]Loan, error) {
		return c.backend.UserLoans(ctx, userID)
	})
}

func (c *Cache) ListUsers(ctx context.Context) ([]User, error) {
	v, err := c.read(ctx, KeyUsers, CapabilityAdmin, func(ctx context.Context) (any, error) {
		return c.backend.ListUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	return cloneSlice(v.([]User)), nil
}

func (c *Cache) readLoans(ctx context.Context, key string, capability Capability, fetch func(context.Context) ([]Loan, error)) ([]Loan, error) {
	v, err := c.read(ctx, key, capability, func(ctx context.Context) (any, error) {
		loans, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range loans {
			if !l.Consistent() {
				c.logger.Warn("Loan %d has returned=%t with returnDate=%v", l.ID, l.Returned, l.ReturnDate)
			}
		}
		return loans, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneSlice(v.([]Loan)), nil
}

// Refresh drops key and fetches it again
func (c *Cache) Refresh(ctx context.Context, key string) error {
	c.Invalidate(key)

	var err error
	switch {
	case key == KeyBooks:
		_, err = c.ListBooks(ctx)
	case key == KeyMyLoans:
		_, err = c.ListMyLoans(ctx)
	case key == KeyOverdueLoans:
		_, err = c.ListOverdueLoans(ctx)
	case key == KeyActiveLoans:
		_, err = c.ListActiveLoans(ctx)
	case key == KeyUsers:
		_, err = c.ListUsers(ctx)
	case strings.HasPrefix(key, userLoansPrefix):
		id, perr := strconv.ParseInt(strings.TrimPrefix(key, userLoansPrefix), 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid cache key %q: %w", key, perr)
		}
		_, err = c.ListUserLoans(ctx, id)
	default:
		return fmt.Errorf("unknown cache key %q", key)
	}
	return err
}

// Borrow asks the backend for a copy of bookID. Availability is never
// checked here.
func (c *Cache) Borrow(ctx context.Context, bookID int64) (Loan, error) {
	if err := c.require(ctx, CapabilityAuthenticated); err != nil {
		return Loan{}, err
	}
	loan, err := c.backend.Borrow(ctx, bookID)
	if err != nil {
		return Loan{}, err
	}
	c.invalidateLending()
	return loan, nil
}

func (c *Cache) Return(ctx context.Context, loanID int64) (Loan, error) {
	if err := c.require(ctx, CapabilityAuthenticated); err != nil {
		return Loan{}, err
	}
	loan, err := c.backend.Return(ctx, loanID)
	if err != nil {
		return Loan{}, err
	}
	c.invalidateLending()
	return loan, nil
}

func (c *Cache) AddBook(ctx context.Context, input BookInput) (Book, error) {
	if err := c.require(ctx, CapabilityAdmin); err != nil {
		return Book{}, err
	}
	book, err := c.backend.AddBook(ctx, input)
	if err != nil {
		return Book{}, err
	}
	c.invalidateLending()
	return book, nil
}

func (c *Cache) UpdateBook(ctx context.Context, id int64, input BookInput) (Book, error) {
	if err := c.require(ctx, CapabilityAdmin); err != nil {
		return Book{}, err
	}
	book, err := c.backend.UpdateBook(ctx, id, input)
	if err != nil {
		return Book{}, err
	}
	c.invalidateLending()
	return book, nil
}

func (c *Cache) DeleteBook(ctx context.Context, id int64) error {
	if err := c.require(ctx, CapabilityAdmin); err != nil {
		return err
	}
	if err := c.backend.DeleteBook(ctx, id); err != nil {
		return err
	}
	c.invalidateLending()
	return nil
}

func (c *Cache) UpdateUser(ctx context.Context, id int64, update UserUpdate) (User, error) {
	if err := c.require(ctx, CapabilityAdmin); err != nil {
		return User{}, err
	}
	user, err := c.backend.UpdateUser(ctx, id, update)
	if err != nil {
		return User{}, err
	}
	c.invalidateLending()
	c.Invalidate(KeyUsers)
	return user, nil
}

func (c *Cache) DeleteUser(ctx context.Context, id int64) error {
	if err := c.require(ctx, CapabilityAdmin); err != nil {
		return err
	}
	if err := c.backend.DeleteUser(ctx, id); err != nil {
		return err
	}
	c.invalidateLending()
	c.Invalidate(KeyUsers)
	return nil
}

// Invalidate marks keys stale. Fetches already running for them will not be
// stored.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.invalidateLocked(key)
	}
}

// Fresh reports whether key holds a snapshot that can be served without a
// fetch.
func (c *Cache) Fresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.fresh
}

// Reset drops every entry. It is called when the session is replaced.
func (c *Cache) Reset(version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(version)
}

// Attach resets the cache whenever the store publishes a new session. The
// returned function detaches it.
func (c *Cache) Attach(store *SessionStore) func() {
	return store.Subscribe(func(s Session) {
		c.Reset(s.Version)
	})
}

func (c *Cache) require(ctx context.Context, capability Capability) error {
	session := c.session(ctx)
	c.syncVersion(session.Version)
	return requireCapability(session, capability)
}

func (c *Cache) session(ctx context.Context) Session {
	if s, ok := SessionFromContext(ctx); ok {
		return s
	}
	if c.sessions == nil {
		return Session{}
	}
	return c.sessions.Current(ctx)
}

func (c *Cache) read(ctx context.Context, key string, capability Capability, fetch func(context.Context) (any, error)) (any, error) {
	session := c.session(ctx)
	c.syncVersion(session.Version)
	if err := requireCapability(session, capability); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.fresh {
		value := e.value
		c.mu.Unlock()
		return value, nil
	}
	gen := c.generations[key]
	c.generations[key] = gen
	version := c.version
	c.mu.Unlock()

	flight := fmt.Sprintf("%s#%d#%d", key, version, gen)
	detached := context.WithoutCancel(WithSession(ctx, session))
	value, err, _ := c.group.Do(flight, func() (any, error) {
		value, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		c.store(key, version, gen, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (c *Cache) store(key string, version, gen uint64, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version || c.generations[key] != gen {
		c.logger.Debug("Dropping superseded fetch of %s", key)
		return
	}
	c.entries[key] = &cacheEntry{value: value, fresh: true}
}

func (c *Cache) invalidateLending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(KeyBooks)
	for key := range c.generations {
		if strings.HasPrefix(key, loansPrefix) {
			c.invalidateLocked(key)
		}
	}
}

func (c *Cache) invalidateLocked(key string) {
	c.generations[key]++
	if e, ok := c.entries[key]; ok {
		e.fresh = false
	}
}

func (c *Cache) syncVersion(version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		c.resetLocked(version)
	}
}

func (c *Cache) resetLocked(version uint64) {
	for key := range c.generations {
		c.generations[key]++
	}
	c.entries = map[string]*cacheEntry{}
	c.version = version
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
