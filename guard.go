package library

import (
	"context"
	"strings"
)

// Capability is what a screen or action requires of the session
type Capability string

const (
	CapabilityNone          Capability = ""
	CapabilityAuthenticated Capability = "AUTHENTICATED"
	CapabilityAdmin         Capability = "ADMIN"
)

// CanAccess is the single authorization predicate. The admin check reads
// the normalized role so an unknown role never grants anything.
func CanAccess(session Session, capability Capability) bool {
	switch capability {
	case CapabilityNone:
		return true
	case CapabilityAuthenticated:
		return session.Authenticated()
	case CapabilityAdmin:
		return session.IsAdmin()
	default:
		return false
	}
}

// RequireCapability returns nil when the session in ctx satisfies
// capability, ErrUnauthenticated when there is no session and ErrForbidden
// otherwise.
func RequireCapability(ctx context.Context, capability Capability) error {
	session, _ := SessionFromContext(ctx)
	return requireCapability(session, capability)
}

func requireCapability(session Session, capability Capability) error {
	if CanAccess(session, capability) {
		return nil
	}
	if !session.Authenticated() {
		return ErrUnauthenticated
	}
	clone := ErrForbidden.Clone()
	if clone == nil {
		return ErrForbidden
	}
	return clone.WithMetadata(map[string]any{
		"required": string(capability),
		"role":     string(session.Role()),
	})
}

// Screen paths
const (
	ScreenRoot     = "/"
	ScreenLogin    = "/login"
	ScreenRegister = "/register"
	ScreenBooks    = "/books"
	ScreenLoans    = "/loans"
	ScreenUsers    = "/users"
)

// Screen is a named route and the capability it needs
type Screen struct {
	Path       string
	Capability Capability
}

var defaultScreens = []Screen{
	{Path: ScreenLogin, Capability: CapabilityNone},
	{Path: ScreenRegister, Capability: CapabilityNone},
	{Path: ScreenBooks, Capability: CapabilityAuthenticated},
	{Path: ScreenLoans, Capability: CapabilityAuthenticated},
	{Path: ScreenUsers, Capability: CapabilityAdmin},
}

// Decision is the outcome of resolving a route. Exactly one of Allowed,
// Redirect and NotFound is meaningful.
type Decision struct {
	Path     string
	Allowed  bool
	Redirect string
	NotFound bool
}

// Affordance is a UI element gated by role. A hidden affordance is not
// rendered at all.
type Affordance string

const (
	AffordanceAddBook          Affordance = "book.add"
	AffordanceEditBook         Affordance = "book.edit"
	AffordanceDeleteBook       Affordance = "book.delete"
	AffordanceBorrowBook       Affordance = "loan.borrow"
	AffordanceReturnBook       Affordance = "loan.return"
	AffordanceManageUsers      Affordance = "users.manage"
	AffordanceViewOverdueLoans Affordance = "loans.overdue"
	AffordanceViewActiveLoans  Affordance = "loans.active"
	AffordanceViewUserLoans    Affordance = "loans.user"
)

var affordanceCapabilities = map[Affordance]Capability{
	AffordanceAddBook:          CapabilityAdmin,
	AffordanceEditBook:         CapabilityAdmin,
	AffordanceDeleteBook:       CapabilityAdmin,
	AffordanceBorrowBook:       CapabilityAuthenticated,
	AffordanceReturnBook:       CapabilityAuthenticated,
	AffordanceManageUsers:      CapabilityAdmin,
	AffordanceViewOverdueLoans: CapabilityAdmin,
	AffordanceViewActiveLoans:  CapabilityAdmin,
	AffordanceViewUserLoans:    CapabilityAdmin,
}

// Guard resolves routes and affordances against a session snapshot
type Guard struct {
	screens map[string]Screen
	logger  Logger
}

// NewGuard returns a guard over the default screen table
func NewGuard() *Guard {
	g := &Guard{
		screens: map[string]Screen{},
		logger:  defLogger{},
	}
	for _, screen := range defaultScreens {
		g.screens[screen.Path] = screen
	}
	return g
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	g.logger = normalizeLogger(logger)
	return g
}

// WithScreen registers or replaces a screen
func (g *Guard) WithScreen(screen Screen) *Guard {
	g.screens[normalizePath(screen.Path)] = Screen{
		Path:       normalizePath(screen.Path),
		Capability: screen.Capability,
	}
	return g
}

// Screens returns the registered screens
func (g *Guard) Screens() []Screen {
	out := make([]Screen, 0, len(g.screens))
	for _, screen := range defaultScreens {
		if s, ok := g.screens[screen.Path]; ok {
			out = append(out, s)
		}
	}
	for path, s := range g.screens {
		if !isDefaultScreen(path) {
			out = append(out, s)
		}
	}
	return out
}

// Resolve decides what happens when session navigates to path
func (g *Guard) Resolve(session Session, path string) Decision {
	path = normalizePath(path)

	if path == ScreenRoot {
		if session.Authenticated() {
			return Decision{Path: path, Redirect: ScreenBooks}
		}
		return Decision{Path: path, Redirect: ScreenLogin}
	}

	screen, ok := g.screens[path]
	if !ok {
		return Decision{Path: path, NotFound: true}
	}

	if CanAccess(session, screen.Capability) {
		return Decision{Path: path, Allowed: true}
	}

	if !session.Authenticated() {
		g.logger.Debug("Guard redirect %s -> %s: no session", path, ScreenLogin)
		return Decision{Path: path, Redirect: ScreenLogin}
	}

	g.logger.Debug("Guard redirect %s -> %s: role %s", path, ScreenBooks, session.Role())
	return Decision{Path: path, Redirect: ScreenBooks}
}

// Visible reports whether affordance should be rendered for session
func (g *Guard) Visible(session Session, affordance Affordance) bool {
	capability, ok := affordanceCapabilities[affordance]
	if !ok {
		return false
	}
	return CanAccess(session, capability)
}

// VisibleAffordances lists every affordance session may see
func (g *Guard) VisibleAffordances(session Session) []Affordance {
	var out []Affordance
	for _, a := range []Affordance{
		AffordanceAddBook,
		AffordanceEditBook,
		AffordanceDeleteBook,
		AffordanceBorrowBook,
		AffordanceReturnBook,
		AffordanceManageUsers,
		AffordanceViewOverdueLoans,
		AffordanceViewActiveLoans,
		AffordanceViewUserLoans,
	} {
		if g.Visible(session, a) {
			out = append(out, a)
		}
	}
	return out
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ScreenRoot
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = ScreenRoot
		}
	}
	return path
}

func isDefaultScreen(path string) bool {
	for _, s := range defaultScreens {
		if s.Path == path {
			return true
		}
	}
	return false
}
