// Package cli implements libctl, the command line front end of the library
// client. Each command belongs to a screen and the guard decides, before it
// runs, whether the current session may use it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	library "github.com/goliatone/go-library-client"
	"github.com/goliatone/go-library-client/activitymap"
	"github.com/goliatone/go-library-client/config"
	"github.com/goliatone/go-library-client/repository"
	"github.com/spf13/cobra"
)

// Command annotations read by the guard
const (
	annotationScreen     = "library.screen"
	annotationAffordance = "library.affordance"
)

// App holds everything a command needs once the configuration is loaded
type App struct {
	Config *config.Config
	Client *library.Client

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	storage  library.Storage
	closers  []func() error
	prompter Prompter
	ready    bool
}

// Option customizes an App
type Option func(*App)

// WithIO sets the standard streams
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
		a.errOut = errOut
	}
}

// WithStorage replaces the configured session storage
func WithStorage(storage library.Storage) Option {
	return func(a *App) {
		a.storage = storage
	}
}

// WithPrompter replaces the terminal prompter
func WithPrompter(p Prompter) Option {
	return func(a *App) {
		a.prompter = p
	}
}

// WithClock sets the time used for overdue calculations
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

func newApp(opts ...Option) *App {
	a := &App{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.prompter == nil {
		a.prompter = NewTerminalPrompter(a.in, a.errOut)
	}
	return a
}

// setup loads the configuration and wires the client. It runs once.
func (a *App) setup(cmd *cobra.Command) error {
	if a.ready {
		return nil
	}

	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")

	cfg, err := config.Load(config.LoadOptions{
		File:     path,
		EnvFile:  envFile,
		Flags:    flags,
		FlagKeys: globalFlagKeys,
	})
	if err != nil {
		return err
	}
	a.Config = cfg

	var logger library.Logger = library.NopLogger{}
	var sink library.ActivitySink
	if cfg.Verbose {
		logger = newWriterLogger(a.errOut)
		sink = activitymap.NewJSONSink(a.errOut, activitymap.WithDefaultChannel("libctl"))
	}

	storage, err := a.openStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	clientCfg := library.ClientConfig{
		Gateway:      cfg.Gateway(),
		Storage:      storage,
		Logger:       logger,
		ActivitySink: sink,
		CheckExpiry:  cfg.Session.CheckExpiry,
		ExpiryLeeway: cfg.Session.ExpiryLeeway,
	}

	if cfg.Session.JWKSURL != "" {
		jwks, err := library.NewJWKSValidator(context.Background(), cfg.Session.JWKSURL, cfg.Session.JWKSRefresh, logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			jwks.Close()
			return nil
		})
		clientCfg.Validator = jwks
	}

	a.Client = library.NewClient(clientCfg)
	a.closers = append(a.closers, func() error {
		a.Client.Close()
		return nil
	})
	a.ready = true
	return nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (library.Storage, error) {
	if a.storage != nil {
		return a.storage, nil
	}

	if cfg.Storage.Driver == config.StorageMemory {
		a.storage = library.NewMemoryStorage()
		return a.storage, nil
	}

	if dir := filepath.Dir(cfg.Storage.DSN); dir != "" && !strings.Contains(cfg.Storage.DSN, ":memory:") {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	sqlStorage, err := repository.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open session storage: %w", err)
	}
	a.closers = append(a.closers, sqlStorage.Close)
	a.storage = sqlStorage
	return sqlStorage, nil
}

// Close releases the storage and background validators
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// session is the current snapshot
func (a *App) session(ctx context.Context) library.Session {
	return a.Client.Sessions.Current(ctx)
}

// authorize resolves the command's screen and affordance against the
// session. Commands without a screen are open to everyone.
func (a *App) authorize(cmd *cobra.Command) error {
	session := a.session(cmd.Context())

	if screen, ok := cmd.Annotations[annotationScreen]; ok {
		decision := a.Client.Guard.Resolve(session, screen)
		switch {
		case decision.NotFound:
			return fmt.Errorf("unknown screen %s", screen)
		case decision.Redirect == library.ScreenLogin:
			return errNotLoggedIn
		case !decision.Allowed:
			return library.ErrForbidden
		}
	}

	if affordance, ok := cmd.Annotations[annotationAffordance]; ok {
		if !a.Client.Guard.Visible(session, library.Affordance(affordance)) {
			return library.ErrForbidden
		}
	}

	cmd.SetContext(library.WithSession(cmd.Context(), session))
	return nil
}

// hideUnavailable hides every command the session may not use, so help
// output never advertises admin actions to regular users.
func (a *App) hideUnavailable(root *cobra.Command, session library.Session) {
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		for _, child := range cmd.Commands() {
			if affordance, ok := child.Annotations[annotationAffordance]; ok {
				child.Hidden = !a.Client.Guard.Visible(session, library.Affordance(affordance))
			}
			if screen, ok := child.Annotations[annotationScreen]; ok && screen == library.ScreenUsers {
				child.Hidden = !library.CanAccess(session, library.CapabilityAdmin)
			}
			walk(child)
		}
	}
	walk(root)
}

var errNotLoggedIn = errors.New("please log in first: libctl login --email <email>")
