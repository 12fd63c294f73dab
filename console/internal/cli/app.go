package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"vpn-console/console/internal/backend"
	"vpn-console/console/internal/config"
	"vpn-console/console/internal/logging"
	"vpn-console/console/internal/session"
	"vpn-console/console/internal/storage"
)

// App is what every command runs against: one gateway, one session store.
type App struct {
	Config  config.Config
	Log     *slog.Logger
	Client  *backend.Client
	Session *session.Store
	Out     io.Writer
	Format  string

	closers []func() error
}

// Options override pieces of the App, mostly for tests.
type Options struct {
	HTTPClient *http.Client
	Slot       storage.Slot
	Logger     *slog.Logger
}

// NewApp wires the gateway, the session slot and the store from cfg. The
// session is not initialized yet.
func NewApp(cfg config.Config, out io.Writer, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logging.New(cfg.Logging)
	}

	app := &App{Config: cfg, Log: log, Out: out, Format: formatTable}

	slot := opts.Slot
	if slot == nil {
		var err error
		slot, err = app.openSlot()
		if err != nil {
			return nil, err
		}
	}

	tokens := backend.NewTokenHolder("")
	clientOpts := []backend.Option{
		backend.WithTokenHolder(tokens),
		backend.WithLogger(logging.Resty{Logger: log}),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, backend.WithHTTPClient(opts.HTTPClient))
	}
	app.Client = backend.New(cfg.APIURL, clientOpts...)
	app.Session = session.New(app.Client, tokens, slot, log)
	return app, nil
}

func (a *App) openSlot() (storage.Slot, error) {
	switch a.Config.Session.Backend {
	case config.SessionMemory:
		return storage.NewMemorySlot(), nil
	case config.SessionSQLite:
		db, err := storage.OpenSQLite(a.Config.Session.Path)
		if err != nil {
			return nil, fmt.Errorf("open session db: %w", err)
		}
		slot, err := storage.NewGormSlot(db)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, slot.Close)
		return slot, nil
	default:
		return storage.NewFileSlot(a.Config.Session.Path), nil
	}
}

// Initialize resolves the persisted session. Commands must not make any
// guard decision before it returns.
func (a *App) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Timeout)
	defer cancel()
	return a.Session.Initialize(ctx)
}

// Call bounds one gateway call by the configured timeout.
func (a *App) Call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.Config.Timeout)
}

func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
