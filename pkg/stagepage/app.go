package stagepage

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/stagepage/stagepage/pkg/editor"
	"github.com/stagepage/stagepage/pkg/store"
	"github.com/stagepage/stagepage/pkg/store/gormstore"
	"github.com/stagepage/stagepage/pkg/store/surrealdb"
)

// Storage drivers
const (
	DriverSQLite    = gormstore.DriverSQLite
	DriverPostgres  = gormstore.DriverPostgres
	DriverSurrealDB = "surrealdb"
)

// Config holds the runtime configuration of the service.
type Config struct {
	Addr      string
	Driver    string
	DSN       string
	SurrealDB surrealdb.Config

	// ReadOnly is the initial read-only state; it can be toggled at runtime
	// through the admin API.
	ReadOnly bool
	SiteHost string

	LogLevel   string
	LogFile    string
	LogConsole bool

	MaxSessions int
	SessionTTL  time.Duration
	SweepEvery  time.Duration
}

// App wires the store, the editor sessions and the HTTP handlers.
type App struct {
	store    *store.ReadOnlyStore
	sessions *editor.Manager
	config   *Config
	log      zerolog.Logger
	readOnly atomic.Bool

	// stopping is cancelled when the server shuts down, ending the
	// websocket streams http.Server.Shutdown does not track.
	stopping context.Context
	stop     context.CancelFunc
}

// New opens the configured store and builds the application.
func New(ctx context.Context, config *Config, log zerolog.Logger) (*App, error) {
	var appStore store.Store
	switch config.Driver {
	case DriverSurrealDB:
		st, err := surrealdb.Open(ctx, config.SurrealDB, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("url", config.SurrealDB.URL).Msg("Connected to SurrealDB")
		appStore = st
	case DriverSQLite, DriverPostgres, "":
		st, err := gormstore.Open(config.Driver, config.DSN, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", config.Driver).Msg("Connected to database")
		appStore = st
	default:
		return nil, fmt.Errorf("unsupported driver %q", config.Driver)
	}
	return NewWithStore(appStore, config, log), nil
}

// NewWithStore builds the application over an open store.
func NewWithStore(st store.Store, config *Config, log zerolog.Logger) *App {
	app := &App{config: config, log: log}
	app.stopping, app.stop = context.WithCancel(context.Background())
	app.readOnly.Store(config.ReadOnly)
	app.store = store.NewReadOnlyStore(st, app.IsReadOnly)
	app.sessions = editor.NewManager(app.store, editor.ManagerOptions{
		MaxSessions: config.MaxSessions,
		IdleTTL:     config.SessionTTL,
	}, log)
	return app
}

// Close closes the editor sessions and the store.
func (a *App) Close() error {
	a.stop()
	a.sessions.CloseAll()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *App) Store() store.Store {
	return a.store
}

func (a *App) Sessions() *editor.Manager {
	return a.sessions
}

func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("readOnly", readOnly).Msg("Application read-only mode changed")
}

func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
