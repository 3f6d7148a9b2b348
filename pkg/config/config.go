// Package config loads application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"time"
)

type DB struct {
	Url string `envconfig:"URL"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"ledgersync:cursor:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// Sync configures replication against the remote changefeed.
type Sync struct {
	UserID      string        `envconfig:"USER_ID" required:"true"`
	RemoteURL   string        `envconfig:"REMOTE_URL" default:"http://localhost:3000"`
	AuthToken   string        `envconfig:"AUTH_TOKEN"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	// Quiet is the debounce window between a local edit and the push it
	// triggers.
	Quiet time.Duration `envconfig:"QUIET" default:"2s"`
	// CursorBackend selects where replication cursors persist: "db" keeps
	// them next to the synced tables, "redis" uses the cache tier.
	CursorBackend string `envconfig:"CURSOR_BACKEND" default:"db"`
}

// Ledger configures local bookkeeping defaults.
type Ledger struct {
	// DefaultAccountID is the account derived trip cashflow rows are
	// booked against. Empty withholds those rows until an account exists.
	DefaultAccountID string `envconfig:"DEFAULT_ACCOUNT_ID"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ledgersync]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env    string  `envconfig:"APP_ENV" default:"development"`
	Server *Server `envconfig:"SERVER"`
	Log    *Log    `envconfig:"LOG"`
	DB     *DB     `envconfig:"DATABASE"`
	Redis  *Redis  `envconfig:"REDIS"`
	Sync   *Sync   `envconfig:"SYNC"`
	Ledger *Ledger `envconfig:"LEDGER"`
}
