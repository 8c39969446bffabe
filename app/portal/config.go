package portal

import (
	"time"

	"github.com/dmitrymomot/evservice/core/authapi"
	"github.com/dmitrymomot/evservice/core/cookie"
	"github.com/dmitrymomot/evservice/core/server"
	"github.com/dmitrymomot/evservice/integration/database/pg"
	"github.com/dmitrymomot/evservice/integration/database/redis"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	Server  server.Config
	Backend authapi.Config
	Cookie  cookie.Config
	Storage StorageConfig
	Payment PaymentConfig
	Redis   redis.Config
	DB      pg.Config

	AppName  string `env:"APP_NAME" envDefault:"evservice"`
	Env      string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// StorageConfig selects where client state lives. Durable state holds the
// session and booking history; short-lived state holds entries with a TTL.
type StorageConfig struct {
	Durable    string `env:"STORAGE_DURABLE" envDefault:"memory" validate:"oneof=memory file redis postgres"`
	ShortLived string `env:"STORAGE_SHORT_LIVED" envDefault:"memory" validate:"oneof=memory redis postgres"`
	FilePath   string `env:"STORAGE_FILE_PATH" envDefault:"data/clientstore.json"`
	// SweepInterval is how often expired PostgreSQL rows are removed.
	SweepInterval time.Duration `env:"STORAGE_SWEEP_INTERVAL" envDefault:"5m"`
}

type PaymentConfig struct {
	// ReturnURL is sent to the backend as the gateway's return address. Empty
	// leaves the backend default in place.
	ReturnURL     string        `env:"PAYMENT_RETURN_URL" validate:"omitempty,url"`
	RedirectDelay time.Duration `env:"PAYMENT_REDIRECT_DELAY" envDefault:"3s"`
	MarkerTTL     time.Duration `env:"PAYMENT_MARKER_TTL" envDefault:"30m"`
	PendingTTL    time.Duration `env:"PAYMENT_PENDING_TTL" envDefault:"30m"`
}
