package pg

import "errors"

var (
	ErrEmptyConnString     = errors.New("empty postgres connection string")
	ErrFailedToParseConfig = errors.New("failed to parse postgres connection string")
	ErrPostgresNotReady    = errors.New("postgres did not become ready within the given time period")
	ErrHealthcheckFailed   = errors.New("postgres healthcheck failed")
	ErrMigrationFailed     = errors.New("postgres migration failed")
)
