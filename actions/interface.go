package actions

import (
	"context"

	"github.com/relloyd/freshpipe/blob"
	"github.com/relloyd/freshpipe/config"
	"github.com/relloyd/freshpipe/freshservice"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/rdbms"
	"github.com/relloyd/freshpipe/rdbms/shared"
)

// Fetcher is implemented by *freshservice.Client.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, recordPath string) (*freshservice.Result, error)
}

// Deps are the collaborators a run uses to reach the outside world.
type Deps struct {
	LoadConnectionParams func(fileName string) (map[string]string, error)
	LoadAPIKey           func(fileName string) (string, error)
	OpenDbConnection     func(log logger.Logger, c shared.ConnectionDetails) (shared.Connector, error)
	NewFetcher           func(log logger.Logger, cfg freshservice.Config) Fetcher
	NewPutter            func(s config.Sink) (blob.Putter, error)
}

// DefaultDeps wires the real credential files, warehouse, Freshservice API and blob store.
func DefaultDeps() Deps {
	return Deps{
		LoadConnectionParams: config.LoadConnectionParams,
		LoadAPIKey:           config.LoadAPIKey,
		OpenDbConnection:     rdbms.OpenDbConnection,
		NewFetcher: func(log logger.Logger, cfg freshservice.Config) Fetcher {
			return freshservice.NewClient(log, cfg)
		},
		NewPutter: blob.NewPutter,
	}
}
