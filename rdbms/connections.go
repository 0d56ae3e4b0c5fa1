package rdbms

import (
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/rdbms/shared"
)

// OpenDbConnection opens a database connection using the supplied ConnectionDetails struct in c.
func OpenDbConnection(log logger.Logger, c shared.ConnectionDetails) (db shared.Connector, err error) {
	log.Debug("opening connection type ", c.Type, " with logicalName ", c.LogicalName) // don't log password details in c.Data!
	switch c.Type {
	case constants.ConnectionTypeSnowflake:
		db, err = newSnowflakeConnection(log, &c)
	case constants.ConnectionTypeSqlServer:
		db, err = newConnectionWithDsn(log, shared.GetDsnConnectionDetails(&c))
	default:
		err = fmt.Errorf("unsupported database type, %q", c.Type)
	}
	return
}

func newConnectionWithDsn(log logger.Logger, d *shared.DsnConnectionDetails) (shared.Connector, error) {
	log.Info("Opening database connection: ", d)
	u, err := d.Parse()
	if err != nil { // if the DSN could not be parsed...
		return nil, fmt.Errorf("error parsing DSN %v: %w", d, err)
	}
	conn := &shared.HpConnection{DbType: u.Driver}
	conn.DbSql, err = sql.Open(u.Driver, u.DSN)
	if err != nil {
		return nil, err
	}
	// Test the connection.
	if err = conn.DbSql.Ping(); err != nil {
		_ = conn.Close()
		return nil, shared.NewQueryError("ping", err)
	}
	log.Info("Successful connection to: ", d)
	return conn, nil
}
