package rdbms

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/helper"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/rdbms/shared"
	sf "github.com/snowflakedb/gosnowflake"
)

// SnowflakeConnectionDetails mirrors the connection parameters accepted by Snowflake client sessions.
// Keys in the credentials file are matched case-insensitively.
type SnowflakeConnectionDetails struct {
	Account   string `mapstructure:"account" errorTxt:"Snowflake account" mandatory:"yes"`
	User      string `mapstructure:"user" errorTxt:"Snowflake user" mandatory:"yes"`
	Password  string `mapstructure:"password" errorTxt:"Snowflake password" mandatory:"yes"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
	Warehouse string `mapstructure:"warehouse"`
	Role      string `mapstructure:"role"`
	Region    string `mapstructure:"region"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Protocol  string `mapstructure:"protocol"`
	Dsn       string `mapstructure:"dsn"`
}

func (d SnowflakeConnectionDetails) String() string {
	return fmt.Sprintf("%v:%v@%v/%v?schema=%v&warehouse=%v&role=%v",
		d.User,
		"xxxxxxx",
		d.Account,
		d.Database,
		d.Schema,
		d.Warehouse,
		d.Role,
	)
}

// GetSnowflakeConnectionDetails decodes the generic credentials map in c.
func GetSnowflakeConnectionDetails(c *shared.ConnectionDetails) (*SnowflakeConnectionDetails, error) {
	d := &SnowflakeConnectionDetails{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           d,
	})
	if err != nil {
		return nil, err
	}
	if err = dec.Decode(c.Data); err != nil {
		return nil, errors.Wrap(err, "error decoding Snowflake connection parameters")
	}
	if d.Dsn != "" { // if a full DSN was supplied...
		return d, nil
	}
	if err = helper.ValidateStructIsPopulated(d); err != nil {
		return nil, err
	}
	return d, nil
}

// SnowflakeGetDSN constructs a DSN based on SnowflakeConnectionDetails.
// An explicit Dsn wins with any 'snowflake://' prefix removed.
func SnowflakeGetDSN(c *SnowflakeConnectionDetails) (string, error) {
	if c.Dsn != "" {
		return strings.TrimPrefix(c.Dsn, "snowflake://"), nil
	}
	cfg := &sf.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Role:      c.Role,
		Region:    c.Region,
		Host:      c.Host,
		Port:      c.Port,
		Protocol:  c.Protocol,
	}
	return sf.DSN(cfg)
}

// newSnowflakeConnection opens the Snowflake database connection specified in c.
func newSnowflakeConnection(log logger.Logger, c *shared.ConnectionDetails) (shared.Connector, error) {
	d, err := GetSnowflakeConnectionDetails(c)
	if err != nil {
		return nil, err
	}
	dsn, err := SnowflakeGetDSN(d)
	if err != nil {
		return nil, errors.Wrap(err, "error building Snowflake DSN")
	}
	log.Info("Opening Snowflake connection: ", d)
	conn := &shared.HpConnection{DbType: constants.ConnectionTypeSnowflake}
	conn.DbSql, err = sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	if err = conn.DbSql.Ping(); err != nil {
		_ = conn.Close()
		return nil, shared.NewQueryError("ping", err)
	}
	log.Info("Successful database connection to Snowflake.")
	return conn, nil
}
