package shared

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relloyd/freshpipe/constants"
	"github.com/xo/dburl"
)

// ConnectionDetails holds credentials for a logical database connection.
// Data is the key/value map read from the warehouse credentials file.
type ConnectionDetails struct {
	Type        string            `json:"type" errorTxt:"database type" mandatory:"yes" yaml:"type"`
	LogicalName string            `json:"logicalName" errorTxt:"database logical name" mandatory:"yes" yaml:"logicalName"`
	Data        map[string]string `json:"data" yaml:"data"`
}

// String redacts passwords and pretty-prints the contents of ConnectionDetails.
func (c ConnectionDetails) String() string {
	x := make([]string, 0, len(c.Data)+1)
	x = append(x, fmt.Sprintf("  type = %v", c.Type))
	if v, ok := c.Data[DefaultDsnConnectionKeyNames.Dsn]; ok { // if there's a DSN...
		if u, err := dburl.Parse(v); err == nil {
			v = u.Redacted()
		} else {
			v = "(unparsable DSN)"
		}
		x = append(x, fmt.Sprintf("  dsn = %v", v))
		return strings.Join(x, "\n")
	}
	keys := make([]string, 0, len(c.Data))
	for k := range c.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.Data[k]
		if strings.Contains(strings.ToLower(k), "password") || strings.Contains(strings.ToLower(k), "token") {
			v = "xxxxx"
		}
		x = append(x, fmt.Sprintf("  %v = %v", k, v))
	}
	return strings.Join(x, "\n")
}

// MustGetWatermarkSql returns the aggregate query that finds the latest ticket change in tableName.
// Snowflake supplies defaultValue itself while SQL Server returns NULL for an empty table and the
// caller applies the default.
func (c ConnectionDetails) MustGetWatermarkSql(tableName, updatedCol, createdCol, defaultValue string) string {
	latest := fmt.Sprintf("MAX(COALESCE(%v, %v))", updatedCol, createdCol)
	switch c.Type {
	case constants.ConnectionTypeSnowflake:
		return fmt.Sprintf("SELECT IFNULL(%v, '%v') AS X FROM %v", latest, defaultValue, tableName)
	case constants.ConnectionTypeSqlServer:
		return fmt.Sprintf("SELECT %v AS X FROM %v", latest, tableName)
	default:
		panic(fmt.Sprintf("unsupported database type %q in call to get SQL for watermark", c.Type))
	}
}
