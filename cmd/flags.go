package cmd

import (
	"fmt"
	"strconv"

	"github.com/relloyd/freshpipe/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagKindString = iota
	flagKindBool
	flagKindInt
)

type cliFlag struct {
	name      string // name of flag
	shortHand string // single character name for the flag
	kind      int    // flagKindString|flagKindBool|flagKindInt
	desc      string // description of the flag; the long text
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"domain": cliFlag{name: "domain", shortHand: "d",
		desc: "Your Freshservice domain i.e. <domain>.freshservice.com"},
	"api-key-file": cliFlag{name: "api-key-file", shortHand: "k",
		desc: "CSV file whose first cell holds the Freshservice API key"},
	"base-url": cliFlag{name: "base-url",
		desc: "Override the Freshservice API root, e.g. for a proxy or test server"},
	"per-page": cliFlag{name: "per-page", kind: flagKindInt,
		desc: "Number of records to request per page"},
	"warehouse-type": cliFlag{name: "warehouse-type", shortHand: "w",
		desc: "Warehouse holding the TICKETS table: \"snowflake | sqlserver\""},
	"warehouse-credentials-file": cliFlag{name: "warehouse-credentials-file", shortHand: "W",
		desc: "Two column CSV file of warehouse connection parameters (key,value)\n" +
			"or a single dsn,<url> row for SQL Server"},
	"warehouse-table": cliFlag{name: "warehouse-table",
		desc: "Table used to find the watermark"},
	"sink-type": cliFlag{name: "sink-type", shortHand: "t",
		desc: "Where to write CSV files: \"azure | s3 | local\""},
	"sink-account": cliFlag{name: "sink-account", shortHand: "a",
		desc: "Azure storage account name"},
	"sink-container": cliFlag{name: "sink-container", shortHand: "C",
		desc: "Azure container name, or S3 bucket of the form [s3://]<bucket>[/<prefix>]"},
	"sink-sas-token": cliFlag{name: "sink-sas-token",
		desc: "Azure shared access signature (or set FP_SINK_SAS_TOKEN)"},
	"sink-region": cliFlag{name: "sink-region", shortHand: "R",
		desc: "AWS S3 bucket region"},
	"sink-prefix": cliFlag{name: "sink-prefix", shortHand: "P",
		desc: "Prefix added to every object key"},
	"sink-directory": cliFlag{name: "sink-directory", shortHand: "D",
		desc: "Output directory when the sink type is local"},
	"reject-partial": cliFlag{name: "reject-partial", kind: flagKindBool,
		desc: "Upload nothing if any resource could not be fetched completely"},
	"output": cliFlag{name: "output", shortHand: "o",
		desc: "Specify \"yaml\" or \"json\" to print the resolved pipeline instead of running it"},
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug\""},
}

// addFlags registers the named flags on c.
// Flags carry no defaults so that only values the user typed override the pipeline config.
func (f cliFlags) addFlags(c *cobra.Command, names ...string) {
	for _, n := range names {
		f.register(c.Flags(), n)
	}
}

func (f cliFlags) addPersistentFlag(c *cobra.Command, name string) {
	f.register(c.PersistentFlags(), name)
}

func (f cliFlags) register(fs *pflag.FlagSet, name string) {
	sw, ok := f[name]
	if !ok {
		panic(fmt.Sprintf("unregistered CLI flag, %q", name))
	}
	switch sw.kind {
	case flagKindBool:
		fs.BoolP(sw.name, sw.shortHand, false, sw.desc)
	case flagKindInt:
		fs.IntP(sw.name, sw.shortHand, 0, sw.desc)
	default:
		fs.StringP(sw.name, sw.shortHand, "", sw.desc)
	}
}

// pipelineFlagTargets maps flag names to the Pipeline fields they override.
func pipelineFlagTargets(p *config.Pipeline) map[string]interface{} {
	return map[string]interface{}{
		"domain":                     &p.Freshservice.Domain,
		"api-key-file":               &p.Freshservice.ApiKeyFile,
		"base-url":                   &p.Freshservice.BaseUrl,
		"per-page":                   &p.Freshservice.PerPage,
		"warehouse-type":             &p.Warehouse.Type,
		"warehouse-credentials-file": &p.Warehouse.CredentialsFile,
		"warehouse-table":            &p.Warehouse.Table,
		"sink-type":                  &p.Sink.Type,
		"sink-account":               &p.Sink.Account,
		"sink-container":             &p.Sink.Container,
		"sink-sas-token":             &p.Sink.SasToken,
		"sink-region":                &p.Sink.Region,
		"sink-prefix":                &p.Sink.Prefix,
		"sink-directory":             &p.Sink.Directory,
		"reject-partial":             &p.RejectPartial,
		"log-level":                  &p.LogLevel,
	}
}

// applyChangedFlags copies the value of every flag the user set into its target.
// Flags without a target are ignored.
func applyChangedFlags(fs *pflag.FlagSet, targets map[string]interface{}) (err error) {
	fs.Visit(func(fl *pflag.Flag) { // for each flag that was set...
		if err != nil {
			return
		}
		v := fl.Value.String()
		switch p := targets[fl.Name].(type) {
		case *string:
			*p = v
		case *bool:
			*p, err = strconv.ParseBool(v)
		case *int:
			*p, err = strconv.Atoi(v)
		}
		if err != nil {
			err = fmt.Errorf("bad value for flag %q: %w", fl.Name, err)
		}
	})
	return
}

// loadPipeline loads the pipeline from configFile and the environment, then applies any flags set in fs.
func loadPipeline(fs *pflag.FlagSet) (*config.Pipeline, error) {
	p, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if fs != nil {
		if err = applyChangedFlags(fs, pipelineFlagTargets(p)); err != nil {
			return nil, err
		}
	}
	if stackDumpOnPanic {
		p.PrintStack = true
	}
	return p, nil
}
