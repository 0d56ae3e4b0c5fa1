package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/relloyd/freshpipe/actions"
	"github.com/relloyd/freshpipe/config"
	c "github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

const redacted = "xxxxx"

var outputFormat string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch everything changed since the warehouse watermark and upload it as CSV",
	Long: `Read the latest change time from the warehouse TICKETS table, fetch the tickets updated
since then plus all ticket fields and agent groups from Freshservice, then upload one CSV
file per resource to blob storage, overwriting the previous copy.

Values from the pipeline file are overridden by FP_* environment variables and then by flags.
Use --output to print the resolved pipeline without running it.`,
	Example: `  fp sync -d acme -k ~/.freshpipe/apikey.csv -W ~/.freshpipe/snowflake.csv -a myaccount -C landing
  fp sync -c ./pipeline.yaml -t local -D /tmp/out
  fp sync -c ./pipeline.yaml -o yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPipeline(flagsOrNil(cmd))
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		if outputFormat != "" {
			return printPipeline(cmd.OutOrStdout(), p, outputFormat)
		}
		return runSync(p)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	switches.addFlags(syncCmd,
		"domain", "api-key-file", "base-url", "per-page",
		"warehouse-type", "warehouse-credentials-file", "warehouse-table",
		"sink-type", "sink-account", "sink-container", "sink-sas-token", "sink-region", "sink-prefix", "sink-directory",
		"reject-partial")
	syncCmd.Flags().StringVarP(&outputFormat, switches["output"].name, switches["output"].shortHand, "", switches["output"].desc)
}

// runSync executes the pipeline and logs a summary per resource.
// A soft failure is not an error.
func runSync(p *config.Pipeline) error {
	log := logger.NewLogger(c.ServiceName, p.LogLevel, p.PrintStack)
	ctx, cancel := interruptibleContext()
	defer cancel()
	res, err := actions.RunSync(ctx, log, &actions.SyncConfig{Pipeline: p, Deps: actions.DefaultDeps()})
	if err != nil {
		log.Error(err)
		return err
	}
	if res.SoftFailure {
		log.Warn("run ", res.RunID, " ended early; nothing was fetched or uploaded")
		return nil
	}
	for _, r := range res.Resources {
		log.Info(fmt.Sprintf("%v: %v rows in %v pages written to %v (complete=%v)", r.Name, r.Rows, r.Pages, r.BlobPath, r.Complete))
	}
	return nil
}

// printPipeline writes p in the given format with secrets masked.
func printPipeline(w io.Writer, p *config.Pipeline, format string) error {
	cp := *p
	if cp.Sink.SasToken != "" {
		cp.Sink.SasToken = redacted
	}
	if cp.Freshservice.Password != "" && cp.Freshservice.Password != c.DefaultApiPassword {
		cp.Freshservice.Password = redacted
	}
	var (
		out []byte
		err error
	)
	switch strings.ToLower(format) {
	case "yaml":
		out, err = yaml.Marshal(&cp)
	case "json":
		out, err = json.MarshalIndent(&cp, "", "  ")
		out = append(out, '\n')
	default:
		return fmt.Errorf("unsupported output format %q, use yaml or json", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// interruptibleContext returns a context that is cancelled on SIGINT or SIGTERM.
func interruptibleContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
	return ctx, cancel
}

// flagsOrNil returns nil in twelve-factor mode so that only the file and environment are used.
func flagsOrNil(cmd *cobra.Command) *pflag.FlagSet {
	if twelveFactorMode || cmd == nil {
		return nil
	}
	return cmd.Flags()
}
