package cmd

import (
	"fmt"
	"io"

	"github.com/relloyd/freshpipe/actions"
	"github.com/relloyd/freshpipe/config"
	c "github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/logger"
	"github.com/spf13/cobra"
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Print the watermark that the next sync would use",
	Long: `Connect to the warehouse, read the latest change time from the TICKETS table and print it
in the form sent to Freshservice. Nothing is fetched or uploaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPipeline(flagsOrNil(cmd))
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return runWatermark(cmd.OutOrStdout(), p)
	},
}

func init() {
	rootCmd.AddCommand(watermarkCmd)
	switches.addFlags(watermarkCmd, "warehouse-type", "warehouse-credentials-file", "warehouse-table")
}

func runWatermark(w io.Writer, p *config.Pipeline) error {
	log := logger.NewLogger(c.ServiceName, p.LogLevel, p.PrintStack)
	ctx, cancel := interruptibleContext()
	defer cancel()
	wm, err := actions.RunWatermark(ctx, log, &actions.WatermarkConfig{Pipeline: p, Deps: actions.DefaultDeps()})
	if err != nil {
		log.Error(err)
		return err
	}
	_, err = fmt.Fprintln(w, wm)
	return err
}
