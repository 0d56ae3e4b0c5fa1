package cmd

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2024-01-01T00:00+0000"
	configFile       string
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use:   "fp",
	Short: "Freshpipe incrementally extracts Freshservice data to blob storage",
	Long: `Freshpipe reads the latest ticket change time from your warehouse, fetches everything 
Freshservice has changed since then, and writes tickets, ticket fields and agent groups 
as CSV files to Azure Blob Storage, S3 or a local directory for the warehouse to load.`,
}

func init() {
	// General setup.
	cobra.EnableCommandSorting = false
	// Global flags.
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Pipeline `<file>` (.yaml or .json, default ~/.freshpipe/config.yaml)")
	_ = rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml", "json")
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump on errors")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
	switches.addPersistentFlag(rootCmd, "log-level")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if twelveFactorMode { // if we are running based on environment variables...
		if lambdaMode { // if we should handle lambda execution...
			lambda.Start(func() error { return execute12FactorMode(twelveFactorActions) })
		} else {
			if err := execute12FactorMode(twelveFactorActions); err != nil {
				// execute12FactorMode logs the error.
				os.Exit(1)
			}
		}
	} else { // else we're using CLI args and flags via Cobra...
		if err := rootCmd.Execute(); err != nil {
			// Execute() prints the error.
			os.Exit(1)
		}
	}
}
