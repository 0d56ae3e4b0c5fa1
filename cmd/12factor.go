package cmd

import (
	"fmt"
	"os"
	"strings"

	c "github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/helper"
	"github.com/relloyd/freshpipe/logger"
)

// init will be called first due to the lexical order in which these functions are executed.
// This ensures the value of twelveFactorMode is set before any command runs.
func init() {
	setupTwelveFactorMode()
}

// setupTwelveFactorMode will enable or disable 12 factor mode based on environment variable.
func setupTwelveFactorMode() {
	mode := os.Getenv(envVarTwelveFactorMode)
	if mode != "" { // if variable for 12factor mode is set and we should read env vars to determine actions...
		twelveFactorMode = true
		lambdaMode = strings.ToLower(mode) == "lambda"
	} else { // else 12factor mode should be off...
		twelveFactorMode = false // explicitly turn off this mode since tests may have turned it on while others require it off.
		lambdaMode = false
	}
}

const (
	envVarTwelveFactorMode = c.EnvVarPrefix + "_" + "12FACTOR_MODE"
	envVarCommand          = c.EnvVarPrefix + "_" + "COMMAND"     // sync|watermark
	envVarConfigFile       = c.EnvVarPrefix + "_" + "CONFIG_FILE" // optional pipeline file; FP_* variables override it
	envVarLogLevel         = c.EnvVarPrefix + "_" + "LOG_LEVEL"
	defaultCommand         = "sync"
)

var (
	twelveFactorMode bool // true if os env var envVarTwelveFactorMode is set
	lambdaMode       bool // true if envVarTwelveFactorMode is "lambda"
)

type twelveFactorAction struct {
	runnerFunc func() error
}

var twelveFactorActions = map[string]twelveFactorAction{
	"sync": {
		runnerFunc: func() error {
			p, err := loadPipeline(nil)
			if err != nil {
				return err
			}
			return runSync(p)
		},
	},
	"watermark": {
		runnerFunc: func() error {
			p, err := loadPipeline(nil)
			if err != nil {
				return err
			}
			return runWatermark(os.Stdout, p)
		},
	},
}

func execute12FactorMode(acts map[string]twelveFactorAction) (err error) {
	logLevel := helper.ReadValueFromEnvWithDefault(envVarLogLevel, "info")
	log := logger.NewLogger(c.ServiceName, logLevel, stackDumpOnPanic)
	log.Info("Freshpipe is running in 12 Factor mode...")
	configFile = os.Getenv(envVarConfigFile)
	cmd := strings.ToLower(helper.ReadValueFromEnvWithDefault(envVarCommand, defaultCommand))
	log.Debug(envVarCommand, "=", cmd)
	log.Debug(envVarConfigFile, "=", configFile)
	a, ok := acts[cmd]
	if !ok {
		err = fmt.Errorf("invalid command %q supplied in %v", cmd, envVarCommand)
		log.Error(err.Error())
		return
	}
	// Run the action.
	err = a.runnerFunc()
	if err != nil {
		log.Error("Error: ", err)
	}
	return err
}
