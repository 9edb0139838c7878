package main

import (
	"fmt"
	"os"

	"github.com/DomeLiquid/lendcore/config"
	"github.com/DomeLiquid/lendcore/core"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	cfg         *config.Config
	logger      zerolog.Logger
	debugMode   bool
	initialized bool
)

var rootCmd = &cobra.Command{
	Use:           "lendsim",
	Short:         "replay lending scenarios against the accounting core",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initLogging, initConfig, initDone)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file. default is ~/"+config.DefaultFileName)
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable or disable debug mode")

	rootCmd.AddCommand(runCmd, healthCmd, configCmd)
}

func Execute(ver string) {
	rootCmd.Version = ver
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging() {
	if initialized {
		return
	}

	level := zerolog.InfoLevel
	if debugMode {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func initConfig() {
	if initialized {
		return
	}

	if cfgFile == "" {
		cfgFile = config.DefaultFile()
	}
	if cfgFile != "" {
		logger.Debug().Str("file", cfgFile).Msg("use config file")
	}

	var err error
	if cfg, err = config.Load(cfgFile); err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if cfg.Debug && !debugMode {
		logger = logger.Level(zerolog.DebugLevel)
	}
}

func initDone() {
	initialized = true
}

func provideLog() core.Log {
	return &logger
}
