package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/learningequality/bundlegen/internal/config"
	"github.com/learningequality/bundlegen/internal/logging"
)

type commonParams struct {
	configFiles []string
	envFile     string
	logLevel    logging.Level
	logFormat   logging.Format
}

func (p *commonParams) addFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&p.configFiles, "config", "c", nil, "configuration file or directory (repeatable, merged in order)")
	fs.StringVar(&p.envFile, "env-file", "", "load environment variables from file (default .env when present)")
	fs.Var(enumflag.New(&p.logLevel, "level", logging.LevelIDs, enumflag.EnumCaseInsensitive), "log-level", "log level: debug, info, warn, error")
	fs.Var(enumflag.New(&p.logFormat, "format", logging.FormatIDs, enumflag.EnumCaseInsensitive), "log-format", "log format: text, json")
}

func (p *commonParams) logger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: p.logLevel, Format: p.logFormat, Output: os.Stderr})
}

// loadEnv reads the env file without overriding variables already set. An
// explicitly named file must exist.
func (p *commonParams) loadEnv() error {
	if p.envFile != "" {
		return godotenv.Load(p.envFile)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadConfig merges and parses the configuration files. Without any file
// the stock defaults apply.
func (p *commonParams) loadConfig() (*config.Root, error) {
	if len(p.configFiles) == 0 {
		return &config.Root{}, nil
	}
	bs, err := config.Merge(p.configFiles, true)
	if err != nil {
		return nil, err
	}
	return config.Parse(bs)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bundlegen",
		Short:         "Compile per-plugin frontend build descriptors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newBuildCommand(),
		newCheckCommand(),
		newRulesCommand(),
		newValidateCommand(),
		newSchemaCommand(),
	)
	return root
}
