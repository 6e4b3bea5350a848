package main

import (
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/learningequality/bundlegen/internal/metrics"
	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/service"
)

type buildParams struct {
	commonParams
	pluginsFile string
	outDir      string
	format      service.Format
	metricsFile string
	progress    bool
}

func newBuildCommand() *cobra.Command {
	var params buildParams

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the descriptor of every configured plugin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := params.loadEnv(); err != nil {
				return err
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			log := params.logger()
			flags := mode.FromEnvironment()
			log.Infof("building descriptors in %s mode", flags)

			fsys := afero.NewOsFs()
			svc := service.New().
				WithConfig(cfg).
				WithFlags(flags).
				WithFS(fsys).
				WithOutput(params.outDir, params.format).
				WithLogger(log).
				WithSummary(cmd.OutOrStdout())
			if params.progress {
				svc = svc.WithProgress(cmd.ErrOrStderr())
			}
			if params.pluginsFile != "" {
				records, err := service.LoadRecords(fsys, params.pluginsFile)
				if err != nil {
					return err
				}
				svc = svc.WithRecords(records)
			}

			_, runErr := svc.Run(cmd.Context())
			if params.metricsFile != "" {
				if err := metrics.WriteFile(params.metricsFile); err != nil {
					log.Warnf("%v", err)
				}
			}
			return runErr
		},
	}

	params.addFlags(cmd.Flags())
	cmd.Flags().StringVar(&params.pluginsFile, "plugins-file", "", "JSON file with additional plugin metadata records")
	cmd.Flags().StringVarP(&params.outDir, "out", "o", "descriptors", "directory the descriptors are written to")
	cmd.Flags().Var(enumflag.New(&params.format, "format", service.FormatIDs, enumflag.EnumCaseInsensitive), "format", "descriptor format: json, yaml")
	cmd.Flags().StringVar(&params.metricsFile, "metrics-file", "", "write build metrics in the Prometheus text format to file")
	cmd.Flags().BoolVar(&params.progress, "progress", isTerminal(os.Stderr), "show a progress bar")
	return cmd
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
