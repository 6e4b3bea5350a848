package main

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/learningequality/bundlegen/internal/check"
	"github.com/learningequality/bundlegen/internal/descriptor"
	"github.com/learningequality/bundlegen/internal/metrics"
	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/violation"
)

const trackedFiles = 4096

type checkParams struct {
	commonParams
	watch       bool
	interval    time.Duration
	metricsFile string
}

func newCheckCommand() *cobra.Command {
	var params checkParams

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the configured pre-pass checks and lint plugins over the source tree",
		Long: `Run the configured pre-pass checks and lint plugins over the source tree.

Each entry of the "checks" configuration maps a pre-pass stage or lint plugin
to a command; the file path is appended to its arguments. Violations fail the
command in production mode and are reported as warnings otherwise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if params.watch && params.interval <= 0 {
				return fmt.Errorf("invalid --interval %v: must be positive", params.interval)
			}
			if err := params.loadEnv(); err != nil {
				return err
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			log := params.logger()
			flags := mode.FromEnvironment()

			settings := cfg.Settings()
			base, err := descriptor.NewBase(flags, settings, nil)
			if err != nil {
				return err
			}

			checker := check.New(base).
				WithWorkers(cfg.WorkerCount()).
				WithLogger(log)
			if params.watch {
				checker = checker.WithChangeTracking(trackedFiles)
			}
			names := make([]string, 0, len(cfg.Checks))
			for name := range cfg.Checks {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				if err := checker.Register(name, check.NewCommand(settings.BaseDir, cfg.Checks[name]...)); err != nil {
					return err
				}
			}
			if len(names) == 0 {
				log.Warnf("no checks configured")
			}

			policy := violation.NewPolicy(flags)
			once := func() error {
				reports, runErr := checker.Run(cmd.Context())
				policyErr := policy.Apply(log, reports...)
				var n int
				for _, r := range reports {
					n += len(r.Violations)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checked %d asset(s), %d violation(s)\n", len(reports), n)
				if params.metricsFile != "" {
					if err := metrics.WriteFile(params.metricsFile); err != nil {
						log.Warnf("%v", err)
					}
				}
				return errors.Join(runErr, policyErr)
			}

			if !params.watch {
				return once()
			}

			ticker := time.NewTicker(params.interval)
			defer ticker.Stop()
			for {
				if err := once(); err != nil {
					log.Errorf("%v", err)
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	params.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&params.watch, "watch", false, "re-run the checks until interrupted, linting changed files only where plugins ask for it")
	cmd.Flags().DurationVar(&params.interval, "interval", 2*time.Second, "polling interval in watch mode")
	cmd.Flags().StringVar(&params.metricsFile, "metrics-file", "", "write check metrics in the Prometheus text format to file")
	return cmd
}
