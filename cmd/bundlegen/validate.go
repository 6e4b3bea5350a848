package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/learningequality/bundlegen/internal/config"
)

func newValidateCommand() *cobra.Command {
	var params commonParams

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files against the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(params.configFiles) == 0 {
				return fmt.Errorf("at least one --config file is required")
			}
			for _, f := range params.configFiles {
				fi, err := os.Stat(f)
				if err != nil {
					return err
				}
				if fi.IsDir() {
					continue
				}
				bs, err := os.ReadFile(f)
				if err != nil {
					return err
				}
				if err := config.Validate(bs); err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
			}

			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.CheckSettings(nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}

	params.addFlags(cmd.Flags())
	return cmd
}
