package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/rules"
	"github.com/learningequality/bundlegen/internal/service"
)

type rulesFormat int

const (
	rulesFormatTable rulesFormat = iota
	rulesFormatJSON
	rulesFormatYAML
)

var rulesFormatIDs = map[rulesFormat][]string{
	rulesFormatTable: {"table"},
	rulesFormatJSON:  {"json"},
	rulesFormatYAML:  {"yaml", "yml"},
}

type rulesParams struct {
	commonParams
	format rulesFormat
}

func newRulesCommand() *cobra.Command {
	var params rulesParams

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the compiled rules of the current mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := params.loadEnv(); err != nil {
				return err
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			rs, err := rules.Compile(mode.FromEnvironment(), cfg.Settings(), nil)
			if err != nil {
				return err
			}

			switch params.format {
			case rulesFormatJSON, rulesFormatYAML:
				format := service.FormatJSON
				if params.format == rulesFormatYAML {
					format = service.FormatYAML
				}
				bs, err := service.Encode(rs, format)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(bs)
				return err
			default:
				return writeRulesTable(cmd.OutOrStdout(), rs)
			}
		},
	}

	params.addFlags(cmd.Flags())
	cmd.Flags().Var(enumflag.New(&params.format, "format", rulesFormatIDs, enumflag.EnumCaseInsensitive), "format", "output format: table, json, yaml")
	return cmd
}

func writeRulesTable(w io.Writer, rs []rules.Rule) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Category", "Enforce", "Test", "Exclude", "Stages")
	for i, r := range rs {
		loaders := make([]string, len(r.Stages))
		for j, st := range r.Stages {
			loaders[j] = st.Loader
		}
		exclude := ""
		if r.Predicate.Exclude != nil {
			exclude = r.Predicate.Exclude.String()
		}
		if len(r.Predicate.Allow) > 0 {
			exclude += " (allow " + strings.Join(r.Predicate.Allow, ", ") + ")"
		}
		row := []string{strconv.Itoa(i + 1), r.Category.String(), r.Enforce.String(), r.Predicate.Test.String(), exclude, strings.Join(loaders, ", ")}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
