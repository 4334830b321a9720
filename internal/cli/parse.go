// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package cli

import (
	"github.com/spf13/cobra"

	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/paraprobe"
	"github.com/ZSC714725/paraprobemanager/internal/result"
)

func newParseCommand(opts *globalOptions) *cobra.Command {
	var (
		namespace string
		format    string
		stats     bool
	)
	cmd := &cobra.Command{
		Use:   "parse <summary-log>",
		Short: "Parse an auto-reporter summary log",
		Long: `Parse an auto-reporter summary log such as result_ranger.log and print
the flattened results.

The first line must carry the ion count as its third token, every other
non-blank line a value as second and a name as fourth token:

  Total ions: 64000,
  at. 11.25, wt% Fe,`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), "parse", opts.debug)

			text, err := result.ReadLog(args[0])
			if err != nil {
				return err
			}
			record, err := result.NewParser(log).ParseSummary(result.Tokenize(text))
			if err != nil {
				return err
			}

			store := result.NewStore(log)
			if err := result.FlattenIntoStore(record, store, namespace); err != nil {
				return err
			}
			if stats {
				if err := result.WriteComposition(result.Describe(record), store, namespace); err != nil {
					return err
				}
			}
			return printResults(cmd.OutOrStdout(), store, "", format)
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", paraprobe.Namespace, "result namespace")
	cmd.Flags().StringVarP(&format, "output", "o", formatJSON, "output format: json or text")
	cmd.Flags().BoolVar(&stats, "stats", false, "add composition statistics below summary/<namespace>")
	return cmd
}
