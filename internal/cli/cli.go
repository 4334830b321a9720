// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具
//
// Package cli provides the command-line interface.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/paraprobemanager/internal/config"
	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/publication"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Execute runs the root command and returns the exit code.
func Execute() int {
	return run(NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

type globalOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "paraprobemanager",
		Short: "Run and collect paraprobe atom probe analyses",
		Long: `ParaprobeManager runs paraprobe ranger and compositionspace workflows on
atom probe reconstructions and collects their results.

The ranger workflow transcodes the reconstruction and ranging files, ranges
the ions and parses the auto-reporter summary into flat result paths such as
ranger/ion_count and ranger/<element>.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newRangerCommand(opts))
	rootCmd.AddCommand(newCompositionCommand(opts))
	rootCmd.AddCommand(newParseCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// session is what every job running command needs
type session struct {
	config       *config.Config
	logger       logger.Logger
	tools        toolchain.Toolchain
	publications *publication.Registry
}

func (o *globalOptions) load(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), "paraprobemanager", o.debug || cfg.Log.Debug)

	validator, err := toolchain.NewValidator(inputRules(cfg.Inputs))
	if err != nil {
		return nil, err
	}
	tools, err := toolchain.New(toolchain.Config{Tools: cfg.Tools, Validator: validator})
	if err != nil {
		return nil, err
	}

	pubs := publication.NewRegistry()
	publication.RegisterDefaults(pubs)

	return &session{config: cfg, logger: log, tools: tools, publications: pubs}, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "paraprobemanager %s\n", Version)
		},
	}
}

func inputRules(in config.InputsConfig) toolchain.InputRules {
	rules := toolchain.InputRules{Block: in.Block}
	if in.Extensions != nil {
		rules.Extensions = make(map[toolchain.InputKind][]string, len(in.Extensions))
		for kind, exts := range in.Extensions {
			rules.Extensions[toolchain.InputKind(kind)] = exts
		}
	}
	return rules
}
