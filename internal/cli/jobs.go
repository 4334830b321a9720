// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/paraprobemanager/internal/composition"
	"github.com/ZSC714725/paraprobemanager/internal/job"
	"github.com/ZSC714725/paraprobemanager/internal/paraprobe"
)

type jobOptions struct {
	id        string
	workspace string
	format    string
	prefix    string
}

func (o *jobOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.id, "id", "", "job id, also the working directory name (generated when empty)")
	cmd.Flags().StringVarP(&o.workspace, "workspace", "w", "", "workspace root (overrides config)")
	cmd.Flags().StringVarP(&o.format, "output", "o", formatText, "output format: json or text")
	cmd.Flags().StringVar(&o.prefix, "prefix", "", "only print results below this path")
}

// execute runs one job to completion in the foreground
func (o *jobOptions) execute(cmd *cobra.Command, opts *globalOptions, cfg *job.Config) error {
	if err := validFormat(o.format); err != nil {
		return err
	}
	s, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if o.workspace != "" {
		s.config.Workspace.Root = o.workspace
	}

	jobs := job.NewManager(job.ManagerConfig{
		Root:        s.config.Workspace.Root,
		Compression: s.config.Workspace.Compression,
		Factories:   job.Factories(s.config, s.tools, s.logger),
		Logger:      s.logger,
	})
	cfg.ID = o.id
	task, err := jobs.Add(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := jobs.Execute(ctx, task.ID); err != nil {
		return fmt.Errorf("job %s: %w (logs in %s)", task.ID, err, task.WorkDir)
	}

	store, err := task.Results()
	if err != nil {
		return err
	}
	if err := printResults(cmd.OutOrStdout(), store, o.prefix, o.format); err != nil {
		return err
	}
	s.logger.Info("job %s finished, results archived in %s", task.ID, task.Info().Archive)
	return nil
}

func newRangerCommand(opts *globalOptions) *cobra.Command {
	var (
		jo    jobOptions
		input paraprobe.Input
	)
	cmd := &cobra.Command{
		Use:   "ranger <reconstruction> <ranging>",
		Short: "Run the paraprobe ranger workflow",
		Long: `Run the paraprobe ranger workflow on a reconstruction (.pos, .apt) and a
ranging file (.rrng, .rng).

Both files are copied into the job working directory, transcoded, ranged
and summarized by the auto-reporter. The parsed summary is printed and
archived in the working directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Reconstruction = args[0]
			input.Ranging = args[1]
			return jo.execute(cmd, opts, &job.Config{Type: paraprobe.Type, Ranger: &input})
		},
	}
	jo.register(cmd)
	cmd.Flags().Int64Var(&input.JobID, "jobid", 0, "paraprobe simulation id (config default when 0)")
	cmd.Flags().IntVar(&input.Cores, "cores", 0, "cores for the ranger (config default when 0)")
	cmd.Flags().BoolVar(&input.Plot, "plot", false, "draw a composition bar chart")
	return cmd
}

func newCompositionCommand(opts *globalOptions) *cobra.Command {
	var (
		jo       jobOptions
		in       = job.CompositionInput{Config: composition.DefaultConfig()}
		analyses []string
	)
	in.MLModels.Name = ""
	cmd := &cobra.Command{
		Use:   "compositionspace <reconstruction>",
		Short: "Run compositionspace analyses",
		Long: `Run compositionspace on a reconstruction. The data preparation stage
always runs; analyses are selected with --analysis:

  pca_cumsum, bics_minimization, composition_clustering, dbscan_clustering

dbscan_clustering runs composition_clustering first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.InputPath = args[0]
			in.Analyses = analyses
			return jo.execute(cmd, opts, &job.Config{Type: composition.Type, Composition: &in})
		},
	}
	jo.register(cmd)
	cmd.Flags().StringSliceVarP(&analyses, "analysis", "a", nil, "analyses to run")
	cmd.Flags().StringVar(&in.MLModels.Name, "model", "", "clustering model: GaussianMixture, RandomForest or DBScan")
	cmd.Flags().IntVar(&in.NBigSlices, "slices", in.NBigSlices, "number of big slices")
	cmd.Flags().Float64Var(&in.VoxelSize, "voxel-size", in.VoxelSize, "voxel edge length in nm")
	cmd.Flags().IntVar(&in.NPhases, "phases", in.NPhases, "number of phases")
	cmd.Flags().BoolVar(&in.Plot, "plot", false, "plot clustering results")
	return cmd
}
