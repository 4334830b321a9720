// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ZSC714725/paraprobemanager/internal/api"
	"github.com/ZSC714725/paraprobemanager/internal/job"
	"github.com/ZSC714725/paraprobemanager/internal/logger"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the job REST API",
		Long: `Serve the REST API below /api/v1.

Jobs are created with POST /api/v1/jobs, started with
PUT /api/v1/jobs/:id/command {"command":"run"} and their results read from
GET /api/v1/jobs/:id/results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if bind != "" {
				s.config.Server.Bind = bind
			}
			if err := os.MkdirAll(s.config.Workspace.Root, 0o755); err != nil {
				return fmt.Errorf("creating workspace: %w", err)
			}
			if !s.config.Log.Debug && !opts.debug {
				gin.SetMode(gin.ReleaseMode)
			}

			jobs := job.NewManager(job.ManagerConfig{
				Root:        s.config.Workspace.Root,
				Compression: s.config.Workspace.Compression,
				Factories:   job.Factories(s.config, s.tools, s.logger),
				Logger:      s.logger,
			})
			handler := api.NewHandler(jobs, s.tools, s.publications)
			srv := &http.Server{
				Addr:              s.config.Server.Bind,
				Handler:           api.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				s.logger.Info("listening on %s, workspace %s", srv.Addr, s.config.Workspace.Root)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			s.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			if derr := drainJobs(shutdownCtx, jobs, s.logger); err == nil {
				err = derr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "bind address (overrides config)")
	return cmd
}

// drainJobs aborts running jobs and waits until they have archived what they
// collected, or ctx is done.
func drainJobs(ctx context.Context, jobs job.Manager, log logger.Logger) error {
	tasks := jobs.List(nil, "")
	for _, t := range tasks {
		if err := jobs.Abort(t.ID); err == nil {
			log.Info("aborting job %s", t.ID)
		}
	}

	done := make(chan struct{})
	go func() {
		for _, t := range tasks {
			t.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Warn("shutdown: jobs still finishing: %v", ctx.Err())
		return ctx.Err()
	}
}
