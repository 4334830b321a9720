// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/paraprobemanager/internal/job"
	"github.com/ZSC714725/paraprobemanager/internal/publication"
	"github.com/ZSC714725/paraprobemanager/internal/result"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// Handler holds dependencies
type Handler struct {
	jobs         job.Manager
	tools        toolchain.Toolchain
	publications *publication.Registry
}

// NewHandler creates API handler
func NewHandler(jobs job.Manager, tools toolchain.Toolchain, pubs *publication.Registry) *Handler {
	if pubs == nil {
		pubs = publication.NewRegistry()
	}
	return &Handler{jobs: jobs, tools: tools, publications: pubs}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// AddJob POST /api/v1/jobs
func (h *Handler) AddJob(c *gin.Context) {
	var cfg job.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	t, err := h.jobs.Add(&cfg)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobExists):
			errResp(c, http.StatusConflict, "Job exists", err.Error())
		case errors.Is(err, job.ErrUnknownType):
			errResp(c, http.StatusBadRequest, "Unknown job type", err.Error())
		default:
			errResp(c, http.StatusBadRequest, "Invalid config", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, taskToJob(t, ""))
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	filter := c.DefaultQuery("filter", "")
	reference := c.DefaultQuery("reference", "")
	idStr := c.DefaultQuery("id", "")

	var ids []string
	if idStr != "" {
		ids = strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' })
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
	}

	tasks := h.jobs.List(ids, reference)
	jobs := make([]Job, 0, len(tasks))
	for _, t := range tasks {
		jobs = append(jobs, taskToJob(t, filter))
	}

	c.JSON(http.StatusOK, jobs)
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	t, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	c.JSON(http.StatusOK, taskToJob(t, c.DefaultQuery("filter", "")))
}

// DeleteJob DELETE /api/v1/jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.jobs.Delete(c.Param("id")); err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Command PUT /api/v1/jobs/:id/command
func (h *Handler) Command(c *gin.Context) {
	id := c.Param("id")

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	var err error
	switch req.Command {
	case "run":
		err = h.jobs.Start(id)
	case "abort":
		err = h.jobs.Abort(id)
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: run, abort")
		return
	}

	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
			return
		}
		errResp(c, http.StatusBadRequest, "Command failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// GetResults GET /api/v1/jobs/:id/results
func (h *Handler) GetResults(c *gin.Context) {
	t, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	store, err := t.Results()
	if err != nil {
		errResp(c, http.StatusConflict, "No results", "job is "+string(t.Status()))
		return
	}

	entries := store.Entries(c.DefaultQuery("prefix", ""))
	res := Results{ID: t.ID, Status: string(t.Status()), Entries: make([]ResultEntry, len(entries))}
	for i, e := range entries {
		res.Entries[i] = ResultEntry{Path: e.Path, Kind: string(e.Value.Kind), Value: jsonValue(e.Value)}
	}

	c.JSON(http.StatusOK, res)
}

// Publications GET /api/v1/publications
func (h *Handler) Publications(c *gin.Context) {
	entries := h.publications.List()
	if c.Query("format") == "bibtex" {
		var b strings.Builder
		for _, e := range entries {
			for _, p := range e.Publications {
				b.WriteString(p.BibTeX())
			}
		}
		c.String(http.StatusOK, b.String())
		return
	}

	c.JSON(http.StatusOK, Publications{Entries: entries})
}

// Toolchain GET /api/v1/toolchain
func (h *Handler) Toolchain(c *gin.Context) {
	c.JSON(http.StatusOK, Toolchain{Tools: h.tools.Versions(c.Request.Context())})
}

// ReloadToolchain POST /api/v1/toolchain/reload
func (h *Handler) ReloadToolchain(c *gin.Context) {
	if err := h.tools.Reload(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, Toolchain{Tools: h.tools.Versions(c.Request.Context())})
}

// JSON has no NaN or Inf
func jsonValue(v result.Value) interface{} {
	if v.Kind == result.KindFloat && (math.IsNaN(v.Float) || math.IsInf(v.Float, 0)) {
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	}
	return v.Interface()
}

func taskToJob(t *job.Task, filter string) Job {
	info := t.Info()
	j := Job{
		ID:        info.ID,
		Type:      info.Type,
		Reference: info.Reference,
		CreatedAt: info.CreatedAt,
		UpdatedAt: info.UpdatedAt,
	}

	includeAll := filter == ""
	if includeAll || strings.Contains(filter, "config") {
		j.Config = t.Config
	}
	if includeAll || strings.Contains(filter, "state") {
		j.State = &JobState{
			Status:  string(info.Status),
			Error:   info.Error,
			WorkDir: info.WorkDir,
			Archive: info.Archive,
			Stages:  info.Stages,
		}
	}
	return j
}
