// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/paraprobemanager/internal/config"
	"github.com/ZSC714725/paraprobemanager/internal/job"
	"github.com/ZSC714725/paraprobemanager/internal/publication"
	"github.com/ZSC714725/paraprobemanager/internal/result"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

type stubJob struct{}

func (stubJob) Type() string                         { return "stub" }
func (stubJob) WriteInput(ctx context.Context) error { return nil }
func (stubJob) Run(ctx context.Context) error        { return nil }
func (stubJob) CollectOutput(ctx context.Context) (*result.Store, error) {
	s := result.NewStore(nil)
	if err := s.CopyRaw("log/execute/ranger", "ok\n"); err != nil {
		return nil, err
	}
	if err := s.Set("ranger/ion_count", result.Int(12345)); err != nil {
		return nil, err
	}
	return s, s.Set("ranger/Fe", result.Float(math.NaN()))
}

func newTestServer(t *testing.T) (*gin.Engine, job.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tools, err := toolchain.New(toolchain.Config{
		Tools:    config.Default().Tools,
		LookPath: func(string) (string, error) { return "", errors.New("not installed") },
	})
	require.NoError(t, err)

	jobs := job.NewManager(job.ManagerConfig{
		Root: t.TempDir(),
		Factories: map[string]job.Factory{
			"stub": func(*job.Config, string) (job.Job, error) { return stubJob{}, nil },
		},
	})
	pubs := publication.NewRegistry()
	publication.RegisterDefaults(pubs)

	return NewRouter(NewHandler(jobs, tools, pubs)), jobs
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJobLifecycle(t *testing.T) {
	r, jobs := newTestServer(t)

	w := do(r, http.MethodPost, "/api/v1/jobs", `{"id":"alsc","type":"stub","reference":"R5076"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "alsc", created.ID)
	assert.Equal(t, "created", created.State.Status)

	w = do(r, http.MethodPost, "/api/v1/jobs", `{"id":"alsc","type":"stub"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/api/v1/jobs/alsc/results", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPut, "/api/v1/jobs/alsc/command", `{"command":"run"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	task, err := jobs.Get("alsc")
	require.NoError(t, err)
	task.Wait()

	w = do(r, http.MethodGet, "/api/v1/jobs/alsc?filter=state", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Nil(t, got.Config)
	assert.Equal(t, "finished", got.State.Status)
	assert.NotEmpty(t, got.State.Archive)

	w = do(r, http.MethodGet, "/api/v1/jobs/alsc/results?prefix=ranger", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res Results
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Entries, 2)
	assert.Equal(t, ResultEntry{Path: "ranger/ion_count", Kind: "int", Value: float64(12345)}, res.Entries[0])
	assert.Equal(t, "NaN", res.Entries[1].Value)

	w = do(r, http.MethodGet, "/api/v1/jobs?reference=R5076", "")
	var list []Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = do(r, http.MethodDelete, "/api/v1/jobs/alsc", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodDelete, "/api/v1/jobs/alsc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrors(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodGet, "/api/v1/jobs/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, http.StatusNotFound, e.Code)
	assert.Equal(t, "Unknown job ID", e.Message)
	assert.Equal(t, job.ErrNotFound.Error(), e.Detail)

	w = do(r, http.MethodPost, "/api/v1/jobs", `{"type":"voxelizer"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/api/v1/jobs", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	do(r, http.MethodPost, "/api/v1/jobs", `{"id":"j","type":"stub"}`)
	w = do(r, http.MethodPut, "/api/v1/jobs/j/command", `{"command":"restart"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPut, "/api/v1/jobs/j/command", `{"command":"abort"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPut, "/api/v1/jobs/missing/command", `{"command":"run"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicationsAndToolchain(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodGet, "/api/v1/publications", "")
	require.Equal(t, http.StatusOK, w.Code)
	var pubs Publications
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pubs))
	require.Len(t, pubs.Entries, 1)
	assert.Equal(t, "paraprobe", pubs.Entries[0].Tool)

	w = do(r, http.MethodGet, "/api/v1/publications?format=bibtex", "")
	assert.True(t, strings.HasPrefix(w.Body.String(), "@article{kuehbach2022,"))

	w = do(r, http.MethodGet, "/api/v1/toolchain", "")
	require.Equal(t, http.StatusOK, w.Code)
	var tc Toolchain
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tc))
	require.Len(t, tc.Tools, 6)
	for _, tool := range tc.Tools {
		assert.NotEmpty(t, tool.Error, tool.Name)
	}

	w = do(r, http.MethodPost, "/api/v1/toolchain/reload", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
