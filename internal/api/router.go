// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter registers all routes below /api/v1
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.Default())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/toolchain", h.Toolchain)
		v1.POST("/toolchain/reload", h.ReloadToolchain)
		v1.GET("/publications", h.Publications)

		v1.GET("/jobs", h.ListJobs)
		v1.POST("/jobs", h.AddJob)
		v1.GET("/jobs/:id", h.GetJob)
		v1.DELETE("/jobs/:id", h.DeleteJob)
		v1.PUT("/jobs/:id/command", h.Command)
		v1.GET("/jobs/:id/results", h.GetResults)
	}
	return r
}
