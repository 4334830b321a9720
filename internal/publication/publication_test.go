// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package publication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	RegisterDefaults(r)
	r.Add("compositionspace", Publication{Title: "Composition space", Year: "2023", Authors: []string{"Alaukik Saxena"}})

	entries := r.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "compositionspace", entries[0].Tool)
	assert.Equal(t, "paraprobe", entries[1].Tool)
	assert.Len(t, entries[1].Publications, 1)

	pubs := r.Get("paraprobe")
	pubs[0].Title = "changed"
	assert.Equal(t, Paraprobe.Title, r.Get("paraprobe")[0].Title)
	assert.Empty(t, r.Get("unknown"))
}

func TestBibTeX(t *testing.T) {
	assert.Equal(t, "kuehbach2022", Paraprobe.Key())

	bib := Paraprobe.BibTeX()
	assert.Contains(t, bib, "@article{kuehbach2022,\n")
	assert.Contains(t, bib, "  doi = {10.48550/arXiv.2205.13510},\n")
	assert.Contains(t, bib, "Markus Kühbach and Vitor Vieira Rielli")

	assert.Equal(t, "anonymous2020", Publication{Year: "2020"}.Key())
}
