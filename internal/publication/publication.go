// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package publication

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Publication is a citation to report alongside a tool's results
type Publication struct {
	Title   string   `json:"title" yaml:"title"`
	Journal string   `json:"journal" yaml:"journal"`
	Volume  string   `json:"volume,omitempty" yaml:"volume,omitempty"`
	Number  string   `json:"number,omitempty" yaml:"number,omitempty"`
	Year    string   `json:"year" yaml:"year"`
	DOI     string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`
	Authors []string `json:"author" yaml:"author"`
}

// Key is a short BibTeX style key, e.g. "kuehbach2022"
func (p Publication) Key() string {
	var fields []string
	if len(p.Authors) > 0 {
		fields = strings.Fields(p.Authors[0])
	}
	if len(fields) == 0 {
		return "anonymous" + p.Year
	}
	last := strings.ToLower(fields[len(fields)-1])
	return strings.NewReplacer("ü", "ue", "ö", "oe", "ä", "ae").Replace(last) + p.Year
}

// BibTeX renders the publication as an @article entry
func (p Publication) BibTeX() string {
	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", p.Key())
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %s = {%s},\n", name, value)
		}
	}
	field("title", p.Title)
	field("journal", p.Journal)
	field("volume", p.Volume)
	field("number", p.Number)
	field("year", p.Year)
	field("doi", p.DOI)
	field("url", p.URL)
	field("author", strings.Join(p.Authors, " and "))
	b.WriteString("}\n")
	return b.String()
}

// Entry is a tool with its publications
type Entry struct {
	Tool         string        `json:"tool"`
	Publications []Publication `json:"publications"`
}

// Registry collects the publications of the tools a process uses. It is
// filled at startup and read when reports are generated.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]Publication
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string][]Publication)}
}

// Add registers publications for tool. Adding the same title twice is a no-op.
func (r *Registry) Add(tool string, pubs ...Publication) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.entries[tool]
	for _, p := range pubs {
		dup := false
		for _, e := range existing {
			if e.Title == p.Title {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, p)
		}
	}
	r.entries[tool] = existing
}

// Get returns the publications of one tool
func (r *Registry) Get(tool string) []Publication {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Publication, len(r.entries[tool]))
	copy(out, r.entries[tool])
	return out
}

// List returns all entries sorted by tool name
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for tool, pubs := range r.entries {
		cp := make([]Publication, len(pubs))
		copy(cp, pubs)
		out = append(out, Entry{Tool: tool, Publications: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tool < out[j].Tool })
	return out
}

// Paraprobe is the reference publication of the paraprobe toolbox
var Paraprobe = Publication{
	Title: "On Strong-Scaling and Open-Source Tools for High-Throughput Quantification of " +
		"Material Point Cloud Data: Composition Gradients, Microstructural Object Reconstruction, " +
		"and Spatial Correlations",
	Journal: "arxiv",
	Volume:  "1",
	Number:  "1",
	Year:    "2022",
	DOI:     "10.48550/arXiv.2205.13510",
	URL:     "https://doi.org/10.48550/arXiv.2205.13510",
	Authors: []string{
		"Markus Kühbach", "Vitor Vieira Rielli", "Sophie Primig", "Alaukik Saxena",
		"David Mayweg", "Benjamin Jenkins", "Stoichkov Antonov", "Alexander Reichmann",
		"Stefan Kardos", "Lorenz Romaner", "Sandor Brockhauser",
	},
}

// RegisterDefaults adds the publications of the bundled job types
func RegisterDefaults(r *Registry) {
	r.Add("paraprobe", Paraprobe)
}
