// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package paraprobe

import (
	"errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ZSC714725/paraprobemanager/internal/result"
)

// PlotComposition draws the metrics of record as a bar chart. The image
// format follows the file extension.
func PlotComposition(record result.SummaryRecord, path string) error {
	metrics := record.Metrics()
	if len(metrics) == 0 {
		return errors.New("no metrics to plot")
	}

	values := make(plotter.Values, len(metrics))
	names := make([]string, len(metrics))
	for i, m := range metrics {
		values[i] = m.Value
		names[i] = m.Key
	}

	p := plot.New()
	p.Title.Text = "Composition"
	p.Y.Label.Text = result.Unit
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	width := vg.Length(len(metrics))*vg.Points(30) + 2*vg.Inch
	return p.Save(width, 4*vg.Inch, path)
}
