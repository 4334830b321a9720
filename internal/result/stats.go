// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package result

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Composition summarizes the metric values of a record
type Composition struct {
	Sum      float64
	Mean     float64
	StdDev   float64
	Dominant string
}

// Describe computes composition statistics. StdDev is the sample standard
// deviation and is 0 for fewer than two metrics.
func Describe(record SummaryRecord) Composition {
	values := record.Values()
	if len(values) == 0 {
		return Composition{}
	}

	c := Composition{
		Sum:      floats.Sum(values),
		Mean:     stat.Mean(values, nil),
		Dominant: record.metrics[floats.MaxIdx(values)].Key,
	}
	if len(values) > 1 {
		c.StdDev = stat.StdDev(values, nil)
	}
	return c
}

// Balanced reports whether the composition sums to 100 within tol.
func (c Composition) Balanced(tol float64) bool {
	return math.Abs(c.Sum-100) <= tol
}

// WriteComposition stores the statistics under summary/<namespace>.
func WriteComposition(c Composition, store *Store, namespace string) error {
	prefix := Path("summary", namespace)
	if err := store.Set(Path(prefix, "composition_sum"), Float(c.Sum)); err != nil {
		return err
	}
	if err := store.Set(Path(prefix, "composition_mean"), Float(c.Mean)); err != nil {
		return err
	}
	if err := store.Set(Path(prefix, "composition_stddev"), Float(c.StdDev)); err != nil {
		return err
	}
	return store.Set(Path(prefix, "dominant"), String(c.Dominant))
}
