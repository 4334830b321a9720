// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package composition

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig   = errors.New("invalid compositionspace config")
	ErrUnknownAnalysis = errors.New("unknown analysis")
	ErrInputPathNotSet = errors.New("input path needs to be set before analysis")
)

// Model names
const (
	GaussianMixture = "GaussianMixture"
	RandomForest    = "RandomForest"
	DBScan          = "DBScan"
)

// GaussianMixtureConfig 高斯混合模型参数
type GaussianMixtureConfig struct {
	NComponents int `json:"n_components" yaml:"n_components"`
	MaxIter     int `json:"max_iter" yaml:"max_iter"`
	Verbose     int `json:"verbose" yaml:"verbose"`
}

// RandomForestConfig 随机森林参数
type RandomForestConfig struct {
	MaxDepth    int `json:"max_depth" yaml:"max_depth"`
	NEstimators int `json:"n_estimators" yaml:"n_estimators"`
}

// DBScanConfig DBSCAN 参数
type DBScanConfig struct {
	Eps        float64 `json:"eps" yaml:"eps"`
	MinSamples int     `json:"min_samples" yaml:"min_samples"`
}

// Models selects the clustering model and holds the parameters of all of them
type Models struct {
	Name            string                `json:"name" yaml:"name"`
	GaussianMixture GaussianMixtureConfig `json:"GaussianMixture" yaml:"GaussianMixture"`
	RandomForest    RandomForestConfig    `json:"RandomForest" yaml:"RandomForest"`
	DBScan          DBScanConfig          `json:"DBScan" yaml:"DBScan"`
}

// Config is the compositionspace input file
type Config struct {
	InputPath  string `json:"input_path" yaml:"input_path"`
	OutputPath string `json:"output_path,omitempty" yaml:"output_path"`
	NBigSlices int    `json:"n_big_slices" yaml:"n_big_slices"`
	// VoxelSize is the voxel edge length in nm.
	VoxelSize    float64 `json:"voxel_size" yaml:"voxel_size"`
	BicsClusters int     `json:"bics_clusters" yaml:"bics_clusters"`
	NPhases      int     `json:"n_phases" yaml:"n_phases"`
	MLModels     Models  `json:"ml_models" yaml:"ml_models"`

	FileIndex int  `json:"file_index" yaml:"file_index"`
	ClusterID int  `json:"cluster_id" yaml:"cluster_id"`
	Plot      bool `json:"plot" yaml:"plot"`
	Plot3D    bool `json:"plot3d" yaml:"plot3d"`
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return Config{
		NBigSlices:   10,
		VoxelSize:    2,
		BicsClusters: 10,
		NPhases:      2,
		MLModels: Models{
			Name:            GaussianMixture,
			GaussianMixture: GaussianMixtureConfig{NComponents: 2, MaxIter: 100000, Verbose: 0},
			RandomForest:    RandomForestConfig{MaxDepth: 0, NEstimators: 0},
			DBScan:          DBScanConfig{Eps: 3, MinSamples: 5},
		},
	}
}

// Validate checks the enumerated model name and the numeric ranges
func (c Config) Validate() error {
	switch c.MLModels.Name {
	case GaussianMixture, RandomForest, DBScan:
	default:
		return fmt.Errorf("%w: ml_models.name %q", ErrInvalidConfig, c.MLModels.Name)
	}
	checks := []struct {
		name string
		ok   bool
	}{
		{"n_big_slices", c.NBigSlices > 0},
		{"voxel_size", c.VoxelSize > 0},
		{"bics_clusters", c.BicsClusters > 0},
		{"n_phases", c.NPhases > 0},
		{"ml_models.GaussianMixture.n_components", c.MLModels.GaussianMixture.NComponents > 0},
		{"ml_models.GaussianMixture.max_iter", c.MLModels.GaussianMixture.MaxIter > 0},
		{"ml_models.RandomForest.max_depth", c.MLModels.RandomForest.MaxDepth >= 0},
		{"ml_models.RandomForest.n_estimators", c.MLModels.RandomForest.NEstimators >= 0},
		{"ml_models.DBScan.eps", c.MLModels.DBScan.Eps > 0},
		{"ml_models.DBScan.min_samples", c.MLModels.DBScan.MinSamples > 0},
		{"file_index", c.FileIndex >= 0},
		{"cluster_id", c.ClusterID >= 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s out of range", ErrInvalidConfig, c.name)
		}
	}
	return nil
}

// Analysis is an optional compositionspace analysis
type Analysis string

// Analyses in the order they run
const (
	PCACumsum             Analysis = "pca_cumsum"
	BicsMinimization      Analysis = "bics_minimization"
	CompositionClustering Analysis = "composition_clustering"
	DBScanClustering      Analysis = "dbscan_clustering"
)

// AllAnalyses lists every analysis in run order
func AllAnalyses() []Analysis {
	return []Analysis{PCACumsum, BicsMinimization, CompositionClustering, DBScanClustering}
}

// ParseAnalysis accepts the analysis name with '-' or '_' separators
func ParseAnalysis(s string) (Analysis, error) {
	name := Analysis(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, a := range AllAnalyses() {
		if a == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAnalysis, s)
}
