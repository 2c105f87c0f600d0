package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/hgpart/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.NumParts)
	assert.Equal(t, "first-choice", cfg.Coarsening.Strategy)
	assert.Equal(t, 3000000, cfg.Coarsening.HedgeThreshold)
	assert.InDelta(t, 1.075, cfg.Coarsening.MinReductionRatio, 1e-9)
	assert.Equal(t, "local", cfg.Transport.Kind)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
parts: 8
procs: 4
coarsening:
  strategy: model-2d
  vertex_visit_order: increasing-weight
vcycle:
  limit_on_cycles: 2
  shuffle_vertices: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.NumParts)
	assert.Equal(t, 4, cfg.NumProcs)
	assert.Equal(t, "model-2d", cfg.Coarsening.Strategy)
	assert.Equal(t, "increasing-weight", cfg.Coarsening.VertexVisitOrder)
	assert.Equal(t, 2, cfg.VCycle.LimitOnCycles)
	assert.Equal(t, 0.7, cfg.VCycle.ReductionInKeepThreshold)
	assert.True(t, cfg.VCycle.ShuffleVertices)
	assert.True(t, cfg.VCycle.ShuffleByPartition)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"one part", func(c *Config) { c.NumParts = 1 }},
		{"unknown visit order", func(c *Config) { c.Coarsening.VertexVisitOrder = "sideways" }},
		{"unknown strategy", func(c *Config) { c.Coarsening.Strategy = "heavy-edge" }},
		{"connectivity metric", func(c *Config) { c.Coarsening.ConnectivityMetric = 4 }},
		{"reduction ratio", func(c *Config) { c.Coarsening.ReductionRatio = 1.0 }},
		{"ws peers", func(c *Config) {
			c.Transport.Kind = "ws"
			c.NumProcs = 3
			c.Transport.Peers = []string{"127.0.0.1:7000"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, util.ErrBadParamInput))
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HGPART_PARTS", "16")
	t.Setenv("HGPART_COARSENING_STRATEGY", "model-2d")

	cfg, err := FromViper(New())
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.NumParts)
	assert.Equal(t, "model-2d", cfg.Coarsening.Strategy)
}

func TestValidateMessage(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.NumParts = 1

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NumParts must be 2 or greater")
}
