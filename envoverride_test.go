package trainconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFromProcess(t *testing.T) {
	t.Setenv("TRAINCONFIG_CHECKPOINTS_PATH", "/mnt/shared/checkpoints")
	t.Setenv("TRAINCONFIG_RUN", "cluster_run_%jobid")
	t.Setenv("TRAINCONFIG_JOB_ID", "slurm-889")
	t.Setenv("TRAINCONFIG_WORLD_SIZE", "8")
	t.Setenv("TRAINCONFIG_HUB_TOKEN", "hf_test")

	env, err := EnvFromProcess()
	require.NoError(t, err)
	assert.Equal(t, "/mnt/shared/checkpoints", env.CheckpointsPath)
	assert.Equal(t, "cluster_run_%jobid", env.Run)
	assert.Equal(t, "slurm-889", env.JobID)
	assert.Equal(t, 8, env.WorldSize)
	assert.Equal(t, "hf_test", env.HubToken)

	// The default cache directory is tilde-expanded.
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cache/trainconfig"), env.CacheDir)
}

func TestEnvOverridesApply(t *testing.T) {
	cfg := loadTestConfig(t)

	env := &EnvOverrides{
		CheckpointsPath:      "/mnt/shared/checkpoints",
		ResumeCheckpointPath: "/mnt/shared/checkpoints/5000",
		Run:                  "resumed_run",
	}
	env.Apply(cfg)

	assert.Equal(t, "/mnt/shared/checkpoints", cfg.Checkpoints.CheckpointsPath)
	require.NotNil(t, cfg.Checkpoints.ResumeCheckpointPath)
	assert.Equal(t, "/mnt/shared/checkpoints/5000", *cfg.Checkpoints.ResumeCheckpointPath)
	assert.Equal(t, "resumed_run", cfg.General.Run)

	// Unset overrides leave the document untouched.
	original := loadTestConfig(t)
	(&EnvOverrides{}).Apply(original)
	assert.Equal(t, loadTestConfig(t), original)
}
