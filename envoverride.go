package trainconfig

import (
	"github.com/gomlx/trainconfig/internal/fsutil"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvOverrides are the deploy-varying knobs read from TRAINCONFIG_* environment
// variables, so the same configuration document can be submitted to different
// clusters. Empty / zero values mean "keep what the document says".
type EnvOverrides struct {
	// CheckpointsPath overrides checkpoints.checkpoints_path
	// (TRAINCONFIG_CHECKPOINTS_PATH).
	CheckpointsPath string `envconfig:"CHECKPOINTS_PATH"`

	// ResumeCheckpointPath overrides checkpoints.resume_checkpoint_path
	// (TRAINCONFIG_RESUME_CHECKPOINT_PATH).
	ResumeCheckpointPath string `envconfig:"RESUME_CHECKPOINT_PATH"`

	// Run overrides the general.run template (TRAINCONFIG_RUN).
	Run string `envconfig:"RUN"`

	// JobID fills the "%jobid" placeholder of the run name, typically set
	// by the cluster scheduler (TRAINCONFIG_JOB_ID).
	JobID string `envconfig:"JOB_ID"`

	// WorldSize is the number of devices of the cluster, used by the
	// topology check (TRAINCONFIG_WORLD_SIZE).
	WorldSize int `envconfig:"WORLD_SIZE"`

	// HubToken authenticates tokenizer downloads from the hub
	// (TRAINCONFIG_HUB_TOKEN).
	HubToken string `envconfig:"HUB_TOKEN"`

	// CacheDir is where downloaded tokenizer artifacts are kept
	// (TRAINCONFIG_CACHE_DIR).
	CacheDir string `envconfig:"CACHE_DIR" default:"~/.cache/trainconfig"`
}

// EnvFromProcess reads the TRAINCONFIG_* environment variables.
func EnvFromProcess() (*EnvOverrides, error) {
	env := &EnvOverrides{}
	if err := envconfig.Process("trainconfig", env); err != nil {
		return nil, errors.Wrap(err, "failed to read TRAINCONFIG_* environment overrides")
	}
	env.CacheDir = fsutil.ExpandTilde(env.CacheDir)
	return env, nil
}

// Apply copies the overrides that were actually set into the configuration.
// The caller should Validate afterwards.
func (e *EnvOverrides) Apply(cfg *Config) {
	if e.CheckpointsPath != "" {
		cfg.Checkpoints.CheckpointsPath = fsutil.ExpandTilde(e.CheckpointsPath)
	}
	if e.ResumeCheckpointPath != "" {
		resume := fsutil.ExpandTilde(e.ResumeCheckpointPath)
		cfg.Checkpoints.ResumeCheckpointPath = &resume
	}
	if e.Run != "" {
		cfg.General.Run = e.Run
	}
}
