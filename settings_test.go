package trainconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySettings(t *testing.T) {
	cfg := loadTestConfig(t)

	applied, err := ApplySettings(cfg,
		"tokens.micro_batch_size=4;"+
			"optimizer.learning_rate_scheduler.learning_rate=6e-4;"+
			"parallelism.tp_mode=ALL_REDUCE;"+
			"model.dtype=float32;"+
			"data_stages.0.data.seed=12;"+
			"general.run=override_run")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tokens.micro_batch_size",
		"optimizer.learning_rate_scheduler.learning_rate",
		"parallelism.tp_mode",
		"model.dtype",
		"data_stages.0.data.seed",
		"general.run",
	}, applied)

	assert.Equal(t, 4, cfg.Tokens.MicroBatchSize)
	assert.Equal(t, 6e-4, cfg.Optimizer.LearningRateScheduler.LearningRate)
	assert.Equal(t, TPModeAllReduce, cfg.Parallelism.TPMode)
	assert.Equal(t, Float32, cfg.Model.Dtype)
	assert.Equal(t, uint64(12), cfg.DataStages[0].Data.Seed)
	assert.Equal(t, "override_run", cfg.General.Run)

	require.NoError(t, cfg.Validate())
}

func TestApplySettingsUnderscoredInts(t *testing.T) {
	cfg := loadTestConfig(t)
	_, err := ApplySettings(cfg, "tokens.train_steps=1_000_000")
	require.NoError(t, err)
	assert.Equal(t, 1000000, cfg.Tokens.TrainSteps)
}

func TestApplySettingsPointers(t *testing.T) {
	cfg := loadTestConfig(t)

	// Setting a nullable field allocates it.
	_, err := ApplySettings(cfg, "general.step=500")
	require.NoError(t, err)
	require.NotNil(t, cfg.General.Step)
	assert.Equal(t, 500, *cfg.General.Step)

	// And "null" clears it again.
	_, err = ApplySettings(cfg, "general.step=null")
	require.NoError(t, err)
	assert.Nil(t, cfg.General.Step)

	// Descending through a nil section pointer allocates the section.
	require.Nil(t, cfg.Profiler)
	_, err = ApplySettings(cfg, "profiler.profiler_export_path=/tmp/traces")
	require.NoError(t, err)
	require.NotNil(t, cfg.Profiler)
	assert.Equal(t, "/tmp/traces", cfg.Profiler.ProfilerExportPath)
}

func TestApplySettingsFromFile(t *testing.T) {
	cfg := loadTestConfig(t)
	fileName := filepath.Join(t.TempDir(), "overrides.txt")
	contents := "# throughput sweep\n" +
		"tokens.micro_batch_size=8\n" +
		"\n" +
		"tokens.batch_accumulation_per_replica=4;tokens.sequence_length=4096\n"
	require.NoError(t, os.WriteFile(fileName, []byte(contents), 0644))

	applied, err := ApplySettings(cfg, "file:"+fileName)
	require.NoError(t, err)
	assert.Len(t, applied, 3)
	assert.Equal(t, 8, cfg.Tokens.MicroBatchSize)
	assert.Equal(t, 4, cfg.Tokens.BatchAccumulationPerReplica)
	assert.Equal(t, 4096, cfg.Tokens.SequenceLength)
}

func TestApplySettingsErrors(t *testing.T) {
	cfg := loadTestConfig(t)

	_, err := ApplySettings(cfg, "tokens.micro_batch=4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration field")

	_, err = ApplySettings(cfg, "tokens.micro_batch_size")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"<path>=<value>"`)

	_, err = ApplySettings(cfg, "data_stages.7.data.seed=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = ApplySettings(cfg, "data_stages.first.data.seed=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be a list index")

	_, err = ApplySettings(cfg, "tokens.micro_batch_size=lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse value")

	_, err = ApplySettings(cfg, "parallelism.tp_mode=broadcast")
	require.Error(t, err)
}
