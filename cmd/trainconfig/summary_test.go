package main

import (
	"testing"

	"github.com/gomlx/trainconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortCount(t *testing.T) {
	assert.Equal(t, "512", shortCount(512))
	assert.Equal(t, "1.5K", shortCount(1500))
	assert.Equal(t, "125.0M", shortCount(125_000_000))
	assert.Equal(t, "8.0B", shortCount(8_030_000_000))
	assert.Equal(t, "1.4T", shortCount(1_400_000_000_000))
}

func TestVocabDescription(t *testing.T) {
	model := &trainconfig.ModelSettings{
		MakeVocabSizeDivisibleBy: 128,
		ModelConfig:              trainconfig.ModelConfig{VocabSize: 49152},
	}
	assert.Equal(t, "49,152", vocabDescription(model))

	model.ModelConfig.VocabSize = 50257
	assert.Equal(t, "50,304 (padded from 50,257)", vocabDescription(model))
}

func TestOptimizerDescription(t *testing.T) {
	cfg, err := trainconfig.Parse([]byte("{}"))
	require.NoError(t, err)
	opt := &cfg.Optimizer
	opt.WeightDecay = 0.01
	opt.ClipGrad = 1.0

	assert.Equal(t, "adamW (betas 0.9/0.999, eps 1e-08, weight decay 0.01, clip 1)",
		optimizerDescription(opt))

	opt.ZeroStage = 1
	assert.Contains(t, optimizerDescription(opt), "ZeRO stage 1")
}

func TestScheduleDescription(t *testing.T) {
	schedule := &trainconfig.LearningRateSchedule{
		LearningRate:  3e-4,
		MinDecayLR:    1e-5,
		LRWarmupSteps: 2000,
	}
	assert.Equal(t, "peak 0.0003, linear warmup over 2,000 steps, cosine decay to 1e-05",
		scheduleDescription(schedule))

	schedule.LRWarmupSteps = 0
	schedule.LRDecayStyle = trainconfig.LRDecayOneSqrt
	assert.Equal(t, "peak 0.0003, 1-sqrt decay to 1e-05", scheduleDescription(schedule))
}
