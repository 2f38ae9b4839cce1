/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package trainconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageAt(t *testing.T) {
	cfg := loadTestConfig(t)
	annealing := cfg.DataStages[0]
	annealing.Name = "Annealing Stage"
	annealing.StartTrainingStep = 8000
	cfg.DataStages = append(cfg.DataStages, annealing)
	require.NoError(t, cfg.Validate())

	assert.Nil(t, cfg.StageAt(0)) // Steps count from 1.

	stage := cfg.StageAt(1)
	require.NotNil(t, stage)
	assert.Equal(t, "Stable Training Stage", stage.Name)

	stage = cfg.StageAt(7999)
	require.NotNil(t, stage)
	assert.Equal(t, "Stable Training Stage", stage.Name)

	stage = cfg.StageAt(8000)
	require.NotNil(t, stage)
	assert.Equal(t, "Annealing Stage", stage.Name)

	// The last stage stays active until the end of training.
	stage = cfg.StageAt(10000)
	require.NotNil(t, stage)
	assert.Equal(t, "Annealing Stage", stage.Name)
}

func TestSyntheticDataStage(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.DataStages[0].Data.Dataset = nil // Synthetic data, used by benchmarks.
	require.NoError(t, cfg.Validate())
}
