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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAtStep(t *testing.T) {
	policy := CheckpointPolicy{CheckpointInterval: 1000}

	assert.False(t, policy.SaveAtStep(0))
	assert.False(t, policy.SaveAtStep(500))
	assert.True(t, policy.SaveAtStep(1000))
	assert.False(t, policy.SaveAtStep(1500))
	assert.True(t, policy.SaveAtStep(2000))

	policy.SaveInitialState = true
	assert.True(t, policy.SaveAtStep(0))
	assert.False(t, policy.SaveAtStep(-1))
}

func TestStepDir(t *testing.T) {
	policy := CheckpointPolicy{CheckpointsPath: "/scratch/run"}
	assert.Equal(t, filepath.Join("/scratch/run", "1000"), policy.StepDir(1000))
}

func TestSavedStepsAndLatest(t *testing.T) {
	dir := t.TempDir()
	policy := CheckpointPolicy{CheckpointInterval: 500, CheckpointsPath: dir}

	// Empty directory: fresh run.
	steps, err := policy.SavedSteps()
	require.NoError(t, err)
	assert.Empty(t, steps)
	_, found, err := policy.LatestStep()
	require.NoError(t, err)
	assert.False(t, found)

	// Checkpoints plus unrelated entries the scan must skip.
	for _, name := range []string{"1000", "2000", "500", "logs"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	steps, err = policy.SavedSteps()
	require.NoError(t, err)
	assert.Equal(t, []int{500, 1000, 2000}, steps)

	latest, found, err := policy.LatestStep()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2000, latest)
}

func TestSavedStepsMissingDir(t *testing.T) {
	policy := CheckpointPolicy{CheckpointsPath: filepath.Join(t.TempDir(), "never-created")}
	steps, err := policy.SavedSteps()
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestResolveResume(t *testing.T) {
	dir := t.TempDir()
	policy := CheckpointPolicy{CheckpointInterval: 500, CheckpointsPath: dir}

	// Nothing saved, nothing pinned: fresh run.
	_, found, err := policy.ResolveResume()
	require.NoError(t, err)
	assert.False(t, found)

	// Latest saved step wins when nothing is pinned.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "1500"), 0755))
	resume, found, err := policy.ResolveResume()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, filepath.Join(dir, "1500"), resume)

	// An explicit resume path always wins.
	pinned := "/elsewhere/checkpoint/1000"
	policy.ResumeCheckpointPath = &pinned
	resume, found, err = policy.ResolveResume()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, pinned, resume)
}
