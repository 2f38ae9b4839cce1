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
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// CheckpointPolicy configures when and where the trainer saves checkpoints.
//
// Checkpoints are saved under CheckpointsPath, one sub-directory per training
// step, named after the step number. The policy only describes the cadence and
// the layout -- the actual state serialization is the trainer's job.
type CheckpointPolicy struct {
	// CheckpointInterval is the number of training steps between saves.
	// Must be positive.
	CheckpointInterval int `yaml:"checkpoint_interval"`

	// CheckpointsPath is the directory checkpoints are saved under.
	CheckpointsPath string `yaml:"checkpoints_path"`

	// CheckpointsPathIsSharedFileSystem indicates all ranks see the same
	// CheckpointsPath, so only one rank needs to create directories.
	CheckpointsPathIsSharedFileSystem bool `yaml:"checkpoints_path_is_shared_file_system"`

	// ResumeCheckpointPath, if set, points at the checkpoint to resume
	// training from. When nil the latest step under CheckpointsPath is used,
	// or training starts from scratch if there is none.
	ResumeCheckpointPath *string `yaml:"resume_checkpoint_path"`

	// SaveInitialState saves a checkpoint of the freshly initialized model
	// before the first training step.
	SaveInitialState bool `yaml:"save_initial_state"`
}

func (p *CheckpointPolicy) validate() error {
	if p.CheckpointInterval <= 0 {
		return errors.Errorf("checkpoints.checkpoint_interval: must be a positive number of steps, got %d",
			p.CheckpointInterval)
	}
	if p.CheckpointsPath == "" {
		return errors.New("checkpoints.checkpoints_path: must not be empty")
	}
	return nil
}

// SaveAtStep reports whether a checkpoint is due at the given training step.
// Step 0 is the initial state, saved only if SaveInitialState is set.
func (p *CheckpointPolicy) SaveAtStep(step int) bool {
	if step <= 0 {
		return step == 0 && p.SaveInitialState
	}
	return step%p.CheckpointInterval == 0
}

// StepDir returns the directory a checkpoint for the given step is saved to.
func (p *CheckpointPolicy) StepDir(step int) string {
	return filepath.Join(p.CheckpointsPath, strconv.Itoa(step))
}

// SavedSteps scans CheckpointsPath and returns the steps with a saved
// checkpoint, sorted in increasing order. A missing checkpoints directory is
// not an error: it returns an empty list, meaning a fresh run.
func (p *CheckpointPolicy) SavedSteps() ([]int, error) {
	entries, err := os.ReadDir(p.CheckpointsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan checkpoints directory %q", p.CheckpointsPath)
	}
	var steps []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		step, err := strconv.Atoi(entry.Name())
		if err != nil || step < 0 {
			// Not a checkpoint directory, e.g. logs or a tokenizer copy.
			continue
		}
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps, nil
}

// LatestStep returns the highest step with a saved checkpoint under
// CheckpointsPath, and whether any was found.
func (p *CheckpointPolicy) LatestStep() (step int, found bool, err error) {
	steps, err := p.SavedSteps()
	if err != nil || len(steps) == 0 {
		return 0, false, err
	}
	return steps[len(steps)-1], true, nil
}

// ResolveResume decides where to resume training from: ResumeCheckpointPath
// when explicitly set, otherwise the latest saved step under CheckpointsPath.
// found is false when there is nothing to resume from.
func (p *CheckpointPolicy) ResolveResume() (dir string, found bool, err error) {
	if p.ResumeCheckpointPath != nil && *p.ResumeCheckpointPath != "" {
		return *p.ResumeCheckpointPath, true, nil
	}
	step, found, err := p.LatestStep()
	if err != nil || !found {
		return "", false, err
	}
	return p.StepDir(step), true, nil
}
