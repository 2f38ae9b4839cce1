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
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// GeneralSettings names the run and holds run-wide toggles that belong to no
// other section.
type GeneralSettings struct {
	// BenchmarkCSVPath, if set, is where the trainer appends a row of
	// throughput numbers at the end of the run.
	BenchmarkCSVPath *string `yaml:"benchmark_csv_path"`

	// ConsumedTrainSamples is set when resuming: the number of samples
	// already consumed by the checkpointed run.
	ConsumedTrainSamples *int64 `yaml:"consumed_train_samples"`

	// IgnoreSanityChecks skips the trainer's slow start-up sanity checks
	// (e.g. verifying all replicas hold identical weights).
	IgnoreSanityChecks bool `yaml:"ignore_sanity_checks"`

	// Project groups related runs, e.g. in the experiment tracker.
	Project string `yaml:"project"`

	// Run is the run name template. The placeholders "%date" and "%jobid"
	// are expanded by ExpandRunName.
	Run string `yaml:"run"`

	// Seed is the global random seed.
	Seed uint64 `yaml:"seed"`

	// Step is set when resuming: the global step of the checkpoint.
	Step *int `yaml:"step"`
}

func (g *GeneralSettings) validate(trainSteps int) error {
	if g.Project == "" {
		return errors.New("general.project: must not be empty")
	}
	if g.Run == "" {
		return errors.New("general.run: must not be empty")
	}
	if g.Step != nil {
		if *g.Step < 0 {
			return errors.Errorf("general.step: must not be negative, got %d", *g.Step)
		}
		if trainSteps > 0 && *g.Step > trainSteps {
			return errors.Errorf("general.step: resume step %d is past tokens.train_steps (%d)",
				*g.Step, trainSteps)
		}
	}
	if g.ConsumedTrainSamples != nil && *g.ConsumedTrainSamples < 0 {
		return errors.Errorf("general.consumed_train_samples: must not be negative, got %d",
			*g.ConsumedTrainSamples)
	}
	return nil
}

// RunNameDateLayout is the timestamp format substituted for the "%date"
// placeholder of GeneralSettings.Run.
const RunNameDateLayout = "20060102_150405"

// ExpandRunName expands the "%date" and "%jobid" placeholders of the run name
// template. An empty jobID -- the scheduler provided none -- is replaced by a
// fresh random UUID, so two runs launched from the same document never collide.
func (g *GeneralSettings) ExpandRunName(now time.Time, jobID string) string {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	name := strings.ReplaceAll(g.Run, "%date", now.Format(RunNameDateLayout))
	return strings.ReplaceAll(name, "%jobid", jobID)
}
