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
	"github.com/pkg/errors"
)

// DataStage is one named phase of training with its own data source. The
// trainer switches stages as the global step crosses each StartTrainingStep,
// so the stages in Config.DataStages form an ordered sequence.
type DataStage struct {
	// Data configures the data loading for this stage.
	Data DataConfig `yaml:"data"`

	// Name identifies the stage in logs, e.g. "Stable Training Stage".
	Name string `yaml:"name"`

	// StartTrainingStep is the first training step of this stage, counted
	// from 1. Strictly increasing across the sequence of stages.
	StartTrainingStep int `yaml:"start_training_step"`
}

// DataConfig describes the data source and loading of one stage.
type DataConfig struct {
	// Dataset references the training corpus. Nil means the trainer
	// generates synthetic data, which is useful for benchmarks.
	Dataset *DatasetConfig `yaml:"dataset"`

	// NumLoadingWorkers is the number of background data loader workers.
	// Zero loads synchronously on the training process.
	NumLoadingWorkers int `yaml:"num_loading_workers"`

	// Seed for shuffling and sampling in this stage.
	Seed uint64 `yaml:"seed"`
}

// DatasetConfig points at a tokenized text corpus on the hub or on disk.
type DatasetConfig struct {
	// HFDatasetOrDatasets is a dataset repo id or local path. Multiple
	// datasets are given comma-separated with optional weights.
	HFDatasetOrDatasets string `yaml:"hf_dataset_or_datasets"`

	// HFDatasetConfigName selects a configuration of the dataset, when it
	// has more than one.
	HFDatasetConfigName *string `yaml:"hf_dataset_config_name"`

	// HFDatasetSplits selects the split(s) to train on. Defaults to "train".
	HFDatasetSplits *string `yaml:"hf_dataset_splits"`

	// TextColumnName is the column holding the raw text.
	TextColumnName string `yaml:"text_column_name"`
}

func validateDataStages(stages []DataStage, trainSteps int) error {
	if len(stages) == 0 {
		return errors.New("data_stages: at least one stage is required")
	}
	lastStart := 0
	for i, stage := range stages {
		if stage.Name == "" {
			return errors.Errorf("data_stages[%d].name: must not be empty", i)
		}
		if stage.StartTrainingStep < 1 {
			return errors.Errorf("data_stages[%d].start_training_step: must be at least 1, got %d",
				i, stage.StartTrainingStep)
		}
		if stage.StartTrainingStep <= lastStart {
			return errors.Errorf(
				"data_stages[%d].start_training_step: must be strictly increasing, got %d after %d",
				i, stage.StartTrainingStep, lastStart)
		}
		if trainSteps > 0 && stage.StartTrainingStep > trainSteps {
			return errors.Errorf(
				"data_stages[%d].start_training_step: %d is past the end of training (tokens.train_steps=%d)",
				i, stage.StartTrainingStep, trainSteps)
		}
		if stage.Data.NumLoadingWorkers < 0 {
			return errors.Errorf("data_stages[%d].data.num_loading_workers: must not be negative, got %d",
				i, stage.Data.NumLoadingWorkers)
		}
		if stage.Data.Dataset != nil && stage.Data.Dataset.HFDatasetOrDatasets == "" {
			return errors.Errorf("data_stages[%d].data.dataset.hf_dataset_or_datasets: must not be empty", i)
		}
		lastStart = stage.StartTrainingStep
	}
	return nil
}

// StageAt returns the data stage active at the given training step (counted
// from 1), or nil if the step precedes the first stage.
func (c *Config) StageAt(step int) *DataStage {
	var active *DataStage
	for i := range c.DataStages {
		if c.DataStages[i].StartTrainingStep > step {
			break
		}
		active = &c.DataStages[i]
	}
	return active
}
