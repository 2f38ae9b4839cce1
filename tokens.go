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

// TokensConfig sizes the batches and the run: how many tokens each step
// consumes and for how many steps training lasts.
type TokensConfig struct {
	// BatchAccumulationPerReplica is the number of micro-batches each
	// replica accumulates gradients over before an optimizer step.
	BatchAccumulationPerReplica int `yaml:"batch_accumulation_per_replica"`

	// LimitTestBatches / LimitValBatches cap the number of batches per
	// test / validation pass. Zero means no pass.
	LimitTestBatches int `yaml:"limit_test_batches"`
	LimitValBatches  int `yaml:"limit_val_batches"`

	// MicroBatchSize is the number of sequences per forward pass on one
	// replica.
	MicroBatchSize int `yaml:"micro_batch_size"`

	// SequenceLength is the number of tokens per sequence. Must not exceed
	// the model's max_position_embeddings.
	SequenceLength int `yaml:"sequence_length"`

	// TrainSteps is the total number of optimizer steps of the run.
	TrainSteps int `yaml:"train_steps"`

	// ValCheckInterval is the number of training steps between validation
	// passes. -1 disables validation.
	ValCheckInterval int `yaml:"val_check_interval"`
}

func (t *TokensConfig) validate() error {
	for path, value := range map[string]int{
		"tokens.micro_batch_size":               t.MicroBatchSize,
		"tokens.batch_accumulation_per_replica": t.BatchAccumulationPerReplica,
		"tokens.sequence_length":                t.SequenceLength,
		"tokens.train_steps":                    t.TrainSteps,
	} {
		if value <= 0 {
			return errors.Errorf("%s: must be positive, got %d", path, value)
		}
	}
	if t.LimitValBatches < 0 {
		return errors.Errorf("tokens.limit_val_batches: must not be negative, got %d", t.LimitValBatches)
	}
	if t.LimitTestBatches < 0 {
		return errors.Errorf("tokens.limit_test_batches: must not be negative, got %d", t.LimitTestBatches)
	}
	if t.ValCheckInterval == 0 || t.ValCheckInterval < -1 {
		return errors.Errorf("tokens.val_check_interval: must be a positive interval or -1 to disable, got %d",
			t.ValCheckInterval)
	}
	return nil
}

// GlobalBatchSize is the number of sequences consumed by one optimizer step
// across the whole cluster: micro batch x accumulation x data-parallel degree.
func (t *TokensConfig) GlobalBatchSize(dp int) int64 {
	return int64(t.MicroBatchSize) * int64(t.BatchAccumulationPerReplica) * int64(dp)
}
