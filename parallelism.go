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
	"gopkg.in/yaml.v3"
)

// ParallelismConfig declares how the run is sharded over devices. The degrees
// multiply: a run needs exactly DP x TP x PP devices (expert parallelism
// shards the experts within the existing topology).
type ParallelismConfig struct {
	// DP is the data-parallel degree: number of model replicas, each
	// processing its own slice of the batch.
	DP int `yaml:"dp"`

	// ExpertParallelSize shards mixture-of-experts layers. 1 (the default)
	// for dense models.
	ExpertParallelSize int `yaml:"expert_parallel_size"`

	// PP is the pipeline-parallel degree: number of stages the layer stack
	// is split into.
	PP int `yaml:"pp"`

	// PPEngine is the pipeline schedule: "1f1b" (one forward, one backward)
	// or "afab" (all forward, all backward).
	PPEngine PipelineEngine `yaml:"pp_engine"`

	// TP is the tensor-parallel degree: number of devices each layer's
	// tensors are split across.
	TP int `yaml:"tp"`

	// TPLinearAsyncCommunication overlaps tensor-parallel communication
	// with the linear layer computation.
	TPLinearAsyncCommunication bool `yaml:"tp_linear_async_communication"`

	// TPMode is the collective used to combine tensor-parallel partials.
	TPMode TensorParallelMode `yaml:"tp_mode"`
}

func (p *ParallelismConfig) validate() error {
	for path, degree := range map[string]int{
		"parallelism.dp":                   p.DP,
		"parallelism.tp":                   p.TP,
		"parallelism.pp":                   p.PP,
		"parallelism.expert_parallel_size": p.ExpertParallelSize,
	} {
		if degree < 1 {
			return errors.Errorf("%s: parallel degree must be at least 1, got %d", path, degree)
		}
	}
	return nil
}

// WorldSize is the number of devices the declared topology requires:
// DP x TP x PP.
func (p *ParallelismConfig) WorldSize() int {
	return p.DP * p.TP * p.PP
}

func (p *ParallelismConfig) checkWorldSize(worldSize int) error {
	if got := p.WorldSize(); got != worldSize {
		return errors.Errorf(
			"parallelism: dp*pp*tp = %d*%d*%d = %d devices, but the cluster has %d",
			p.DP, p.PP, p.TP, got, worldSize)
	}
	return nil
}

// TensorParallelMode is an enum of the collectives used to combine
// tensor-parallel partial results. The zero value is ALL_REDUCE.
type TensorParallelMode int

const (
	TPModeAllReduce TensorParallelMode = iota

	// TPModeReduceScatter keeps activations sharded between the paired
	// linear layers, trading one all-reduce for a reduce-scatter plus an
	// all-gather. Required for TPLinearAsyncCommunication.
	TPModeReduceScatter
)

var tpModeNames = []string{"ALL_REDUCE", "REDUCE_SCATTER"}

func (m TensorParallelMode) String() string { return enumName(m, tpModeNames) }

// MarshalYAML implements yaml.Marshaler.
func (m TensorParallelMode) MarshalYAML() (any, error) { return m.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *TensorParallelMode) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, m, tpModeNames, "parallelism.tp_mode")
}

// PipelineEngine is an enum of pipeline schedules. The zero value is 1f1b.
type PipelineEngine int

const (
	PipelineOneForwardOneBackward PipelineEngine = iota
	PipelineAllForwardAllBackward
)

var ppEngineNames = []string{"1f1b", "afab"}

func (e PipelineEngine) String() string { return enumName(e, ppEngineNames) }

// MarshalYAML implements yaml.Marshaler.
func (e PipelineEngine) MarshalYAML() (any, error) { return e.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *PipelineEngine) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, e, ppEngineNames, "parallelism.pp_engine")
}
