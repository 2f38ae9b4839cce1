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
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// OptimizerConfig holds the optimizer hyperparameters: gradient clipping,
// weight decay, the learning rate schedule and the optimizer algorithm itself.
type OptimizerConfig struct {
	// AccumulateGradInFP32 keeps the gradient accumulation buffers in
	// float32 even when the model trains in half precision.
	AccumulateGradInFP32 bool `yaml:"accumulate_grad_in_fp32"`

	// ClipGrad is the gradient norm clipping threshold. Zero disables
	// clipping.
	ClipGrad float64 `yaml:"clip_grad"`

	// LearningRateScheduler shapes the learning rate over the run.
	LearningRateScheduler LearningRateSchedule `yaml:"learning_rate_scheduler"`

	// OptimizerFactory selects and parameterizes the optimizer algorithm.
	OptimizerFactory OptimizerFactory `yaml:"optimizer_factory"`

	// WeightDecay is the decoupled (AdamW style) weight decay coefficient.
	WeightDecay float64 `yaml:"weight_decay"`

	// ZeroStage is the zero-redundancy optimizer stage: 0 keeps full
	// optimizer state on every data-parallel replica, 1 partitions it.
	ZeroStage int `yaml:"zero_stage"`
}

// LearningRateSchedule describes the learning rate over the run: a warmup
// ramp to LearningRate, an optional constant plateau, then a decay to
// MinDecayLR.
type LearningRateSchedule struct {
	// LearningRate is the peak rate, reached at the end of warmup.
	LearningRate float64 `yaml:"learning_rate"`

	// LRDecayStartingStep is the step decay starts at. Nil means decay
	// starts right after warmup.
	LRDecayStartingStep *int `yaml:"lr_decay_starting_step"`

	// LRDecaySteps is the length of the decay window. Nil means decay
	// stretches to the end of training.
	LRDecaySteps *int `yaml:"lr_decay_steps"`

	// LRDecayStyle is the decay curve: cosine, linear, 1-sqrt or constant.
	LRDecayStyle LRDecayStyle `yaml:"lr_decay_style"`

	// LRWarmupSteps is the number of warmup steps. Zero disables warmup.
	LRWarmupSteps int `yaml:"lr_warmup_steps"`

	// LRWarmupStyle is the warmup ramp: linear from zero, or constant at
	// the peak rate.
	LRWarmupStyle LRWarmupStyle `yaml:"lr_warmup_style"`

	// MinDecayLR is the floor the rate decays to and stays at.
	MinDecayLR float64 `yaml:"min_decay_lr"`
}

// OptimizerFactory selects the optimizer algorithm and its coefficients.
type OptimizerFactory struct {
	// AdamBeta1 and AdamBeta2 are the exponential decay rates of the first
	// and second gradient moment estimates. Defaults: 0.9 and 0.999.
	AdamBeta1 float64 `yaml:"adam_beta1"`
	AdamBeta2 float64 `yaml:"adam_beta2"`

	// AdamEps is the denominator stability constant. Defaults to 1e-8.
	AdamEps float64 `yaml:"adam_eps"`

	// Name of the algorithm: adamW, adam or sgd.
	Name OptimizerName `yaml:"name"`

	// TorchAdamIsFused selects the fused CUDA kernel implementation.
	TorchAdamIsFused bool `yaml:"torch_adam_is_fused"`
}

func (o *OptimizerConfig) validate() error {
	if o.ClipGrad < 0 {
		return errors.Errorf("optimizer.clip_grad: must not be negative, got %g", o.ClipGrad)
	}
	if o.WeightDecay < 0 {
		return errors.Errorf("optimizer.weight_decay: must not be negative, got %g", o.WeightDecay)
	}
	if o.ZeroStage != 0 && o.ZeroStage != 1 {
		return errors.Errorf("optimizer.zero_stage: must be 0 or 1, got %d", o.ZeroStage)
	}
	if err := o.LearningRateScheduler.validate(); err != nil {
		return err
	}
	return o.OptimizerFactory.validate()
}

func (s *LearningRateSchedule) validate() error {
	if s.LearningRate <= 0 {
		return errors.Errorf("optimizer.learning_rate_scheduler.learning_rate: must be positive, got %g",
			s.LearningRate)
	}
	if s.MinDecayLR < 0 {
		return errors.Errorf("optimizer.learning_rate_scheduler.min_decay_lr: must not be negative, got %g",
			s.MinDecayLR)
	}
	if s.MinDecayLR > s.LearningRate {
		return errors.Errorf(
			"optimizer.learning_rate_scheduler.min_decay_lr: %g exceeds the peak learning_rate (%g)",
			s.MinDecayLR, s.LearningRate)
	}
	if s.LRWarmupSteps < 0 {
		return errors.Errorf("optimizer.learning_rate_scheduler.lr_warmup_steps: must not be negative, got %d",
			s.LRWarmupSteps)
	}
	if s.LRDecaySteps != nil && *s.LRDecaySteps <= 0 {
		return errors.Errorf("optimizer.learning_rate_scheduler.lr_decay_steps: must be positive, got %d",
			*s.LRDecaySteps)
	}
	if s.LRDecayStartingStep != nil && *s.LRDecayStartingStep < s.LRWarmupSteps {
		return errors.Errorf(
			"optimizer.learning_rate_scheduler.lr_decay_starting_step: %d is before the end of warmup (%d steps)",
			*s.LRDecayStartingStep, s.LRWarmupSteps)
	}
	return nil
}

func (f *OptimizerFactory) validate() error {
	if f.AdamBeta1 < 0 || f.AdamBeta1 >= 1 {
		return errors.Errorf("optimizer.optimizer_factory.adam_beta1: must be in [0, 1), got %g", f.AdamBeta1)
	}
	if f.AdamBeta2 < 0 || f.AdamBeta2 >= 1 {
		return errors.Errorf("optimizer.optimizer_factory.adam_beta2: must be in [0, 1), got %g", f.AdamBeta2)
	}
	if f.AdamEps <= 0 {
		return errors.Errorf("optimizer.optimizer_factory.adam_eps: must be positive, got %g", f.AdamEps)
	}
	return nil
}

// At returns the effective learning rate at the given training step, counted
// from 0, for a run of trainSteps steps.
//
// The shape is: warmup over the first LRWarmupSteps steps, a constant plateau
// at the peak rate until decay starts, the decay curve over the decay window,
// then MinDecayLR for the remainder of the run.
func (s *LearningRateSchedule) At(step, trainSteps int) float64 {
	if s.LRWarmupSteps > 0 && step < s.LRWarmupSteps {
		if s.LRWarmupStyle == LRWarmupConstant {
			return s.LearningRate
		}
		// Linear ramp, reaching the peak rate at the last warmup step.
		return s.LearningRate * float64(step+1) / float64(s.LRWarmupSteps)
	}

	decayStart := s.LRWarmupSteps
	if s.LRDecayStartingStep != nil {
		decayStart = *s.LRDecayStartingStep
	}
	decaySteps := trainSteps - decayStart
	if s.LRDecaySteps != nil {
		decaySteps = *s.LRDecaySteps
	}
	if step < decayStart || decaySteps <= 0 || s.LRDecayStyle == LRDecayConstant {
		return s.LearningRate
	}
	if step >= decayStart+decaySteps {
		return s.MinDecayLR
	}

	progress := float64(step-decayStart) / float64(decaySteps)
	span := s.LearningRate - s.MinDecayLR
	switch s.LRDecayStyle {
	case LRDecayLinear:
		return s.LearningRate - span*progress
	case LRDecayOneSqrt:
		return s.MinDecayLR + span*(1-math.Sqrt(progress))
	default: // LRDecayCosine
		return s.MinDecayLR + span*(1+math.Cos(math.Pi*progress))/2
	}
}

// LRDecayStyle is an enum of learning rate decay curves.
// The zero value is cosine, the standard choice for pretraining.
type LRDecayStyle int

const (
	LRDecayCosine LRDecayStyle = iota
	LRDecayLinear
	LRDecayOneSqrt
	LRDecayConstant
)

var lrDecayStyleNames = []string{"cosine", "linear", "1-sqrt", "constant"}

// LRDecayStyleFromName converts a decay style name to its enum value.
func LRDecayStyleFromName(name string) (LRDecayStyle, error) {
	return enumFromName[LRDecayStyle](name, lrDecayStyleNames, "learning rate decay style")
}

func (s LRDecayStyle) String() string { return enumName(s, lrDecayStyleNames) }

// MarshalYAML implements yaml.Marshaler.
func (s LRDecayStyle) MarshalYAML() (any, error) { return s.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *LRDecayStyle) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, s, lrDecayStyleNames, "optimizer.learning_rate_scheduler.lr_decay_style")
}

// LRWarmupStyle is an enum of warmup ramps. The zero value is linear.
type LRWarmupStyle int

const (
	LRWarmupLinear LRWarmupStyle = iota
	LRWarmupConstant
)

var lrWarmupStyleNames = []string{"linear", "constant"}

func (s LRWarmupStyle) String() string { return enumName(s, lrWarmupStyleNames) }

// MarshalYAML implements yaml.Marshaler.
func (s LRWarmupStyle) MarshalYAML() (any, error) { return s.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *LRWarmupStyle) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, s, lrWarmupStyleNames, "optimizer.learning_rate_scheduler.lr_warmup_style")
}

// OptimizerName is an enum of the optimizer algorithms the trainer knows how
// to build. The zero value is adamW.
type OptimizerName int

const (
	OptimizerAdamW OptimizerName = iota
	OptimizerAdam
	OptimizerSGD
)

// The "adamW" capitalization follows the factory name the trainer registers.
var optimizerNames = []string{"adamW", "adam", "sgd"}

// OptimizerFromName converts an optimizer name to its enum value.
func OptimizerFromName(name string) (OptimizerName, error) {
	return enumFromName[OptimizerName](name, optimizerNames, "optimizer")
}

func (o OptimizerName) String() string { return enumName(o, optimizerNames) }

// MarshalYAML implements yaml.Marshaler.
func (o OptimizerName) MarshalYAML() (any, error) { return o.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *OptimizerName) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, o, optimizerNames, "optimizer.optimizer_factory.name")
}
