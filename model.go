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

// ModelSettings wraps the architecture description (ModelConfig) with the
// training-side knobs of the model: numeric precision, weight initialization
// and gradient bucketing.
type ModelSettings struct {
	// DDPBucketCapMB is the gradient bucket size, in MiB, used by the
	// data-parallel gradient synchronization. Defaults to 25.
	DDPBucketCapMB int `yaml:"ddp_bucket_cap_mb"`

	// Dtype is the numeric precision of the model weights and activations.
	Dtype DType `yaml:"dtype"`

	// InitMethod configures the random weight initialization.
	InitMethod InitMethod `yaml:"init_method"`

	// MakeVocabSizeDivisibleBy pads the embedding table so the (padded)
	// vocabulary size is a multiple of this, which keeps tensor-parallel
	// shards of the embedding even. Defaults to 1 (no padding).
	MakeVocabSizeDivisibleBy int `yaml:"make_vocab_size_divisible_by"`

	// ModelConfig is the LLaMA architecture description.
	ModelConfig ModelConfig `yaml:"model_config"`
}

// InitMethod configures random weight initialization.
type InitMethod struct {
	// Std is the standard deviation of the truncated normal initializer.
	Std float64 `yaml:"std"`
}

// ModelConfig holds the LLaMA architecture dimensions. The field names match
// the HuggingFace LlamaConfig spelling, so a checkpoint config can be pasted
// in directly.
type ModelConfig struct {
	// BosTokenID / EosTokenID / PadTokenID are the special token ids.
	// Unset (null) ids mean the tokenizer does not use that token.
	BosTokenID *int `yaml:"bos_token_id"`
	EosTokenID *int `yaml:"eos_token_id"`

	// HiddenAct is the activation of the gated feed-forward layers.
	HiddenAct ActivationFunction `yaml:"hidden_act"`

	// HiddenSize is the residual stream width. Must be divisible by
	// NumAttentionHeads.
	HiddenSize int `yaml:"hidden_size"`

	// InitializerRange is the standard deviation HuggingFace checkpoints
	// record for their initializer. Kept for checkpoint compatibility; the
	// trainer initializes from ModelSettings.InitMethod.
	InitializerRange float64 `yaml:"initializer_range"`

	// IntermediateSize is the width of the gated feed-forward hidden layer.
	IntermediateSize int `yaml:"intermediate_size"`

	// IsLlamaConfig marks the architecture family for checkpoint tooling.
	IsLlamaConfig bool `yaml:"is_llama_config"`

	// MaxPositionEmbeddings is the positional embedding limit: no sequence
	// may be longer than this.
	MaxPositionEmbeddings int `yaml:"max_position_embeddings"`

	// NumAttentionHeads is the number of query heads. Must be divisible by
	// NumKeyValueHeads (grouped-query attention).
	NumAttentionHeads int `yaml:"num_attention_heads"`

	// NumHiddenLayers is the number of transformer blocks.
	NumHiddenLayers int `yaml:"num_hidden_layers"`

	// NumKeyValueHeads is the number of key/value heads. Equal to
	// NumAttentionHeads for standard multi-head attention (the default),
	// smaller for grouped-query attention, 1 for multi-query attention.
	NumKeyValueHeads int `yaml:"num_key_value_heads"`

	PadTokenID *int `yaml:"pad_token_id"`

	// PretrainingTP records the tensor-parallel degree the checkpoint was
	// pretrained with, which affects how HuggingFace reshards the weights.
	// Defaults to 1.
	PretrainingTP int `yaml:"pretraining_tp"`

	// RMSNormEps is the epsilon of the RMS normalization layers.
	RMSNormEps float64 `yaml:"rms_norm_eps"`

	// RopeTheta is the base of the rotary positional embedding frequencies.
	// Defaults to 10000.
	RopeTheta float64 `yaml:"rope_theta"`

	// TieWordEmbeddings shares the weights between the input embedding and
	// the output projection.
	TieWordEmbeddings bool `yaml:"tie_word_embeddings"`

	// UseCache enables the key/value cache at inference time. Irrelevant for
	// training, kept for checkpoint compatibility.
	UseCache bool `yaml:"use_cache"`

	// VocabSize is the number of entries of the embedding table. Must be
	// larger than every special token id.
	VocabSize int `yaml:"vocab_size"`
}

func (m *ModelSettings) validate() error {
	if m.DDPBucketCapMB <= 0 {
		return errors.Errorf("model.ddp_bucket_cap_mb: must be positive, got %d", m.DDPBucketCapMB)
	}
	if m.MakeVocabSizeDivisibleBy <= 0 {
		return errors.Errorf("model.make_vocab_size_divisible_by: must be positive, got %d",
			m.MakeVocabSizeDivisibleBy)
	}
	if m.InitMethod.Std <= 0 {
		return errors.Errorf("model.init_method.std: must be positive, got %g", m.InitMethod.Std)
	}
	return m.ModelConfig.validate()
}

func (c *ModelConfig) validate() error {
	for path, value := range map[string]int{
		"model.model_config.hidden_size":             c.HiddenSize,
		"model.model_config.num_hidden_layers":       c.NumHiddenLayers,
		"model.model_config.num_attention_heads":     c.NumAttentionHeads,
		"model.model_config.num_key_value_heads":     c.NumKeyValueHeads,
		"model.model_config.intermediate_size":       c.IntermediateSize,
		"model.model_config.vocab_size":              c.VocabSize,
		"model.model_config.max_position_embeddings": c.MaxPositionEmbeddings,
		"model.model_config.pretraining_tp":          c.PretrainingTP,
	} {
		if value <= 0 {
			return errors.Errorf("%s: must be positive, got %d", path, value)
		}
	}
	if c.HiddenSize%c.NumAttentionHeads != 0 {
		return errors.Errorf(
			"model.model_config.hidden_size: %d is not divisible by num_attention_heads (%d)",
			c.HiddenSize, c.NumAttentionHeads)
	}
	if c.NumAttentionHeads%c.NumKeyValueHeads != 0 {
		return errors.Errorf(
			"model.model_config.num_attention_heads: %d is not divisible by num_key_value_heads (%d)",
			c.NumAttentionHeads, c.NumKeyValueHeads)
	}
	if c.RMSNormEps <= 0 {
		return errors.Errorf("model.model_config.rms_norm_eps: must be positive, got %g", c.RMSNormEps)
	}
	if c.RopeTheta <= 0 {
		return errors.Errorf("model.model_config.rope_theta: must be positive, got %g", c.RopeTheta)
	}
	for path, id := range map[string]*int{
		"model.model_config.bos_token_id": c.BosTokenID,
		"model.model_config.eos_token_id": c.EosTokenID,
		"model.model_config.pad_token_id": c.PadTokenID,
	} {
		if id == nil {
			continue
		}
		if *id < 0 || *id >= c.VocabSize {
			return errors.Errorf("%s: token id %d is outside the vocabulary (vocab_size=%d)",
				path, *id, c.VocabSize)
		}
	}
	return nil
}

// HeadDim is the per-head width: HiddenSize / NumAttentionHeads.
func (c *ModelConfig) HeadDim() int {
	return c.HiddenSize / c.NumAttentionHeads
}

// KVReplicationFactor is how many query heads share each key/value head under
// grouped-query attention. 1 means standard multi-head attention.
func (c *ModelConfig) KVReplicationFactor() int {
	return c.NumAttentionHeads / c.NumKeyValueHeads
}

// NumParameters counts the model weights from the architecture dimensions:
// token embeddings, per-block attention projections (with grouped-query K/V),
// gated feed-forward, RMS norms, the final norm and the output projection
// (absent when TieWordEmbeddings).
func (c *ModelConfig) NumParameters() int64 {
	hidden := int64(c.HiddenSize)
	vocab := int64(c.VocabSize)
	kvWidth := int64(c.HeadDim() * c.NumKeyValueHeads)
	attention := 2*hidden*hidden + 2*hidden*kvWidth       // Q and O full width, K and V at kvWidth.
	feedForward := 3 * hidden * int64(c.IntermediateSize) // Gate, up and down projections.
	norms := 2 * hidden                                   // Pre-attention and pre-FFN RMS norms.
	perBlock := attention + feedForward + norms

	total := vocab*hidden + int64(c.NumHiddenLayers)*perBlock + hidden
	if !c.TieWordEmbeddings {
		total += vocab * hidden
	}
	return total
}

// PaddedVocabSize returns ModelConfig.VocabSize rounded up to a multiple of
// MakeVocabSizeDivisibleBy, the size the embedding table is actually allocated
// with.
func (m *ModelSettings) PaddedVocabSize() int {
	d := m.MakeVocabSizeDivisibleBy
	return (m.ModelConfig.VocabSize + d - 1) / d * d
}

// ActivationFunction is an enum of the supported feed-forward activations.
type ActivationFunction int

const (
	ActivationSilu ActivationFunction = iota
	ActivationGelu
	ActivationRelu
	ActivationTanh
)

var activationNames = []string{"silu", "gelu", "relu", "tanh"}

// ActivationFromName converts an activation name ("silu", "gelu", ...) to its
// enum value.
func ActivationFromName(name string) (ActivationFunction, error) {
	return enumFromName[ActivationFunction](name, activationNames, "activation function")
}

func (a ActivationFunction) String() string { return enumName(a, activationNames) }

// MarshalYAML implements yaml.Marshaler.
func (a ActivationFunction) MarshalYAML() (any, error) { return a.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *ActivationFunction) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, a, activationNames, "model.model_config.hidden_act")
}

// DType is an enum of the numeric precisions a model can train in.
// The zero value is bfloat16, the usual choice for pretraining.
type DType int

const (
	BFloat16 DType = iota
	Float16
	Float32
	Float64
)

var dtypeNames = []string{"bfloat16", "float16", "float32", "float64"}

// DTypeFromName converts a dtype name ("bfloat16", "float32", ...) to its
// enum value.
func DTypeFromName(name string) (DType, error) {
	return enumFromName[DType](name, dtypeNames, "dtype")
}

func (d DType) String() string { return enumName(d, dtypeNames) }

// Bytes is the storage size of one number of this dtype.
func (d DType) Bytes() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		return 2
	}
}

// MarshalYAML implements yaml.Marshaler.
func (d DType) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DType) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, d, dtypeNames, "model.dtype")
}
