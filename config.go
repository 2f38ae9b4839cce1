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
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/gomlx/trainconfig/internal/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of one pretraining run. It mirrors the YAML
// document consumed by the trainer: one field per top-level section, in the
// order the document is serialized.
//
// A Config is built once by Load / LoadFile and not mutated afterward by the
// trainer. The only sanctioned mutations are the override layers (ApplySettings,
// EnvOverrides.Apply), applied between parsing and validation.
type Config struct {
	Checkpoints CheckpointPolicy  `yaml:"checkpoints"`
	DataStages  []DataStage       `yaml:"data_stages"`
	General     GeneralSettings   `yaml:"general"`
	Logging     LoggingConfig     `yaml:"logging"`
	Model       ModelSettings     `yaml:"model"`
	Optimizer   OptimizerConfig   `yaml:"optimizer"`
	Parallelism ParallelismConfig `yaml:"parallelism"`
	Profiler    *ProfilerConfig   `yaml:"profiler"`
	Tokenizer   TokenizerConfig   `yaml:"tokenizer"`
	Tokens      TokensConfig      `yaml:"tokens"`
}

// Parse decodes a YAML run configuration and fills in defaults, without
// validating it. Unknown fields are an error: a typo in a hyperparameter name
// must not silently train a different model.
//
// Most callers want Load, which also validates.
func Parse(contents []byte) (*Config, error) {
	return parse(bytes.NewReader(contents))
}

// Load decodes a YAML run configuration from r, fills in defaults and
// validates it.
func Load(r io.Reader) (*Config, error) {
	cfg, err := parse(r)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads, parses and validates the run configuration in the given
// file. A "~/" prefix in filePath is expanded to the user's home directory.
func LoadFile(filePath string) (*Config, error) {
	cfg, err := ParseFile(filePath)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid configuration in %q", filePath)
	}
	return cfg, nil
}

// ParseFile reads and parses the run configuration in the given file without
// validating it. Use it when overrides still need to be applied before
// Config.Validate.
func ParseFile(filePath string) (*Config, error) {
	filePath = fsutil.ExpandTilde(filePath)
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", filePath)
	}
	cfg, err := parse(bytes.NewReader(contents))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to parse configuration file %q", filePath)
	}
	return cfg, nil
}

func parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	cfg := &Config{}
	err := dec.Decode(cfg)
	if err == io.EOF {
		return nil, errors.New("empty configuration document")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration YAML")
	}
	cfg.setDefaults()
	cfg.expandPaths()
	return cfg, nil
}

// setDefaults fills fields the document may omit with the values the trainer
// assumes. It is idempotent, so a serialized Config parses back unchanged.
func (c *Config) setDefaults() {
	model := &c.Model
	if model.DDPBucketCapMB == 0 {
		model.DDPBucketCapMB = 25
	}
	if model.MakeVocabSizeDivisibleBy == 0 {
		model.MakeVocabSizeDivisibleBy = 1
	}
	mc := &model.ModelConfig
	if mc.NumKeyValueHeads == 0 {
		// No grouped-query attention: one KV head per query head.
		mc.NumKeyValueHeads = mc.NumAttentionHeads
	}
	if mc.RopeTheta == 0 {
		mc.RopeTheta = 10000.0
	}
	if mc.PretrainingTP == 0 {
		mc.PretrainingTP = 1
	}

	factory := &c.Optimizer.OptimizerFactory
	if factory.AdamBeta1 == 0 {
		factory.AdamBeta1 = 0.9
	}
	if factory.AdamBeta2 == 0 {
		factory.AdamBeta2 = 0.999
	}
	if factory.AdamEps == 0 {
		factory.AdamEps = 1e-8
	}

	if c.Parallelism.ExpertParallelSize == 0 {
		c.Parallelism.ExpertParallelSize = 1
	}
	if c.Logging.IterationStepInfoInterval == 0 {
		c.Logging.IterationStepInfoInterval = 1
	}
}

// expandPaths replaces a leading "~" in every path field by the user's home
// directory. The tokenizer reference is excluded: it is usually a hub repo id,
// and a local path there is expanded only when actually resolved.
func (c *Config) expandPaths() {
	c.Checkpoints.CheckpointsPath = fsutil.ExpandTilde(c.Checkpoints.CheckpointsPath)
	if c.Checkpoints.ResumeCheckpointPath != nil {
		expanded := fsutil.ExpandTilde(*c.Checkpoints.ResumeCheckpointPath)
		c.Checkpoints.ResumeCheckpointPath = &expanded
	}
	if c.General.BenchmarkCSVPath != nil {
		expanded := fsutil.ExpandTilde(*c.General.BenchmarkCSVPath)
		c.General.BenchmarkCSVPath = &expanded
	}
	if c.Profiler != nil {
		c.Profiler.ProfilerExportPath = fsutil.ExpandTilde(c.Profiler.ProfilerExportPath)
	}
}

// Save serializes the configuration as canonical YAML: two space indent,
// sections and fields in the fixed schema order, null for unset optional
// fields. Parsing the output yields a tree identical to c.
func (c *Config) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to serialize configuration to YAML")
	}
	return errors.Wrap(enc.Close(), "failed to serialize configuration to YAML")
}

// SaveFile serializes the configuration to the given file, overwriting it.
func (c *Config) SaveFile(filePath string) error {
	filePath = fsutil.ExpandTilde(filePath)
	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		return err
	}
	err := os.WriteFile(filePath, buf.Bytes(), 0644)
	return errors.Wrapf(err, "failed to write configuration to %q", filePath)
}

// String returns the canonical YAML serialization of the configuration.
func (c *Config) String() string {
	var buf strings.Builder
	if err := c.Save(&buf); err != nil {
		return "<invalid trainconfig.Config: " + err.Error() + ">"
	}
	return buf.String()
}

// Validate checks every constraint the trainer assumes of the configuration
// and returns an error naming the offending YAML field path. It does not need
// to know the cluster size; see ValidateForWorldSize for the topology check.
func (c *Config) Validate() error {
	if err := c.Checkpoints.validate(); err != nil {
		return err
	}
	if err := validateDataStages(c.DataStages, c.Tokens.TrainSteps); err != nil {
		return err
	}
	if err := c.General.validate(c.Tokens.TrainSteps); err != nil {
		return err
	}
	if err := c.Model.validate(); err != nil {
		return err
	}
	if err := c.Optimizer.validate(); err != nil {
		return err
	}
	if err := c.Parallelism.validate(); err != nil {
		return err
	}
	if err := c.Tokenizer.validate(); err != nil {
		return err
	}
	if err := c.Tokens.validate(); err != nil {
		return err
	}
	// Cross-section constraints.
	if seq, maxPos := c.Tokens.SequenceLength, c.Model.ModelConfig.MaxPositionEmbeddings; seq > maxPos {
		return errors.Errorf(
			"tokens.sequence_length: %d exceeds model.model_config.max_position_embeddings (%d)",
			seq, maxPos)
	}
	return nil
}

// ValidateForWorldSize runs Validate and additionally checks that the
// parallelism topology covers exactly worldSize devices.
func (c *Config) ValidateForWorldSize(worldSize int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.Parallelism.checkWorldSize(worldSize)
}

// TokensPerStep is the number of tokens consumed by one training step across
// all data-parallel replicas.
func (c *Config) TokensPerStep() int64 {
	return c.Tokens.GlobalBatchSize(c.Parallelism.DP) * int64(c.Tokens.SequenceLength)
}

// TotalTrainingTokens is the token budget of the whole run: tokens per step
// times the number of training steps.
func (c *Config) TotalTrainingTokens() int64 {
	return c.TokensPerStep() * int64(c.Tokens.TrainSteps)
}
