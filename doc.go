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

// Package trainconfig defines the configuration schema of a LLaMA-architecture
// pretraining run: model dimensions, optimizer hyperparameters, learning rate
// schedule, parallelism topology, batch/sequence sizing, data stages, tokenizer
// reference and checkpointing cadence.
//
// The configuration is a single YAML document, loaded once at trainer start-up
// and treated as read-only for the duration of the run. Loading is strict:
// unknown fields are rejected, and Config.Validate checks every cross-field
// constraint (head divisibility, token ids vs. vocabulary size, sequence length
// vs. positional embedding limit, ...). Config.ValidateForWorldSize additionally
// checks that the declared data/tensor/pipeline parallel degrees multiply to the
// number of available devices.
//
// Example: load a run configuration and check it fits an 8 device cluster:
//
//	cfg, err := trainconfig.LoadFile("llama_pretrain.yaml")
//	if err != nil {
//		log.Fatalf("invalid configuration: %+v", err)
//	}
//	if err = cfg.ValidateForWorldSize(8); err != nil {
//		log.Fatalf("topology mismatch: %+v", err)
//	}
//	fmt.Printf("training %s parameters for %s tokens\n",
//		humanize.Comma(cfg.Model.ModelConfig.NumParameters()),
//		humanize.Comma(cfg.TotalTrainingTokens()))
//
// Besides the schema itself the package provides:
//
//   - Derived quantities: global batch size, tokens per step, total training
//     tokens, parameter counts, and the effective learning rate at any step
//     (LearningRateSchedule.At).
//   - Override layers: ApplySettings for "param=value;..." command-line style
//     overrides addressed by YAML field path, and EnvOverrides for
//     TRAINCONFIG_* environment variables.
//   - Checkpoint cadence and directory helpers on CheckpointPolicy, including
//     scanning a checkpoints directory for the latest saved step.
//
// The hub sub-package resolves and downloads the tokenizer artifact referenced
// by TokenizerConfig. The cmd/trainconfig binary wraps it all in a small CLI
// (validate, summary, render, fetch-tokenizer).
package trainconfig
