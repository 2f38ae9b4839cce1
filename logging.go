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
	"gopkg.in/yaml.v3"
)

// LoggingConfig sets the verbosity of the trainer. These are passthrough
// settings: the trainer interprets them, this package only carries them.
type LoggingConfig struct {
	// IterationStepInfoInterval is the number of steps between progress log
	// lines. Defaults to 1.
	IterationStepInfoInterval int `yaml:"iteration_step_info_interval"`

	// LogLevel of rank 0.
	LogLevel LogLevel `yaml:"log_level"`

	// LogLevelReplica of every other rank.
	LogLevelReplica LogLevel `yaml:"log_level_replica"`
}

// ProfilerConfig enables the trainer's profiler. The section is optional:
// a null profiler section means no profiling.
type ProfilerConfig struct {
	// ProfilerExportPath is the directory profiler traces are written to.
	ProfilerExportPath string `yaml:"profiler_export_path"`
}

// LogLevel is an enum of trainer log verbosities. The zero value is info.
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelDebug
	LogLevelWarning
	LogLevelError
)

var logLevelNames = []string{"info", "debug", "warning", "error"}

func (l LogLevel) String() string { return enumName(l, logLevelNames) }

// MarshalYAML implements yaml.Marshaler.
func (l LogLevel) MarshalYAML() (any, error) { return l.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LogLevel) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum(node, l, logLevelNames, "logging.log_level")
}
