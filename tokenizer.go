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

	"github.com/gomlx/trainconfig/internal/fsutil"
	"github.com/pkg/errors"
)

// TokenizerConfig references the tokenizer artifact of the run: either a
// local directory or a hub repository id such as "meta-llama/Meta-Llama-3-8B".
// The hub sub-package resolves and downloads it.
type TokenizerConfig struct {
	// TokenizerMaxLength truncates sequences at tokenization time. Nil
	// leaves truncation to the sequence length.
	TokenizerMaxLength *int `yaml:"tokenizer_max_length"`

	// TokenizerNameOrPath is the hub repo id or a local path.
	TokenizerNameOrPath string `yaml:"tokenizer_name_or_path"`

	// TokenizerRevision pins a hub revision (branch, tag or commit hash).
	// Nil means the default branch.
	TokenizerRevision *string `yaml:"tokenizer_revision"`
}

func (t *TokenizerConfig) validate() error {
	if t.TokenizerNameOrPath == "" {
		return errors.New("tokenizer.tokenizer_name_or_path: must not be empty")
	}
	if t.TokenizerMaxLength != nil && *t.TokenizerMaxLength <= 0 {
		return errors.Errorf("tokenizer.tokenizer_max_length: must be positive, got %d",
			*t.TokenizerMaxLength)
	}
	return nil
}

// IsLocal reports whether the tokenizer reference points at an existing local
// file or directory, as opposed to a hub repository id.
func (t *TokenizerConfig) IsLocal() bool {
	path := fsutil.ExpandTilde(t.TokenizerNameOrPath)
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	return fsutil.FileExists(path)
}

// LocalPath returns the tokenizer reference as a local path, with "~"
// expanded. Only meaningful when IsLocal.
func (t *TokenizerConfig) LocalPath() string {
	return fsutil.ExpandTilde(t.TokenizerNameOrPath)
}

// Revision returns the pinned revision, or defaultRevision when none is set.
func (t *TokenizerConfig) Revision(defaultRevision string) string {
	if t.TokenizerRevision == nil || *t.TokenizerRevision == "" {
		return defaultRevision
	}
	return *t.TokenizerRevision
}
