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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadDimensions(t *testing.T) {
	model := loadTestConfig(t).Model.ModelConfig
	assert.Equal(t, 64, model.HeadDim())
	assert.Equal(t, 4, model.KVReplicationFactor())
}

func TestNumParameters(t *testing.T) {
	model := loadTestConfig(t).Model.ModelConfig

	// Computed by hand from the fixture dimensions:
	//   embeddings  49152*2048                 = 100,663,296
	//   attention   2*2048*2048 + 2*2048*512   =  10,485,760 per block
	//   feedforward 3*2048*5632                =  34,603,008 per block
	//   norms       2*2048                     =       4,096 per block
	//   final norm  2048
	// 24 blocks, tied embeddings.
	want := int64(100663296) + 24*int64(10485760+34603008+4096) + 2048
	assert.Equal(t, want, model.NumParameters())

	// Untying adds another vocab x hidden output projection.
	model.TieWordEmbeddings = false
	assert.Equal(t, want+int64(49152*2048), model.NumParameters())
}

func TestPaddedVocabSize(t *testing.T) {
	settings := ModelSettings{
		MakeVocabSizeDivisibleBy: 128,
		ModelConfig:              ModelConfig{VocabSize: 50257},
	}
	assert.Equal(t, 50304, settings.PaddedVocabSize())

	settings.ModelConfig.VocabSize = 49152 // Already a multiple of 128.
	assert.Equal(t, 49152, settings.PaddedVocabSize())
}

func TestActivationNames(t *testing.T) {
	activation, err := ActivationFromName("gelu")
	require.NoError(t, err)
	assert.Equal(t, ActivationGelu, activation)
	assert.Equal(t, "gelu", activation.String())

	_, err = ActivationFromName("softmax")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown activation function")
}

func TestDTypes(t *testing.T) {
	dtype, err := DTypeFromName("bfloat16")
	require.NoError(t, err)
	assert.Equal(t, BFloat16, dtype)

	assert.Equal(t, 2, BFloat16.Bytes())
	assert.Equal(t, 2, Float16.Bytes())
	assert.Equal(t, 4, Float32.Bytes())
	assert.Equal(t, 8, Float64.Bytes())

	_, err = DTypeFromName("int4")
	require.Error(t, err)
}
