// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/initializers"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func rampTensor(scale float32, dims ...int) *tensors.Tensor {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	data := make([]float32, size)
	for ii := range data {
		data[ii] = scale * float32(ii%5-2)
	}
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

func TestBahdanau(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	const batchSize, numPositions, embeddingDim, hiddenDim, units = 2, 6, 4, 5, 3

	ctx := context.New()
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, features, hidden *Node) (*Node, *Node) {
		return Bahdanau(ctx, features, hidden, units)
	})
	for _, scale := range []float32{0.1, 1, 10} {
		outputs := exec.MustExec(
			rampTensor(scale, batchSize, numPositions, embeddingDim),
			rampTensor(-scale, batchSize, hiddenDim))
		contextVector, weights := outputs[0], outputs[1]
		require.Equal(t, []int{batchSize, embeddingDim}, contextVector.Shape().Dimensions)
		require.Equal(t, []int{batchSize, numPositions}, weights.Shape().Dimensions)

		for _, row := range weights.Value().([][]float32) {
			var sum float64
			for _, w := range row {
				require.GreaterOrEqual(t, w, float32(0))
				sum += float64(w)
			}
			require.InDelta(t, 1.0, sum, 1e-5)
		}
	}
}

func TestBahdanauUniformScores(t *testing.T) {
	// With all weights zero the scores are equal for every position, so the context is the mean of the features.
	backend := graphtest.BuildTestBackend()
	ctx := context.New().WithInitializer(initializers.Zero)
	features := [][][]float32{{{1, 2}, {3, 4}, {5, 6}, {7, 8}}}
	hidden := [][]float32{{1, -1, 1}}
	outputs := context.MustExecOnceN(backend, ctx, func(ctx *context.Context, features, hidden *Node) (*Node, *Node) {
		return Bahdanau(ctx, features, hidden, 2)
	}, features, hidden)
	require.InDeltaSlice(t, []float32{4, 5}, outputs[0].Value().([][]float32)[0], 1e-5)
	for _, w := range outputs[1].Value().([][]float32)[0] {
		require.InDelta(t, 0.25, float64(w), 1e-6)
	}
}

func TestBahdanauInvalidShapes(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	require.Panics(t, func() {
		_ = context.MustExecOnceN(backend, context.New(), func(ctx *context.Context, features, hidden *Node) (*Node, *Node) {
			return Bahdanau(ctx, features, hidden, 2)
		}, [][]float32{{1, 2}}, [][]float32{{1, 2}})
	})
	require.Panics(t, func() {
		_ = context.MustExecOnceN(backend, context.New(), func(ctx *context.Context, features, hidden *Node) (*Node, *Node) {
			return Bahdanau(ctx, features, hidden, 2)
		}, [][][]float32{{{1, 2}}}, [][]float32{{1}, {2}})
	})
}
