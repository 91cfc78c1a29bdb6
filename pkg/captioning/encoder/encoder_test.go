// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package encoder

import (
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

// signedFeatures returns values alternating in sign, so the dense layer sees both negative and positive inputs.
func signedFeatures(dims ...int) *tensors.Tensor {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	data := make([]float32, size)
	for ii := range data {
		data[ii] = float32(ii%7) - 3
	}
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

func TestEncode(t *testing.T) {
	backend := graphtest.BuildTestBackend()

	t.Run("per-position features", func(t *testing.T) {
		ctx := context.New()
		exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, features *Node) *Node {
			return Encode(ctx, features, 8)
		})
		output := exec.MustExec(signedFeatures(3, 4, 5))[0]
		require.Equal(t, []int{3, 4, 8}, output.Shape().Dimensions)
		for _, v := range tensors.MustCopyFlatData[float32](output) {
			require.GreaterOrEqual(t, v, float32(0))
		}
		require.NotNil(t, ctx.GetVariableByScopeAndName("/fc/dense", "weights"))
	})

	t.Run("flat features", func(t *testing.T) {
		ctx := context.New()
		exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, features *Node) *Node {
			return Encode(ctx, features, 6)
		})
		output := exec.MustExec(signedFeatures(2, 5))[0]
		require.Equal(t, []int{2, 6}, output.Shape().Dimensions)
		for _, v := range tensors.MustCopyFlatData[float32](output) {
			require.GreaterOrEqual(t, v, float32(0))
		}
	})
}

func TestFromContext(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(ParamEmbeddingDim, 3)
	output := context.MustExecOnce(backend, ctx, FromContext, signedFeatures(2, 4))
	require.Equal(t, []int{2, 3}, output.Shape().Dimensions)
}

func TestEncodeInvalidInputs(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	require.Panics(t, func() {
		_ = context.MustExecOnce(backend, context.New(), func(ctx *context.Context, features *Node) *Node {
			return Encode(ctx, features, 0)
		}, signedFeatures(2, 4))
	})
	require.Panics(t, func() {
		_ = context.MustExecOnce(backend, context.New(), func(ctx *context.Context, features *Node) *Node {
			return Encode(ctx, features, 4)
		}, []int32{1, 2, 3})
	})
}
