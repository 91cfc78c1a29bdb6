// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package encoder projects pre-extracted image features into the embedding space shared with the caption decoder.
//
// The features usually come from the last convolutional block of an image model (e.g. InceptionV3), flattened to
// [batchSize, numPositions, featuresDim]. Each position is projected independently.
package encoder

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

const (
	// ParamEmbeddingDim is the context hyperparameter with the dimension of the embedding space
	// shared by the encoder and the decoder.
	ParamEmbeddingDim = "embedding_dim"

	// DefaultEmbeddingDim is used when ParamEmbeddingDim is not set.
	DefaultEmbeddingDim = 256
)

// Encode applies one dense layer followed by a Relu to the last axis of features.
//
// features can be shaped [batchSize, featuresDim] or [batchSize, numPositions, featuresDim], and the
// output has the same shape with the last axis replaced by embeddingDim.
// Variables are created under the scope "fc" of ctx.
func Encode(ctx *context.Context, features *Node, embeddingDim int) *Node {
	if !features.DType().IsFloat() {
		Panicf("encoder.Encode requires float features, got %s", features.Shape())
	}
	if features.Rank() < 2 {
		Panicf("encoder.Encode requires features with a batch axis, got %s", features.Shape())
	}
	if embeddingDim <= 0 {
		Panicf("encoder.Encode requires embeddingDim > 0, got %d", embeddingDim)
	}
	x := layers.DenseWithBias(ctx.In("fc"), features, embeddingDim)
	return activations.Relu(x)
}

// FromContext is like Encode, but takes the embedding dimension from the ParamEmbeddingDim hyperparameter.
func FromContext(ctx *context.Context, features *Node) *Node {
	return Encode(ctx, features, context.GetParamOr(ctx, ParamEmbeddingDim, DefaultEmbeddingDim))
}
