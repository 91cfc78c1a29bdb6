// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package attention implements additive attention, as introduced by Bahdanau et al. [1], used by the caption
// decoder to attend over the image feature positions.
//
// The score of each position is computed by a small feed-forward network that takes the projected encoder
// features and the projected decoder hidden state:
//
//	score = V(tanh(W1(features) + W2(hidden)))
//
// The weights are the softmax of the scores over the positions axis, and the context vector is the
// weighted sum of the features.
//
// [1] https://arxiv.org/abs/1409.0473, "Neural Machine Translation by Jointly Learning to Align and Translate"
package attention

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// Bahdanau computes the context vector and attention weights for one decoding step.
//
// Args:
//   - features: encoder output shaped [batchSize, numPositions, embeddingDim].
//   - hidden: previous decoder hidden state shaped [batchSize, hiddenDim].
//   - units: size of the inner projection used to score positions.
//
// It returns contextVector shaped [batchSize, embeddingDim] and weights shaped [batchSize, numPositions],
// with weights summing to 1 over the positions axis.
//
// Variables are created under the scopes "W1", "W2" and "V" of ctx.
func Bahdanau(ctx *context.Context, features, hidden *Node, units int) (contextVector, weights *Node) {
	if features.Rank() != 3 {
		Panicf("attention.Bahdanau requires features shaped [batchSize, numPositions, embeddingDim], got %s",
			features.Shape())
	}
	if hidden.Rank() != 2 || hidden.Shape().Dim(0) != features.Shape().Dim(0) {
		Panicf("attention.Bahdanau requires hidden shaped [batchSize=%d, hiddenDim], got %s",
			features.Shape().Dim(0), hidden.Shape())
	}
	if units <= 0 {
		Panicf("attention.Bahdanau requires units > 0, got %d", units)
	}
	batchSize := features.Shape().Dim(0)
	numPositions := features.Shape().Dim(1)

	projFeatures := layers.DenseWithBias(ctx.In("W1"), features, units)          // [b, p, units]
	projHidden := layers.DenseWithBias(ctx.In("W2"), ExpandAxes(hidden, 1), units) // [b, 1, units]
	score := Tanh(Add(projFeatures, projHidden))                                  // Broadcast over positions.
	logits := layers.DenseWithBias(ctx.In("V"), score, 1)                         // [b, p, 1]

	weights = Softmax(logits, 1)
	contextVector = ReduceSum(Mul(weights, features), 1)
	weights = Reshape(weights, batchSize, numPositions)
	return
}
