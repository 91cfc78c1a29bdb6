// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package decoder implements one step of the caption decoder: an LSTM conditioned on the context vector of an
// additive attention over the encoded image features.
//
// The decoder keeps no state between calls: the recurrent State is given to Config.Step and a new State is
// returned, and it is up to the caller (e.g. a greedy or beam search driver) to thread it to the next step.
// Use Config.ZeroState (or Config.ResetState for host tensors) at the start of each new caption.
package decoder

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/lstm"

	"github.com/gomlx/imgcaption/pkg/captioning/attention"
	"github.com/gomlx/imgcaption/pkg/captioning/encoder"
)

const (
	// ParamUnits is the context hyperparameter with the number of units of the LSTM (the hidden state size),
	// also used for the attention inner projection and the hidden dense layer.
	ParamUnits = "decoder_units"

	// ParamVocabSize is the context hyperparameter with the size of the output vocabulary.
	// It should match tokenizer.Tokenizer.VocabSize.
	ParamVocabSize = "vocab_size"

	// DefaultUnits is used when ParamUnits is not set.
	DefaultUnits = 512

	// DefaultVocabSize is used when ParamVocabSize is not set. It matches captions.DefaultTopK.
	DefaultVocabSize = 5000
)

// Config holds the dimensions of the decoder.
type Config struct {
	// EmbeddingDim is the size of the token embeddings. The encoder uses the same size for the image features.
	EmbeddingDim int

	// Units is the size of the LSTM hidden and cell states.
	Units int

	// VocabSize is the number of logits output per step.
	VocabSize int

	// DType of the embeddings and states. Defaults to Float32.
	DType dtypes.DType
}

// New returns a Config with the given dimensions and Float32 dtype.
func New(embeddingDim, units, vocabSize int) Config {
	return Config{
		EmbeddingDim: embeddingDim,
		Units:        units,
		VocabSize:    vocabSize,
		DType:        dtypes.Float32,
	}
}

// FromContext returns a Config built from the context hyperparameters encoder.ParamEmbeddingDim, ParamUnits
// and ParamVocabSize.
func FromContext(ctx *context.Context) Config {
	return New(
		context.GetParamOr(ctx, encoder.ParamEmbeddingDim, encoder.DefaultEmbeddingDim),
		context.GetParamOr(ctx, ParamUnits, DefaultUnits),
		context.GetParamOr(ctx, ParamVocabSize, DefaultVocabSize))
}

// State is the recurrent state carried between decoding steps.
// Both Hidden and Cell are shaped [batchSize, units].
type State struct {
	Hidden, Cell *Node
}

// ZeroState returns the all-zero state used at the start of a caption.
func (cfg Config) ZeroState(g *Graph, batchSize int) State {
	shape := shapes.Make(cfg.dtype(), batchSize, cfg.Units)
	return State{
		Hidden: Zeros(g, shape),
		Cell:   Zeros(g, shape),
	}
}

// ResetState returns an all-zero hidden state tensor shaped [batchSize, units].
//
// See ResetStateTensors for the full state (hidden and cell) used by StepExec.
func (cfg Config) ResetState(batchSize int) *tensors.Tensor {
	return tensors.FromShape(shapes.Make(cfg.dtype(), batchSize, cfg.Units))
}

// ResetStateTensors returns the all-zero state, as host tensors, to start decoding with StepExec.
func (cfg Config) ResetStateTensors(batchSize int) StateTensors {
	return StateTensors{
		Hidden: cfg.ResetState(batchSize),
		Cell:   cfg.ResetState(batchSize),
	}
}

func (cfg Config) dtype() dtypes.DType {
	if cfg.DType == dtypes.InvalidDType {
		return dtypes.Float32
	}
	return cfg.DType
}

// Step runs one decoding step.
//
// Args:
//   - tokens: current input token ids, shaped [batchSize] or [batchSize, 1].
//   - features: encoder output, shaped [batchSize, numPositions, embeddingDim].
//   - state: the state returned by the previous step, or ZeroState at the start.
//
// It returns the unnormalized logits for the next token, shaped [batchSize, vocabSize], the new state
// and the attention weights used, shaped [batchSize, numPositions].
//
// Variables are created under the scopes "attention", "embedding", "lstm", "fc1" and "fc2" of ctx.
func (cfg Config) Step(ctx *context.Context, tokens, features *Node, state State) (logits *Node, newState State, weights *Node) {
	if !tokens.DType().IsInt() {
		Panicf("decoder.Step requires integer tokens, got %s", tokens.Shape())
	}
	batchSize := tokens.Shape().Dim(0)
	if tokens.Rank() > 2 || (tokens.Rank() == 2 && tokens.Shape().Dim(1) != 1) {
		Panicf("decoder.Step requires tokens shaped [batchSize] or [batchSize, 1], got %s", tokens.Shape())
	}
	features.AssertDims(batchSize, -1, cfg.EmbeddingDim)
	state.Hidden.AssertDims(batchSize, cfg.Units)
	state.Cell.AssertDims(batchSize, cfg.Units)

	contextVector, weights := attention.Bahdanau(ctx.In("attention"), features, state.Hidden, cfg.Units)

	// Embedding takes the last axis of size 1 as the index axis: [batchSize, 1] -> [batchSize, embeddingDim].
	tokens = Reshape(tokens, batchSize, 1)
	embedded := layers.Embedding(ctx.In("embedding"), tokens, cfg.dtype(), cfg.VocabSize, cfg.EmbeddingDim)

	// A sequence of length 1: [batchSize, 1, embeddingDim (context) + embeddingDim (token)].
	x := Concatenate([]*Node{ExpandAxes(contextVector, 1), ExpandAxes(embedded, 1)}, -1)

	// LSTM states are shaped [numDirections=1, batchSize, units].
	allHidden, lastHidden, lastCell := lstm.New(ctx.In("lstm"), x, cfg.Units).
		InitialStates(ExpandAxes(state.Hidden, 0), ExpandAxes(state.Cell, 0)).
		Done()
	newState = State{
		Hidden: Squeeze(lastHidden, 0),
		Cell:   Squeeze(lastCell, 0),
	}

	// allHidden is [sequenceSize=1, numDirections=1, batchSize, units]: collapse the time axis.
	output := Reshape(allHidden, batchSize, 1, cfg.Units)
	output = layers.DenseWithBias(ctx.In("fc1"), output, cfg.Units)
	output = Reshape(output, -1, cfg.Units)
	logits = layers.DenseWithBias(ctx.In("fc2"), output, cfg.VocabSize)
	return
}
