// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package generate implements greedy caption generation from image features.
//
// The image features are encoded once, and then the decoder is stepped one token at a time: starting from
// the captions.StartToken and a zero state, the most likely token of each step is fed to the next, along with
// the state returned by the previous step, until captions.EndToken is produced or a maximum length is reached.
package generate

import (
	"slices"
	"strings"

	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/imgcaption/pkg/captioning/captions"
	"github.com/gomlx/imgcaption/pkg/captioning/decoder"
	"github.com/gomlx/imgcaption/pkg/captioning/encoder"
	"github.com/gomlx/imgcaption/pkg/captioning/tokenizer"
)

const (
	// ParamMaxCaptionLength is the context hyperparameter with the maximum number of tokens generated, used
	// when Generator.Caption is called with maxLen <= 0.
	ParamMaxCaptionLength = "max_caption_length"

	// DefaultMaxCaptionLength is used when ParamMaxCaptionLength is not set.
	DefaultMaxCaptionLength = 40

	// EncoderScope and DecoderScope are the context scopes of the encoder and decoder variables.
	EncoderScope = "encoder"
	DecoderScope = "decoder"
)

// Result of a generated caption.
type Result struct {
	// Words of the caption, without the start and end markers.
	Words []string

	// Tokens ids of Words.
	Tokens []int

	// Attention weights over the image positions used to generate each word: one row per word.
	Attention [][]float32
}

// Text returns the caption words joined with spaces.
func (r *Result) Text() string {
	return strings.Join(r.Words, " ")
}

// Generator of captions for one image at a time.
//
// It holds the compiled encoder and decoder graphs, and it can be reused for any number of images.
type Generator struct {
	ctx            *context.Context
	tok            *tokenizer.Tokenizer
	cfg            decoder.Config
	startID, endID int
	encoderExec    *context.Exec
	decoderStep    *decoder.StepExec
}

// New creates a Generator using the model variables in ctx (under EncoderScope and DecoderScope) and the tokenizer
// used to train it.
//
// Variables missing in ctx are created with their initializers, which is only useful for testing.
func New(backend backends.Backend, ctx *context.Context, tok *tokenizer.Tokenizer, cfg decoder.Config) (*Generator, error) {
	startID, endID, err := captions.Markers(tok)
	if err != nil {
		return nil, err
	}
	if tok.VocabSize() > cfg.VocabSize {
		return nil, errors.Errorf("tokenizer vocabulary size %d is larger than the decoder vocabulary size %d",
			tok.VocabSize(), cfg.VocabSize)
	}
	gen := &Generator{
		ctx:     ctx,
		tok:     tok,
		cfg:     cfg,
		startID: startID,
		endID:   endID,
	}
	gen.encoderExec, err = context.NewExec(backend, ctx.In(EncoderScope).Checked(false),
		func(ctx *context.Context, features *Node) *Node {
			if features.Rank() == 2 {
				// Features of one image: add the batch axis.
				features = ExpandAxes(features, 0)
			}
			return encoder.Encode(ctx, features, cfg.EmbeddingDim)
		})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create encoder executor")
	}
	gen.decoderStep, err = decoder.NewStepExec(backend, ctx.In(DecoderScope), cfg)
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// Caption generates the caption for the image features, shaped [numPositions, featureDim] or
// [1, numPositions, featureDim].
//
// At most maxLen tokens are generated. If maxLen <= 0 the context hyperparameter ParamMaxCaptionLength is used.
func (gen *Generator) Caption(features *tensors.Tensor, maxLen int) (*Result, error) {
	if maxLen <= 0 {
		maxLen = context.GetParamOr(gen.ctx, ParamMaxCaptionLength, DefaultMaxCaptionLength)
	}
	if rank := features.Shape().Rank(); rank != 2 && (rank != 3 || features.Shape().Dim(0) != 1) {
		return nil, errors.Errorf("features for one image must be shaped [numPositions, featureDim] or "+
			"[1, numPositions, featureDim], got %s", features.Shape())
	}
	encoded, err := gen.encoderExec.Exec1(features)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to encode image features")
	}

	result := &Result{}
	state := gen.cfg.ResetStateTensors(1)
	tokenID := gen.startID
	for step := range maxLen {
		var logits, weights *tensors.Tensor
		logits, state, weights, err = gen.decoderStep.Call(tensors.FromValue([]int32{int32(tokenID)}), encoded, state)
		if err != nil {
			return nil, errors.WithMessagef(err, "caption generation step %d", step)
		}
		tokenID = argMax(tensors.MustCopyFlatData[float32](logits))
		if tokenID == gen.endID {
			klog.V(2).Infof("Caption ended after %d steps", step+1)
			break
		}
		word, ok := gen.tok.Word(tokenID)
		if !ok {
			// Padding or an id unknown to the tokenizer.
			word = captions.OOVToken
		}
		result.Words = append(result.Words, word)
		result.Tokens = append(result.Tokens, tokenID)
		result.Attention = append(result.Attention, tensors.MustCopyFlatData[float32](weights))
	}
	klog.V(1).Infof("Generated caption: %q", result.Text())
	return result, nil
}

// argMax returns the index of the largest value, the first one in case of ties.
func argMax(values []float32) int {
	return slices.Index(values, slices.Max(values))
}
