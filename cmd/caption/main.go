// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// caption generates a caption for pre-extracted image features, and optionally plots the attention over
// the image positions for each word.
//
// The model hyperparameters can be changed with -set, e.g.: -set="embedding_dim=128;decoder_units=256".
// The vocabulary size is taken from the tokenizer, unless set explicitly.
//
// Without -features, random features are used: with freshly initialized variables this exercises the model
// end-to-end, but the caption will be meaningless.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/imgcaption/internal/tables"
	"github.com/gomlx/imgcaption/pkg/captioning/decoder"
	"github.com/gomlx/imgcaption/pkg/captioning/encoder"
	"github.com/gomlx/imgcaption/pkg/captioning/generate"
	"github.com/gomlx/imgcaption/pkg/captioning/plots"
	"github.com/gomlx/imgcaption/pkg/captioning/tokenizer"
)

var (
	flagTokenizer = flag.String("tokenizer", "", "Path to the tokenizer saved by tokenize_captions. Required.")
	flagFeatures  = flag.String("features", "",
		"Path to a .npy file with the float32 image features, shaped [num_positions, feature_dim]. "+
			"If empty, random features are used.")
	flagNumPositions = flag.Int("num_positions", 64, "Number of image positions of the random features.")
	flagFeatureDim   = flag.Int("feature_dim", 2048, "Dimension of the random features.")
	flagSeed         = flag.Uint64("seed", 42, "Seed for the random features.")
	flagPlot         = flag.String("plot", "", "If set, saves the attention heat map to this file (e.g. attention.png).")
)

func createDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		// Model hyperparameters
		encoder.ParamEmbeddingDim: encoder.DefaultEmbeddingDim,
		decoder.ParamUnits:        decoder.DefaultUnits,
		decoder.ParamVocabSize:    decoder.DefaultVocabSize,

		// Generation hyperparameters
		generate.ParamMaxCaptionLength: generate.DefaultMaxCaptionLength,
	})
	return ctx
}

func main() {
	ctx := createDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	paramsSet, err := commandline.ParseContextSettings(ctx, *settings)
	if err != nil {
		klog.Fatalf("Failed to parse context settings: %+v", err)
	}
	if *flagTokenizer == "" {
		klog.Fatalf("Missing -tokenizer. See 'caption -help'.")
	}

	tok := must.M1(tokenizer.Load(*flagTokenizer))
	if !slices.Contains(paramsSet, decoder.ParamVocabSize) {
		ctx.SetParam(decoder.ParamVocabSize, tok.VocabSize())
	}
	fmt.Println(commandline.SprintContextSettings(ctx))

	features, err := loadFeatures()
	if err != nil {
		klog.Fatalf("%+v", err)
	}
	backend := must.M1(backends.New())
	gen, err := generate.New(backend, ctx, tok, decoder.FromContext(ctx))
	if err != nil {
		klog.Fatalf("Failed to build caption generator: %+v", err)
	}
	result, err := gen.Caption(features, 0)
	if err != nil {
		klog.Fatalf("Failed to generate caption: %+v", err)
	}
	report(result)

	if *flagPlot != "" {
		must.M(plots.AttentionHeatMap(result, result.Text(), *flagPlot))
		fmt.Printf("Attention plot saved to %q\n", *flagPlot)
	}
}

// loadFeatures from -features, or random ones if not given.
func loadFeatures() (*tensors.Tensor, error) {
	if *flagFeatures == "" {
		rng := rand.New(rand.NewPCG(*flagSeed, *flagSeed))
		data := make([]float32, *flagNumPositions**flagFeatureDim)
		for ii := range data {
			data[ii] = rng.Float32()
		}
		return tensors.FromFlatDataAndDimensions(data, *flagNumPositions, *flagFeatureDim), nil
	}
	features, err := numpy.FromNpyFile(*flagFeatures)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read features from %q", *flagFeatures)
	}
	if features.DType() != dtypes.Float32 {
		return nil, errors.Errorf("features in %q must be float32, got %s", *flagFeatures, features.Shape())
	}
	klog.V(1).Infof("Features read from %q: %s", *flagFeatures, features.Shape())
	return features, nil
}

func report(result *generate.Result) {
	fmt.Println(tables.TitleStyle.Render("Caption: " + result.Text()))
	table := tables.New(lipgloss.Right, lipgloss.Left, lipgloss.Right)
	table.Headers("step", "word", "id", "most attended position", "weight")
	for ii, word := range result.Words {
		weights := result.Attention[ii]
		position := slices.Index(weights, slices.Max(weights))
		table.Row(
			humanize.Comma(int64(ii+1)), word, humanize.Comma(int64(result.Tokens[ii])),
			humanize.Comma(int64(position)), humanize.FtoaWithDigits(float64(weights[position]), 3))
	}
	fmt.Println(table.Render())
}
