// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plots renders the attention of generated captions.
package plots

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gomlx/imgcaption/pkg/captioning/generate"
)

// attentionGrid implements plotter.GridXYZ: one column per image position, one row per word.
// The first word is the top row.
type attentionGrid struct {
	attention [][]float32
}

func (g attentionGrid) Dims() (c, r int) { return len(g.attention[0]), len(g.attention) }
func (g attentionGrid) Z(c, r int) float64 {
	return float64(g.attention[len(g.attention)-1-r][c])
}
func (g attentionGrid) X(c int) float64 { return float64(c) }
func (g attentionGrid) Y(r int) float64 { return float64(r) }

// AttentionHeatMap plots the attention weights of each word of the caption over the image positions, and
// saves it to filePath. The format is taken from the file extension (e.g. ".png", ".svg").
func AttentionHeatMap(result *generate.Result, title, filePath string) error {
	if len(result.Attention) == 0 || len(result.Attention[0]) == 0 {
		return errors.New("no attention weights to plot")
	}
	if len(result.Words) != len(result.Attention) {
		return errors.Errorf("caption has %d words but %d rows of attention weights",
			len(result.Words), len(result.Attention))
	}
	numPositions := len(result.Attention[0])
	for ii, row := range result.Attention {
		if len(row) != numPositions {
			return errors.Errorf("attention weights for word #%d (%q) have %d positions, expected %d",
				ii, result.Words[ii], len(row), numPositions)
		}
	}

	grid := attentionGrid{attention: result.Attention}
	heatMap := plotter.NewHeatMap(grid, palette.Heat(16, 1))
	if heatMap.Min == heatMap.Max {
		// Uniform attention.
		heatMap.Max = heatMap.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "image position"
	p.Y.Label.Text = "word"
	p.Add(heatMap)

	numWords := len(result.Words)
	ticks := make([]plot.Tick, numWords)
	for ii, word := range result.Words {
		ticks[ii] = plot.Tick{Value: float64(numWords - 1 - ii), Label: word}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Marker = positionTicks(numPositions)

	width := vg.Length(max(numPositions, 8)) * vg.Centimeter / 2
	height := vg.Length(max(numWords, 4)) * vg.Centimeter
	if err := p.Save(width+4*vg.Centimeter, height+3*vg.Centimeter, filePath); err != nil {
		return errors.Wrapf(err, "failed to save attention plot to %q", filePath)
	}
	return nil
}

// positionTicks labels at most ~10 positions.
func positionTicks(numPositions int) plot.ConstantTicks {
	step := max(1, numPositions/10)
	var ticks []plot.Tick
	for pos := 0; pos < numPositions; pos += step {
		ticks = append(ticks, plot.Tick{Value: float64(pos), Label: fmt.Sprint(pos)})
	}
	return ticks
}
