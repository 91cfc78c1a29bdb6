// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tokenize_captions fits a tokenizer on the captions of a CSV file and saves it, to be used for training
// and generating captions.
//
// Usage:
//
//	tokenize_captions [-output=tokenizer.bin] [-top_k=5000] [-write_mode=overwrite] captions.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/imgcaption/internal/tables"
	"github.com/gomlx/imgcaption/pkg/captioning/captions"
	"github.com/gomlx/imgcaption/pkg/captioning/tokenizer"
)

var (
	flagOutput    = flag.String("output", "tokenizer.bin", "Path where to save the tokenizer.")
	flagTopK      = flag.Int("top_k", captions.DefaultTopK, "Number of most frequent words to keep in the vocabulary.")
	flagWriteMode = flag.String("write_mode", tokenizer.Overwrite.String(),
		fmt.Sprintf("What to do if -output exists: %q, %q (fail) or %q (write to the next free \"<output>.N\").",
			tokenizer.Overwrite, tokenizer.NoClobber, tokenizer.Versioned))
	flagTop = flag.Int("top", 20, "Number of most frequent words to list. Set to 0 to skip the list.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one CSV file with captions, got %d arguments. See 'tokenize_captions -help'.", len(args))
		os.Exit(1)
	}
	mode := must.M1(tokenizer.ParseWriteMode(*flagWriteMode))

	var written string
	tok, maxLen, err := captions.TokenizeCaptions(args[0], *flagOutput, *flagTopK,
		captions.WithWriteMode(mode), captions.WithSavedPath(&written))
	if err != nil {
		klog.Fatalf("Failed to tokenize captions: %+v", err)
	}
	report(args[0], tok, maxLen, written)
}

func report(captionsPath string, tok *tokenizer.Tokenizer, maxLen int, written string) {
	fmt.Println(tables.TitleStyle.Render("Summary"))
	table := tables.New(lipgloss.Right, lipgloss.Left)
	table.Row("captions file", captionsPath)
	table.Row("# captions", humanize.Comma(int64(tok.DocumentCount)))
	table.Row("# distinct words", humanize.Comma(int64(len(tok.WordCounts))))
	table.Row("vocabulary size", humanize.Comma(int64(tok.VocabSize())))
	table.Row("max caption length", humanize.Comma(int64(maxLen)))
	table.Row("tokenizer saved to", written)
	fmt.Println(table.Render())

	if *flagTop <= 0 {
		return
	}
	wordCounts := slices.Clone(tok.WordCounts)
	slices.SortStableFunc(wordCounts, func(a, b tokenizer.WordCount) int {
		return b.Count - a.Count
	})
	wordCounts = wordCounts[:min(*flagTop, len(wordCounts))]

	fmt.Println(tables.TitleStyle.Render("Most frequent words"))
	table = tables.New(lipgloss.Right, lipgloss.Left, lipgloss.Right)
	table.Headers("id", "word", "count")
	for _, wc := range wordCounts {
		id, _ := tok.ID(wc.Word)
		table.Row(humanize.Comma(int64(id)), wc.Word, humanize.Comma(int64(wc.Count)))
	}
	fmt.Println(table.Render())
}
