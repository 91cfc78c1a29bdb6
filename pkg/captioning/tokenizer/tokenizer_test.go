// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextToWords(t *testing.T) {
	tok := New()
	require.Equal(t, []string{"a", "cat", "on", "the", "mat"}, tok.TextToWords("  A cat, on the\tMAT!"))
	require.Empty(t, tok.TextToWords("?!."))

	tok = New(WithLower(false), WithFilters(""), WithSplit("|"))
	require.Equal(t, []string{"A", "Cat,"}, tok.TextToWords("A||Cat,|"))
}

func TestFitOnTexts(t *testing.T) {
	tok := New(WithOOVToken("<unk>"))
	tok.FitOnTexts([]string{"the cat", "the dog", "a dog the"})
	assert.Equal(t, 3, tok.DocumentCount)
	assert.Equal(t, []WordCount{{"the", 3}, {"cat", 1}, {"dog", 2}, {"a", 1}}, tok.WordCounts)
	assert.Equal(t, map[string]int{"the": 3, "cat": 1, "dog": 2, "a": 1}, tok.WordDocs)

	// Sorted by count, ties in order of first occurrence.
	assert.Equal(t, map[string]int{"<unk>": 1, "the": 2, "dog": 3, "cat": 4, "a": 5}, tok.WordIndex)
	assert.Equal(t, "dog", tok.IndexWord[3])
	assert.Equal(t, 6, tok.VocabSize())

	// Fitting again accumulates counts.
	tok.FitOnTexts([]string{"a a a"})
	assert.Equal(t, 2, tok.WordIndex["a"])
	assert.Equal(t, 3, tok.WordIndex["the"])
}

func TestTopWordsCap(t *testing.T) {
	tok := New(WithNumWords(1), WithOOVToken("<unk>"))
	texts := []string{"startseq a endseq", "startseq a a endseq"}
	tok.FitOnTexts(texts)
	assert.Equal(t, map[string]int{"<unk>": 1, "a": 2, "startseq": 3, "endseq": 4}, tok.WordIndex)
	// Every id is capped to the OOV id.
	assert.Equal(t, [][]int{{1, 1, 1}, {1, 1, 1, 1}}, tok.TextsToSequences(texts))
	assert.Equal(t, 1, tok.VocabSize())

	tok = New(WithNumWords(3), WithOOVToken("<unk>"))
	tok.FitOnTexts(texts)
	assert.Equal(t, [][]int{{1, 2, 1}}, tok.TextsToSequences([]string{"startseq a zebra"}))
	assert.Equal(t, []string{"<unk> a <unk>"}, tok.SequencesToTexts([][]int{{3, 2, 4}}))
	assert.Equal(t, 3, tok.VocabSize())
}

func TestWithoutOOVToken(t *testing.T) {
	tok := New(WithNumWords(3))
	tok.FitOnTexts([]string{"b b b a a c"})
	assert.Equal(t, map[string]int{"b": 1, "a": 2, "c": 3}, tok.WordIndex)
	// Unknown words and words over the cap are dropped.
	assert.Equal(t, [][]int{{2, 1}}, tok.TextsToSequences([]string{"a zebra c b"}))
	assert.Equal(t, []string{"b a"}, tok.SequencesToTexts([][]int{{1, 0, 3, 2, 17}}))

	_, ok := tok.ID("zebra")
	assert.False(t, ok)
	_, ok = tok.Word(PadID)
	assert.False(t, ok)
}

func TestSequencesToTexts(t *testing.T) {
	tok := New(WithOOVToken("<unk>"))
	tok.FitOnTexts([]string{"startseq a black dog endseq"})
	seqs := tok.TextsToSequences([]string{"startseq a black cat endseq"})
	assert.Equal(t, []string{"startseq a black <unk> endseq"}, tok.SequencesToTexts(seqs))

	// Ids not in the index, including padding, are rendered as the OOV token.
	startID := tok.WordIndex["startseq"]
	assert.Equal(t, []string{"<unk> startseq <unk>"}, tok.SequencesToTexts([][]int{{PadID, startID, 99}}))
	word, ok := tok.Word(PadID)
	assert.True(t, ok)
	assert.Equal(t, "<unk>", word)
}

func TestPadSequences(t *testing.T) {
	seqs := [][]int{{1, 2, 3}, {4}, {5, 6, 7, 8, 9}}
	assert.Equal(t, [][]int32{{0, 0, 1, 2, 3}, {0, 0, 0, 0, 4}, {5, 6, 7, 8, 9}},
		PadSequences(seqs, 0, Pre, Pre))
	assert.Equal(t, [][]int32{{1, 2, 3, 0}, {4, 0, 0, 0}, {5, 6, 7, 8}},
		PadSequences(seqs, 4, Post, Post))
	assert.Equal(t, [][]int32{{0, 1, 2, 3}, {0, 0, 0, 4}, {6, 7, 8, 9}},
		PadSequences(seqs, 4, Pre, Pre))
	assert.Empty(t, PadSequences(nil, 0, Post, Post))
	assert.Equal(t, 5, MaxLength(seqs))
}

func TestSaveLoad(t *testing.T) {
	tok := New(WithNumWords(10), WithOOVToken("<unk>"))
	tok.FitOnTexts([]string{"startseq a cat endseq", "startseq a dog endseq"})

	filePath := filepath.Join(t.TempDir(), "tokenizer.bin")
	written, err := tok.Save(filePath, Overwrite)
	require.NoError(t, err)
	require.Equal(t, filePath, written)

	loaded, err := Load(filePath)
	require.NoError(t, err)
	require.Equal(t, tok.WordIndex, loaded.WordIndex)
	require.Equal(t, tok.IndexWord, loaded.IndexWord)
	require.Equal(t, tok.WordCounts, loaded.WordCounts)
	require.Equal(t, tok.NumWords, loaded.NumWords)
	require.Equal(t, tok.OOVToken, loaded.OOVToken)
	texts := []string{"startseq a bird endseq"}
	require.Equal(t, tok.TextsToSequences(texts), loaded.TextsToSequences(texts))

	// A loaded tokenizer can keep being fitted.
	loaded.FitOnTexts([]string{"cat cat cat"})
	require.Equal(t, WordCount{"cat", 4}, loaded.WordCounts[2])
	require.Equal(t, 2, loaded.WordIndex["cat"])

	// No temporary files left behind.
	entries, err := os.ReadDir(filepath.Dir(filePath))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSaveModes(t *testing.T) {
	tok := New(WithOOVToken("<unk>"))
	tok.FitOnTexts([]string{"a b"})
	dir := t.TempDir()
	filePath := filepath.Join(dir, "tokenizer.bin")

	written, err := tok.Save(filePath, NoClobber)
	require.NoError(t, err)
	require.Equal(t, filePath, written)

	_, err = tok.Save(filePath, NoClobber)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrExists))

	written, err = tok.Save(filePath, Versioned)
	require.NoError(t, err)
	require.Equal(t, filePath+".1", written)
	written, err = tok.Save(filePath, Versioned)
	require.NoError(t, err)
	require.Equal(t, filePath+".2", written)

	written, err = tok.Save(filePath, Overwrite)
	require.NoError(t, err)
	require.Equal(t, filePath, written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.bin"))
	require.Error(t, err)

	garbage := filepath.Join(dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("not a tokenizer"), 0o644))
	_, err = Load(garbage)
	require.Error(t, err)
}

func TestWriteModeNames(t *testing.T) {
	for _, mode := range []WriteMode{Overwrite, NoClobber, Versioned} {
		parsed, err := ParseWriteMode(mode.String())
		require.NoError(t, err)
		require.Equal(t, mode, parsed)
	}
	_, err := ParseWriteMode("append")
	require.Error(t, err)
}
