// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tokenizer implements a word-level tokenizer for captions.
//
// Words are split on a separator after lower-casing and removing punctuation (see TextToWords), and ids are
// assigned by decreasing frequency when fitting (FitOnTexts), starting from 1: id 0 is reserved for padding.
// If an out-of-vocabulary token is configured it always gets id 1.
//
// The number of words used when converting texts to ids can be capped (WithNumWords): only words with
// id < NumWords are kept, the others are mapped to the out-of-vocabulary token (or dropped, if there is none).
// The full index is kept regardless of the cap.
//
// Token ids are only valid for the tokenizer that generated them: fitting again (or on different texts)
// may reassign them. Use Save and Load to keep the tokenizer along with any data converted with it.
package tokenizer

import (
	"slices"
	"strings"
)

const (
	// DefaultFilters are the characters removed from texts before splitting into words.
	DefaultFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

	// DefaultSplit is the separator of words.
	DefaultSplit = " "

	// PadID is the id used for padding sequences. It is never assigned to a word.
	PadID = 0
)

// WordCount is the number of occurrences of a word in the texts used to fit the tokenizer.
type WordCount struct {
	Word  string
	Count int
}

// Tokenizer maps words to integer ids and back.
//
// Fields are exported to allow serialization (see Save and Load), but they should be treated as read-only.
type Tokenizer struct {
	// NumWords caps the ids used when converting texts: ids >= NumWords are mapped to the OOV token.
	// 0 means no cap.
	NumWords int

	// OOVToken is the out-of-vocabulary token. If empty unknown words are dropped.
	OOVToken string

	Filters string
	Lower   bool
	Split   string

	// DocumentCount is the number of texts used to fit the tokenizer.
	DocumentCount int

	// WordCounts in order of first occurrence.
	WordCounts []WordCount

	// WordDocs is the number of texts each word appeared in.
	WordDocs map[string]int

	WordIndex map[string]int
	IndexWord map[int]string

	// wordCountsIdx maps a word to its position in WordCounts.
	wordCountsIdx map[string]int
}

// Option configures a Tokenizer in New.
type Option func(t *Tokenizer)

// WithNumWords caps the number of words used when converting texts to sequences to the numWords-1 most
// frequent ones (id 0 being reserved). If numWords <= 0 there is no cap.
func WithNumWords(numWords int) Option {
	return func(t *Tokenizer) {
		t.NumWords = max(numWords, 0)
	}
}

// WithOOVToken sets the out-of-vocabulary token. If empty, unknown words are dropped.
func WithOOVToken(token string) Option {
	return func(t *Tokenizer) {
		t.OOVToken = token
	}
}

// WithFilters sets the characters removed from texts. Default is DefaultFilters.
func WithFilters(filters string) Option {
	return func(t *Tokenizer) {
		t.Filters = filters
	}
}

// WithLower sets whether texts are lower-cased. Default is true.
func WithLower(lower bool) Option {
	return func(t *Tokenizer) {
		t.Lower = lower
	}
}

// WithSplit sets the word separator. Default is DefaultSplit.
func WithSplit(split string) Option {
	return func(t *Tokenizer) {
		t.Split = split
	}
}

// New creates an empty Tokenizer. Call FitOnTexts to build its vocabulary.
func New(options ...Option) *Tokenizer {
	t := &Tokenizer{
		Filters:   DefaultFilters,
		Lower:     true,
		Split:     DefaultSplit,
		WordDocs:  make(map[string]int),
		WordIndex: make(map[string]int),
		IndexWord: make(map[int]string),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// TextToWords splits text into words, after lower-casing (if configured) and replacing the filtered
// characters by the separator. Empty words are dropped.
func (t *Tokenizer) TextToWords(text string) []string {
	if t.Lower {
		text = strings.ToLower(text)
	}
	split := t.separator()
	if t.Filters != "" {
		pairs := make([]string, 0, 2*len(t.Filters))
		for _, r := range t.Filters {
			pairs = append(pairs, string(r), split)
		}
		text = strings.NewReplacer(pairs...).Replace(text)
	}
	parts := strings.Split(text, split)
	words := parts[:0]
	for _, part := range parts {
		if part != "" {
			words = append(words, part)
		}
	}
	return words
}

func (t *Tokenizer) separator() string {
	if t.Split == "" {
		return DefaultSplit
	}
	return t.Split
}

// FitOnTexts updates the word counts with texts and rebuilds the index.
//
// Words are sorted by decreasing count, ties keep the order of first occurrence. It can be called
// more than once: counts accumulate and the ids are reassigned.
func (t *Tokenizer) FitOnTexts(texts []string) {
	t.ensureMaps()
	t.buildWordCountsIdx()
	for _, text := range texts {
		t.DocumentCount++
		words := t.TextToWords(text)
		seen := make(map[string]bool, len(words))
		for _, word := range words {
			idx, found := t.wordCountsIdx[word]
			if !found {
				idx = len(t.WordCounts)
				t.wordCountsIdx[word] = idx
				t.WordCounts = append(t.WordCounts, WordCount{Word: word})
			}
			t.WordCounts[idx].Count++
			if !seen[word] {
				seen[word] = true
				t.WordDocs[word]++
			}
		}
	}
	t.buildIndex()
}

// ensureMaps allocates maps left nil, e.g. empty maps of a decoded tokenizer.
func (t *Tokenizer) ensureMaps() {
	if t.WordDocs == nil {
		t.WordDocs = make(map[string]int)
	}
	if t.WordIndex == nil {
		t.WordIndex = make(map[string]int)
	}
	if t.IndexWord == nil {
		t.IndexWord = make(map[int]string)
	}
}

func (t *Tokenizer) buildWordCountsIdx() {
	if t.wordCountsIdx != nil {
		return
	}
	t.wordCountsIdx = make(map[string]int, len(t.WordCounts))
	for ii, wc := range t.WordCounts {
		t.wordCountsIdx[wc.Word] = ii
	}
}

func (t *Tokenizer) buildIndex() {
	sorted := slices.Clone(t.WordCounts)
	slices.SortStableFunc(sorted, func(a, b WordCount) int {
		return b.Count - a.Count
	})
	vocab := make([]string, 0, len(sorted)+1)
	if t.OOVToken != "" {
		vocab = append(vocab, t.OOVToken)
	}
	for _, wc := range sorted {
		if wc.Word != t.OOVToken {
			vocab = append(vocab, wc.Word)
		}
	}
	t.WordIndex = make(map[string]int, len(vocab))
	t.IndexWord = make(map[int]string, len(vocab))
	for ii, word := range vocab {
		t.WordIndex[word] = ii + 1
		t.IndexWord[ii+1] = word
	}
}

// oovID returns the id of the OOV token, or -1 if there is none.
func (t *Tokenizer) oovID() int {
	if t.OOVToken == "" {
		return -1
	}
	id, found := t.WordIndex[t.OOVToken]
	if !found {
		return -1
	}
	return id
}

// usable returns whether id is within the NumWords cap.
func (t *Tokenizer) usable(id int) bool {
	return t.NumWords <= 0 || id < t.NumWords
}

// ID returns the id of word, after applying the NumWords cap and the OOV token.
// It returns false if the word is dropped (unknown and no OOV token configured).
func (t *Tokenizer) ID(word string) (id int, ok bool) {
	id, found := t.WordIndex[word]
	if found && t.usable(id) {
		return id, true
	}
	id = t.oovID()
	return id, id >= 0
}

// Word returns the word for id, after applying the NumWords cap and the OOV token.
// Ids not in the index (e.g. PadID) are also rendered as the OOV token. It returns false only if there is
// no OOV token and the id is unknown or over the cap.
func (t *Tokenizer) Word(id int) (word string, ok bool) {
	word, found := t.IndexWord[id]
	if found && t.usable(id) {
		return word, true
	}
	oovID := t.oovID()
	if oovID < 0 {
		return "", false
	}
	return t.IndexWord[oovID], true
}

// TextToSequence converts one text to ids.
func (t *Tokenizer) TextToSequence(text string) []int {
	words := t.TextToWords(text)
	seq := make([]int, 0, len(words))
	for _, word := range words {
		if id, ok := t.ID(word); ok {
			seq = append(seq, id)
		}
	}
	return seq
}

// TextsToSequences converts each text to ids.
func (t *Tokenizer) TextsToSequences(texts []string) [][]int {
	seqs := make([][]int, len(texts))
	for ii, text := range texts {
		seqs[ii] = t.TextToSequence(text)
	}
	return seqs
}

// SequenceToText converts ids back to a text, with words joined by the separator.
// See Word for how unknown ids (including PadID) are handled.
func (t *Tokenizer) SequenceToText(seq []int) string {
	words := make([]string, 0, len(seq))
	for _, id := range seq {
		if word, ok := t.Word(id); ok {
			words = append(words, word)
		}
	}
	return strings.Join(words, t.separator())
}

// SequencesToTexts converts each sequence back to a text.
func (t *Tokenizer) SequencesToTexts(seqs [][]int) []string {
	texts := make([]string, len(seqs))
	for ii, seq := range seqs {
		texts[ii] = t.SequenceToText(seq)
	}
	return texts
}

// VocabSize returns the number of ids a model needs to account for (e.g. the size of the embedding table),
// including the reserved PadID.
func (t *Tokenizer) VocabSize() int {
	size := len(t.WordIndex) + 1
	if t.NumWords > 0 && t.NumWords < size {
		return t.NumWords
	}
	return size
}

// MaxLength returns the length of the longest sequence, or 0 if there are none.
func MaxLength(seqs [][]int) int {
	var maxLen int
	for _, seq := range seqs {
		maxLen = max(maxLen, len(seq))
	}
	return maxLen
}
