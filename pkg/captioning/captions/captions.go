// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package captions prepares caption texts for training a captioning model.
//
// Captions are read from a CSV file with a "caption" column (other columns, like "image", are ignored),
// wrapped with the StartToken and EndToken markers and used to fit a tokenizer.Tokenizer.
package captions

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/imgcaption/pkg/captioning/tokenizer"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// CaptionColumn is the name of the CSV column with the captions.
	CaptionColumn = "caption"

	// StartToken is prepended to every caption. Generation starts from its id.
	StartToken = "startseq"

	// EndToken is appended to every caption. Generation stops when it is produced.
	EndToken = "endseq"

	// OOVToken replaces words not in the vocabulary.
	OOVToken = "<unk>"

	// DefaultTopK is the default number of words kept by the tokenizer.
	DefaultTopK = 5000
)

var (
	// ErrNoCaptions is returned when the captions file has no rows.
	ErrNoCaptions = errors.New("no captions found")

	// ErrMissingColumn is returned when the captions file has no CaptionColumn.
	ErrMissingColumn = errors.New("missing \"" + CaptionColumn + "\" column")

	// ErrNoDestination is returned by TokenizeCaptions when no destination is given for the tokenizer.
	ErrNoDestination = errors.New("no destination given for the tokenizer")
)

// WrapCaption adds the start and end markers to caption.
func WrapCaption(caption string) string {
	return StartToken + " " + caption + " " + EndToken
}

// ReadCaptions reads the CaptionColumn of a CSV with a header line. Captions are returned verbatim.
func ReadCaptions(r io.Reader) ([]string, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read captions")
	}
	contents = bytes.TrimSpace(contents)
	if len(contents) == 0 || !bytes.ContainsRune(contents, '\n') {
		// Empty or only a header line.
		return nil, ErrNoCaptions
	}
	df := dataframe.ReadCSV(bytes.NewReader(contents),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to parse captions CSV")
	}
	var found bool
	for _, name := range df.Names() {
		if name == CaptionColumn {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Wrapf(ErrMissingColumn, "columns found: %q", df.Names())
	}
	if df.Nrow() == 0 {
		return nil, ErrNoCaptions
	}
	return df.Col(CaptionColumn).Records(), nil
}

// LoadCaptions reads the captions from the CSV file in filePath. See ReadCaptions.
func LoadCaptions(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open captions file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	captions, err := ReadCaptions(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "captions file %q", filePath)
	}
	return captions, nil
}

type config struct {
	mode      tokenizer.WriteMode
	savedPath *string
}

// Option for TokenizeCaptions.
type Option func(cfg *config)

// WithWriteMode sets how an existing tokenizer file in the destination is handled.
// Default is tokenizer.Overwrite.
func WithWriteMode(mode tokenizer.WriteMode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithSavedPath stores in savedPath the path where the tokenizer was actually written. It only differs from
// the destination given to TokenizeCaptions for tokenizer.Versioned.
func WithSavedPath(savedPath *string) Option {
	return func(cfg *config) {
		cfg.savedPath = savedPath
	}
}

// TokenizeCaptions reads the captions from the CSV file in filePath, wraps them with StartToken and EndToken,
// fits a tokenizer limited to the topK most frequent words (DefaultTopK if topK <= 0), with OOVToken for the
// others, and saves it to destination.
//
// It returns the tokenizer and the length of the longest tokenized caption, start and end markers included.
func TokenizeCaptions(filePath, destination string, topK int, options ...Option) (*tokenizer.Tokenizer, int, error) {
	cfg := &config{mode: tokenizer.Overwrite}
	for _, option := range options {
		option(cfg)
	}
	if destination == "" {
		return nil, 0, ErrNoDestination
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	captions, err := LoadCaptions(filePath)
	if err != nil {
		return nil, 0, err
	}
	texts := make([]string, len(captions))
	for ii, caption := range captions {
		texts[ii] = WrapCaption(caption)
	}
	klog.V(1).Infof("Read %d captions from %q", len(texts), filePath)

	tok := tokenizer.New(tokenizer.WithNumWords(topK), tokenizer.WithOOVToken(OOVToken))
	tok.FitOnTexts(texts)
	klog.V(1).Infof("Tokenizer fitted: %d distinct words, vocabulary size %d", len(tok.WordCounts), tok.VocabSize())

	written, err := tok.Save(destination, cfg.mode)
	if err != nil {
		return nil, 0, err
	}
	klog.V(1).Infof("Tokenizer saved to %q", written)
	if cfg.savedPath != nil {
		*cfg.savedPath = written
	}

	maxLen := tokenizer.MaxLength(tok.TextsToSequences(texts))
	return tok, maxLen, nil
}

// Markers returns the ids of the StartToken and EndToken in tok, after applying its cap on the number of words.
func Markers(tok *tokenizer.Tokenizer) (startID, endID int, err error) {
	var ok bool
	startID, ok = tok.ID(StartToken)
	if !ok {
		return 0, 0, errors.Errorf("tokenizer has no %q token", StartToken)
	}
	endID, ok = tok.ID(EndToken)
	if !ok {
		return 0, 0, errors.Errorf("tokenizer has no %q token", EndToken)
	}
	if startID == endID {
		return 0, 0, errors.Errorf("%q and %q map to the same id %d, the tokenizer vocabulary (%d words) is too small",
			StartToken, EndToken, startID, tok.VocabSize())
	}
	return startID, endID, nil
}

// stripMarkers removes the start and end markers, if present, from a caption text.
func stripMarkers(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, StartToken)
	text = strings.TrimSuffix(text, EndToken)
	return strings.TrimSpace(text)
}

// Text converts a sequence of ids generated with tok back to a caption, without the start and end markers.
func Text(tok *tokenizer.Tokenizer, seq []int) string {
	return stripMarkers(tok.SequenceToText(seq))
}
