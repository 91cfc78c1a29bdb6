// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tokenizer

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// artifactVersion is written before the tokenizer, so incompatible artifacts are rejected by Load.
const artifactVersion = 1

// ErrExists is returned by Save with NoClobber if the destination already exists.
var ErrExists = errors.New("tokenizer artifact already exists")

// WriteMode defines how Save handles an existing file in the destination.
type WriteMode int

const (
	// Overwrite replaces any existing file.
	Overwrite WriteMode = iota

	// NoClobber fails with ErrExists if the destination exists.
	NoClobber

	// Versioned keeps existing files: it writes to the first free path among "<path>", "<path>.1", "<path>.2", ...
	Versioned
)

// String implements fmt.Stringer.
func (m WriteMode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case NoClobber:
		return "no_clobber"
	case Versioned:
		return "versioned"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// ParseWriteMode converts the names returned by WriteMode.String back to a WriteMode.
func ParseWriteMode(name string) (WriteMode, error) {
	for _, m := range []WriteMode{Overwrite, NoClobber, Versioned} {
		if m.String() == name {
			return m, nil
		}
	}
	return Overwrite, errors.Errorf("unknown tokenizer write mode %q, valid values are %q, %q and %q",
		name, Overwrite, NoClobber, Versioned)
}

// Save serializes the tokenizer to filePath and returns the path actually written (it differs from filePath
// only for Versioned).
//
// The file is first written to a temporary file in the same directory and then moved in place, so readers
// never see a partially written artifact.
func (t *Tokenizer) Save(filePath string, mode WriteMode) (written string, err error) {
	dir := filepath.Dir(filePath)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(filePath), uuid.NewString()))
	if err = t.writeFile(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	switch mode {
	case Overwrite:
		if err = os.Rename(tmpPath, filePath); err != nil {
			return "", errors.Wrapf(err, "failed to move tokenizer to %q", filePath)
		}
		return filePath, nil

	case NoClobber:
		if err = linkNew(tmpPath, filePath); err != nil {
			return "", err
		}
		return filePath, nil

	case Versioned:
		for version := 0; ; version++ {
			candidate := filePath
			if version > 0 {
				candidate = fmt.Sprintf("%s.%d", filePath, version)
			}
			err = linkNew(tmpPath, candidate)
			if err == nil {
				return candidate, nil
			}
			if !errors.Is(err, ErrExists) {
				return "", err
			}
		}

	default:
		err = errors.Errorf("invalid tokenizer write mode %s", mode)
		return "", err
	}
}

// linkNew makes tmpPath available as filePath, failing with ErrExists if filePath exists.
// A hard link is used since, unlike a rename, it never replaces an existing file.
func linkNew(tmpPath, filePath string) error {
	if err := os.Link(tmpPath, filePath); err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(ErrExists, "%q", filePath)
		}
		return errors.Wrapf(err, "failed to save tokenizer to %q", filePath)
	}
	_ = os.Remove(tmpPath)
	return nil
}

func (t *Tokenizer) writeFile(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create tokenizer file %q", filePath)
	}
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
	}()

	enc := gob.NewEncoder(f)
	if err := enc.Encode(artifactVersion); err != nil {
		return errors.Wrapf(err, "failed to write tokenizer to %q", filePath)
	}
	if err := enc.Encode(t); err != nil {
		return errors.Wrapf(err, "failed to write tokenizer to %q", filePath)
	}

	// Report back result of close.
	err = f.Close()
	closed = true
	if err != nil {
		return errors.Wrapf(err, "failed to close tokenizer file %q", filePath)
	}
	return nil
}

// Load a tokenizer saved with Tokenizer.Save.
func Load(filePath string) (*Tokenizer, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open tokenizer file %q", filePath)
	}
	defer func() {
		_ = f.Close()
	}()

	dec := gob.NewDecoder(f)
	var version int
	if err := dec.Decode(&version); err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer from %q", filePath)
	}
	if version != artifactVersion {
		return nil, errors.Errorf("tokenizer file %q has version %d, only version %d is supported",
			filePath, version, artifactVersion)
	}
	t := &Tokenizer{}
	if err := dec.Decode(t); err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer from %q", filePath)
	}
	t.ensureMaps()
	t.buildWordCountsIdx()
	return t, nil
}
