// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tokenizer

// Side selects where sequences are padded or truncated.
type Side int

const (
	// Pre pads (or truncates) at the start of the sequence.
	Pre Side = iota

	// Post pads (or truncates) at the end of the sequence.
	Post
)

// PadSequences converts seqs to a dense [len(seqs)][maxLen] slice, padded with PadID.
//
// If maxLen <= 0, the length of the longest sequence is used. Sequences longer than maxLen are truncated
// at the truncating side.
//
// Captions used as training targets are usually padded and truncated Post.
func PadSequences(seqs [][]int, maxLen int, padding, truncating Side) [][]int32 {
	if maxLen <= 0 {
		maxLen = MaxLength(seqs)
	}
	padded := make([][]int32, len(seqs))
	for ii, seq := range seqs {
		row := make([]int32, maxLen) // Zero initialized with PadID.
		if len(seq) > maxLen {
			if truncating == Pre {
				seq = seq[len(seq)-maxLen:]
			} else {
				seq = seq[:maxLen]
			}
		}
		offset := 0
		if padding == Pre {
			offset = maxLen - len(seq)
		}
		for jj, id := range seq {
			row[offset+jj] = int32(id)
		}
		padded[ii] = row
	}
	return padded
}
