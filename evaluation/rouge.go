// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"strings"

	"github.com/kljensen/snowball/english"

	"github.com/go-a2a/tuneflow/internal/pool"
)

// minStemLength is the shortest token that is stemmed plus one.
const minStemLength = 4

// Score is a precision, recall and F-measure triple.
type Score struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	FMeasure  float64 `json:"fmeasure"`
}

func newScore(overlap, predicted, target int) Score {
	precision := float64(overlap) / float64(max(predicted, 1))
	recall := float64(overlap) / float64(max(target, 1))

	var f float64
	if precision+recall > 0 {
		f = 2 * precision * recall / (precision + recall)
	}
	return Score{Precision: precision, Recall: recall, FMeasure: f}
}

// Scores holds the ROUGE scores of one prediction.
type Scores struct {
	Rouge1 Score `json:"rouge1"`
	Rouge2 Score `json:"rouge2"`
	RougeL Score `json:"rougeL"`
}

// Scorer computes ROUGE scores.
type Scorer struct {
	stem bool
}

// NewScorer returns a [Scorer]. With stem set tokens are stemmed before matching.
func NewScorer(stem bool) *Scorer {
	return &Scorer{stem: stem}
}

// Tokenize splits text into lower-case alphanumeric tokens, stemming tokens
// longer than three characters when stem is set.
func Tokenize(text string, stem bool) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if !stem {
		return fields
	}

	for i, tok := range fields {
		if len(tok) >= minStemLength {
			fields[i] = english.Stem(tok, true)
		}
	}
	return fields
}

// Score scores prediction against target.
func (s *Scorer) Score(target, prediction string) Scores {
	targetTokens := Tokenize(target, s.stem)
	predTokens := Tokenize(prediction, s.stem)

	return Scores{
		Rouge1: ngramScore(targetTokens, predTokens, 1),
		Rouge2: ngramScore(targetTokens, predTokens, 2),
		RougeL: lcsScore(targetTokens, predTokens),
	}
}

func ngrams(tokens []string, n int) map[string]int {
	buf := pool.Buffer.Get()
	defer pool.Buffer.Put(buf)

	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		buf.Reset()
		for j, tok := range tokens[i : i+n] {
			if j > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(tok)
		}
		counts[string(buf.Bytes())]++
	}
	return counts
}

func total(counts map[string]int) int {
	sum := 0
	for _, c := range counts {
		sum += c
	}
	return sum
}

func ngramScore(target, prediction []string, n int) Score {
	targetNgrams := ngrams(target, n)
	predNgrams := ngrams(prediction, n)

	overlap := 0
	for gram, count := range predNgrams {
		overlap += min(count, targetNgrams[gram])
	}

	return newScore(overlap, total(predNgrams), total(targetNgrams))
}

func lcsScore(target, prediction []string) Score {
	if len(target) == 0 || len(prediction) == 0 {
		return Score{}
	}
	lcs := lcsLength(target, prediction)
	return newScore(lcs, len(prediction), len(target))
}

// lcsLength returns the length of the longest common subsequence of a and b.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
