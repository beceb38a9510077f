// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
)

// maxLineSize bounds a single JSON Lines record.
const maxLineSize = 16 << 20

// Message is one turn of a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is one line of a chat transcript file.
type Transcript struct {
	Messages []Message `json:"messages"`
}

// Part is a text part of a tuning sample.
type Part struct {
	Text string `json:"text"`
}

// Content is one turn of a tuning sample.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Sample is one line of a supervised tuning dataset.
type Sample struct {
	Contents []Content `json:"contents"`
}

// SampleFromTranscript converts t to a tuning sample. The assistant role is
// renamed to model; every other role is kept.
func SampleFromTranscript(t Transcript) Sample {
	sample := Sample{
		Contents: make([]Content, 0, len(t.Messages)),
	}
	for _, m := range t.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		sample.Contents = append(sample.Contents, Content{
			Role:  role,
			Parts: []Part{{Text: m.Content}},
		})
	}
	return sample
}

// ConvertMessages reads chat transcripts from r and writes tuning samples to w,
// one JSON document per line. Blank lines are skipped. It returns the number of
// samples written.
func ConvertMessages(r io.Reader, w io.Writer) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	bw := bufio.NewWriter(w)

	n := 0
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var t Transcript
		if err := sonic.ConfigFastest.Unmarshal(raw, &t); err != nil {
			return n, fmt.Errorf("decode transcript on line %d: %w", line, err)
		}
		out, err := sonic.ConfigFastest.Marshal(SampleFromTranscript(t))
		if err != nil {
			return n, fmt.Errorf("encode sample on line %d: %w", line, err)
		}
		if _, err := bw.Write(append(out, '\n')); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read transcripts: %w", err)
	}

	return n, bw.Flush()
}

// ConvertFile converts the transcripts of src into the tuning dataset dst.
func ConvertFile(src, dst string) (n int, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	n, err = ConvertMessages(in, out)
	if err != nil {
		return n, fmt.Errorf("convert %s: %w", src, err)
	}
	return n, nil
}
