// Copyright 2015 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package indent prefixes every line of a block of text, the way proof
// traces and CLI help text need to be indented when they are nested
// inside another format's output.
package indent

import (
	"bytes"
	"io"
)

// String returns in with prefix inserted at the start of every line. A
// trailing newline does not produce a spurious prefixed empty line.
func String(prefix, in string) string {
	return string(Bytes([]byte(prefix), []byte(in)))
}

// Bytes is String for []byte.
func Bytes(prefix, in []byte) []byte {
	if len(in) == 0 {
		return in
	}
	lines := bytes.Split(in, []byte{'\n'})
	last := len(lines) - 1
	var out []byte
	for i, l := range lines {
		if i > 0 {
			out = append(out, '\n')
		}
		if i < last || len(l) > 0 {
			out = append(out, prefix...)
		}
		out = append(out, l...)
	}
	return out
}

// writer inserts prefix at the start of every line written to it,
// carrying the beginning-of-line state across Write calls.
type writer struct {
	w      io.Writer
	prefix []byte
	bol    bool
}

// NewWriter returns a writer that indents every line written to it with
// prefix before passing it on to w.
func NewWriter(w io.Writer, prefix string) io.Writer {
	return &writer{w: w, prefix: []byte(prefix), bol: true}
}

// Write indents buf according to the writer's beginning-of-line state and
// passes the result to the underlying writer. The returned count is in
// terms of buf, not the (larger) indented stream actually written, so a
// short underlying write is translated back to the number of whole
// trailing bytes of buf it covers.
func (iw *writer) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	out := make([]byte, 0, len(buf)+len(iw.prefix))
	origOf := make([]int, 0, cap(out))
	bol := iw.bol
	for i, c := range buf {
		if bol {
			out = append(out, iw.prefix...)
			for range iw.prefix {
				origOf = append(origOf, -1)
			}
			bol = false
		}
		out = append(out, c)
		origOf = append(origOf, i)
		bol = c == '\n'
	}

	wn, err := iw.w.Write(out)
	if wn > len(out) {
		wn = len(out)
	}

	if wn == len(out) {
		iw.bol = bol
	} else if wn > 0 {
		iw.bol = out[wn-1] == '\n'
	}

	n := 0
	for i := 0; i < wn; i++ {
		if origOf[i] >= 0 {
			n = origOf[i] + 1
		}
	}
	return n, err
}
