/*
Copyright 2026 The Poleshift authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package progress

import (
	"io"
)

// Reader counts the bytes read through it and reports the running total
// after every successful Read.
type Reader struct {
	r      io.Reader
	n      int64
	total  int64
	report func(processed, total int64)
}

// NewReader wraps r. The total is passed through to the report callback
// unchanged; use zero when the size is unknown.
func NewReader(r io.Reader, total int64, report func(processed, total int64)) *Reader {
	return &Reader{r: r, total: total, report: report}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.n += int64(n)
		if r.report != nil {
			r.report(r.n, r.total)
		}
	}
	return n, err
}

// N returns the number of bytes read so far.
func (r *Reader) N() int64 {
	return r.n
}
