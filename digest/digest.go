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

package digest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	godigest "github.com/opencontainers/go-digest"
	_ "github.com/opencontainers/go-digest/blake3"
)

// ChunkSize is the number of bytes read from the source between two
// progress notifications.
const ChunkSize = 8 * 1024

// Canonical is the algorithm assumed for expected digests written as
// bare hex strings.
const Canonical = godigest.SHA256

// ProgressFunc receives the number of bytes hashed so far and the total
// size hint, which is zero when unknown.
type ProgressFunc func(processed, total int64)

// Parse normalises an expected digest. Both the bare lowercase hex form
// (SHA-256) and the 'algorithm:hex' form are accepted. An empty string
// yields an empty digest, meaning verification is skipped.
func Parse(expected string) (godigest.Digest, error) {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" {
		return "", nil
	}

	var d godigest.Digest
	if strings.Contains(expected, ":") {
		d = godigest.Digest(expected)
	} else {
		d = godigest.NewDigestFromEncoded(Canonical, expected)
	}
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid digest %q: %w", expected, err)
	}
	return d, nil
}

// Compute hashes everything read from r with the given algorithm and
// returns the lowercase hex encoding of the sum. The progress callback,
// when not nil, is invoked after every chunk.
func Compute(r io.Reader, algo godigest.Algorithm, total int64, fn ProgressFunc) (string, error) {
	if !algo.Available() {
		return "", fmt.Errorf("digest algorithm %q is not available", algo)
	}

	h := algo.Hash()
	buf := make([]byte, ChunkSize)
	var processed int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			processed += int64(n)
			if fn != nil {
				fn(processed, total)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read after %d bytes: %w", processed, err)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ComputeFile hashes the file at path, using its size as the total hint
// for the progress callback.
func ComputeFile(path string, algo godigest.Algorithm, fn ProgressFunc) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	return Compute(f, algo, fi.Size(), fn)
}
