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
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	. "github.com/onsi/gomega"
	godigest "github.com/opencontainers/go-digest"
)

func TestParse(t *testing.T) {
	sum := fmt.Sprintf("%x", sha256.Sum256([]byte("kraken")))

	tests := []struct {
		name     string
		expected string
		want     godigest.Digest
		wantErr  bool
	}{
		{
			name:     "empty skips verification",
			expected: "",
			want:     "",
		},
		{
			name:     "bare hex defaults to sha256",
			expected: sum,
			want:     godigest.Digest("sha256:" + sum),
		},
		{
			name:     "uppercase hex is normalised",
			expected: "  " + string(bytes.ToUpper([]byte(sum))) + "\n",
			want:     godigest.Digest("sha256:" + sum),
		},
		{
			name:     "algorithm prefix is kept",
			expected: "sha256:" + sum,
			want:     godigest.Digest("sha256:" + sum),
		},
		{
			name:     "truncated hex",
			expected: sum[:10],
			wantErr:  true,
		},
		{
			name:     "unknown algorithm",
			expected: "md5:" + sum,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			got, err := Parse(tt.expected)
			if tt.wantErr {
				g.Expect(err).To(HaveOccurred())
				return
			}
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestCompute(t *testing.T) {
	g := NewWithT(t)

	data := bytes.Repeat([]byte("ACGT"), 5000)
	want := fmt.Sprintf("%x", sha256.Sum256(data))

	var calls int
	var last int64
	got, err := Compute(bytes.NewReader(data), godigest.SHA256, int64(len(data)), func(processed, total int64) {
		calls++
		g.Expect(processed).To(BeNumerically(">", last))
		g.Expect(total).To(Equal(int64(len(data))))
		last = processed
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(Equal(want))
	g.Expect(last).To(Equal(int64(len(data))))
	// 20000 bytes in 8 KiB chunks.
	g.Expect(calls).To(Equal(3))
}

func TestCompute_NilProgress(t *testing.T) {
	g := NewWithT(t)

	data := []byte("taxDB")
	got, err := Compute(bytes.NewReader(data), godigest.SHA256, 0, nil)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(Equal(fmt.Sprintf("%x", sha256.Sum256(data))))
}

func TestCompute_Blake3(t *testing.T) {
	g := NewWithT(t)

	data := []byte("database.idx")
	got, err := Compute(bytes.NewReader(data), godigest.BLAKE3, 0, nil)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(Equal(godigest.BLAKE3.FromBytes(data).Encoded()))
}

func TestCompute_ReadError(t *testing.T) {
	g := NewWithT(t)

	boom := errors.New("disk on fire")
	_, err := Compute(iotest.ErrReader(boom), godigest.SHA256, 0, nil)
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, boom)).To(BeTrue())
}

func TestComputeFile(t *testing.T) {
	g := NewWithT(t)

	data := bytes.Repeat([]byte{0x1f, 0x8b}, 9000)
	path := filepath.Join(t.TempDir(), "database.kdb")
	g.Expect(os.WriteFile(path, data, 0o600)).To(Succeed())

	var total int64
	got, err := ComputeFile(path, godigest.SHA256, func(_, hint int64) { total = hint })
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(Equal(fmt.Sprintf("%x", sha256.Sum256(data))))
	g.Expect(total).To(Equal(int64(len(data))))

	_, err = ComputeFile(filepath.Join(t.TempDir(), "missing"), godigest.SHA256, nil)
	g.Expect(os.IsNotExist(err)).To(BeTrue())
}
