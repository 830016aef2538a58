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

package stage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"

	. "github.com/onsi/gomega"
	godigest "github.com/opencontainers/go-digest"

	"github.com/poleshift/stager/progress"
)

func sha(b []byte) godigest.Digest {
	return godigest.NewDigestFromEncoded(godigest.SHA256, fmt.Sprintf("%x", sha256.Sum256(b)))
}

// countingSource returns a SourceFunc serving content and counting the
// number of times it was opened.
func countingSource(content []byte, calls *int32) SourceFunc {
	return func(context.Context) (io.ReadCloser, error) {
		atomic.AddInt32(calls, 1)
		return io.NopCloser(bytes.NewReader(content)), nil
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name      string
		committed bool
		staged    bool
		want      Phase
	}{
		{name: "nothing on disk", want: PhaseAbsent},
		{name: "committed only", committed: true, want: PhaseCommitted},
		{name: "staged only", staged: true, want: PhaseStaged},
		{name: "staged wins over committed", committed: true, staged: true, want: PhaseStaged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			path := filepath.Join(t.TempDir(), "taxDB.gz")
			if tt.committed {
				g.Expect(os.WriteFile(path, []byte("c"), 0o644)).To(Succeed())
			}
			if tt.staged {
				g.Expect(os.WriteFile(StagedPath(path), []byte("s"), 0o644)).To(Succeed())
			}

			phase, err := Probe(path)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(phase).To(Equal(tt.want))
		})
	}
}

func TestProbe_Directory(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "database.kdb")
	g.Expect(os.Mkdir(path, 0o755)).To(Succeed())

	_, err := Probe(path)
	var fsErr *FilesystemError
	g.Expect(errors.As(err, &fsErr)).To(BeTrue())
}

func TestStagedPath(t *testing.T) {
	g := NewWithT(t)
	g.Expect(StagedPath("/res/database.kdb.gz")).To(Equal("/res/database.kdb.gz_unchecked"))
}

func TestStager_StageThenCommit(t *testing.T) {
	content := bytes.Repeat([]byte("GATTACA"), 4096)
	other := []byte("corrupted")

	tests := []struct {
		name        string
		committed   []byte
		staged      []byte
		expected    godigest.Digest
		wantOutcome Outcome
		wantOpens   int32
		wantErr     bool
		wantContent []byte
	}{
		{
			name:        "absent is written and committed",
			expected:    sha(content),
			wantOutcome: OutcomeWritten,
			wantOpens:   1,
			wantContent: content,
		},
		{
			name:        "committed is trusted without hashing",
			committed:   other,
			expected:    sha(content),
			wantOutcome: OutcomeSkipped,
			wantOpens:   0,
			wantContent: other,
		},
		{
			name:        "valid staged file is resumed",
			staged:      content,
			expected:    sha(content),
			wantOutcome: OutcomeResumed,
			wantOpens:   0,
			wantContent: content,
		},
		{
			name:        "corrupted staged file is replaced",
			staged:      other,
			expected:    sha(content),
			wantOutcome: OutcomeWritten,
			wantOpens:   1,
			wantContent: content,
		},
		{
			name:        "staged file replaces stale committed file",
			committed:   other,
			staged:      content,
			expected:    sha(content),
			wantOutcome: OutcomeResumed,
			wantOpens:   0,
			wantContent: content,
		},
		{
			name:        "staged file without digest is committed as is",
			staged:      other,
			wantOutcome: OutcomeResumed,
			wantOpens:   0,
			wantContent: other,
		},
		{
			name:      "downloaded content not matching fails",
			expected:  sha(other),
			wantOpens: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			path := filepath.Join(t.TempDir(), "database.kdb.gz")
			if tt.committed != nil {
				g.Expect(os.WriteFile(path, tt.committed, 0o644)).To(Succeed())
			}
			if tt.staged != nil {
				g.Expect(os.WriteFile(StagedPath(path), tt.staged, 0o644)).To(Succeed())
			}

			var opens int32
			s := New()
			res, err := s.StageThenCommit(context.Background(), Artifact{
				Name:     "database.kdb.gz",
				Path:     path,
				Expected: tt.expected,
			}, countingSource(content, &opens))

			g.Expect(opens).To(Equal(tt.wantOpens))
			g.Expect(StagedPath(path)).ToNot(BeAnExistingFile())

			if tt.wantErr {
				g.Expect(err).To(HaveOccurred())
				var mismatch *DigestMismatchError
				g.Expect(errors.As(err, &mismatch)).To(BeTrue())
				g.Expect(mismatch.Expected).To(Equal(tt.expected.Encoded()))
				g.Expect(mismatch.Actual).To(Equal(sha(content).Encoded()))
				g.Expect(path).ToNot(BeAnExistingFile())
				return
			}

			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(res.Outcome).To(Equal(tt.wantOutcome))
			got, err := os.ReadFile(path)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(got).To(Equal(tt.wantContent))
			g.Expect(res.Size).To(Equal(int64(len(tt.wantContent))))
		})
	}
}

func TestStager_SkipVerification(t *testing.T) {
	g := NewWithT(t)

	rec := &progress.Recorder{}
	s := New(WithProgressSink(rec))
	path := filepath.Join(t.TempDir(), "taxDB.gz")

	var opens int32
	res, err := s.StageThenCommit(context.Background(), Artifact{Name: "taxDB.gz", Path: path},
		countingSource([]byte("anything goes"), &opens))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(res.Outcome).To(Equal(OutcomeWritten))
	g.Expect(res.Digest).To(BeEmpty())
	g.Expect(rec.Events(progress.KindHash)).To(BeEmpty())
	g.Expect(path).To(BeARegularFile())
}

func TestStager_HashProgress(t *testing.T) {
	g := NewWithT(t)

	content := bytes.Repeat([]byte{'x'}, 20000)
	rec := &progress.Recorder{}
	s := New(WithProgressSink(rec))
	path := filepath.Join(t.TempDir(), "database.idx.gz")

	var opens int32
	_, err := s.StageThenCommit(context.Background(), Artifact{Name: "idx", Path: path, Expected: sha(content)},
		countingSource(content, &opens))
	g.Expect(err).ToNot(HaveOccurred())

	last, ok := rec.Last(progress.KindHash, "idx")
	g.Expect(ok).To(BeTrue())
	g.Expect(last.Processed).To(Equal(int64(len(content))))
	g.Expect(last.Total).To(Equal(int64(len(content))))
}

func TestStager_SourceErrorWritesNothing(t *testing.T) {
	g := NewWithT(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "database.kdb")
	boom := errors.New("status 500")

	s := New(WithFileLock(false))
	_, err := s.StageThenCommit(context.Background(), Artifact{Name: "kdb", Path: path},
		func(context.Context) (io.ReadCloser, error) { return nil, boom })
	g.Expect(errors.Is(err, boom)).To(BeTrue())

	entries, err := os.ReadDir(dir)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(entries).To(BeEmpty())
}

func TestStager_ReadErrorRemovesStaged(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "database.kdb")
	boom := errors.New("connection reset")

	s := New()
	_, err := s.StageThenCommit(context.Background(), Artifact{Name: "kdb", Path: path},
		func(context.Context) (io.ReadCloser, error) {
			r := io.MultiReader(bytes.NewReader([]byte("partial")), iotest.ErrReader(boom))
			return io.NopCloser(r), nil
		})
	g.Expect(errors.Is(err, boom)).To(BeTrue())
	g.Expect(StagedPath(path)).ToNot(BeAnExistingFile())
	g.Expect(path).ToNot(BeAnExistingFile())
}

func TestStager_Canceled(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "database.kdb")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var opens int32
	_, err := New().StageThenCommit(ctx, Artifact{Name: "kdb", Path: path}, countingSource([]byte("x"), &opens))
	g.Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	g.Expect(opens).To(BeZero())
}

func TestStager_CommitIsAtomic(t *testing.T) {
	g := NewWithT(t)

	content := bytes.Repeat([]byte("ACGT"), 1<<18)
	path := filepath.Join(t.TempDir(), "database.kdb")

	var (
		wg      sync.WaitGroup
		done    = make(chan struct{})
		partial atomic.Bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			b, err := os.ReadFile(path)
			if err == nil && len(b) != len(content) {
				partial.Store(true)
			}
		}
	}()

	var opens int32
	_, err := New().StageThenCommit(context.Background(), Artifact{Name: "kdb", Path: path, Expected: sha(content)},
		countingSource(content, &opens))
	close(done)
	wg.Wait()

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(partial.Load()).To(BeFalse())
}

func TestNetworkError_NotFound(t *testing.T) {
	g := NewWithT(t)

	err := fmt.Errorf("wrapped: %w", &NetworkError{Name: "taxDB.gz", URL: "http://x/taxDB.gz", StatusCode: 404})
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("404 Not Found"))

	err = &NetworkError{Name: "taxDB.gz", URL: "http://x/taxDB.gz", StatusCode: 503}
	g.Expect(errors.Is(err, ErrNotFound)).To(BeFalse())
}

func TestResult_String(t *testing.T) {
	g := NewWithT(t)

	res := Result{Name: "taxDB.gz", Outcome: OutcomeResumed}
	g.Expect(res.String()).To(Equal("taxDB.gz: resumed"))
	g.Expect(fmt.Sprint(res)).To(Equal("taxDB.gz: resumed"))
}
