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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fluxcd/pkg/lockedfile"
	"github.com/go-logr/logr"
	godigest "github.com/opencontainers/go-digest"

	"github.com/poleshift/stager/digest"
	"github.com/poleshift/stager/logger"
	"github.com/poleshift/stager/progress"
)

// copyBufferSize is the size of the chunks copied from a source into the
// staged file. The context is checked between chunks.
const copyBufferSize = 32 * 1024

// Artifact is a single file managed by a Stager.
type Artifact struct {
	// Name is the catalog name of the resource the artifact belongs to.
	Name string
	// Path is the committed location of the artifact.
	Path string
	// Expected is the digest the content must match. An empty digest
	// disables verification.
	Expected godigest.Digest
}

// Outcome describes what a Stager did to bring an artifact to the
// committed phase.
type Outcome string

const (
	// OutcomeSkipped means the artifact was already committed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeResumed means a staged file left by an earlier run was
	// verified and committed without writing.
	OutcomeResumed Outcome = "resumed"
	// OutcomeWritten means the content was written from its source,
	// verified and committed.
	OutcomeWritten Outcome = "written"
)

// Result reports how an artifact reached the committed phase.
type Result struct {
	Name    string
	Path    string
	Outcome Outcome
	// Size is the size in bytes of the committed file.
	Size int64
	// Digest is the lowercase hex digest computed during verification,
	// empty when no verification took place.
	Digest string
}

// String implements fmt.Stringer.
func (r Result) String() string {
	return fmt.Sprintf("%s: %s", r.Name, r.Outcome)
}

// SourceFunc opens the content to be written to the staged path. It is
// only called when the artifact is absent, and is expected to fail
// before returning a reader if the content is unavailable, so that
// nothing is written in that case.
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

// Stager moves artifacts through the absent, staged and committed phases.
// The zero value is not usable, use New.
type Stager struct {
	log  logr.Logger
	sink progress.Sink
	lock bool
}

// Option configures a Stager.
type Option func(*Stager)

// WithLogger sets the logger used to report phase transitions.
func WithLogger(log logr.Logger) Option {
	return func(s *Stager) {
		s.log = log
	}
}

// WithProgressSink sets the sink receiving hash progress.
func WithProgressSink(sink progress.Sink) Option {
	return func(s *Stager) {
		s.sink = progress.OrDiscard(sink)
	}
}

// WithFileLock enables or disables the advisory lock file held next to
// each artifact while it is being staged.
func WithFileLock(enabled bool) Option {
	return func(s *Stager) {
		s.lock = enabled
	}
}

// New returns a Stager with file locking enabled and no logging or
// progress reporting.
func New(opts ...Option) *Stager {
	s := &Stager{
		log:  logr.Discard(),
		sink: progress.Discard,
		lock: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StageThenCommit brings the artifact to the committed phase:
//
//   - Committed: nothing is done, committed files are trusted without
//     hashing them again.
//   - Staged: the staged file is verified and renamed into place. If it
//     does not match, it is removed and the artifact is treated as absent.
//   - Absent: the content returned by open is written to the staged path,
//     verified and renamed into place. On mismatch the staged file is
//     removed and a DigestMismatchError is returned.
//
// The committed path is only ever replaced by a rename, so readers never
// observe a partially written file.
func (s *Stager) StageThenCommit(ctx context.Context, a Artifact, open SourceFunc) (Result, error) {
	log := s.log.WithValues("name", a.Name, "path", a.Path)
	res := Result{Name: a.Name, Path: a.Path}
	staged := StagedPath(a.Path)

	if err := os.MkdirAll(filepath.Dir(a.Path), 0o755); err != nil {
		return res, &FilesystemError{Op: "create directory", Path: filepath.Dir(a.Path), Err: err}
	}

	if s.lock {
		unlock, err := lockedfile.MutexAt(a.Path + ".lock").Lock()
		if err != nil {
			return res, &FilesystemError{Op: "lock", Path: a.Path + ".lock", Err: err}
		}
		defer unlock()
	}

	phase, err := Probe(a.Path)
	if err != nil {
		return res, err
	}
	log.V(logger.DebugLevel).Info("probed artifact", "phase", phase.String())

	switch phase {
	case PhaseCommitted:
		res.Outcome = OutcomeSkipped
		res.Size = fileSize(a.Path)
		return res, nil
	case PhaseStaged:
		sum, err := s.verify(a, staged)
		switch {
		case err == nil:
			if err := commit(staged, a.Path); err != nil {
				return res, err
			}
			log.Info("committed staged artifact from previous run")
			res.Outcome = OutcomeResumed
			res.Digest = sum
			res.Size = fileSize(a.Path)
			return res, nil
		case isMismatch(err):
			log.Info("staged artifact failed verification, starting over", "error", err.Error())
		default:
			log.Error(err, "failed to verify staged artifact, starting over")
			if rmErr := removeStaged(staged); rmErr != nil {
				return res, rmErr
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	src, err := open(ctx)
	if err != nil {
		return res, err
	}
	written, err := writeStaged(ctx, staged, src)
	if err != nil {
		if rmErr := removeStaged(staged); rmErr != nil {
			log.Error(rmErr, "failed to clean up staged artifact")
		}
		return res, err
	}
	log.V(logger.DebugLevel).Info("staged artifact", "bytes", written)

	sum, err := s.verify(a, staged)
	if err != nil {
		if !isMismatch(err) {
			_ = removeStaged(staged)
		}
		return res, err
	}
	if err := commit(staged, a.Path); err != nil {
		return res, err
	}
	log.Info("committed artifact", "bytes", written, "verified", sum != "")

	res.Outcome = OutcomeWritten
	res.Digest = sum
	res.Size = written
	return res, nil
}

// verify hashes the staged file and compares it with the expected
// digest. A mismatching file is removed before returning the error.
func (s *Stager) verify(a Artifact, staged string) (string, error) {
	if a.Expected == "" {
		return "", nil
	}

	sum, err := digest.ComputeFile(staged, a.Expected.Algorithm(), progress.Reporter(s.sink, progress.KindHash, a.Name))
	if err != nil {
		return "", &FilesystemError{Op: "hash", Path: staged, Err: err}
	}
	if sum != a.Expected.Encoded() {
		if err := removeStaged(staged); err != nil {
			return "", err
		}
		return "", &DigestMismatchError{
			Name:     a.Name,
			Path:     staged,
			Expected: a.Expected.Encoded(),
			Actual:   sum,
		}
	}
	return sum, nil
}

// writeStaged copies src into a freshly truncated staged file, flushing
// and syncing it before returning.
func writeStaged(ctx context.Context, staged string, src io.ReadCloser) (written int64, err error) {
	defer src.Close()

	f, err := os.OpenFile(staged, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, &FilesystemError{Op: "create", Path: staged, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = &FilesystemError{Op: "close", Path: staged, Err: closeErr}
		}
	}()

	w := bufio.NewWriterSize(f, copyBufferSize)
	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, &FilesystemError{Op: "write", Path: staged, Err: werr}
			}
			written += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return written, rerr
		}
	}

	if err := w.Flush(); err != nil {
		return written, &FilesystemError{Op: "write", Path: staged, Err: err}
	}
	if err := f.Sync(); err != nil {
		return written, &FilesystemError{Op: "sync", Path: staged, Err: err}
	}
	return written, nil
}

func commit(staged, path string) error {
	if err := os.Rename(staged, path); err != nil {
		return &FilesystemError{Op: "rename", Path: staged, Err: err}
	}
	syncDir(filepath.Dir(path))
	return nil
}

// syncDir flushes directory metadata so a completed rename survives a
// crash. Failures are ignored, not every platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func removeStaged(staged string) error {
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		return &FilesystemError{Op: "remove", Path: staged, Err: err}
	}
	return nil
}

func isMismatch(err error) bool {
	var mismatch *DigestMismatchError
	return errors.As(err, &mismatch)
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
