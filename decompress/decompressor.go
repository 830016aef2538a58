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

// Package decompress expands committed compressed artifacts into their
// final location.
package decompress

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/poleshift/stager/catalog"
	"github.com/poleshift/stager/progress"
	"github.com/poleshift/stager/stage"
)

// NewReader returns a reader decompressing r with the given format. The
// returned closer releases decoder resources, it does not close r.
func NewReader(format string, r io.Reader) (io.ReadCloser, error) {
	switch format {
	case catalog.CompressionGzip, "":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case catalog.CompressionZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case catalog.CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression format '%s'", format)
	}
}

// Decompressor brings the decompressed artifact of a resource to the
// committed phase.
type Decompressor struct {
	stager *stage.Stager
	sink   progress.Sink
}

// Option configures a Decompressor.
type Option func(*Decompressor)

// WithProgressSink sets the sink receiving decompression progress, in
// compressed bytes consumed.
func WithProgressSink(sink progress.Sink) Option {
	return func(d *Decompressor) {
		d.sink = progress.OrDiscard(sink)
	}
}

// NewDecompressor returns a Decompressor staging through stager.
func NewDecompressor(stager *stage.Stager, opts ...Option) *Decompressor {
	d := &Decompressor{
		stager: stager,
		sink:   progress.Discard,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ensure brings the decompressed artifact of r to the committed phase.
// Resources that are not decompressed are reported as skipped. When the
// decompressed artifact is absent, the compressed one must be committed,
// otherwise a MissingPrecursorError is returned and nothing is written.
func (d *Decompressor) Ensure(ctx context.Context, r catalog.Resource) (stage.Result, error) {
	if !r.Decompress {
		return stage.Result{Name: r.Name, Path: r.FinalPath, Outcome: stage.OutcomeSkipped}, nil
	}

	// Fail before the stager creates directories or lock files.
	phase, err := stage.Probe(r.FinalPath)
	if err != nil {
		return stage.Result{Name: r.Name, Path: r.FinalPath}, err
	}
	if phase == stage.PhaseAbsent {
		if err := checkPrecursor(r); err != nil {
			return stage.Result{Name: r.Name, Path: r.FinalPath}, err
		}
	}

	return d.stager.StageThenCommit(ctx, r.DecompressedArtifact(), func(ctx context.Context) (io.ReadCloser, error) {
		return d.open(r)
	})
}

// checkPrecursor returns a MissingPrecursorError unless the compressed
// artifact of r is committed.
func checkPrecursor(r catalog.Resource) error {
	phase, err := stage.Probe(r.CompressedPath)
	if err != nil {
		return err
	}
	if phase != stage.PhaseCommitted {
		return &stage.MissingPrecursorError{Name: r.Name, Path: r.CompressedPath}
	}
	return nil
}

func (d *Decompressor) open(r catalog.Resource) (io.ReadCloser, error) {
	// Checked again under the lock, a staged final file may have been
	// rejected since the first check.
	if err := checkPrecursor(r); err != nil {
		return nil, err
	}

	f, err := os.Open(r.CompressedPath)
	if err != nil {
		return nil, &stage.FilesystemError{Op: "open", Path: r.CompressedPath, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &stage.FilesystemError{Op: "stat", Path: r.CompressedPath, Err: err}
	}

	counted := progress.NewReader(f, fi.Size(), progress.Reporter(d.sink, progress.KindDecompress, r.Name))
	dr, err := NewReader(r.Compression, counted)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decompress '%s': %w", r.CompressedPath, err)
	}
	return &decompressedFile{ReadCloser: dr, file: f, path: r.CompressedPath}, nil
}

// decompressedFile closes both the decoder and the underlying file, and
// tags decoding failures with the compressed path.
type decompressedFile struct {
	io.ReadCloser
	file *os.File
	path string
}

func (f *decompressedFile) Read(p []byte) (int, error) {
	n, err := f.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("failed to decompress '%s': %w", f.path, err)
	}
	return n, err
}

func (f *decompressedFile) Close() error {
	err := f.ReadCloser.Close()
	if ferr := f.file.Close(); err == nil {
		err = ferr
	}
	return err
}
