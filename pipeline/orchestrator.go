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

// Package pipeline runs the download and decompression of every catalog
// resource concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/poleshift/stager/catalog"
	"github.com/poleshift/stager/logger"
	"github.com/poleshift/stager/metrics"
	"github.com/poleshift/stager/progress"
	"github.com/poleshift/stager/stage"
)

// Stager brings one artifact of a resource to the committed phase.
// It is implemented by fetch.Fetcher and decompress.Decompressor.
type Stager interface {
	Ensure(ctx context.Context, r catalog.Resource) (stage.Result, error)
}

// ResourceReport holds the outcome of the pipeline of a single resource.
type ResourceReport struct {
	Name string
	// Compressed is the result of the download phase.
	Compressed stage.Result
	// Decompressed is the result of the decompression phase. It is the
	// zero Result when the resource is not decompressed or when the
	// download phase failed.
	Decompressed stage.Result
	Duration     time.Duration
	Err          error
}

// Ready tells whether the final artifact of the resource is committed.
func (r ResourceReport) Ready() bool {
	return r.Err == nil
}

// Report lists the outcome of every resource of a run, in catalog order.
type Report struct {
	Resources []ResourceReport
}

// Failed returns the reports of the resources whose pipeline failed.
func (r *Report) Failed() []ResourceReport {
	var failed []ResourceReport
	for _, rr := range r.Resources {
		if rr.Err != nil {
			failed = append(failed, rr)
		}
	}
	return failed
}

// Written returns the number of bytes written by the run, downloads and
// decompressions included.
func (r *Report) Written() int64 {
	var n int64
	for _, rr := range r.Resources {
		for _, res := range []stage.Result{rr.Compressed, rr.Decompressed} {
			if res.Outcome == stage.OutcomeWritten {
				n += res.Size
			}
		}
	}
	return n
}

// Orchestrator runs one task per resource. Each task downloads the
// compressed artifact and then decompresses it. A failing task does not
// cancel its siblings and partial progress stays on disk.
type Orchestrator struct {
	fetcher      Stager
	decompressor Stager
	log          logr.Logger
	metrics      *metrics.Recorder
	sink         progress.Sink
	concurrency  int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithMetrics sets the recorder of the run metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithProgressSink sets the sink receiving the status changes of every
// resource.
func WithProgressSink(sink progress.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = progress.OrDiscard(sink)
	}
}

// WithConcurrency limits the number of resources processed at once.
// Zero or a negative value means no limit.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.concurrency = n
	}
}

// New returns an Orchestrator downloading with fetcher and decompressing
// with decompressor.
func New(fetcher, decompressor Stager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:      fetcher,
		decompressor: decompressor,
		log:          logr.Discard(),
		sink:         progress.Discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every resource of the resolved catalog c and waits for
// all of them. The returned Report is never nil and always complete. The error is the
// first one observed, nil when every resource reached the committed
// phase.
func (o *Orchestrator) Run(ctx context.Context, c *catalog.Catalog) (*Report, error) {
	if c == nil || len(c.Resources) == 0 {
		return &Report{}, &stage.ConfigurationError{Err: errors.New("catalog has no resources")}
	}

	report := &Report{Resources: make([]ResourceReport, len(c.Resources))}

	// A plain Group, siblings keep running when a task fails.
	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, r := range c.Resources {
		g.Go(func() error {
			rr := o.ensure(ctx, r)
			report.Resources[i] = rr
			return rr.Err
		})
	}
	err := g.Wait()
	return report, err
}

func (o *Orchestrator) ensure(ctx context.Context, r catalog.Resource) (rr ResourceReport) {
	start := time.Now()
	log := o.log.WithValues("resource", r.Name)
	rr.Name = r.Name

	defer func() {
		rr.Duration = time.Since(start)
		o.metrics.RecordDuration(r.Name, start)
	}()

	log.V(logger.DebugLevel).Info("ensuring compressed artifact", "path", r.CompressedPath)
	progress.SendStatus(o.sink, r.Name, progress.StatusDownloading)
	res, err := o.fetcher.Ensure(ctx, r)
	if err != nil {
		rr.Err = fmt.Errorf("failed to fetch '%s': %w", r.Name, err)
		o.fail(log, r.Name, rr.Err)
		return rr
	}
	rr.Compressed = res
	o.metrics.RecordResult(metrics.ArtifactCompressed, res)
	log.V(logger.DebugLevel).Info("compressed artifact committed", "outcome", res.Outcome, "path", res.Path)

	if !r.Decompress {
		log.Info("resource ready", "path", r.FinalPath)
		progress.SendStatus(o.sink, r.Name, progress.StatusComplete)
		return rr
	}

	progress.SendStatus(o.sink, r.Name, progress.StatusDecompressing)
	res, err = o.decompressor.Ensure(ctx, r)
	if err != nil {
		rr.Err = fmt.Errorf("failed to decompress '%s': %w", r.Name, err)
		o.fail(log, r.Name, rr.Err)
		return rr
	}
	rr.Decompressed = res
	o.metrics.RecordResult(metrics.ArtifactDecompressed, res)
	log.Info("resource ready", "path", res.Path, "outcome", res.Outcome)
	progress.SendStatus(o.sink, r.Name, progress.StatusComplete)
	return rr
}

func (o *Orchestrator) fail(log logr.Logger, name string, err error) {
	log.Error(err, "resource failed")
	o.metrics.RecordFailure(name)
	progress.SendStatus(o.sink, name, progress.StatusFailed)
}
