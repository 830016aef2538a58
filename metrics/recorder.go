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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poleshift/stager/stage"
)

// Artifact labels.
const (
	ArtifactCompressed   = "compressed"
	ArtifactDecompressed = "decompressed"
)

// Recorder collects staging metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	outcomeCounter    *prometheus.CounterVec
	bytesCounter      *prometheus.CounterVec
	failureCounter    *prometheus.CounterVec
	durationHistogram *prometheus.HistogramVec
}

// NewRecorder returns a Recorder whose collectors still need to be
// registered, see Collectors.
func NewRecorder() *Recorder {
	return &Recorder{
		outcomeCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_artifact_outcomes_total",
				Help: "Total number of artifacts brought to the committed phase, partitioned by outcome.",
			},
			[]string{"name", "artifact", "outcome"},
		),
		bytesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_written_bytes_total",
				Help: "Total number of bytes written to staged artifacts.",
			},
			[]string{"name", "artifact"},
		),
		failureCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_resource_failures_total",
				Help: "Total number of resources whose pipeline failed.",
			},
			[]string{"name"},
		),
		durationHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stager_resource_duration_seconds",
				Help:    "The duration in seconds of the pipeline of a resource.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"name"},
		),
	}
}

// Collectors returns the prometheus.Collector objects of the Recorder.
func (r *Recorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.outcomeCounter, r.bytesCounter, r.failureCounter, r.durationHistogram}
}

// MustRegister registers the collectors of the Recorder in reg.
func (r *Recorder) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(r.Collectors()...)
}

// RecordResult records how an artifact reached the committed phase.
func (r *Recorder) RecordResult(artifact string, res stage.Result) {
	if r == nil || res.Outcome == "" {
		return
	}
	r.outcomeCounter.WithLabelValues(res.Name, artifact, string(res.Outcome)).Inc()
	if res.Outcome == stage.OutcomeWritten {
		r.bytesCounter.WithLabelValues(res.Name, artifact).Add(float64(res.Size))
	}
}

// RecordFailure records a failed resource pipeline.
func (r *Recorder) RecordFailure(name string) {
	if r == nil {
		return
	}
	r.failureCounter.WithLabelValues(name).Inc()
}

// RecordDuration records the time elapsed since start for the named
// resource.
func (r *Recorder) RecordDuration(name string, start time.Time) {
	if r == nil {
		return
	}
	r.durationHistogram.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
