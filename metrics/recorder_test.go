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
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/poleshift/stager/stage"
)

func TestRecorder(t *testing.T) {
	g := NewWithT(t)

	r := NewRecorder()
	reg := prometheus.NewRegistry()
	r.MustRegister(reg)

	r.RecordResult(ArtifactCompressed, stage.Result{Name: "taxDB.gz", Outcome: stage.OutcomeWritten, Size: 1000})
	r.RecordResult(ArtifactDecompressed, stage.Result{Name: "taxDB.gz", Outcome: stage.OutcomeSkipped, Size: 4000})
	r.RecordResult(ArtifactDecompressed, stage.Result{Name: "taxDB.gz"})
	r.RecordFailure("database.idx.gz")
	r.RecordDuration("taxDB.gz", time.Now())

	g.Expect(testutil.ToFloat64(r.outcomeCounter.WithLabelValues("taxDB.gz", ArtifactCompressed, "written"))).To(Equal(1.0))
	g.Expect(testutil.ToFloat64(r.outcomeCounter.WithLabelValues("taxDB.gz", ArtifactDecompressed, "skipped"))).To(Equal(1.0))
	g.Expect(testutil.ToFloat64(r.bytesCounter.WithLabelValues("taxDB.gz", ArtifactCompressed))).To(Equal(1000.0))
	g.Expect(testutil.ToFloat64(r.failureCounter.WithLabelValues("database.idx.gz"))).To(Equal(1.0))
	g.Expect(testutil.CollectAndCount(r.durationHistogram)).To(Equal(1))
}

func TestRecorder_Nil(t *testing.T) {
	g := NewWithT(t)

	var r *Recorder
	g.Expect(func() {
		r.RecordResult(ArtifactCompressed, stage.Result{Name: "x", Outcome: stage.OutcomeWritten})
		r.RecordFailure("x")
		r.RecordDuration("x", time.Now())
	}).ToNot(Panic())
}
