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
	"encoding/json"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
)

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// OnProgress appends e to the recorded events.
func (r *Recorder) OnProgress(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events, optionally filtered by
// kind.
func (r *Recorder) Events(kinds ...Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if len(kinds) == 0 || containsKind(kinds, e.Kind) {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event of the given kind for the named
// resource.
func (r *Recorder) Last(kind Kind, name string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if e := r.events[i]; e.Kind == kind && e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// NewJSONSink returns a Sink writing one JSON object per event to w.
// Encoding errors are dropped.
func NewJSONSink(w io.Writer) Sink {
	s := &jsonSink{enc: json.NewEncoder(w)}
	return s
}

type jsonSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (s *jsonSink) OnProgress(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(e)
}

// NewLogSink returns a Sink that logs progress through log, at most once
// per step percent for each resource and kind. Events with an unknown
// total are logged every step MiB instead.
func NewLogSink(log logr.Logger, step int) Sink {
	if step <= 0 {
		step = 10
	}
	return &logSink{log: log, step: int64(step), seen: map[logKey]logMark{}}
}

type logKey struct {
	kind Kind
	name string
}

type logMark struct {
	bucket    int64
	processed int64
}

type logSink struct {
	log  logr.Logger
	step int64

	mu   sync.Mutex
	seen map[logKey]logMark
}

func (s *logSink) OnProgress(e Event) {
	if e.Kind == KindStatus {
		s.log.Info("status", "name", e.Name, "status", e.Status)
		return
	}

	var bucket int64
	if e.Total > 0 {
		bucket = int64(e.Percent()) / s.step
	} else {
		bucket = e.Processed / (s.step << 20)
	}

	key := logKey{kind: e.Kind, name: e.Name}
	s.mu.Lock()
	prev, ok := s.seen[key]
	// A smaller count than last time means the activity restarted.
	if ok && bucket <= prev.bucket && e.Processed >= prev.processed {
		s.mu.Unlock()
		return
	}
	s.seen[key] = logMark{bucket: bucket, processed: e.Processed}
	s.mu.Unlock()

	kv := []any{"name", e.Name, "kind", e.Kind, "processed", humanize.IBytes(uint64(e.Processed))}
	if e.Total > 0 {
		kv = append(kv, "total", humanize.IBytes(uint64(e.Total)), "percent", int(e.Percent()))
	}
	s.log.Info("progress", kv...)
}
